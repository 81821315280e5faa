package config

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CommonConfig
		wantErr bool
	}{
		{name: "database url", cfg: CommonConfig{DATABASE_URL: "postgres://x"}},
		{name: "db parts", cfg: CommonConfig{DB_HOST: "db", DB_USER: "u", DB_NAME: "loads"}},
		{name: "nothing set", cfg: CommonConfig{}, wantErr: true},
		{name: "host missing", cfg: CommonConfig{DB_USER: "u", DB_NAME: "loads"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrMissingDBCredentials) {
					t.Fatalf("expected ErrMissingDBCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGetDBURL(t *testing.T) {
	c := CommonConfig{DB_USER: "u", DB_PASSWORD: "p", DB_HOST: "h", DB_PORT: "5432", DB_NAME: "n"}
	if got := c.GetDBURL(); got != "postgres://u:p@h:5432/n?sslmode=disable" {
		t.Errorf("unexpected url %q", got)
	}
	c.DATABASE_URL = "postgres://override"
	if got := c.GetDBURL(); got != "postgres://override" {
		t.Errorf("DATABASE_URL should win, got %q", got)
	}
}

func TestGetRabbitMQURL(t *testing.T) {
	c := CommonConfig{RABBITMQ_USER: "guest", RABBITMQ_PASSWORD: "guest"}
	if got := c.GetRabbitMQURL(); got != "" {
		t.Errorf("expected empty url without host, got %q", got)
	}
	c.RABBITMQ_HOST = "mq"
	if got := c.GetRabbitMQURL(); got != "amqp://guest:guest@mq:5672/" {
		t.Errorf("unexpected url %q", got)
	}
}
