// shared/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissingDBCredentials is returned by Validate when neither DATABASE_URL
// nor the DB_* variables are set.
var ErrMissingDBCredentials = errors.New("database credentials not configured")

// CommonConfig holds infrastructure details used by every binary in the repo.
type CommonConfig struct {
	//Database (PostgreSQL) config
	DATABASE_URL string
	DB_USER      string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	//Kafka config
	KAFKA_TOPIC  string
	KAFKA_BROKER string
	KAFKA_GROUP  string
	//RabbitMQ config
	RABBITMQ_USER     string
	RABBITMQ_PASSWORD string
	RABBITMQ_HOST     string
	RABBITMQ_PORT     string
	//Redis (scheduler locks)
	REDIS_ADDR string

	HTTP_ADDR         string
	LOG_LEVEL         string
	LOG_FILE          string
	SCHEDULE_TIMEZONE string
}

// LoadCommonConfig returns the shared infrastructure config.
// A .env file in the working directory is loaded first when present.
func LoadCommonConfig() *CommonConfig {
	_ = godotenv.Load()

	return &CommonConfig{
		DATABASE_URL: os.Getenv("DATABASE_URL"),
		DB_USER:      os.Getenv("DB_USER"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_HOST:      os.Getenv("DB_HOST"),
		DB_PORT:      getenv("DB_PORT", "5432"),
		DB_NAME:      os.Getenv("DB_NAME"),

		KAFKA_TOPIC:  getenv("KAFKA_TOPIC", "loads.changes"),
		KAFKA_BROKER: os.Getenv("KAFKA_BROKER"),
		KAFKA_GROUP:  getenv("KAFKA_GROUP", "dispatch-service"),

		RABBITMQ_USER:     getenv("RABBITMQ_USER", "guest"),
		RABBITMQ_PASSWORD: getenv("RABBITMQ_PASSWORD", "guest"),
		RABBITMQ_HOST:     os.Getenv("RABBITMQ_HOST"),
		RABBITMQ_PORT:     os.Getenv("RABBITMQ_PORT"),

		REDIS_ADDR: os.Getenv("REDIS_ADDR"),

		HTTP_ADDR:         getenv("HTTP_ADDR", ":8080"),
		LOG_LEVEL:         getenv("LOG_LEVEL", "info"),
		LOG_FILE:          getenv("LOG_FILE", "./logs/app.log"),
		SCHEDULE_TIMEZONE: getenv("SCHEDULE_TIMEZONE", "America/New_York"),
	}
}

// Validate checks the settings every binary needs to talk to the store.
func (c *CommonConfig) Validate() error {
	if c.DATABASE_URL != "" {
		return nil
	}
	if c.DB_HOST == "" || c.DB_USER == "" || c.DB_NAME == "" {
		return fmt.Errorf("%w: set DATABASE_URL or DB_HOST, DB_USER, DB_PASSWORD and DB_NAME (a .env file in the working directory also works)", ErrMissingDBCredentials)
	}
	return nil
}

// GetDBURL formats the config into a PostgreSQL connection string
func (c *CommonConfig) GetDBURL() string {
	if c.DATABASE_URL != "" {
		return c.DATABASE_URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DB_USER, c.DB_PASSWORD, c.DB_HOST, c.DB_PORT, c.DB_NAME)
}

// GetRabbitMQURL formats the config into a RabbitMQ connection string.
// Empty string means RabbitMQ is not configured.
func (c *CommonConfig) GetRabbitMQURL() string {
	if c.RABBITMQ_HOST == "" {
		return ""
	}
	port := c.RABBITMQ_PORT
	if port == "" {
		port = "5672"
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.RABBITMQ_USER, c.RABBITMQ_PASSWORD, c.RABBITMQ_HOST, port)
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
