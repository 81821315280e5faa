package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log := New(Options{Service: "dispatch-service", Level: "debug", File: path})

	log.WithField("load_id", "l1").Debug("earnings skipped")

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	for _, want := range []string{"service=dispatch-service", "load_id=l1", "earnings skipped"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("log line missing %q: %s", want, body)
		}
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New(Options{Service: "x", Level: "chatty"})
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level, got %s", log.Logger.GetLevel())
	}
}
