package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"sutradharx/config"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	l, err := parseLevel("")
	if err != nil || l != zapcore.InfoLevel {
		t.Fatalf("level = %v, %v", l, err)
	}
}
