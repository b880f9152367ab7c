package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := levelFromString(tt.in); got != tt.want {
			t.Errorf("levelFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, dev := range []bool{false, true} {
		logger, err := New(Config{Level: "warn", Dev: dev})
		if err != nil {
			t.Fatalf("New(dev=%v) error: %v", dev, err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("New(dev=%v) enabled info at level warn", dev)
		}
		if !logger.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("New(dev=%v) disabled error at level warn", dev)
		}
	}
}
