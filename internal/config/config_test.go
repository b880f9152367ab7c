package config

import (
	"testing"
	"time"
)

const testSecret = "a_sufficiently_long_test_secret"

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail without JWT_SECRET")
	}
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail with a short JWT_SECRET")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	for _, k := range []string{"LISTEN_ADDR", "DATABASE_URL", "TOPIC_MAX_PER_MINUTE", "REPLY_MAX_PER_MINUTE",
		"TOPIC_DUPLICATE_WINDOW_MIN", "REPLY_DUPLICATE_WINDOW_MIN", "RECENT_POST_WINDOW", "LOG_LEVEL", "LOG_DEV",
		"REDIS_ADDR", "NATS_URL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.DatabaseURL != "sqlite://./data/forum.db" {
		t.Errorf("addr/db = %q %q", cfg.ListenAddr, cfg.DatabaseURL)
	}
	if cfg.TopicMaxPerMinute != 2 || cfg.ReplyMaxPerMinute != 5 {
		t.Errorf("limits = %d/%d, want 2/5", cfg.TopicMaxPerMinute, cfg.ReplyMaxPerMinute)
	}
	if cfg.TopicDuplicateWindow() != 10*time.Minute || cfg.ReplyDuplicateWindow() != 5*time.Minute {
		t.Errorf("windows = %v/%v, want 10m/5m", cfg.TopicDuplicateWindow(), cfg.ReplyDuplicateWindow())
	}
	if cfg.RecentPostWindow != 10 {
		t.Errorf("RecentPostWindow = %d, want 10", cfg.RecentPostWindow)
	}
	if cfg.LogLevel != "info" || cfg.LogDev {
		t.Errorf("log = %q dev=%v, want info/false", cfg.LogLevel, cfg.LogDev)
	}
	if cfg.RedisAddr != "" || cfg.NATSURL != "" || cfg.CORSAllowedOrigins != nil {
		t.Errorf("optional integrations should be empty: %+v", cfg)
	}
}

func TestLoadDevLogLevel(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_DEV", "1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" || !cfg.LogDev {
		t.Errorf("log = %q dev=%v, want debug/true", cfg.LogLevel, cfg.LogDev)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TOPIC_MAX_PER_MINUTE", "0"},
		{"REPLY_DUPLICATE_WINDOW_MIN", "-1"},
		{"RECENT_POST_WINDOW", "0"},
		{"DB_MAX_OPEN_CONNS", "0"},
		{"LOG_LEVEL", "verbose"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected Load to fail for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestEnvCSV(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://forum.example.hr , ,http://localhost:3000")
	got := envCSV("CORS_ALLOWED_ORIGINS")
	if len(got) != 2 || got[0] != "https://forum.example.hr" || got[1] != "http://localhost:3000" {
		t.Errorf("envCSV() = %v", got)
	}
}

func TestLoadNotifier(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("NATS_URL", "")
	if _, err := LoadNotifier(); err == nil {
		t.Fatal("expected LoadNotifier to fail without NATS_URL")
	}

	t.Setenv("NATS_URL", "nats://localhost:4222")
	cfg, err := LoadNotifier()
	if err != nil {
		t.Fatalf("LoadNotifier() error: %v", err)
	}
	if cfg.NATSURL != "nats://localhost:4222" {
		t.Errorf("NATSURL = %q", cfg.NATSURL)
	}
}
