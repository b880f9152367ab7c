// Package config loads forumd and notifier settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr     string
	DatabaseURL    string
	DBMaxOpenConns int

	RedisAddr string
	NATSURL   string

	JWTSecret          string
	CORSAllowedOrigins []string

	TopicMaxPerMinute       int
	ReplyMaxPerMinute       int
	TopicDuplicateWindowMin int
	ReplyDuplicateWindowMin int
	RecentPostWindow        int

	HTTPReadTimeoutSec  int
	HTTPWriteTimeoutSec int
	HTTPIdleTimeoutSec  int

	LogLevel string
	LogDev   bool
}

// Load reads the environment and validates the result for forumd.
func Load() (Config, error) {
	cfg := read()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadNotifier reads the environment for the notifier worker, which needs
// NATS and the database but no token secret.
func LoadNotifier() (Config, error) {
	cfg := read()
	if strings.TrimSpace(cfg.NATSURL) == "" {
		return Config{}, fmt.Errorf("NATS_URL is required")
	}
	if err := cfg.validateCommon(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func read() Config {
	cfg := Config{
		ListenAddr:              env("LISTEN_ADDR", ":8080"),
		DatabaseURL:             env("DATABASE_URL", "sqlite://./data/forum.db"),
		DBMaxOpenConns:          envInt("DB_MAX_OPEN_CONNS", 10),
		RedisAddr:               env("REDIS_ADDR", ""),
		NATSURL:                 env("NATS_URL", ""),
		JWTSecret:               env("JWT_SECRET", ""),
		CORSAllowedOrigins:      envCSV("CORS_ALLOWED_ORIGINS"),
		TopicMaxPerMinute:       envInt("TOPIC_MAX_PER_MINUTE", 2),
		ReplyMaxPerMinute:       envInt("REPLY_MAX_PER_MINUTE", 5),
		TopicDuplicateWindowMin: envInt("TOPIC_DUPLICATE_WINDOW_MIN", 10),
		ReplyDuplicateWindowMin: envInt("REPLY_DUPLICATE_WINDOW_MIN", 5),
		RecentPostWindow:        envInt("RECENT_POST_WINDOW", 10),
		HTTPReadTimeoutSec:      envInt("HTTP_READ_TIMEOUT_SEC", 10),
		HTTPWriteTimeoutSec:     envInt("HTTP_WRITE_TIMEOUT_SEC", 30),
		HTTPIdleTimeoutSec:      envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		LogDev:                  envBool("LOG_DEV", false),
	}
	cfg.LogLevel = strings.ToLower(env("LOG_LEVEL", defaultLevel(cfg.LogDev)))
	return cfg
}

// Validate checks the settings forumd cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	return c.validateCommon()
}

func (c Config) validateCommon() error {
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}
	if c.TopicMaxPerMinute <= 0 || c.ReplyMaxPerMinute <= 0 {
		return fmt.Errorf("posting limits must be positive")
	}
	if c.TopicDuplicateWindowMin <= 0 || c.ReplyDuplicateWindowMin <= 0 {
		return fmt.Errorf("duplicate windows must be positive")
	}
	if c.RecentPostWindow <= 0 {
		return fmt.Errorf("RECENT_POST_WINDOW must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	return nil
}

func (c Config) TopicDuplicateWindow() time.Duration {
	return time.Duration(c.TopicDuplicateWindowMin) * time.Minute
}

func (c Config) ReplyDuplicateWindow() time.Duration {
	return time.Duration(c.ReplyDuplicateWindowMin) * time.Minute
}

func defaultLevel(dev bool) string {
	if dev {
		return "debug"
	}
	return "info"
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
