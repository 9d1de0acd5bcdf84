package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDatabaseURL = "host=localhost port=5432 user=postgres password=postgres dbname=betyoucant sslmode=disable"

type Config struct {
	DatabaseURL string
	HTTPAddr    string

	JWTSecret  string
	CookieName string
	CORSOrigin []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FeedCacheTTL  time.Duration

	TelegramToken          string
	TelegramAnnounceChatID int64

	LogLevel string
}

// Load reads .env when present and then the process environment.
// It reports whether a .env file was found so callers can log it.
func Load() (Config, bool, error) {
	envFile := godotenv.Load() == nil

	cfg := Config{
		DatabaseURL:   getenv("DATABASE_URL", defaultDatabaseURL),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		JWTSecret:     os.Getenv("AUTH_JWT_SECRET"),
		CookieName:    getenv("AUTH_COOKIE_NAME", "byc_session"),
		CORSOrigin:    splitList(getenv("CORS_ORIGIN", "http://localhost:3000")),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisDB, err = atoi("REDIS_DB", 0); err != nil {
		return Config{}, envFile, err
	}
	if cfg.FeedCacheTTL, err = duration("FEED_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, envFile, err
	}
	if v := os.Getenv("TELEGRAM_ANNOUNCE_CHAT_ID"); v != "" {
		if cfg.TelegramAnnounceChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, envFile, fmt.Errorf("TELEGRAM_ANNOUNCE_CHAT_ID: %w", err)
		}
	}
	return cfg, envFile, nil
}

// ValidateServe checks the settings the HTTP server cannot run without.
func (c Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET not set")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func duration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

// splitList splits a comma-separated list, dropping blanks and trailing slashes.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimRight(strings.TrimSpace(p), "/"); v != "" {
			out = append(out, v)
		}
	}
	return out
}
