// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"expenses-api/internal/expenses"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	Port         string
	DBDriver     string
	DBPath       string
	DatabaseURL  string
	JWTSecret    string
	TokenTTL     time.Duration
	RedisAddr    string
	GlobalPolicy expenses.GlobalPolicy
	CORSOrigins  []string
	AdminUser    string
	AdminPass    string
	LogLevel     slog.Level
}

// DefaultJWTSecret is the development secret used when JWT_SECRET_KEY is unset.
const DefaultJWTSecret = "change-me"

// Load reads envFile (if it exists) into the environment and builds a Config.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:        valueOr(getenv("PORT"), "8080"),
		DBDriver:    strings.ToLower(valueOr(getenv("DB_DRIVER"), "sqlite")),
		DBPath:      valueOr(getenv("DB_PATH"), "expenses.db"),
		DatabaseURL: getenv("DATABASE_URL"),
		JWTSecret:   valueOr(getenv("JWT_SECRET_KEY"), DefaultJWTSecret),
		RedisAddr:   getenv("REDIS_ADDR"),
		AdminUser:   getenv("ADMIN_USER"),
		AdminPass:   getenv("ADMIN_PASSWORD"),
		LogLevel:    slog.LevelInfo,
	}

	switch cfg.DBDriver {
	case "sqlite", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	ttl := valueOr(getenv("JWT_ACCESS_TOKEN_EXPIRES"), "3600")
	seconds, err := strconv.Atoi(ttl)
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_EXPIRES %q", ttl)
	}
	cfg.TokenTTL = time.Duration(seconds) * time.Second

	if cfg.GlobalPolicy, err = expenses.ParseGlobalPolicy(getenv("GLOBAL_CATEGORY_POLICY")); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getenv("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if level := getenv("LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q", level)
		}
	}

	return cfg, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
