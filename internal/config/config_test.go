package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"expenses-api/internal/expenses"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "expenses.db", cfg.DBPath)
	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, expenses.GlobalPolicyAny, cfg.GlobalPolicy)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":                     "9000",
		"DB_DRIVER":                "Postgres",
		"DATABASE_URL":             "postgres://u:p@localhost/db",
		"JWT_SECRET_KEY":           "k",
		"JWT_ACCESS_TOKEN_EXPIRES": "60",
		"GLOBAL_CATEGORY_POLICY":   "admin",
		"CORS_ORIGINS":             "http://a.test, http://b.test,",
		"LOG_LEVEL":                "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, time.Minute, cfg.TokenTTL)
	assert.Equal(t, expenses.GlobalPolicyAdmin, cfg.GlobalPolicy)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnvErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"postgres without url": {"DB_DRIVER": "postgres"},
		"unknown driver":       {"DB_DRIVER": "mysql"},
		"bad ttl":              {"JWT_ACCESS_TOKEN_EXPIRES": "soon"},
		"negative ttl":         {"JWT_ACCESS_TOKEN_EXPIRES": "-5"},
		"bad policy":           {"GLOBAL_CATEGORY_POLICY": "everyone"},
		"bad log level":        {"LOG_LEVEL": "loud"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPENSES_TEST_PORT_FROM_FILE=1\n"), 0o600))
	t.Setenv("PORT", "7070")
	t.Cleanup(func() { os.Unsetenv("EXPENSES_TEST_PORT_FROM_FILE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "1", os.Getenv("EXPENSES_TEST_PORT_FROM_FILE"))
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
