package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"expenses-api/internal/auth"
	"expenses-api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)
	return cfg
}

func TestSetupRouter(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DB_DRIVER": "memory"})
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"Health is public", "GET", "/health", http.StatusOK},
		{"Index is public", "GET", "/", http.StatusOK},
		{"List categories requires auth", "GET", "/category", http.StatusUnauthorized},
		{"Create record requires auth", "POST", "/record", http.StatusUnauthorized},
		{"Unknown route", "GET", "/expenses", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			w := httptest.NewRecorder()

			a.handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, "%s %s returned unexpected status", tt.method, tt.path)
		})
	}
}

func TestNewAppSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "server.db")
	cfg := testConfig(t, map[string]string{"DB_PATH": dbPath})

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.FileExists(t, dbPath)
}

func TestNewAppFallsBackWhenRedisIsDown(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DB_DRIVER": "memory", "REDIS_ADDR": "127.0.0.1:1"})

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	a.Close()
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, map[string]string{"DB_DRIVER": "memory"})
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, ensureAdmin(ctx, a.svc, "", ""))
	users, err := a.svc.Users(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "no admin without credentials")

	err = ensureAdmin(ctx, a.svc, "root", strings.Repeat("é", 40))
	assert.ErrorIs(t, err, auth.ErrPasswordTooLong)

	require.NoError(t, ensureAdmin(ctx, a.svc, "root", "secret"))
	require.NoError(t, ensureAdmin(ctx, a.svc, "root", "secret"), "second call is a no-op")

	users, err = a.svc.Users(ctx)
	require.NoError(t, err)
	if assert.Len(t, users, 1) {
		assert.Equal(t, "root", users[0].Name)
		assert.True(t, users[0].IsAdmin)
	}
}
