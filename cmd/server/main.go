package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expenses-api/internal/auth"
	"expenses-api/internal/config"
	"expenses-api/internal/expenses"
	"expenses-api/internal/handlers"
	"expenses-api/internal/storage"
	"expenses-api/internal/storage/memory"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// app bundles the wired server dependencies.
type app struct {
	handler http.Handler
	svc     *expenses.Service
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := ensureAdmin(ctx, a.svc, cfg.AdminUser, cfg.AdminPass); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "db_driver", cfg.DBDriver, "global_policy", cfg.GlobalPolicy)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	var repo expenses.Repository
	switch cfg.DBDriver {
	case "memory":
		repo = memory.NewStore()
	default:
		dsn := cfg.DBPath
		if cfg.DBDriver == storage.DriverPostgres {
			dsn = cfg.DatabaseURL
		}
		db, err := storage.NewDB(cfg.DBDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		repo = db
	}

	denylist, err := newDenylist(ctx, cfg.RedisAddr, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.JWTSecret == config.DefaultJWTSecret {
		slog.Warn("JWT_SECRET_KEY is not set, using the development secret")
	}
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, denylist)
	a.svc = expenses.NewService(repo, cfg.GlobalPolicy)
	a.handler = setupRouter(handlers.NewHandlers(a.svc, tokens), cfg.CORSOrigins)
	return a, nil
}

// newDenylist uses redis when addr is set and falls back to process memory otherwise.
func newDenylist(ctx context.Context, addr string, a *app) (auth.Denylist, error) {
	if addr != "" {
		client, err := auth.ConnectRedis(ctx, addr)
		if err == nil {
			slog.Info("token revocation backed by redis", "addr", addr)
			a.closers = append(a.closers, client.Close)
			return auth.NewRedisDenylist(client), nil
		}
		slog.Warn("redis unavailable, keeping revoked tokens in memory", "addr", addr, "error", err)
	}

	denylist := auth.NewMemoryDenylist()
	c, err := denylist.SchedulePurge("@every 10m")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		<-c.Stop().Done()
		return nil
	})
	return denylist, nil
}

func setupRouter(h *handlers.Handlers, corsOrigins []string) http.Handler {
	return handlers.NewRouter(h, corsOrigins)
}

// ensureAdmin creates the admin account named by ADMIN_USER if it does not exist yet.
func ensureAdmin(ctx context.Context, svc *expenses.Service, name, password string) error {
	if name == "" || password == "" {
		return nil
	}
	if err := auth.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}
	if _, err := svc.UserByName(ctx, name); err == nil {
		return nil
	} else if !errors.Is(err, expenses.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := svc.RegisterAdmin(ctx, name, hash)
	if err != nil {
		return err
	}
	slog.Info("admin user created", "user_id", user.ID, "name", user.Name)
	return nil
}
