package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/codeladder/internal/api"
	"github.com/terra-clan/codeladder/internal/cleanup"
	"github.com/terra-clan/codeladder/internal/config"
	"github.com/terra-clan/codeladder/internal/session"
	"github.com/terra-clan/codeladder/internal/storage"
	"github.com/terra-clan/codeladder/pkg/client"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	level, err := cfg.LogLevel()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting ladder-gateway",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"backend", cfg.Backend.URL,
		"session_store", cfg.Session.Store,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	store, closeStore, err := openStore(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "store", cfg.Session.Store, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	backend := client.NewClient(cfg.Backend.URL,
		client.WithTimeout(cfg.Backend.Timeout),
		client.WithLogger(logger),
	)
	sessions := session.NewManager(backend, store, cfg.Session.TTL, logger)
	server := api.NewServer(cfg, backend, sessions, logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(cfg.Cleanup.Interval)
	cleaner.Add("sessions", sessions)
	cleaner.Add("workspaces", server.Workspaces())
	cleaner.Start(ctx)

	// No write timeout: ladder streams are long-lived websocket connections
	httpServer := &http.Server{
		Addr:        cfg.Address(),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	server.Workspaces().CloseAll()

	slog.Info("ladder-gateway stopped")
}

// openStore builds the configured session store and returns a func that
// releases its connections
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		rdb, err := session.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("redis connected successfully")
		return session.NewRedisStore(rdb), func() {
			if err := rdb.Close(); err != nil {
				slog.Error("redis close error", "error", err)
			}
		}, nil

	case config.StorePostgres:
		pool, err := storage.NewPostgresPool(ctx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
			MaxLifetime:  cfg.Database.MaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}

		// Run database migrations
		slog.Info("running database migrations")
		if err := storage.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("database connected successfully")
		return storage.NewSessionRepository(pool), pool.Close, nil

	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}
