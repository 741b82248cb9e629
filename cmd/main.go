// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/library-lending/internal/config"
	"github.com/Shivanand-hulikatti/library-lending/internal/database"
	"github.com/Shivanand-hulikatti/library-lending/internal/handler"
	"github.com/Shivanand-hulikatti/library-lending/internal/observability"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository/memory"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/library-lending/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "library-lending: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// ── 1. Tracing ────────────────────────────────────────────────────────
	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Error("tracing disabled", zap.Error(err))
	}

	// ── 2. Storage ────────────────────────────────────────────────────────
	var store repository.Store
	switch cfg.Storage {
	case config.StorageMemory:
		store = memory.New()
		logger.Warn("using in-memory storage; data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		logger.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
		store = postgres.New(pool, postgres.WithLockTimeout(cfg.LockTimeout))
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	svc := service.NewCoordinator(store, cfg.BorrowLimit, service.WithLogger(logger))
	libraryHandler := handler.NewLibraryHandler(svc, logger)
	limiter := handler.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(libraryHandler, logger, limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     zap.NewStdLog(logger),
	}

	// ── 4. Start server with graceful shutdown ────────────────────────────
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Int("borrow_limit", cfg.BorrowLimit),
			zap.String("storage", cfg.Storage),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
