package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/scry-rl/scry/internal/api"
	"github.com/scry-rl/scry/internal/buildconfig"
	"github.com/scry-rl/scry/internal/catalog"
	"github.com/scry-rl/scry/internal/config"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	logger.Info("scryd starting",
		zap.String("version", buildconfig.Version()),
		zap.String("commit", buildconfig.Commit()))

	cat, err := catalog.Load(config.CatalogPath())
	if err != nil {
		logger.Fatal("failed to load role catalog",
			zap.String("path", config.CatalogPath()), zap.Error(err))
	}
	logger.Info("role catalog loaded", zap.Int("species", cat.Len()))

	ctx := context.Background()

	// The archive is optional: without DATABASE_URL the server runs with
	// the persistence endpoints disabled.
	var pool *pgxpool.Pool
	if dbURL := config.DatabaseURL(); dbURL != "" {
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		logger.Info("episode archive enabled")
	} else {
		logger.Info("DATABASE_URL not set, episode archive disabled")
	}

	app := api.NewApp(cat, pool, logger)

	// Start background services
	app.Expirer.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	// Stop background services
	app.Expirer.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(config.LogLevel()); err == nil {
		cfg.Level = level
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
