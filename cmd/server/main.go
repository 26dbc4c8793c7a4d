// Package main is the entrypoint for the FeedbackLens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedbacklens/feedbacklens/internal/api"
	"github.com/feedbacklens/feedbacklens/internal/api/handler"
	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/cache"
	"github.com/feedbacklens/feedbacklens/internal/config"
	"github.com/feedbacklens/feedbacklens/internal/storage"
	"github.com/feedbacklens/feedbacklens/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "storage_backend", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create cache, Redis when configured, in-process otherwise
	var c cache.Cache
	var closeCache io.Closer
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")
		c, closeCache = redisCache, redisCache
	} else {
		memCache := cache.NewMemoryCache()
		slog.Info("using in-memory cache")
		c, closeCache = memCache, memCache
	}
	defer closeCache.Close()

	// 5. Create object storage
	objects, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create object storage: %w", err)
	}
	slog.Info("object storage initialized", "backend", objects.Name())

	// 6. Create store
	pgStore := store.NewPostgresStore(pool)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore, c)

	deps := api.Dependencies{
		Auth:            auth,
		RateLimit:       mw.NewRateLimit(c, cfg.Server.RequestsPerMin),
		WidgetRateLimit: mw.NewRateLimit(c, cfg.Widget.RequestsPerMin),
		AllowedOrigins:  cfg.Server.AllowedOrigins,

		HealthHandler: healthHandler(pgStore, c),

		WidgetSubmitHandler: handler.NewWidgetSubmitHandler(pgStore, cfg.Widget.PayloadBudgetBytes),

		ListReportsHandler:   handler.NewListReportsHandler(pgStore),
		GetReportHandler:     handler.NewGetReportHandler(pgStore),
		CreateReportHandler:  handler.NewCreateReportHandler(pgStore),
		UpdateReportHandler:  handler.NewUpdateReportHandler(pgStore),
		DeleteReportHandler:  handler.NewDeleteReportHandler(pgStore, objects),
		ExportReportsHandler: handler.NewExportReportsHandler(pgStore),

		UploadAttachmentHandler:      handler.NewUploadAttachmentHandler(pgStore, objects),
		ListReportAttachmentsHandler: handler.NewListReportAttachmentsHandler(pgStore, objects),

		CorrelationsHandler: handler.NewCorrelationsHandler(pgStore),
		PerformanceHandler:  handler.NewPerformanceHandler(pgStore),

		CreateKeyHandler:            handler.NewCreateAPIKeyHandler(pgStore),
		ListKeysHandler:             handler.NewListAPIKeysHandler(pgStore),
		RevokeKeyHandler:            handler.NewRevokeAPIKeyHandler(pgStore),
		CreateIntegrationKeyHandler: handler.NewCreateIntegrationKeyHandler(pgStore),
		ListIntegrationKeysHandler:  handler.NewListIntegrationKeysHandler(pgStore),
		RevokeIntegrationKeyHandler: handler.NewRevokeIntegrationKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, r, response.CodeDegraded,
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
