package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/background"
	"github.com/hmarchena/gatewarden/internal/cache"
	"github.com/hmarchena/gatewarden/internal/config"
	"github.com/hmarchena/gatewarden/internal/database"
	"github.com/hmarchena/gatewarden/internal/handlers"
	"github.com/hmarchena/gatewarden/internal/middleware"
	"github.com/hmarchena/gatewarden/internal/repositories"
	"github.com/hmarchena/gatewarden/internal/routes"
	"github.com/hmarchena/gatewarden/internal/services"
	pkghttp "github.com/hmarchena/gatewarden/pkg/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancelMigrate()
	if err := database.Migrate(migrateCtx, db.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// The block cache is optional: without Redis the registry read path goes
	// straight to Postgres on every request.
	var blockCache cache.BlockCache
	if cfg.Server.RedisURL != "" {
		redisCache, err := cache.NewRedisBlockCache(cfg.Server.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			cancelPing()
			return fmt.Errorf("ping redis: %w", err)
		}
		cancelPing()
		blockCache = redisCache
		logger.Info("block cache enabled")
	}

	// Repositories.
	tokenRepo := repositories.NewTokenRepository(db)
	usageRepo := repositories.NewUsageRepository(db)
	blockRepo := repositories.NewBlockRepository(db)
	eventRepo := repositories.NewEventRepository(db)

	// Services.
	tokenManager := auth.NewTokenManager()
	sessionValidator := auth.NewSessionValidator(cfg.Security.SessionSecret)

	auditService := services.NewAuditService(eventRepo, logger, cfg.Security.AuditQueueSize)
	auditService.Start()

	blocklistService := services.NewBlocklistService(blockRepo, eventRepo, blockCache, auditService, services.BlocklistConfig{
		AttackThreshold: cfg.Security.AttackThreshold,
		AttackWindow:    cfg.Security.AttackWindow,
		BlockDuration:   cfg.Security.BlockDuration,
	}, logger)
	classifier := services.NewThreatClassifier()
	authenticatorService := services.NewAuthenticatorService(tokenRepo, tokenManager, auditService, logger)
	quotaService := services.NewQuotaService(usageRepo, auditService, logger)
	issuerService := services.NewIssuerService(tokenRepo, tokenManager, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	gateway := middleware.NewGateway(
		blocklistService, classifier, authenticatorService, quotaService,
		auditService, ipConfig, logger,
	)

	router := routes.SetupRoutes(routes.Handlers{
		Gateway:       gateway,
		Query:         handlers.NewQueryHandler(cfg.Upstream, logger),
		Tokens:        handlers.NewTokenHandler(issuerService),
		Admin:         handlers.NewAdminHandler(blocklistService, eventRepo),
		Session:       sessionValidator,
		Health:        healthHandler(db),
		RequestLogger: middleware.RequestLogger(logger),
		IPConfig:      ipConfig,
	})

	maintenance := background.NewMaintenanceManager(tokenRepo, logger, cfg.Security.SweepInterval)
	maintenance.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}

	maintenance.Stop()
	auditService.Stop(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
