// Package main provides the entry point for the userhub server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userhub/internal/api"
	"userhub/internal/api/middleware"
	"userhub/internal/cache"
	"userhub/internal/config"
	"userhub/internal/database"
	"userhub/internal/metrics"
	"userhub/internal/repository"
	"userhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Missing .env is fine; real deployments configure via the environment.
	_ = godotenv.Load()

	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := database.RunMigrations(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.Open(cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("closing database", "error", closeErr)
		}
	}()

	store, err := cache.NewRedisStore(cache.RedisConfig{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
		Prefix:   "userhub:",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("closing redis", "error", closeErr)
		}
	}()

	users := repository.NewPostgresUserRepository(db)
	tokens := services.NewTokenService(cfg.GetJWTSecret(), cfg.GetJWTExpiration())
	states := services.NewStateStore(store)
	providers := services.NewProviderRegistry(cfg.GetProviders())
	userService := services.NewUserService(users, tokens, store, logger)
	oauthService := services.NewOAuthService(services.OAuthServiceConfig{
		Providers:       providers,
		States:          states,
		Tokens:          tokens,
		Users:           users,
		StateTTL:        cfg.GetStateTTL(),
		ProviderTimeout: cfg.GetProviderTimeout(),
	})

	collector := metrics.NewCollector()

	router, rateLimitManager := setupRouter(ctx, cfg, store, logger, collector, routerServices{
		tokens:       tokens,
		userService:  userService,
		oauthService: oauthService,
	})
	if rateLimitManager != nil {
		defer rateLimitManager.Shutdown()
	}

	server := &http.Server{
		Addr:         ":" + cfg.GetServerPort(),
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
	}

	go func() {
		logger.Info("starting server", "addr", server.Addr, "environment", cfg.GetEnvironment())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context canceled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

type routerServices struct {
	tokens       services.TokenService
	userService  services.UserService
	oauthService services.OAuthService
}

// setupRouter configures the Gin router with the middleware chain and routes.
// The rate limiter runs first so rejected requests never reach the cache or
// handlers; the response cache runs last so hits carry a request ID and logs.
func setupRouter(
	ctx context.Context,
	cfg *config.AppConfig,
	store cache.Store,
	logger *slog.Logger,
	collector *metrics.Collector,
	svc routerServices,
) (*gin.Engine, *middleware.RateLimitManager) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	var rateLimitManager *middleware.RateLimitManager
	if cfg.GetRateLimitEnabled() {
		var limit gin.HandlerFunc
		limit, rateLimitManager = middleware.RateLimitMiddleware(ctx, middleware.RateLimitConfig{
			Requests:   cfg.GetRateLimitRequests(),
			Window:     cfg.GetRateLimitWindow(),
			OnRejected: collector.RecordRateLimitRejection,
		})
		router.Use(limit)
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(middleware.LoggingConfig{
		SkipPaths: []string{"/health", "/ping", "/metrics"},
	}))
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.DefaultCORSMiddleware())
	router.Use(collector.Middleware())
	router.Use(middleware.CacheMiddleware(middleware.CacheMiddlewareConfig{
		Store:     store,
		TTL:       cfg.GetCacheTTL(),
		Timeout:   cfg.GetCacheTimeout(),
		Endpoints: cfg.GetCachedEndpoints(),
		Logger:    logger,
		OnHit:     collector.RecordCacheHit,
		OnMiss:    collector.RecordCacheMiss,
	}))

	authMiddleware := middleware.NewAuthMiddleware(svc.tokens)

	healthHandler := api.NewHealthHandler(cfg.GetEnvironment())
	healthHandler.RegisterRoutes(router)

	oauthHandler := api.NewOAuthHandler(svc.oauthService, svc.userService, cfg.GetClientAppURL())
	oauthHandler.RegisterRoutes(router)

	apiGroup := router.Group("/api")
	authHandler := api.NewAuthHandler(svc.userService)
	authHandler.RegisterRoutes(apiGroup, authMiddleware)
	userHandler := api.NewUserHandler(svc.userService)
	userHandler.RegisterRoutes(apiGroup)

	router.GET("/metrics", gin.WrapH(collector.Handler()))

	return router, rateLimitManager
}
