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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/matcon/erp_backend/config"
	"github.com/matcon/erp_backend/handlers"
	"github.com/matcon/erp_backend/middlewares"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/utils"
	"github.com/matcon/erp_backend/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const moduleName = "server.go"

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsConfig(settings *config.Settings) cors.Config {
	cfg := cors.DefaultConfig()
	// Production requires an explicit allowlist; an empty one denies all.
	if settings.IsProduction() {
		cfg.AllowOrigins = settings.HTTP.CorsAllowedOrigins
		if cfg.AllowOrigins == nil {
			cfg.AllowOrigins = []string{}
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization",
		middlewares.HeaderCorrelationId, middlewares.HeaderActor, handlers.HeaderIdempotencyKey)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.HeaderCorrelationId)
	return cfg
}

// openStore connects the configured backing store. The returned func releases it.
func openStore(ctx context.Context, settings *config.Settings, logger *logrus.Logger) (models.Store, func(), error) {
	switch settings.Database.StoreDriver {
	case "memory":
		logger.WithField("field", "store").Warn("STORE_DRIVER=memory; state is lost on restart")
		return models.NewMemoryStore(), func() {}, nil
	case "", "gorm":
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", settings.Database.StoreDriver)
	}

	if err := config.ConnectDatabaseWithRetry(ctx, settings.Database); err != nil {
		return nil, nil, err
	}
	db := config.GetDB()
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	// AutoMigrate can block tables; allow running it as a separate job instead.
	if settings.Database.SkipMigrations {
		logger.WithField("field", "migrations").Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	} else if err := models.MigrateTable(db); err != nil {
		closeDB()
		return nil, nil, err
	}
	return models.NewGormStore(db), closeDB, nil
}

func needsRedis(settings *config.Settings) bool {
	return settings.Inventory.LockBackend == "redis" ||
		settings.HTTP.RateLimitEnabled ||
		settings.Database.StoreDriver != "memory"
}

func itemLocker(settings *config.Settings) (workflow.ItemLocker, error) {
	switch settings.Inventory.LockBackend {
	case "", "redis":
		return workflow.NewRedisItemLocker(config.GetRedisLock(), settings.Inventory.LockTTL), nil
	case "local":
		return workflow.NewLocalItemLocker(), nil
	}
	return nil, fmt.Errorf("unknown LOCK_BACKEND %q", settings.Inventory.LockBackend)
}

func main() {
	settings := config.GetSettings()
	config.SetLogLevel(settings.LogLevel)
	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(sigCtx, settings, logger)
	stopSignals()
	if err != nil {
		config.LogError(logger, moduleName, "main", "run", settings.Port, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, settings *config.Settings, logger *logrus.Logger) error {
	store, closeStore, err := openStore(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	if needsRedis(settings) {
		if err := config.ConnectRedisWithRetry(ctx, settings.Redis); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer config.CloseRedis()
	}

	locker, err := itemLocker(settings)
	if err != nil {
		return err
	}

	var (
		registry *prometheus.Registry
		metrics  *workflow.Metrics
	)
	if settings.HTTP.PrometheusEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = workflow.NewMetrics(registry)
	}

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithMetrics(metrics),
		workflow.WithCache(utils.NewRedisCache[models.InventoryItem](config.GetRedisDB(), settings.Redis.CacheLifespan)),
		workflow.WithVerifyOnIngest(settings.Inventory.VerifyLedgerOnIngest),
		workflow.WithAllowNegativeStock(settings.Inventory.AllowNegativeStock),
	}
	inventory := workflow.NewInventoryService(store, locker, opts...)
	dispatch := workflow.NewDispatchService(store, locker, opts...)

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(cors.New(corsConfig(settings)))
	if settings.HTTP.RateLimitEnabled {
		limiter := middlewares.NewRateLimiter(config.GetRedisDB(), settings.HTTP.RateLimitMaxRequests, settings.HTTP.RateLimitWindow)
		r.Use(limiter.RateLimitMiddleware)
	}
	r.Use(middlewares.LoaderMiddleware(store))
	r.Use(middlewares.CustomErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	handlers.New(inventory, dispatch).Register(r.Group("/api/v1"))
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"port":         settings.Port,
		"store":        settings.Database.StoreDriver,
		"lock_backend": settings.Inventory.LockBackend,
	}).Info("server started")

	// Block until shutdown or server error.
	select {
	case <-ctx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	}

	shutdownTimeout := settings.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	return nil
}
