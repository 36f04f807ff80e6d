package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/btcpayserver/btcpayserver-sub006/cmd/docs"
	"github.com/btcpayserver/btcpayserver-sub006/internal/adapters/database/pgsql"
	"github.com/btcpayserver/btcpayserver-sub006/internal/adapters/rates"
	"github.com/btcpayserver/btcpayserver-sub006/internal/adapters/settings"
	portsrepo "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/repositories"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/services"
	"github.com/btcpayserver/btcpayserver-sub006/internal/handlers"
	"github.com/btcpayserver/btcpayserver-sub006/internal/middleware"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/config"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/eventbus"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/logging"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
	"github.com/btcpayserver/btcpayserver-sub006/internal/processors"
	"github.com/btcpayserver/btcpayserver-sub006/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

// @title Store Operations API
// @version 1.0
// @description Payout and transfer processor control plus store rate queries.

// @host localhost:8080
// @BasePath /api/v1
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// --- Event bus and processor host ---
	bus := eventbus.New(logger, m)
	host := processors.NewHost(ctx, bus, logger,
		processors.WithWorkInterval(cfg.ProcessorWorkInterval),
		processors.WithMetrics(m),
	)

	// --- Rate sources ---
	settingsFile, err := loadSettingsFile(cfg.RateSettingsFile, logger)
	if err != nil {
		logger.Error("Failed to load rate settings", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sources, err := settings.BuildSources(settingsFile, settings.SourceOptions{
		HTTPClient:   &http.Client{Timeout: cfg.UpstreamHTTPTimeout},
		CacheSize:    cfg.RateCacheSize,
		CacheTTL:     cfg.RateCacheTTL,
		FetchTimeout: cfg.UpstreamHTTPTimeout,
		Metrics:      m,
	})
	if err != nil {
		logger.Error("Failed to build rate sources", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Rate sources configured", slog.Any("sources", sources.Names()))

	fileRepo, err := settings.NewFileRepository(settingsFile)
	if err != nil {
		logger.Error("Failed to read rate settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Repositories ---
	var dbPool *pgxpool.Pool
	repos := portsrepo.RepositoryProvider{ProcessorRegistry: host, RateSettingsRepo: fileRepo}
	if cfg.DatabaseURL != "" {
		logger.Info("Running database migrations...")
		if err := database.RunMigrations(cfg.DatabaseURL, "file://migrations", logger); err != nil {
			logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		dbPool, err = database.NewPgxPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repos = pgsql.NewRepositoryProvider(dbPool, host)
	} else {
		logger.Info("PGSQL_URL not set, serving rate settings from file", slog.String("file", cfg.RateSettingsFile))
	}

	// --- Services ---
	defaults, _ := fileRepo.Default()
	container, err := services.NewServiceContainer(cfg, repos, services.ServiceDependencies{
		Publisher:           bus,
		Evaluator:           rates.NewEvaluator(sources),
		DefaultRateSettings: defaults,
		Metrics:             m,
	})
	if err != nil {
		logger.Error("Failed to create services", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- HTTP ---
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	corsConfig := cors.Config{
		AllowOrigins:  cfg.CORSAllowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	limiterInstance, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Failed to create rate limiter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := handlers.RegisterRoutes(r, cfg, container, registry, middleware.RateLimit(limiterInstance)); err != nil {
		logger.Error("Failed to register routes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}
	if err := host.Shutdown(shutdownCtx); err != nil {
		logger.Error("Processor host shutdown failed", slog.String("error", err.Error()))
	}
	bus.Close()
	database.ClosePgxPool(dbPool, logger)
	logger.Info("Shutdown complete")
}

// loadSettingsFile reads path, or falls back to a file whose only rule asks the static source.
func loadSettingsFile(path string, logger *slog.Logger) (*settings.File, error) {
	if path != "" {
		return settings.Load(path)
	}
	logger.Warn("RATE_SETTINGS_FILE not set, only static quotes are available")
	return &settings.File{
		Default: &settings.StoreSettings{
			Rules: []settings.Rule{{Pattern: "*_*", Sources: []string{settings.StaticSourceName}}},
		},
	}, nil
}
