package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	inventoryapp "github.com/kitchen/inventory/internal/application/inventory"
	reportapp "github.com/kitchen/inventory/internal/application/report"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/kitchen/inventory/internal/infrastructure/auth"
	"github.com/kitchen/inventory/internal/infrastructure/cache"
	"github.com/kitchen/inventory/internal/infrastructure/config"
	"github.com/kitchen/inventory/internal/infrastructure/event"
	"github.com/kitchen/inventory/internal/infrastructure/logger"
	"github.com/kitchen/inventory/internal/infrastructure/persistence"
	"github.com/kitchen/inventory/internal/infrastructure/telemetry"
	"github.com/kitchen/inventory/internal/interfaces/http/dto"
	"github.com/kitchen/inventory/internal/interfaces/http/handler"
	"github.com/kitchen/inventory/internal/interfaces/http/middleware"
	"github.com/kitchen/inventory/internal/interfaces/http/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting kitchen inventory",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry first so the database plugins pick up the global providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	meter := meterProvider.Meter("github.com/kitchen/inventory")

	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.GormLevel), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log).Register(db.DB); err != nil {
		return err
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meter, telemetry.DBMetricsConfig{
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		PoolStatsInterval:  cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		return err
	}
	dbMetrics.StartPoolStatsCollection(ctx)
	defer dbMetrics.Stop()

	// Application services
	repos := persistence.NewRepositories(db.DB)
	stockService := inventoryapp.NewStockService(repos, log)
	recorder := inventoryapp.NewMovementRecorder(persistence.NewGormTransactionScope(db.DB), log)
	recorder.SetStrictAllocation(cfg.Inventory.StrictAllocation)
	reportService := reportapp.NewReportService(repos, log)
	reportService.SetDefaultTopN(cfg.Inventory.DefaultTopN)

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter, log)
	if err != nil {
		return err
	}
	recorder.SetMetrics(ledgerMetrics)
	ledgerMetrics.StartLowStockCollection(ctx, stockService, cfg.Telemetry.MetricsInterval)
	defer ledgerMetrics.Stop()

	// Domain events are dispatched after commit
	eventBus := event.NewInMemoryEventBus(log)
	lowStockHandler := inventoryapp.NewLowStockHandler(log).
		WithNotifier(inventoryapp.NewLoggingStockAlertNotifier(log)).
		WithQuietPeriod(cfg.Inventory.LowStockQuietPeriod)
	eventBus.Subscribe(lowStockHandler, lowStockHandler.EventTypes()...)
	auditHandler := event.NewAuditLogHandler(log)
	eventBus.Subscribe(auditHandler, auditHandler.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	recorder.SetEventPublisher(eventBus)

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	engine, err := newEngine(cfg, log, router.Handlers{
		Stock:    handler.NewStockHandler(stockService, recorder),
		Material: handler.NewMaterialHandler(stockService),
		Section:  handler.NewSectionHandler(stockService, recorder),
		Report:   handler.NewReportHandler(reportService),
		System:   handler.NewSystemHandler(cfg.App.Name, version, db),
	}, idempotencyStore)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

// newEngine assembles the gin engine: global middleware, probes, and the
// versioned ledger API
func newEngine(
	cfg *config.Config,
	log *zap.Logger,
	handlers router.Handlers,
	idempotencyStore shared.IdempotencyStore,
) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := middleware.NewHTTPMetrics(registry, "inventory")
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(httpMetrics.Middleware())

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound, "Route not found", middleware.GetRequestID(c)))
	})

	engine.GET("/health", handlers.System.Health)
	engine.GET("/metrics", middleware.MetricsHandler(registry))

	apiMiddleware := make([]gin.HandlerFunc, 0, 3)
	if cfg.JWT.Enabled {
		apiMiddleware = append(apiMiddleware, middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			JWTService: auth.NewJWTService(cfg.JWT),
			Logger:     log,
		}))
	} else {
		log.Warn("JWT authentication disabled, performers are taken from request bodies")
	}
	apiMiddleware = append(apiMiddleware,
		middleware.TraceAttributes(),
		middleware.Idempotency(middleware.IdempotencyConfig{
			Store: idempotencyStore,
			TTL:   cfg.Inventory.IdempotencyTTL,
		}),
	)

	router.NewRouter(engine, router.WithMiddleware(apiMiddleware...)).
		Register(router.LedgerRoutes(handlers)...).
		Setup()
	return engine, nil
}
