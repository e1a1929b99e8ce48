// Command server runs the leasepay HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/leasepay/backend/docs"
	eventapp "github.com/leasepay/backend/internal/application/event"
	leasingapp "github.com/leasepay/backend/internal/application/leasing"
	paymentapp "github.com/leasepay/backend/internal/application/payment"
	policyapp "github.com/leasepay/backend/internal/application/policy"
	"github.com/leasepay/backend/internal/domain/payment"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/auth"
	"github.com/leasepay/backend/internal/infrastructure/cache"
	"github.com/leasepay/backend/internal/infrastructure/config"
	"github.com/leasepay/backend/internal/infrastructure/event"
	"github.com/leasepay/backend/internal/infrastructure/logger"
	"github.com/leasepay/backend/internal/infrastructure/persistence"
	"github.com/leasepay/backend/internal/infrastructure/telemetry"
	"github.com/leasepay/backend/internal/interfaces/http/handler"
	"github.com/leasepay/backend/internal/interfaces/http/middleware"
	"github.com/leasepay/backend/internal/interfaces/http/router"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Leasepay API
//	@version		1.0
//	@description	Lease payment recording and allocation
//	@host			localhost:8080
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer access token, e.g. "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OTLP log export tees into the zap core once the provider is up
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		if log, err = logger.New(logCfg, logProvider.Core(logger.ParseLevel(cfg.Log.Level))); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting leasepay",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if _, err := telemetry.RegisterDBMetrics(ctx, db.DB, meterProvider, telemetry.DBMetricsConfig{
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}

	// Redis, or the in-process fallbacks
	backends, err := cache.NewBackends(cfg.Redis, cfg.App.Env == "production", log)
	if err != nil {
		log.Fatal("Failed to initialize cache backends", zap.Error(err))
	}

	// Repositories
	leaseRepo := persistence.NewGormLeaseRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	policyRepo := persistence.NewGormPolicyRepository(db.DB)
	activityRepo := persistence.NewGormActivityRepository(db.DB)
	outboxRepo := persistence.NewGormOutboxRepository(db.DB)

	serializer := event.NewPaymentEventSerializer()
	txScope := persistence.NewGormTransactionScope(db.DB, serializer)

	// Metrics
	var businessMetrics *telemetry.BusinessMetrics
	if meterProvider.IsEnabled() {
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:       meterProvider.Meter("leasepay"),
			Logger:      log,
			OutboxStats: outboxRepo,
		})
		if err != nil {
			log.Fatal("Failed to initialize business metrics", zap.Error(err))
		}
		businessMetrics.StartPeriodicCollection(ctx, time.Minute)
	}

	// Application services
	roundingMode, err := payment.ParseRoundingMode(cfg.Allocation.RoundingMode)
	if err != nil {
		log.Fatal("Invalid allocation rounding mode", zap.Error(err))
	}
	paymentService := paymentapp.NewPaymentService(
		txScope,
		leaseRepo,
		policyRepo,
		invoiceRepo,
		paymentRepo,
		payment.NewAllocator(payment.WithRoundingMode(roundingMode)),
		log,
	)
	if cfg.Allocation.LeaseLockEnabled {
		paymentService.SetLeaseLocker(backends.Locker, cfg.Allocation.LeaseLockTTL, cfg.Allocation.LeaseLockWait)
	}
	paymentService.SetMetrics(businessMetrics)

	invoiceService := paymentapp.NewInvoiceService(leaseRepo, invoiceRepo, log)
	policyService := policyapp.NewPolicyService(policyRepo, leaseRepo, log)
	leaseService := leasingapp.NewLeaseService(leaseRepo, activityRepo, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Event bus and outbox relay
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewIdempotentHandler(
		leasingapp.NewActivityLogHandler(activityRepo, log),
		backends.Idempotency,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: cfg.Idempotency.TTL}),
	))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	relay := event.NewOutboxRelay(outboxRepo, eventBus, serializer, event.DefaultOutboxRelayConfig(), log)
	if err := relay.Start(ctx); err != nil {
		log.Fatal("Failed to start outbox relay", zap.Error(err))
	}

	// HTTP
	var revocations auth.RevocationList = auth.NewMemoryRevocationList()
	var rateStore middleware.RateStore = middleware.NewMemoryRateStore()
	if backends.Client != nil {
		revocations = auth.NewRedisRevocationList(backends.Client)
		rateStore = cache.NewRedisRateCounter(backends.Client, "leasepay:ratelimit:")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders: []string{
				middleware.RequestIDHeader,
				"X-RateLimit-Limit",
				"X-RateLimit-Remaining",
			},
			MaxAge: 12 * time.Hour,
		}),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	jwtConfig := middleware.DefaultJWTConfig(auth.NewJWTService(cfg.JWT))
	jwtConfig.Revocations = revocations
	jwtConfig.Logger = log

	apiMiddleware := []gin.HandlerFunc{
		middleware.JWTAuthMiddlewareWithConfig(jwtConfig),
		middleware.TracingAttributeInjector(),
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{Enabled: profiler.IsEnabled()}),
	}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, rateStore, log)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}
	apiMiddleware = append(apiMiddleware,
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       meterProvider.IsEnabled(),
		}),
		middleware.SpanErrorMarker(),
	)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
		"redis":    backends.Ping,
	})
	engine.GET("/health", systemHandler.Health)
	engine.GET("/api/v1/health", systemHandler.Health)
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, middleware.JWTAuthMiddlewareWithConfig(jwtConfig)),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	router.RegisterAPI(router.NewRouter(engine, router.WithAPIMiddleware(apiMiddleware...)), router.Handlers{
		Payments: handler.NewPaymentHandler(paymentService),
		Leases:   handler.NewLeaseHandler(leaseService),
		Invoices: handler.NewInvoiceHandler(invoiceService, leaseService),
		Policies: handler.NewPolicyHandler(policyService, leaseService),
		Auth:     handler.NewAuthHandler(revocations),
		Outbox:   handler.NewOutboxHandler(outboxService),
		System:   systemHandler,
	}).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := relay.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping outbox relay", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if businessMetrics != nil {
		businessMetrics.Stop()
	}
	if err := backends.Close(); err != nil {
		log.Error("Error closing cache backends", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log exporter", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
