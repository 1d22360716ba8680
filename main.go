package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/turuturustars/turuturustars-sub001/config"
	"github.com/turuturustars/turuturustars-sub001/idp"
	"github.com/turuturustars/turuturustars-sub001/idp/idpfactory"
	"github.com/turuturustars/turuturustars-sub001/pkg/monitoring"
	"github.com/turuturustars/turuturustars-sub001/shared/redis"
	sharedutils "github.com/turuturustars/turuturustars-sub001/shared/utils"
	v1 "github.com/turuturustars/turuturustars-sub001/v1"
	v1handlers "github.com/turuturustars/turuturustars-sub001/v1/handlers"
	v1middleware "github.com/turuturustars/turuturustars-sub001/v1/middleware"
	"github.com/turuturustars/turuturustars-sub001/v1/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting admin operations server initialization")

	ctx := context.Background()

	shutdownMetrics, err := monitoring.Setup(ctx, monitoring.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		ExporterType: cfg.Telemetry.MetricsExporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPHeaders:  cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		slog.Error("Failed to set up metrics", "error", err)
		os.Exit(1)
	}
	shutdownTracing, err := monitoring.SetupTracing(ctx, monitoring.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		slog.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	gormDB, err := v1.ConnectGormDB(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to GORM database", "error", err)
		os.Exit(1)
	}

	var events redis.EventPublisher = redis.NoopPublisher{}
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.Dial(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Warn("Redis unavailable, lifecycle events will not be published", "error", err)
		} else {
			defer redisClient.Close()
			events = redis.NewStreamPublisher(redisClient, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)
			slog.Info("Publishing lifecycle events", "stream", cfg.Redis.Stream)
		}
	}

	idpProvider, err := idpfactory.NewIdpAPIProvider(idpfactory.FactoryConfig{
		ProviderType: idp.ProviderType(cfg.IdP.Provider),
		BaseURL:      cfg.IdP.BaseURL,
		ClientID:     cfg.IdP.ClientID,
		ClientSecret: cfg.IdP.ClientSecret,
		Scopes:       cfg.IdP.Scopes,
		ServiceKey:   cfg.IdP.ServiceKey,
	})
	if err != nil {
		slog.Error("Failed to create identity provider client", "error", err)
		os.Exit(1)
	}

	plan, err := config.LoadCleanupPlan(cfg.Cleanup.PlanPath)
	if err != nil {
		slog.Error("Failed to load cleanup plan", "error", err)
		os.Exit(1)
	}
	cleanupRunner, err := services.NewCleanupRunner(gormDB, plan)
	if err != nil {
		slog.Error("Failed to create cleanup runner", "error", err)
		os.Exit(1)
	}

	auditService := services.NewAuditService(gormDB)
	notificationService := services.NewNotificationService(gormDB, events)
	lifecycleService := services.NewLifecycleService(gormDB, auditService, notificationService, cleanupRunner, idpProvider, events)
	v1Handler := v1handlers.NewV1Handler(services.NewActorService(gormDB), lifecycleService, auditService)

	jwtAuth, err := v1middleware.NewJWTAuthMiddleware(v1middleware.JWTAuthConfig{
		Mode:             cfg.Auth.Mode,
		JWKSURL:          cfg.Auth.JWKSURL,
		Secret:           cfg.Auth.JWTSecret,
		ExpectedIssuer:   cfg.Auth.Issuer,
		ExpectedAudience: cfg.Auth.Audience,
		KeyCacheTTL:      cfg.Auth.JWKSCacheTTL,
		Verifier:         idpProvider,
	})
	if err != nil {
		slog.Error("Failed to create JWT middleware", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	v1Handler.SetupV1Routes(mux)
	mux.HandleFunc("/health", v1handlers.HealthHandler(gormDB, cfg.Telemetry.ServiceName))
	mux.Handle("/metrics", monitoring.Handler())

	// CORS runs first so preflight requests never reach authentication.
	handler := v1middleware.CORSMiddleware(cfg.Server.CORSMaxAge)(
		monitoring.HTTPMetricsMiddleware(
			jwtAuth.AuthenticateJWT(
				sharedutils.PanicRecoveryMiddleware(mux))))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Admin operations server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down admin operations server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("Failed to flush traces", "error", err)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("Failed to shut down metrics", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	slog.Info("Admin operations server exited")
}
