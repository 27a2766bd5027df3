package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jconeo117/receptionist-agent/internal/api/router"
	"github.com/jconeo117/receptionist-agent/internal/app/bootstrap"
	"github.com/jconeo117/receptionist-agent/internal/booking"
	appconfig "github.com/jconeo117/receptionist-agent/internal/config"
	"github.com/jconeo117/receptionist-agent/internal/conversation"
	"github.com/jconeo117/receptionist-agent/internal/http/handlers"
	httpmiddleware "github.com/jconeo117/receptionist-agent/internal/http/middleware"
	"github.com/jconeo117/receptionist-agent/internal/observability/metrics"
	"github.com/jconeo117/receptionist-agent/internal/webchat"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting receptionist API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	metricsHandler, receptionistMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	registry, err := bootstrap.BuildTenantRegistry(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Error("failed to load tenants", "error", err)
		os.Exit(1)
	}

	trail, auditDB, err := bootstrap.BuildAuditTrail(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open audit trail", "error", err)
		os.Exit(1)
	}
	if auditDB != nil {
		defer func() { _ = auditDB.Close() }()
	}

	responder, closeResponder, err := bootstrap.BuildResponder(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build responder", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeResponder() }()

	adapters := booking.NewAdapterFactory(pool, logger)
	pipeline := conversation.NewPipeline(conversation.PipelineConfig{
		Registry:  registry,
		Adapters:  adapters,
		Sessions:  bootstrap.BuildSessionStore(cfg, redisClient),
		Trail:     trail,
		Responder: responder,
		Metrics:   receptionistMetrics,
		Logger:    logger,
	})

	limiter := httpmiddleware.NewRateLimiter(cfg.ChatRateLimitRPS, cfg.ChatRateLimitBurst)
	defer limiter.Stop()

	r := router.New(&router.Config{
		Logger:             logger,
		Registry:           registry,
		Chat:               handlers.NewChatHandler(pipeline, logger),
		Occupancy:          handlers.NewOccupancyHandler(registry, adapters, receptionistMetrics, logger),
		Audit:              handlers.NewAuditHandler(trail, bootstrap.BuildArchiver(ctx, cfg, trail, logger), logger),
		WebChat:            webchat.NewHandler(pipeline, logger),
		ChatLimiter:        limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		ChannelAuthSecret:  cfg.ChannelJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics builds a dedicated registry with Go runtime collectors and
// the receptionist counters.
func setupMetrics() (http.Handler, *metrics.ReceptionistMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewReceptionistMetrics(reg)
}
