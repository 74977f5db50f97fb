// Package main provides the entrypoint for the delivery quote API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/api"
	"github.com/cuogn/logistics-front-sub000/internal/api/handler"
	"github.com/cuogn/logistics-front-sub000/internal/api/middleware"
	"github.com/cuogn/logistics-front-sub000/internal/app"
	"github.com/cuogn/logistics-front-sub000/internal/cache"
	"github.com/cuogn/logistics-front-sub000/internal/config"
	"github.com/cuogn/logistics-front-sub000/internal/telemetry"
	"github.com/cuogn/logistics-front-sub000/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "logistics-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting delivery quote API")

	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	components, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Error().Err(err).Msg("failed to build components")
		os.Exit(1)
	}
	defer components.Close()

	log.Info().
		Str("reference_source", cfg.Reference.Source).
		Str("route_cache", cfg.Routes.Backend).
		Bool("providers", cfg.Providers.Enabled()).
		Msg("components initialized")

	// Cache jobs run in this process so they reach the tables it serves from.
	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	jobs := worker.NewDispatcher(components.RefreshJob(), log)
	go jobs.RunPeriodic(jobCtx, cfg.PubSub.WarmInterval)

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.APISubscription != "" {
		subscriber, err := worker.NewPubSubHandler(jobCtx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.APISubscription,
			Dispatcher:       jobs,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			os.Exit(1)
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				log.Warn().Err(err).Msg("closing pubsub client")
			}
		}()

		go func() {
			if err := subscriber.Start(jobCtx); err != nil && jobCtx.Err() == nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		Metrics:        metrics,
		RequireTLS:     cfg.RequireTLS,
		Quotes:         components.Quotes,
		ReturnGeometry: cfg.ReturnGeometry,
		Ready:          components.Ready,
		Registry:       components.Registry,
		Subsystems:     subsystems(components),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopJobs()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// subsystems lists the caches reported on /v1/ops/status.
func subsystems(a *app.App) []handler.Subsystem {
	subs := []handler.Subsystem{
		{Name: "reference", Stats: func() any { return a.Reference.Stats() }},
		{Name: "geocoding", Stats: func() any { return a.Geocoder.Stats() }},
	}
	if rc, ok := a.RouteCache.(interface{ Stats() cache.Stats }); ok {
		subs = append(subs, handler.Subsystem{Name: "route-cache", Stats: func() any { return rc.Stats() }})
	} else if a.RouteCache != nil {
		subs = append(subs, handler.Subsystem{Name: "route-cache"})
	}
	return subs
}
