// Package api provides the HTTP API of the delivery quote service.
package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/api/handler"
	"github.com/cuogn/logistics-front-sub000/internal/api/middleware"
	"github.com/cuogn/logistics-front-sub000/internal/provider/resilience"
)

// QuoteService is everything the quote and reference endpoints need.
type QuoteService interface {
	handler.QuoteResolver
	handler.ReferenceLister
	handler.CacheClearer
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// RequireTLS rejects quote and reference requests forwarded over HTTP.
	RequireTLS bool

	Quotes QuoteService

	// ReturnGeometry adds decoded route points to quote responses.
	ReturnGeometry bool

	// Ops endpoint inputs.
	Ready      func(ctx context.Context) error
	Registry   *resilience.Registry
	Subsystems []handler.Subsystem
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Request ID and client ID first
	r.Use(middleware.Tracing)   // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // HTTPS only, ops exempt
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:    cfg.Version,
		BuildTime:  cfg.BuildTime,
		Ready:      cfg.Ready,
		Registry:   cfg.Registry,
		Subsystems: cfg.Subsystems,
	})
	quoteHandler := handler.NewQuoteHandler(cfg.Quotes, cfg.ReturnGeometry, cfg.Logger)
	referenceHandler := handler.NewReferenceHandler(cfg.Quotes)
	adminHandler := handler.NewAdminHandler(cfg.Quotes, cfg.Logger)

	adminRateLimit := middleware.RateLimitByIP(middleware.AdminRateLimit)             // 10 req/min
	expensiveRateLimit := middleware.RateLimitByClient(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)       // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Quote computation may call external providers.
		r.With(expensiveRateLimit, middleware.RequireJSON).Post("/quotes:compute", quoteHandler.ComputeQuote)

		r.Route("/reference", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/provinces", referenceHandler.ListProvinces)
			r.Get("/provinces/{provinceCode}/wards", referenceHandler.ListWards)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminRateLimit)
			r.Post("/cache:clear", adminHandler.ClearCache)
		})
	})

	return r
}
