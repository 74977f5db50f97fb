// Package app wires the route and pricing components from configuration. The
// API server, the worker and the CLI all build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/config"
	"github.com/cuogn/logistics-front-sub000/internal/database"
	"github.com/cuogn/logistics-front-sub000/internal/diagnostics"
	"github.com/cuogn/logistics-front-sub000/internal/geocoding"
	geocodinghere "github.com/cuogn/logistics-front-sub000/internal/geocoding/here"
	"github.com/cuogn/logistics-front-sub000/internal/pricing"
	"github.com/cuogn/logistics-front-sub000/internal/provider/resilience"
	"github.com/cuogn/logistics-front-sub000/internal/quote"
	"github.com/cuogn/logistics-front-sub000/internal/reference"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
	routinghere "github.com/cuogn/logistics-front-sub000/internal/routing/here"
	"github.com/cuogn/logistics-front-sub000/internal/telemetry"
	"github.com/cuogn/logistics-front-sub000/internal/worker"
)

const redisPingTimeout = 2 * time.Second

// Options customise a build beyond what configuration expresses.
type Options struct {
	// OnRouteResolved is called after every route resolution.
	OnRouteResolved func(ctx context.Context, res routing.Resolution)

	// Diagnostics receives side-channel events in addition to the log.
	Diagnostics diagnostics.Reporter
}

// App holds the wired components.
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Registry    *resilience.Registry
	Metrics     *telemetry.ProviderMetrics
	Diagnostics diagnostics.Reporter

	Reference *reference.Store
	Geocoder  *geocoding.Service
	Resolver  *routing.Resolver
	Pricing   *pricing.Engine
	Quotes    *quote.Service

	// RouteCache is nil when ROUTE_CACHE=none.
	RouteCache routing.Cache

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Build creates every component described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: resilience.NewRegistry(),
	}

	metrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating provider metrics: %w", err)
	}
	a.Metrics = metrics

	logReporter, err := diagnostics.NewLogReporter(logger)
	if err != nil {
		return nil, fmt.Errorf("creating diagnostics reporter: %w", err)
	}
	a.Diagnostics = logReporter
	if opts.Diagnostics != nil {
		a.Diagnostics = diagnostics.Multi(logReporter, opts.Diagnostics)
	}

	source, err := a.referenceSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Reference = reference.NewStore(reference.StoreConfig{
		Source:      source,
		CacheTTL:    cfg.Reference.CacheTTL,
		Logger:      logger,
		Diagnostics: a.Diagnostics,
		Metrics:     metrics,
	})

	var geocoder geocoding.Provider
	var router routing.Provider
	if cfg.Providers.Enabled() {
		geocoder = geocodinghere.NewClient(geocodinghere.ClientConfig{
			APIKey:   cfg.Providers.HereAPIKey,
			BaseURL:  cfg.Providers.GeocodingBaseURL,
			Language: "vi",
			Timeout:  cfg.Providers.Timeout,
			Registry: a.Registry,
			Logger:   logger,
		})
		router = routinghere.NewClient(routinghere.ClientConfig{
			APIKey:   cfg.Providers.HereAPIKey,
			BaseURL:  cfg.Providers.RoutingBaseURL,
			Timeout:  cfg.Providers.Timeout,
			Registry: a.Registry,
			Logger:   logger,
		})
	} else {
		logger.Warn().Msg("HERE_API_KEY not set - routes use the great-circle estimate")
	}

	a.Geocoder = geocoding.NewService(geocoding.ServiceConfig{
		Provider: geocoder,
		CacheTTL: cfg.Reference.CacheTTL,
		Logger:   logger,
		Metrics:  metrics,
	})

	routeCache, err := a.routeCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.RouteCache = routeCache

	a.Resolver = routing.NewResolver(routing.ResolverConfig{
		Provider:    router,
		Cache:       routeCache,
		TierTimeout: cfg.Providers.TierTimeout,
		OnResolved:  opts.OnRouteResolved,
		Logger:      logger,
		Diagnostics: a.Diagnostics,
		Metrics:     metrics,
	})

	a.Pricing, err = pricing.NewEngine(cfg.Pricing.DefaultRatePerKm)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating pricing engine: %w", err)
	}

	a.Quotes, err = quote.NewService(quote.Config{
		Reference:      a.Reference,
		Geocoder:       a.Geocoder,
		Resolver:       a.Resolver,
		Pricing:        a.Pricing,
		ReverseGeocode: cfg.Providers.Enabled(),
		Logger:         logger,
		Diagnostics:    a.Diagnostics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) referenceSource(ctx context.Context) (reference.Source, error) {
	cfg := a.Config.Reference
	switch cfg.Source {
	case config.ReferenceHTTP:
		return reference.NewHTTPSource(reference.HTTPSourceConfig{
			ProvincesURL: cfg.ProvincesURL,
			WardsURL:     cfg.WardsURL,
			Timeout:      a.Config.Providers.Timeout,
			Registry:     a.Registry,
			Metrics:      a.Metrics,
			Logger:       a.Logger,
		}), nil
	case config.ReferenceFile:
		return &reference.FileSource{ProvincesPath: cfg.ProvincesPath, WardsPath: cfg.WardsPath}, nil
	case config.ReferencePostgres:
		pool, err := database.Connect(ctx, a.Config.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to reference database: %w", err)
		}
		a.pool = pool
		a.Logger.Info().
			Str("host", a.Config.Database.Host).
			Int("port", a.Config.Database.Port).
			Str("database", a.Config.Database.Database).
			Msg("database connected")
		return reference.NewPostgresSource(pool), nil
	default:
		return reference.NewEmbeddedSource(), nil
	}
}

func (a *App) routeCache(ctx context.Context) (routing.Cache, error) {
	cfg := a.Config.Routes
	switch cfg.Backend {
	case config.RouteCacheNone:
		return nil, nil
	case config.RouteCacheRedis:
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		client := redis.NewClient(redisOpts)
		a.redis = client

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Cache failures are absorbed per request; start anyway.
			a.Logger.Warn().Err(err).Msg("redis route cache unreachable")
		}
		return routing.NewRedisCache(routing.RedisCacheConfig{Client: client, TTL: cfg.TTL}), nil
	default:
		return routing.NewMemoryCache(cfg.TTL), nil
	}
}

// Ready reports whether the shared backends respond.
func (a *App) Ready(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RefreshJob returns a job that warms and clears the caches of this process:
// the reference tables, the geocoder and the route cache.
func (a *App) RefreshJob() *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:         worker.DefaultRefreshConfig(),
		Logger:         a.Logger,
		Reference:      a.Reference,
		Routes:         a.Resolver,
		Caches:         a.Quotes,
		ExpectProvider: a.Config.Providers.Enabled(),
	})
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("closing redis client")
		}
	}
}
