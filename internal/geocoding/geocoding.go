// Package geocoding turns free-form Vietnamese addresses into coordinates and
// coordinates back into address labels, caching provider answers.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/cache"
	"github.com/cuogn/logistics-front-sub000/internal/telemetry"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

// Sentinel errors for geocoding operations.
var (
	// ErrEmptyQuery indicates a forward geocode was requested without text.
	ErrEmptyQuery = errors.New("empty geocoding query")
	// ErrNoResults indicates the provider found nothing for the query.
	ErrNoResults = errors.New("no geocoding results")
	// ErrProviderUnavailable indicates the geocoding provider is down or not configured.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
)

// DefaultLimit is the number of candidates requested per forward geocode.
const DefaultLimit = 1

// Result is a single geocoding candidate.
type Result struct {
	Point geo.Point `json:"point"`
	Label string    `json:"label"`
}

// Provider defines the interface for geocoding providers.
type Provider interface {
	// Geocode returns up to limit candidates for query, best match first.
	Geocode(ctx context.Context, query string, limit int) ([]Result, error)
	// Reverse returns candidates describing the address at p, best match first.
	Reverse(ctx context.Context, p geo.Point) ([]Result, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// ServiceConfig holds configuration for the geocoding service.
type ServiceConfig struct {
	// Provider answers uncached queries. When nil every lookup fails with
	// ErrProviderUnavailable, which callers treat like any provider outage.
	Provider Provider

	// CacheTTL is how long answers are reused (defaults to cache.DefaultTTL).
	CacheTTL time.Duration

	// Clock overrides the cache time source in tests.
	Clock cache.Clock

	Logger  zerolog.Logger
	Metrics *telemetry.ProviderMetrics
}

// Service geocodes through a provider with a TTL cache in front of it.
type Service struct {
	provider Provider
	forward  *cache.TTL[[]Result]
	reverse  *cache.TTL[Result]
	logger   zerolog.Logger
	metrics  *telemetry.ProviderMetrics
}

// NewService creates a geocoding service.
func NewService(cfg ServiceConfig) *Service {
	var opts []cache.Option
	if cfg.Clock != nil {
		opts = append(opts, cache.WithClock(cfg.Clock))
	}

	return &Service{
		provider: cfg.Provider,
		forward:  cache.NewTTL[[]Result](cfg.CacheTTL, opts...),
		reverse:  cache.NewTTL[Result](cfg.CacheTTL, opts...),
		logger:   cfg.Logger.With().Str("component", "geocoding").Logger(),
		metrics:  cfg.Metrics,
	}
}

// Geocode returns the best candidate for query.
func (s *Service) Geocode(ctx context.Context, query string) (Result, error) {
	results, err := s.Search(ctx, query, DefaultLimit)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// Search returns up to limit candidates for query. Results are never empty
// when err is nil.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	key := fmt.Sprintf("%d:%s", limit, strings.ToLower(query))
	if results, ok := s.forward.Get(key); ok {
		s.metrics.RecordCacheHit(s.providerName(), "geocode")
		return results, nil
	}
	s.metrics.RecordCacheMiss(s.providerName(), "geocode")

	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}

	start := time.Now()
	results, err := s.provider.Geocode(ctx, query, limit)
	s.metrics.RecordRequest(s.providerName(), "geocode", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}

	valid := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Point.Validate() == nil {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("geocoding %q: %w", query, ErrNoResults)
	}

	s.logger.Debug().
		Str("query", query).
		Float64("lat", valid[0].Point.Lat).
		Float64("lng", valid[0].Point.Lng).
		Msg("geocoded address")

	s.forward.Set(key, valid)
	return valid, nil
}

// Reverse returns the best address label for p.
func (s *Service) Reverse(ctx context.Context, p geo.Point) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	key := fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
	if r, ok := s.reverse.Get(key); ok {
		s.metrics.RecordCacheHit(s.providerName(), "reverse")
		return r, nil
	}
	s.metrics.RecordCacheMiss(s.providerName(), "reverse")

	if s.provider == nil {
		return Result{}, ErrProviderUnavailable
	}

	start := time.Now()
	results, err := s.provider.Reverse(ctx, p)
	s.metrics.RecordRequest(s.providerName(), "reverse", time.Since(start), err)
	if err != nil {
		return Result{}, fmt.Errorf("reverse geocoding %s: %w", p, err)
	}
	if len(results) == 0 || results[0].Label == "" {
		return Result{}, fmt.Errorf("reverse geocoding %s: %w", p, ErrNoResults)
	}

	s.reverse.Set(key, results[0])
	return results[0], nil
}

// ClearCache drops every cached answer.
func (s *Service) ClearCache() {
	s.forward.Clear()
	s.reverse.Clear()
}

// Stats reports the cache sizes.
func (s *Service) Stats() Stats {
	return Stats{
		Provider: s.providerName(),
		Forward:  s.forward.Stats(),
		Reverse:  s.reverse.Stats(),
	}
}

// Stats contains geocoding cache statistics.
type Stats struct {
	Provider string      `json:"provider"`
	Forward  cache.Stats `json:"forward"`
	Reverse  cache.Stats `json:"reverse"`
}

func (s *Service) providerName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}
