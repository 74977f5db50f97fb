package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/reference"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
)

// ErrProviderDegraded is returned by HealthCheck when a provider is configured
// but the health check route came from the great-circle fallback.
var ErrProviderDegraded = errors.New("routing provider degraded")

// ReferenceWarmer loads the administrative datasets.
type ReferenceWarmer interface {
	ListProvinces(ctx context.Context) []reference.AdministrativeUnit
	ListWards(ctx context.Context, provinceCode string) []reference.AdministrativeUnit
}

// RouteWarmer resolves routes; provider-backed results land in the shared cache.
type RouteWarmer interface {
	Resolve(ctx context.Context, req routing.RouteRequest) (routing.Route, error)
}

// CacheClearer empties every cache.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// RefreshJob warms the reference and route caches.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	reference ReferenceWarmer
	routes    RouteWarmer
	caches    CacheClearer

	// expectProvider makes HealthCheck fail on fallback routes.
	expectProvider bool

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns          int64
	ReferenceRefreshes int64
	WardsLoaded        int64
	CorridorsWarmed    int64
	CorridorsFallback  int64
	CorridorsFailed    int64
	CacheClears        int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config         RefreshConfig
	Logger         zerolog.Logger
	Reference      ReferenceWarmer
	Routes         RouteWarmer
	Caches         CacheClearer
	ExpectProvider bool
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Hubs) == 0 {
		config.Hubs = DefaultHubs()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:         config,
		logger:         cfg.Logger.With().Str("component", "refresh_job").Logger(),
		reference:      cfg.Reference,
		routes:         cfg.Routes,
		caches:         cfg.Caches,
		expectProvider: cfg.ExpectProvider,
		metrics:        &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	Job        string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Fallback   int
	Failed     int
	Errors     []RefreshError
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	Target string
	Error  string
}

// Healthy reports whether fewer items failed than succeeded.
func (r *RefreshResult) Healthy() bool {
	return r.Failed <= r.Successful
}

// RefreshReference loads the province table and then the wards of every
// province concurrently. The store absorbs source failures, so an item only
// fails when the context ends first.
func (j *RefreshJob) RefreshReference(ctx context.Context) *RefreshResult {
	result := &RefreshResult{Job: JobReferenceRefresh, StartTime: time.Now()}
	if j.reference == nil {
		j.finish(result)
		return result
	}

	provinces := j.reference.ListProvinces(ctx)
	result.Total = len(provinces)

	j.logger.Info().
		Int("provinces", len(provinces)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting reference refresh")

	var mu sync.Mutex
	var wards int64
	j.runPool(ctx, len(provinces), func(ctx context.Context, i int) error {
		units := j.reference.ListWards(ctx, provinces[i].Code)
		if err := ctx.Err(); err != nil {
			return err
		}
		mu.Lock()
		wards += int64(len(units))
		mu.Unlock()
		return nil
	}, func(i int) string { return "province:" + provinces[i].Code }, result)

	j.metrics.mu.Lock()
	j.metrics.ReferenceRefreshes++
	j.metrics.WardsLoaded += wards
	j.metrics.mu.Unlock()

	j.finish(result)
	return result
}

// WarmRoutes resolves every hub corridor so the shared route cache holds the
// provider answer before callers ask for it.
func (j *RefreshJob) WarmRoutes(ctx context.Context) *RefreshResult {
	result := &RefreshResult{Job: JobRouteWarm, StartTime: time.Now()}
	if j.routes == nil {
		j.finish(result)
		return result
	}

	corridors := j.config.Corridors()
	result.Total = len(corridors)

	j.logger.Info().
		Int("corridors", len(corridors)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting route warm")

	var mu sync.Mutex
	j.runPool(ctx, len(corridors), func(ctx context.Context, i int) error {
		c := corridors[i]
		route, err := j.routes.Resolve(ctx, routing.RouteRequest{
			Origin:      c.From.Point,
			Destination: c.To.Point,
			Mode:        routing.ModeCar,
		})
		if err != nil {
			return err
		}
		if route.IsFallback() {
			mu.Lock()
			result.Fallback++
			mu.Unlock()
		}
		return nil
	}, func(i int) string { return corridors[i].From.Name + " → " + corridors[i].To.Name }, result)

	j.metrics.mu.Lock()
	j.metrics.CorridorsWarmed += int64(result.Successful - result.Fallback)
	j.metrics.CorridorsFallback += int64(result.Fallback)
	j.metrics.CorridorsFailed += int64(result.Failed)
	j.metrics.mu.Unlock()

	j.finish(result)
	return result
}

// ClearCaches empties every cache behind the quote service.
func (j *RefreshJob) ClearCaches(ctx context.Context) error {
	if j.caches == nil {
		return nil
	}
	if err := j.caches.ClearCache(ctx); err != nil {
		return fmt.Errorf("clearing caches: %w", err)
	}
	j.metrics.mu.Lock()
	j.metrics.CacheClears++
	j.metrics.mu.Unlock()
	return nil
}

// HealthCheck resolves the highest priority corridor once.
func (j *RefreshJob) HealthCheck(ctx context.Context) error {
	if j.routes == nil {
		return nil
	}
	corridors := j.config.Corridors()
	if len(corridors) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	c := corridors[0]
	route, err := j.routes.Resolve(ctx, routing.RouteRequest{
		Origin:      c.From.Point,
		Destination: c.To.Point,
		Mode:        routing.ModeCar,
	})
	if err != nil {
		return fmt.Errorf("health check route: %w", err)
	}
	if j.expectProvider && route.IsFallback() {
		return fmt.Errorf("%w: %s → %s resolved by %s", ErrProviderDegraded, c.From.Name, c.To.Name, route.Source)
	}
	return nil
}

// runPool fans n items out to the configured number of workers. Each item
// gets its own timeout.
func (j *RefreshJob) runPool(
	ctx context.Context,
	n int,
	work func(ctx context.Context, i int) error,
	name func(i int) string,
	result *RefreshResult,
) {
	items := make(chan int, n)
	errs := make(chan itemResult, n)

	var wg sync.WaitGroup
	for w := 0; w < j.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range items {
				select {
				case <-ctx.Done():
					errs <- itemResult{index: i, err: ctx.Err()}
					continue
				default:
				}
				itemCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
				err := work(itemCtx, i)
				cancel()
				errs <- itemResult{index: i, err: err}
			}
		}()
	}

	for i := 0; i < n; i++ {
		items <- i
	}
	close(items)

	go func() {
		wg.Wait()
		close(errs)
	}()

	for r := range errs {
		if r.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{Target: name(r.index), Error: r.err.Error()})
			continue
		}
		result.Successful++
	}
}

type itemResult struct {
	index int
	err   error
}

func (j *RefreshJob) finish(result *RefreshResult) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.metrics.mu.Lock()
	j.metrics.TotalRuns++
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
	j.metrics.mu.Unlock()

	j.logger.Info().
		Str("job", result.Job).
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("fallback", result.Fallback).
		Int("failed", result.Failed).
		Msg("refresh job completed")
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:          j.metrics.TotalRuns,
		ReferenceRefreshes: j.metrics.ReferenceRefreshes,
		WardsLoaded:        j.metrics.WardsLoaded,
		CorridorsWarmed:    j.metrics.CorridorsWarmed,
		CorridorsFallback:  j.metrics.CorridorsFallback,
		CorridorsFailed:    j.metrics.CorridorsFailed,
		CacheClears:        j.metrics.CacheClears,
		LastRunAt:          j.metrics.LastRunAt,
		LastRunDuration:    j.metrics.LastRunDuration,
		TotalDuration:      j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":          m.TotalRuns,
		"reference_refreshes": m.ReferenceRefreshes,
		"wards_loaded":        m.WardsLoaded,
		"corridors_warmed":    m.CorridorsWarmed,
		"corridors_fallback":  m.CorridorsFallback,
		"corridors_failed":    m.CorridorsFailed,
		"cache_clears":        m.CacheClears,
		"last_run_at":         m.LastRunAt,
		"last_run_duration":   m.LastRunDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
