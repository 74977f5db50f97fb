package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuogn/logistics-front-sub000/internal/reference"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
	"github.com/cuogn/logistics-front-sub000/internal/worker"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

type fakeReference struct {
	provinces []reference.AdministrativeUnit
	wardCalls atomic.Int64
	mu        sync.Mutex
	seen      []string
}

func (f *fakeReference) ListProvinces(context.Context) []reference.AdministrativeUnit {
	return f.provinces
}

func (f *fakeReference) ListWards(_ context.Context, code string) []reference.AdministrativeUnit {
	f.wardCalls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, code)
	f.mu.Unlock()
	return reference.FallbackWards(code)
}

type fakeRoutes struct {
	calls   atomic.Int64
	source  routing.Source
	failLat float64
}

func (f *fakeRoutes) Resolve(_ context.Context, req routing.RouteRequest) (routing.Route, error) {
	f.calls.Add(1)
	if f.failLat != 0 && req.Origin.Lat == f.failLat {
		return routing.Route{}, errors.New("invalid coordinates")
	}
	return routing.Route{
		DistanceMeters: geo.HaversineDistance(req.Origin, req.Destination),
		Geometry:       []geo.Point{req.Origin, req.Destination},
		Source:         f.source,
	}, nil
}

type fakeCaches struct {
	err   error
	calls int
}

func (f *fakeCaches) ClearCache(context.Context) error {
	f.calls++
	return f.err
}

func threeHubs() []worker.Hub {
	return []worker.Hub{
		{Name: "A", Priority: 2, Point: geo.Point{Lat: 21.0, Lng: 105.8}},
		{Name: "B", Priority: 1, Point: geo.Point{Lat: 16.0, Lng: 108.2}},
		{Name: "C", Priority: 3, Point: geo.Point{Lat: 10.8, Lng: 106.7}},
	}
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NotEmpty(t, cfg.Hubs)
}

func TestDefaultHubs(t *testing.T) {
	hubs := worker.DefaultHubs()

	assert.GreaterOrEqual(t, len(hubs), 5)

	for _, h := range hubs {
		assert.NoError(t, h.Point.Validate(), h.Name)
		assert.False(t, h.Point.Suspect(), "%s should lie inside Vietnam", h.Name)
		assert.NotEmpty(t, h.ProvinceCode)
	}

	var hanoi *worker.Hub
	for i := range hubs {
		if hubs[i].ProvinceCode == "01" {
			hanoi = &hubs[i]
			break
		}
	}
	require.NotNil(t, hanoi, "Hà Nội should be a hub")
	assert.Equal(t, 1, hanoi.Priority)
}

func TestRefreshConfig_Corridors(t *testing.T) {
	cfg := worker.RefreshConfig{Hubs: threeHubs()}

	corridors := cfg.Corridors()
	assert.Len(t, corridors, 6)
	assert.Equal(t, cfg.TotalCorridors(), 6)

	// Highest priority hub comes first.
	assert.Equal(t, "B", corridors[0].From.Name)
	for _, c := range corridors {
		assert.NotEqual(t, c.From.Name, c.To.Name)
	}
}

func TestRefreshConfig_MaxPriority(t *testing.T) {
	cfg := worker.RefreshConfig{Hubs: threeHubs(), MaxPriority: 2}

	hubs := cfg.ActiveHubs()
	require.Len(t, hubs, 2)
	assert.Equal(t, "B", hubs[0].Name)
	assert.Equal(t, "A", hubs[1].Name)
	assert.Equal(t, 2, cfg.TotalCorridors())

	cfg.MaxPriority = 1
	assert.Zero(t, cfg.TotalCorridors())
	assert.Empty(t, cfg.Corridors())
}

func TestRefreshJob_RefreshReference(t *testing.T) {
	ref := &fakeReference{provinces: reference.FallbackProvinces()}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    worker.RefreshConfig{Concurrency: 2, Timeout: time.Second},
		Logger:    zerolog.Nop(),
		Reference: ref,
	})

	result := job.RefreshReference(context.Background())

	assert.Equal(t, worker.JobReferenceRefresh, result.Job)
	assert.Equal(t, len(ref.provinces), result.Total)
	assert.Equal(t, len(ref.provinces), result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, int64(len(ref.provinces)), ref.wardCalls.Load())
	assert.ElementsMatch(t, []string{"01", "31", "48", "79", "92"}, ref.seen)

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.ReferenceRefreshes)
	assert.Equal(t, int64(len(ref.provinces)*5), m.WardsLoaded)
}

func TestRefreshJob_WarmRoutes(t *testing.T) {
	routes := &fakeRoutes{source: routing.SourceProvider}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Hubs: threeHubs(), Concurrency: 3, Timeout: time.Second},
		Logger: zerolog.Nop(),
		Routes: routes,
	})

	result := job.WarmRoutes(context.Background())

	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 6, result.Successful)
	assert.Zero(t, result.Fallback)
	assert.Equal(t, int64(6), routes.calls.Load())
	assert.True(t, result.Healthy())
	assert.Greater(t, result.Duration, time.Duration(0))

	m := job.GetMetrics()
	assert.Equal(t, int64(6), m.CorridorsWarmed)
	assert.Equal(t, int64(1), m.TotalRuns)
}

func TestRefreshJob_WarmRoutes_CountsFallbackAndErrors(t *testing.T) {
	routes := &fakeRoutes{source: routing.SourceGreatCircleFallback, failLat: 10.8}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Hubs: threeHubs(), Concurrency: 1, Timeout: time.Second},
		Logger: zerolog.Nop(),
		Routes: routes,
	})

	result := job.WarmRoutes(context.Background())

	// Both corridors leaving C fail.
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 4, result.Successful)
	assert.Equal(t, 4, result.Fallback)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0].Target, "C →")

	m := job.GetMetrics()
	assert.Equal(t, int64(4), m.CorridorsFallback)
	assert.Equal(t, int64(2), m.CorridorsFailed)
	assert.Zero(t, m.CorridorsWarmed)
}

func TestRefreshJob_ContextCancellation(t *testing.T) {
	routes := &fakeRoutes{source: routing.SourceProvider}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Hubs: threeHubs(), Concurrency: 2, Timeout: time.Second},
		Logger: zerolog.Nop(),
		Routes: routes,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.WarmRoutes(ctx)

	assert.Equal(t, 6, result.Failed)
	assert.Zero(t, routes.calls.Load())
	assert.False(t, result.Healthy())
}

func TestRefreshJob_NoServices(t *testing.T) {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{Logger: zerolog.Nop()})

	assert.Zero(t, job.RefreshReference(context.Background()).Total)
	assert.Zero(t, job.WarmRoutes(context.Background()).Total)
	assert.NoError(t, job.ClearCaches(context.Background()))
	assert.NoError(t, job.HealthCheck(context.Background()))
}

func TestRefreshJob_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		source         routing.Source
		expectProvider bool
		wantErr        error
	}{
		{name: "provider answer", source: routing.SourceProvider, expectProvider: true},
		{name: "fallback without provider", source: routing.SourceGreatCircleFallback},
		{
			name:           "fallback with provider",
			source:         routing.SourceGreatCircleFallback,
			expectProvider: true,
			wantErr:        worker.ErrProviderDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes := &fakeRoutes{source: tt.source}
			job := worker.NewRefreshJob(worker.RefreshJobConfig{
				Config:         worker.RefreshConfig{Hubs: threeHubs(), Timeout: time.Second},
				Logger:         zerolog.Nop(),
				Routes:         routes,
				ExpectProvider: tt.expectProvider,
			})

			err := job.HealthCheck(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, int64(1), routes.calls.Load())
		})
	}
}

func TestRefreshJob_ClearCaches(t *testing.T) {
	caches := &fakeCaches{}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{Logger: zerolog.Nop(), Caches: caches})

	require.NoError(t, job.ClearCaches(context.Background()))
	assert.Equal(t, 1, caches.calls)
	assert.Equal(t, int64(1), job.GetMetrics().CacheClears)

	caches.err = errors.New("redis down")
	err := job.ClearCaches(context.Background())
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, int64(1), job.GetMetrics().CacheClears)
}

func TestRefreshJob_MetricsSnapshot(t *testing.T) {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Hubs: threeHubs()},
		Logger: zerolog.Nop(),
		Routes: &fakeRoutes{source: routing.SourceProvider},
	})
	job.WarmRoutes(context.Background())

	snapshot := job.MetricsSnapshot()

	assert.Equal(t, int64(1), snapshot["total_runs"])
	assert.Equal(t, int64(6), snapshot["corridors_warmed"])
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestDispatcher_Handle(t *testing.T) {
	routes := &fakeRoutes{source: routing.SourceProvider}
	ref := &fakeReference{provinces: reference.FallbackProvinces()}
	caches := &fakeCaches{}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    worker.RefreshConfig{Hubs: threeHubs(), Timeout: time.Second},
		Logger:    zerolog.Nop(),
		Reference: ref,
		Routes:    routes,
		Caches:    caches,
	})
	d := worker.NewDispatcher(job, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, []byte(`{"job_type":"reference_refresh"}`)))
	assert.Equal(t, int64(5), ref.wardCalls.Load())

	require.NoError(t, d.Handle(ctx, []byte(`{"job_type":"route_warm","max_priority":2}`)))
	assert.Equal(t, int64(2), routes.calls.Load())

	require.NoError(t, d.Handle(ctx, []byte(`{"job_type":"cache_clear"}`)))
	assert.Equal(t, 1, caches.calls)

	require.NoError(t, d.Handle(ctx, []byte(`{"job_type":"health_check"}`)))
	assert.Equal(t, int64(3), routes.calls.Load())

	// Shared metrics see the limited warm run too.
	assert.Equal(t, int64(2), job.GetMetrics().CorridorsWarmed)
}

func TestDispatcher_PermanentErrors(t *testing.T) {
	d := worker.NewDispatcher(worker.NewRefreshJob(worker.RefreshJobConfig{Logger: zerolog.Nop()}), zerolog.Nop())

	err := d.Handle(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))

	err = d.Handle(context.Background(), []byte(`{"job_type":"provider_refresh"}`))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}

func TestDispatcher_SharedJobsOnly(t *testing.T) {
	routes := &fakeRoutes{source: routing.SourceProvider}
	ref := &fakeReference{provinces: reference.FallbackProvinces()}
	caches := &fakeCaches{}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    worker.RefreshConfig{Hubs: threeHubs(), Timeout: time.Second},
		Logger:    zerolog.Nop(),
		Reference: ref,
		Routes:    routes,
		Caches:    caches,
	})
	d := worker.NewDispatcher(job, zerolog.Nop(), worker.SharedJobs...)
	ctx := context.Background()

	assert.False(t, d.Accepts(worker.JobReferenceRefresh))
	err := d.Handle(ctx, []byte(`{"job_type":"reference_refresh"}`))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
	assert.Contains(t, err.Error(), "does not run in this process")
	assert.Zero(t, ref.wardCalls.Load())

	require.NoError(t, d.Handle(ctx, []byte(`{"job_type":"cache_clear"}`)))
	assert.Equal(t, 1, caches.calls)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		d.RunPeriodic(runCtx, time.Hour)
		close(done)
	}()
	assert.Eventually(t, func() bool { return routes.calls.Load() >= 6 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Zero(t, ref.wardCalls.Load(), "periodic warm skips jobs outside the scope")
}

func TestDispatcher_TransientFailure(t *testing.T) {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Logger: zerolog.Nop(),
		Caches: &fakeCaches{err: errors.New("redis down")},
	})
	d := worker.NewDispatcher(job, zerolog.Nop())

	err := d.Handle(context.Background(), []byte(`{"job_type":"cache_clear"}`))
	require.Error(t, err)
	assert.False(t, worker.IsPermanent(err))
}

func TestDispatcher_RunPeriodic(t *testing.T) {
	routes := &fakeRoutes{source: routing.SourceProvider}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Hubs: threeHubs(), Timeout: time.Second},
		Logger: zerolog.Nop(),
		Routes: routes,
	})
	d := worker.NewDispatcher(job, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.RunPeriodic(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return routes.calls.Load() >= 12 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop after cancellation")
	}
}
