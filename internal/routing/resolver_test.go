package routing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuogn/logistics-front-sub000/internal/diagnostics"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
	"github.com/cuogn/logistics-front-sub000/pkg/polyline"
)

var (
	origin = geo.Point{Lat: 21.0285, Lng: 105.8542}
	dest   = geo.Point{Lat: 21.0385, Lng: 105.8642}
	corner = geo.Point{Lat: 21.0385, Lng: 105.8542}
	middle = geo.Point{Lat: 21.0335, Lng: 105.8592}
)

// fakeProvider answers per objective and records every request.
type fakeProvider struct {
	mu       sync.Mutex
	requests []routing.ProviderRequest
	handle   map[routing.Objective]func(ctx context.Context) (*routing.ProviderResponse, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Route(ctx context.Context, req routing.ProviderRequest) (*routing.ProviderResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	h := f.handle[req.Objective]
	f.mu.Unlock()

	if h == nil {
		return nil, routing.ErrProviderUnavailable
	}
	return h(ctx)
}

func (f *fakeProvider) calls() []routing.ProviderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]routing.ProviderRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func respond(sections ...routing.Section) func(context.Context) (*routing.ProviderResponse, error) {
	return func(context.Context) (*routing.ProviderResponse, error) {
		return &routing.ProviderResponse{
			Routes:   []routing.ProviderRoute{{Sections: sections}},
			Provider: "fake",
		}, nil
	}
}

func fail(err error) func(context.Context) (*routing.ProviderResponse, error) {
	return func(context.Context) (*routing.ProviderResponse, error) { return nil, err }
}

func section(length, duration float64, points ...geo.Point) routing.Section {
	return routing.Section{
		Polyline: polyline.Encode(points),
		Summary:  &routing.Summary{LengthMeters: length, DurationSeconds: duration},
	}
}

func newResolver(p routing.Provider, rec *diagnostics.Recorder, opts ...func(*routing.ResolverConfig)) *routing.Resolver {
	cfg := routing.ResolverConfig{
		Provider:    p,
		Logger:      zerolog.Nop(),
		Diagnostics: rec,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return routing.NewResolver(cfg)
}

func request() routing.RouteRequest {
	return routing.RouteRequest{Origin: origin, Destination: dest, Mode: routing.ModeCar}
}

func TestResolve_ProviderTier(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(
			section(1200, 180, origin, corner),
			section(1100, 150, corner, dest),
		),
	}}
	rec := diagnostics.NewRecorder()

	route, err := newResolver(p, rec).Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, routing.SourceProvider, route.Source)
	assert.Equal(t, "fake", route.Provider)
	assert.InDelta(t, 2300, route.DistanceMeters, 1e-9)
	assert.InDelta(t, 330, route.DurationSeconds, 1e-9)
	require.Len(t, route.Geometry, 3, "junction point is not duplicated")
	assert.InDelta(t, origin.Lat, route.Geometry[0].Lat, 1e-6)
	assert.InDelta(t, dest.Lng, route.Geometry[2].Lng, 1e-6)

	calls := p.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, routing.ObjectiveFastest, calls[0].Objective)
	assert.Equal(t, routing.ModeCar, calls[0].Mode)
	assert.Empty(t, rec.Events())
}

func TestResolve_MissingSummaryUsesHaversine(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(routing.Section{Polyline: polyline.Encode([]geo.Point{origin, corner, dest})}),
	}}

	route, err := newResolver(p, diagnostics.NewRecorder()).Resolve(context.Background(), request())
	require.NoError(t, err)

	want := geo.HaversineDistance(origin, dest)
	assert.Equal(t, routing.SourceProvider, route.Source)
	assert.InDelta(t, want, route.DistanceMeters, 1)
	assert.InDelta(t, geo.EstimateDuration(want), route.DurationSeconds, 1)
	assert.Len(t, route.Geometry, 3)
}

func TestResolve_RetryTier(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest:  fail(errors.New("503 from provider")),
		routing.ObjectiveShortest: respond(section(2150, 300, origin, corner, dest)),
	}}
	rec := diagnostics.NewRecorder()

	route, err := newResolver(p, rec).Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, routing.SourceProviderRetry, route.Source)
	assert.InDelta(t, 2150, route.DistanceMeters, 1e-9)
	assert.Len(t, route.Geometry, 3)

	calls := p.calls()
	require.Len(t, calls, 2)
	retry := calls[1]
	assert.Equal(t, routing.ObjectiveShortest, retry.Objective)
	assert.Equal(t, 0, retry.Alternatives)
	assert.Equal(t, "metric", retry.Units)
	assert.True(t, retry.Explicit)
	assert.False(t, calls[0].Explicit)

	assert.Equal(t, []diagnostics.Kind{diagnostics.KindProviderFailure}, rec.Kinds())
}

func TestResolve_EmptyRoutesAdvanceToRetry(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: func(context.Context) (*routing.ProviderResponse, error) {
			return &routing.ProviderResponse{}, nil
		},
		routing.ObjectiveShortest: respond(section(2150, 300, origin, corner, dest)),
	}}

	route, err := newResolver(p, diagnostics.NewRecorder()).Resolve(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, routing.SourceProviderRetry, route.Source)
}

func TestResolve_NearStraightRetryFallsBack(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest:  fail(routing.ErrRateLimitExceeded),
		routing.ObjectiveShortest: respond(section(1530, 200, origin, middle, dest)),
	}}
	rec := diagnostics.NewRecorder()

	route, err := newResolver(p, rec).Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, routing.SourceGreatCircleFallback, route.Source)
	assert.Equal(t, []diagnostics.Kind{
		diagnostics.KindProviderFailure,
		diagnostics.KindNearStraightRoute,
	}, rec.Kinds())
}

func TestResolve_ProviderFailureFallsBackToGreatCircle(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest:  fail(errors.New("boom")),
		routing.ObjectiveShortest: fail(errors.New("boom again")),
	}}
	rec := diagnostics.NewRecorder()

	route, err := newResolver(p, rec).Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, routing.SourceGreatCircleFallback, route.Source)
	assert.True(t, route.IsFallback())
	assert.InDelta(t, 1521, route.DistanceMeters, 2)
	assert.InDelta(t, route.DistanceMeters/(40000.0/3600.0), route.DurationSeconds, 1e-6)
	assert.Equal(t, []geo.Point{origin, dest}, route.Geometry)
	assert.Equal(t, []diagnostics.Kind{
		diagnostics.KindProviderFailure,
		diagnostics.KindRetryFailure,
	}, rec.Kinds())
}

func TestResolve_OffEndpointGeometryReplaced(t *testing.T) {
	// First point is ~2000 m north of the origin.
	offStart := geo.Point{Lat: origin.Lat + 2000.0/111195.0, Lng: origin.Lng}
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(section(1800, 260, offStart, corner, dest)),
	}}
	rec := diagnostics.NewRecorder()

	route, err := newResolver(p, rec).Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, routing.SourceProvider, route.Source)
	assert.Equal(t, []geo.Point{origin, dest}, route.Geometry)
	assert.InDelta(t, 1800, route.DistanceMeters, 1e-9, "provider numbers are kept")
	assert.InDelta(t, 260, route.DurationSeconds, 1e-9)
	assert.Equal(t, 1, rec.Count(diagnostics.KindOffEndpoint))
}

func TestResolve_SinglePointGeometryPadded(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(section(1600, 200, middle)),
	}}

	route, err := newResolver(p, diagnostics.NewRecorder()).Resolve(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, route.Geometry, 3)
	assert.Equal(t, origin, route.Geometry[0])
	assert.Equal(t, dest, route.Geometry[2])
}

func TestResolve_DroppedPointsReported(t *testing.T) {
	bad := geo.Point{Lat: 95, Lng: 105.86}
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(section(2200, 300, origin, bad, corner, dest)),
	}}
	rec := diagnostics.NewRecorder()

	route, err := newResolver(p, rec).Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Len(t, route.Geometry, 3)
	assert.Equal(t, 1, rec.Count(diagnostics.KindDroppedPoints))
}

func TestResolve_LongDetourOnlyWarns(t *testing.T) {
	far := geo.Point{Lat: 21.1, Lng: 105.9}
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(section(20000, 1800, origin, far, dest)),
	}}
	rec := diagnostics.NewRecorder()

	route, err := newResolver(p, rec).Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, routing.SourceProvider, route.Source)
	assert.Len(t, route.Geometry, 3, "detour geometry is not corrected")
	assert.Equal(t, 1, rec.Count(diagnostics.KindLongDetour))
}

func TestResolve_TierTimeout(t *testing.T) {
	slow := func(ctx context.Context) (*routing.ProviderResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest:  slow,
		routing.ObjectiveShortest: slow,
	}}

	resolver := newResolver(p, diagnostics.NewRecorder(), func(c *routing.ResolverConfig) {
		c.TierTimeout = 20 * time.Millisecond
	})

	start := time.Now()
	route, err := resolver.Resolve(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, routing.SourceGreatCircleFallback, route.Source)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolve_InvalidCoordinates(t *testing.T) {
	resolver := newResolver(nil, diagnostics.NewRecorder())

	_, err := resolver.Resolve(context.Background(), routing.RouteRequest{
		Origin:      geo.Point{Lat: 120, Lng: 0},
		Destination: dest,
	})
	assert.ErrorIs(t, err, routing.ErrInvalidCoordinates)

	var rerr *routing.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "INVALID_ORIGIN", rerr.Code)
	assert.False(t, rerr.IsRetryable())
}

func TestResolve_NoProvider(t *testing.T) {
	route, err := newResolver(nil, diagnostics.NewRecorder()).Resolve(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, routing.SourceGreatCircleFallback, route.Source)
}

func TestResolve_CachesProviderRoutesOnly(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(section(2300, 330, origin, corner, dest)),
	}}

	var resolutions []routing.Resolution
	resolver := newResolver(p, diagnostics.NewRecorder(), func(c *routing.ResolverConfig) {
		c.Cache = routing.NewMemoryCache(time.Minute)
		c.OnResolved = func(_ context.Context, res routing.Resolution) {
			resolutions = append(resolutions, res)
		}
	})
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, request())
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, request())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, p.calls(), 1)
	require.Len(t, resolutions, 2)
	assert.False(t, resolutions[0].Cached)
	assert.True(t, resolutions[1].Cached)

	require.NoError(t, resolver.ClearCache(ctx))
	_, err = resolver.Resolve(ctx, request())
	require.NoError(t, err)
	assert.Len(t, p.calls(), 2)
}

func TestResolve_CachedRoutesAreIndependent(t *testing.T) {
	p := &fakeProvider{handle: map[routing.Objective]func(context.Context) (*routing.ProviderResponse, error){
		routing.ObjectiveFastest: respond(section(2300, 330, origin, corner, dest)),
	}}
	resolver := newResolver(p, diagnostics.NewRecorder(), func(c *routing.ResolverConfig) {
		c.Cache = routing.NewMemoryCache(time.Minute)
		c.OnResolved = func(_ context.Context, res routing.Resolution) {
			res.Route.Geometry[0] = geo.Point{}
		}
	})
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, request())
	require.NoError(t, err)
	require.Len(t, first.Geometry, 3)
	assert.InDelta(t, origin.Lat, first.Geometry[0].Lat, 1e-6, "callback edits stay in the callback")
	want := first.Clone().Geometry

	first.Geometry[1] = geo.Point{}

	second, err := resolver.Resolve(ctx, request())
	require.NoError(t, err)
	assert.Len(t, p.calls(), 1)
	assert.Equal(t, want, second.Geometry)
}

func TestResolve_FallbackNotCached(t *testing.T) {
	p := &fakeProvider{}
	resolver := newResolver(p, diagnostics.NewRecorder(), func(c *routing.ResolverConfig) {
		c.Cache = routing.NewMemoryCache(time.Minute)
	})
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, request())
	require.NoError(t, err)
	_, err = resolver.Resolve(ctx, request())
	require.NoError(t, err)

	assert.Len(t, p.calls(), 4, "each resolution tries both provider tiers again")
}
