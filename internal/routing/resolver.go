package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/diagnostics"
	"github.com/cuogn/logistics-front-sub000/internal/telemetry"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
	"github.com/cuogn/logistics-front-sub000/pkg/polyline"
)

// Tier names used in logs, metrics and diagnostics.
const (
	TierProvider = "provider"
	TierRetry    = "provider_retry"
	TierFallback = "great_circle_fallback"
)

// Defaults for ResolverConfig.
const (
	DefaultTierTimeout           = 8 * time.Second
	DefaultEndpointTolerance     = 1000.0 // meters
	DefaultStraightnessThreshold = 1.1
	DefaultDetourFactor          = 5.0
)

// Resolution describes a completed resolution for OnResolved.
type Resolution struct {
	Request RouteRequest
	Route   Route
	Cached  bool
}

// ResolverConfig holds configuration for the route resolver.
type ResolverConfig struct {
	// Provider is the routing data provider. When nil only the great-circle
	// fallback is used.
	Provider Provider

	// Cache stores provider-backed results (optional).
	Cache Cache

	// TierTimeout bounds each provider tier (default: 8s).
	TierTimeout time.Duration

	// EndpointTolerance is the maximum distance in meters between the decoded
	// geometry ends and the requested points (default: 1000).
	EndpointTolerance float64

	// StraightnessThreshold rejects retry geometry whose length over direct
	// distance is below it (default: 1.1).
	StraightnessThreshold float64

	// DetourFactor flags geometry longer than this multiple of the direct
	// distance (default: 5). Flagged routes are kept as is.
	DetourFactor float64

	// OnResolved is called after every successful resolution (optional).
	OnResolved func(ctx context.Context, res Resolution)

	Logger      zerolog.Logger
	Diagnostics diagnostics.Reporter
	Metrics     *telemetry.ProviderMetrics
}

// Resolver turns a RouteRequest into a Route using the tier ladder
// provider → provider retry → great-circle fallback.
type Resolver struct {
	provider      Provider
	cache         Cache
	tierTimeout   time.Duration
	tolerance     float64
	straightness  float64
	detourFactor  float64
	onResolved    func(ctx context.Context, res Resolution)
	logger        zerolog.Logger
	diag          diagnostics.Reporter
	metrics       *telemetry.ProviderMetrics
	providerLabel string
}

// NewResolver creates a new route resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	tierTimeout := cfg.TierTimeout
	if tierTimeout <= 0 {
		tierTimeout = DefaultTierTimeout
	}

	tolerance := cfg.EndpointTolerance
	if tolerance <= 0 {
		tolerance = DefaultEndpointTolerance
	}

	straightness := cfg.StraightnessThreshold
	if straightness <= 0 {
		straightness = DefaultStraightnessThreshold
	}

	detour := cfg.DetourFactor
	if detour <= 0 {
		detour = DefaultDetourFactor
	}

	diag := cfg.Diagnostics
	if diag == nil {
		diag = diagnostics.Discard
	}

	label := "none"
	if cfg.Provider != nil {
		label = cfg.Provider.Name()
	}

	return &Resolver{
		provider:      cfg.Provider,
		cache:         cfg.Cache,
		tierTimeout:   tierTimeout,
		tolerance:     tolerance,
		straightness:  straightness,
		detourFactor:  detour,
		onResolved:    cfg.OnResolved,
		logger:        cfg.Logger.With().Str("component", "route_resolver").Logger(),
		diag:          diag,
		metrics:       cfg.Metrics,
		providerLabel: label,
	}
}

// Resolve returns a route between the request points. The only error is
// ErrInvalidCoordinates for out-of-range input; every provider problem is
// absorbed by the tier ladder.
func (r *Resolver) Resolve(ctx context.Context, req RouteRequest) (Route, error) {
	if err := req.Origin.Validate(); err != nil {
		return Route{}, &Error{
			Provider: r.providerLabel,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      fmt.Errorf("%w: %v", ErrInvalidCoordinates, err),
		}
	}
	if err := req.Destination.Validate(); err != nil {
		return Route{}, &Error{
			Provider: r.providerLabel,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      fmt.Errorf("%w: %v", ErrInvalidCoordinates, err),
		}
	}
	if req.Mode == "" {
		req.Mode = ModeCar
	}

	key := CacheKey(req)
	if route, ok := r.cached(ctx, key); ok {
		r.notify(ctx, Resolution{Request: req, Route: route.Clone(), Cached: true})
		return route, nil
	}

	route, tierName, err := tryInOrder(ctx, r.tiers(req), func(name string, err error) {
		r.reject(ctx, req, name, err)
	})
	if err != nil {
		// The fallback tier never fails; this only guards a misconfigured ladder.
		route = r.greatCircle(req)
		tierName = TierFallback
	}

	r.logger.Debug().
		Str("tier", tierName).
		Str("source", string(route.Source)).
		Float64("distance_m", route.DistanceMeters).
		Float64("duration_s", route.DurationSeconds).
		Int("points", len(route.Geometry)).
		Msg("route resolved")

	if route.Source != SourceProvider {
		r.metrics.RecordFallback(r.providerLabel, "route", string(route.Source))
	}
	if !route.IsFallback() {
		r.store(ctx, key, route)
	}

	r.notify(ctx, Resolution{Request: req, Route: route.Clone()})
	return route, nil
}

// ClearCache empties the route cache, if any.
func (r *Resolver) ClearCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Clear(ctx)
}

// ProviderName returns the name of the underlying provider.
func (r *Resolver) ProviderName() string {
	return r.providerLabel
}

func (r *Resolver) tiers(req RouteRequest) []tier[Route] {
	var tiers []tier[Route]
	if r.provider != nil {
		tiers = append(tiers,
			tier[Route]{name: TierProvider, run: func(ctx context.Context) (Route, error) {
				return r.providerTier(ctx, req)
			}},
			tier[Route]{name: TierRetry, run: func(ctx context.Context) (Route, error) {
				return r.retryTier(ctx, req)
			}},
		)
	}
	return append(tiers, tier[Route]{name: TierFallback, run: func(context.Context) (Route, error) {
		return r.greatCircle(req), nil
	}})
}

// providerTier asks for the fastest car route.
func (r *Resolver) providerTier(ctx context.Context, req RouteRequest) (Route, error) {
	resp, err := r.callProvider(ctx, ProviderRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Mode:        req.Mode,
		Objective:   ObjectiveFastest,
	})
	if err != nil {
		return Route{}, err
	}

	a, err := r.assemble(ctx, TierProvider, req, resp)
	if err != nil {
		return Route{}, err
	}
	return r.finish(ctx, req, a, SourceProvider), nil
}

// retryTier asks again with the shortest objective, no alternatives and
// explicit metric units. A near-straight geometry is rejected.
func (r *Resolver) retryTier(ctx context.Context, req RouteRequest) (Route, error) {
	resp, err := r.callProvider(ctx, ProviderRequest{
		Origin:       req.Origin,
		Destination:  req.Destination,
		Mode:         req.Mode,
		Objective:    ObjectiveShortest,
		Alternatives: 0,
		Units:        "metric",
		Explicit:     true,
	})
	if err != nil {
		return Route{}, err
	}

	a, err := r.assemble(ctx, TierRetry, req, resp)
	if err != nil {
		return Route{}, err
	}

	if ratio, ok := straightness(a.decoded); ok && ratio < r.straightness {
		return Route{}, &SoftFailure{
			Tier:   TierRetry,
			Reason: fmt.Sprintf("near-straight geometry (length ratio %.3f)", ratio),
		}
	}
	return r.finish(ctx, req, a, SourceProviderRetry), nil
}

func (r *Resolver) callProvider(ctx context.Context, preq ProviderRequest) (*ProviderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, r.tierTimeout)
	defer cancel()

	start := time.Now()
	resp, err := r.provider.Route(ctx, preq)
	r.metrics.RecordRequest(r.providerLabel, "route_"+string(preq.Objective), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNoRouteFound
	}
	return resp, nil
}

// assembled is a provider route before endpoint correction.
type assembled struct {
	decoded  []geo.Point // valid decoded points of all sections, junctions deduplicated
	distance float64
	duration float64
	provider string
}

// assemble decodes and concatenates the sections of the first route and
// derives its totals.
func (r *Resolver) assemble(ctx context.Context, tierName string, req RouteRequest, resp *ProviderResponse) (assembled, error) {
	if len(resp.Routes) == 0 {
		return assembled{}, &SoftFailure{Tier: tierName, Reason: "no routes", Err: ErrNoRouteFound}
	}
	sections := resp.Routes[0].Sections
	if len(sections) == 0 {
		return assembled{}, &SoftFailure{Tier: tierName, Reason: "no sections", Err: ErrNoRouteFound}
	}

	var (
		points       []geo.Point
		distance     float64
		duration     float64
		haveSummary  = true
		droppedTotal int
		truncated    bool
	)

	for _, s := range sections {
		decoded, stats := polyline.DecodeWithStats(s.Polyline)
		droppedTotal += stats.Dropped
		truncated = truncated || stats.Truncated

		if len(points) > 0 && len(decoded) > 0 && points[len(points)-1] == decoded[0] {
			decoded = decoded[1:]
		}
		points = append(points, decoded...)

		if s.Summary == nil {
			haveSummary = false
			continue
		}
		distance += s.Summary.LengthMeters
		duration += s.Summary.DurationSeconds
	}

	if droppedTotal > 0 {
		diagnostics.Emit(ctx, r.diag, diagnostics.Event{
			Kind:    diagnostics.KindDroppedPoints,
			Message: "dropped out-of-range points from route geometry",
			Fields:  map[string]any{"tier": tierName, "dropped": droppedTotal},
		})
	}
	if truncated {
		diagnostics.Emit(ctx, r.diag, diagnostics.Event{
			Kind:    diagnostics.KindTruncatedGeometry,
			Message: "route geometry ended in the middle of a value",
			Fields:  map[string]any{"tier": tierName},
		})
	}

	if !haveSummary {
		ends := points
		if len(ends) < 2 {
			ends = []geo.Point{req.Origin, req.Destination}
		}
		distance = geo.HaversineDistance(ends[0], ends[len(ends)-1])
		duration = geo.EstimateDuration(distance)
	}

	provider := resp.Provider
	if provider == "" {
		provider = r.providerLabel
	}

	return assembled{decoded: points, distance: distance, duration: duration, provider: provider}, nil
}

// finish pads and corrects the geometry and produces the Route.
func (r *Resolver) finish(ctx context.Context, req RouteRequest, a assembled, source Source) Route {
	geometry := a.decoded
	if len(geometry) < 2 {
		padded := make([]geo.Point, 0, len(geometry)+2)
		padded = append(padded, req.Origin)
		padded = append(padded, geometry...)
		geometry = append(padded, req.Destination)
	}

	direct := geo.HaversineDistance(req.Origin, req.Destination)
	if length := geo.PathLength(geometry); direct > 0 && length > r.detourFactor*direct {
		diagnostics.Emit(ctx, r.diag, diagnostics.Event{
			Kind:    diagnostics.KindLongDetour,
			Message: "route geometry is much longer than the direct distance",
			Fields: map[string]any{
				"source":        string(source),
				"length_m":      length,
				"direct_m":      direct,
				"detour_factor": length / direct,
				"detour_limit":  r.detourFactor,
			},
		})
	}

	startOff := geo.HaversineDistance(geometry[0], req.Origin)
	endOff := geo.HaversineDistance(geometry[len(geometry)-1], req.Destination)
	if startOff > r.tolerance || endOff > r.tolerance {
		diagnostics.Emit(ctx, r.diag, diagnostics.Event{
			Kind:    diagnostics.KindOffEndpoint,
			Message: "route geometry does not meet the requested endpoints, using direct line",
			Fields: map[string]any{
				"source":         string(source),
				"start_offset_m": startOff,
				"end_offset_m":   endOff,
			},
		})
		geometry = []geo.Point{req.Origin, req.Destination}
	}

	return Route{
		DistanceMeters:  a.distance,
		DurationSeconds: a.duration,
		Geometry:        geometry,
		Source:          source,
		Provider:        a.provider,
	}
}

// greatCircle is the last tier. It cannot fail.
func (r *Resolver) greatCircle(req RouteRequest) Route {
	distance := geo.HaversineDistance(req.Origin, req.Destination)
	return Route{
		DistanceMeters:  distance,
		DurationSeconds: geo.EstimateDuration(distance),
		Geometry:        []geo.Point{req.Origin, req.Destination},
		Source:          SourceGreatCircleFallback,
	}
}

func (r *Resolver) reject(ctx context.Context, req RouteRequest, tierName string, err error) {
	kind := diagnostics.KindProviderFailure
	var soft *SoftFailure
	switch {
	case errors.As(err, &soft) && tierName == TierRetry && !errors.Is(err, ErrNoRouteFound):
		kind = diagnostics.KindNearStraightRoute
	case tierName == TierRetry:
		kind = diagnostics.KindRetryFailure
	}

	r.logger.Warn().Err(err).
		Str("tier", tierName).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lng", req.Origin.Lng).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lng", req.Destination.Lng).
		Msg("route tier rejected")

	diagnostics.Emit(ctx, r.diag, diagnostics.Event{
		Kind:    kind,
		Message: "route tier rejected",
		Fields:  map[string]any{"tier": tierName, "provider": r.providerLabel},
		Err:     err,
	})
}

func (r *Resolver) cached(ctx context.Context, key string) (Route, bool) {
	if r.cache == nil {
		return Route{}, false
	}
	route, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		diagnostics.Emit(ctx, r.diag, diagnostics.Event{
			Kind:    diagnostics.KindRouteCacheFailure,
			Message: "route cache read failed",
			Fields:  map[string]any{"cache_key": key},
			Err:     err,
		})
		return Route{}, false
	}
	if !ok {
		r.metrics.RecordCacheMiss(r.providerLabel, "route")
		return Route{}, false
	}
	r.metrics.RecordCacheHit(r.providerLabel, "route")
	r.logger.Debug().Str("cache_key", key).Msg("cache hit for route")
	return route, true
}

func (r *Resolver) store(ctx context.Context, key string, route Route) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, route); err != nil {
		diagnostics.Emit(ctx, r.diag, diagnostics.Event{
			Kind:    diagnostics.KindRouteCacheFailure,
			Message: "route cache write failed",
			Fields:  map[string]any{"cache_key": key},
			Err:     err,
		})
	}
}

func (r *Resolver) notify(ctx context.Context, res Resolution) {
	if r.onResolved != nil {
		r.onResolved(ctx, res)
	}
}

// straightness returns path length over the distance between the first and
// last point. ok is false when that distance is zero.
func straightness(points []geo.Point) (float64, bool) {
	if len(points) < 2 {
		return 1, true
	}
	direct := geo.HaversineDistance(points[0], points[len(points)-1])
	if direct == 0 {
		return 0, false
	}
	return geo.PathLength(points) / direct, true
}
