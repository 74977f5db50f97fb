// Package routing resolves a driving route between two points. Provider
// results are tried first and a great-circle estimate is always available as
// the last resort, so resolution never fails for valid coordinates.
package routing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cuogn/logistics-front-sub000/pkg/geo"
	"github.com/cuogn/logistics-front-sub000/pkg/polyline"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// Route requests routes between two points.
	Route(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// TransportMode is the vehicle type used for routing.
type TransportMode string

// ModeCar is the only mode the delivery platform routes with.
const ModeCar TransportMode = "car"

// Objective selects what the provider optimises for.
type Objective string

const (
	// ObjectiveFastest minimises travel time.
	ObjectiveFastest Objective = "fast"
	// ObjectiveShortest minimises travel distance.
	ObjectiveShortest Objective = "short"
)

// Source records which resolution tier produced a Route.
type Source string

const (
	SourceProvider            Source = "provider"
	SourceProviderRetry       Source = "provider_retry"
	SourceGreatCircleFallback Source = "great_circle_fallback"
)

// ProviderRequest is a request sent to a routing provider.
type ProviderRequest struct {
	Origin       geo.Point
	Destination  geo.Point
	Mode         TransportMode
	Objective    Objective
	Alternatives int    // Number of alternative routes
	Units        string // Explicit unit system, empty leaves the provider default

	// Explicit sends the alternatives count even when it is zero, so the
	// request does not depend on provider defaults.
	Explicit bool
}

// ProviderResponse holds the routes a provider returned.
type ProviderResponse struct {
	Routes    []ProviderRoute
	Provider  string
	FetchedAt time.Time
}

// ProviderRoute is one route made of consecutive sections.
type ProviderRoute struct {
	Sections []Section
}

// Section is a leg of a provider route.
type Section struct {
	Polyline string   // Encoded polyline (precision 5)
	Summary  *Summary // Nil when the provider omitted the numeric summary
}

// Summary holds the numeric totals of a section.
type Summary struct {
	LengthMeters    float64
	DurationSeconds float64
}

// RouteRequest is a request to resolve a route.
type RouteRequest struct {
	Origin      geo.Point
	Destination geo.Point
	Mode        TransportMode
}

// Route is a normalized route. Geometry always has at least two points and
// starts and ends within the endpoint tolerance of the requested points.
type Route struct {
	DistanceMeters  float64     `json:"distanceMeters"`
	DurationSeconds float64     `json:"durationSeconds"`
	Geometry        []geo.Point `json:"geometry"`
	Source          Source      `json:"source"`
	Provider        string      `json:"provider,omitempty"`
}

// EncodedPolyline returns the geometry in the standard polyline encoding.
func (r Route) EncodedPolyline() string {
	return polyline.Encode(r.Geometry)
}

// Clone returns a copy of the route that shares no geometry with r.
func (r Route) Clone() Route {
	r.Geometry = slices.Clone(r.Geometry)
	return r
}

// IsFallback reports whether the route is a great-circle estimate.
func (r Route) IsFallback() bool {
	return r.Source == SourceGreatCircleFallback
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// SoftFailure rejects a tier result that is well formed but unusable, such as
// an empty route list or a suspiciously straight geometry.
type SoftFailure struct {
	Tier   string
	Reason string
	Err    error
}

func (e *SoftFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s tier rejected: %s: %v", e.Tier, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s tier rejected: %s", e.Tier, e.Reason)
}

func (e *SoftFailure) Unwrap() error {
	return e.Err
}
