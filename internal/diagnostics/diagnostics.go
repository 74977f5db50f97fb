// Package diagnostics is the side channel for degraded-mode and data-quality
// events. Nothing reported here changes a result; it only records that a
// fallback or correction happened.
package diagnostics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/cuogn/logistics-front-sub000/internal/diagnostics"

// Kind identifies the category of a diagnostic event.
type Kind string

const (
	KindReferenceFallback Kind = "reference_fallback"
	KindUnknownAdminCode  Kind = "unknown_admin_code"
	KindProviderFailure   Kind = "provider_failure"
	KindRetryFailure      Kind = "retry_failure"
	KindNearStraightRoute Kind = "near_straight_route"
	KindOffEndpoint       Kind = "off_endpoint_geometry"
	KindLongDetour        Kind = "long_detour"
	KindDroppedPoints     Kind = "dropped_points"
	KindTruncatedGeometry Kind = "truncated_geometry"
	KindSuspectCoordinate Kind = "suspect_coordinate"
	KindGeocodeFallback   Kind = "geocode_fallback"
	KindReverseGeocode    Kind = "reverse_geocode_failure"
	KindRouteCacheFailure Kind = "route_cache_failure"
)

// Event is a single diagnostic observation.
type Event struct {
	Kind    Kind
	Message string
	Fields  map[string]any
	Err     error
	Time    time.Time
}

// Reporter receives diagnostic events.
type Reporter interface {
	Report(ctx context.Context, e Event)
}

// Discard drops every event.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(context.Context, Event) {}

// LogReporter writes events to a zerolog logger and counts them per kind.
type LogReporter struct {
	logger  zerolog.Logger
	counter metric.Int64Counter
}

// NewLogReporter creates a reporter backed by logger and the global meter provider.
func NewLogReporter(logger zerolog.Logger) (*LogReporter, error) {
	counter, err := otel.Meter(meterName).Int64Counter(
		"diagnostics.events",
		metric.WithDescription("Number of degraded-mode and data-quality events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &LogReporter{
		logger:  logger.With().Str("component", "diagnostics").Logger(),
		counter: counter,
	}, nil
}

// Report logs the event. Provider failures log at error level, everything else at warn.
func (r *LogReporter) Report(ctx context.Context, e Event) {
	ev := r.logger.Warn()
	if e.Kind == KindProviderFailure || e.Kind == KindRetryFailure {
		ev = r.logger.Error()
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Str("kind", string(e.Kind)).Fields(e.Fields).Msg(e.Message)

	r.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(e.Kind))))
}

// Recorder keeps events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Report stores the event.
func (r *Recorder) Report(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of all recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Multi fans an event out to several reporters.
func Multi(reporters ...Reporter) Reporter {
	return multi(reporters)
}

type multi []Reporter

func (m multi) Report(ctx context.Context, e Event) {
	for _, r := range m {
		r.Report(ctx, e)
	}
}

// Emit fills in the event time and reports e. A nil reporter discards.
func Emit(ctx context.Context, r Reporter, e Event) {
	if r == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.Report(ctx, e)
}
