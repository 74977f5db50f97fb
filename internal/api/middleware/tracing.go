package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cuogn/logistics-front-sub000/internal/api/middleware"

// annotationPrefix namespaces handler annotations on spans.
const annotationPrefix = "quote."

// Tracing starts a server span per request, continuing a propagated trace.
// Once chi has matched the request the span is renamed to the route pattern,
// so that quotes for different coordinates share one span name. The client
// ID and the handler's annotations are recorded on the span.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("url.scheme", scheme(r)),
				attribute.String("server.address", r.Host),
				attribute.String("user_agent.original", r.UserAgent()),
			),
		)
		defer span.End()

		rec := record(w)
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		route := RoutePattern(r)
		span.SetName(r.Method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", rec.status),
			attribute.Int64("http.response.body.size", rec.written),
			attribute.String("client.address", r.RemoteAddr),
		}
		if id := GetRequestID(ctx); id != "" {
			attrs = append(attrs, attribute.String("request.id", id))
		}
		if id := GetClientID(ctx); id != "" {
			attrs = append(attrs, attribute.String("client.id", id))
		}
		for _, a := range annotations(ctx) {
			attrs = append(attrs, attribute.String(annotationPrefix+a.key, a.value))
		}
		span.SetAttributes(attrs...)

		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// scheme returns the request scheme as seen by the client.
func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}
