package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger writes one access log line per request, including the calling
// client and the handler's annotations. Server errors are logged at error
// level, client errors at warn and ops checks at debug.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)

			next.ServeHTTP(rec, r)

			ctx := r.Context()
			event := accessEvent(log, r.URL.Path, rec.status).
				Str("request_id", GetRequestID(ctx)).
				Str("method", r.Method).
				Str("route", RoutePattern(r)).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr)

			if clientID := GetClientID(ctx); clientID != "" {
				event = event.Str("client_id", clientID)
			}
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				event = event.Str("trace_id", sc.TraceID().String())
			}
			for _, a := range annotations(ctx) {
				event = event.Str(a.key, a.value)
			}
			event.Msg("request completed")
		})
	}
}

func accessEvent(log zerolog.Logger, path string, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case strings.HasPrefix(path, opsPrefix):
		return log.Debug()
	default:
		return log.Info()
	}
}
