package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem and logs the stack.
// http.ErrAbortHandler is re-raised so the server aborts the response. When
// the handler had already started writing, only the log line is produced.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(v)
				}

				ctx := r.Context()
				event := log.Error().
					Str("request_id", GetRequestID(ctx)).
					Str("route", RoutePattern(r)).
					Interface("panic", v).
					Str("stack", string(debug.Stack()))
				if clientID := GetClientID(ctx); clientID != "" {
					event = event.Str("client_id", clientID)
				}
				event.Msg("panic recovered")

				if rec.wroteHeader {
					return
				}
				problem := models.NewInternalError(GetRequestID(ctx), "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(rec)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
