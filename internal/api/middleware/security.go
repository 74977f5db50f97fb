package middleware

import (
	"net/http"
	"strings"

	"github.com/cuogn/logistics-front-sub000/internal/api/models"
)

// securityHeaders are set on every response. The API only serves JSON, so
// the content security policy denies everything.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders adds the standard response headers. Handlers that serve
// cacheable data, such as the reference lists, override Cache-Control.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests the load balancer received over plain HTTP
// with a 403 problem. Ops endpoints stay reachable for plain HTTP health checks.
// When enabled is false the handler is returned unchanged.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if forwardedInsecure(r) && !strings.HasPrefix(r.URL.Path, opsPrefix) {
				problem := models.NewProblem(
					models.ProblemTypeTLSRequired,
					"TLS required",
					http.StatusForbidden,
					GetRequestID(r.Context()),
				)
				problem.Detail = "quotes are only served over HTTPS"
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedInsecure reports whether a proxy forwarded the request from a
// plain HTTP connection.
func forwardedInsecure(r *http.Request) bool {
	if r.TLS != nil {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	return proto != "" && !strings.EqualFold(proto, "https")
}
