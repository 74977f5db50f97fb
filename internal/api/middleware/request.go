// Package middleware provides HTTP middleware for the delivery quote API.
package middleware

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Headers read and written by the middleware.
const (
	RequestIDHeader = "X-Request-Id"
	ClientIDHeader  = "X-Client-Id"
)

// maxIDLength bounds inbound request and client IDs.
const maxIDLength = 64

// opsPrefix is the path prefix of the health and status endpoints.
const opsPrefix = "/v1/ops/"

type requestInfoKey struct{}

// requestInfo is shared by the middleware chain of one request. Handlers
// annotate it; the access log, the span and the metrics read it afterwards.
type requestInfo struct {
	id       string
	clientID string

	mu     sync.Mutex
	fields map[string]string
}

// RequestID assigns the request ID and records the calling client. A
// well-formed inbound X-Request-Id is kept so that IDs follow a request
// across services; anything else is replaced. The ID is echoed in the
// response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validID(id) {
			id = "req_" + uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		info := &requestInfo{id: id}
		if clientID := r.Header.Get(ClientIDHeader); validID(clientID) {
			info.clientID = clientID
		}

		ctx := context.WithValue(r.Context(), requestInfoKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.id
	}
	return ""
}

// GetClientID returns the validated X-Client-Id of the request, if any.
func GetClientID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.clientID
	}
	return ""
}

// Annotate attaches a key/value pair describing the outcome of the request,
// such as the route source of a quote. It is a no-op outside RequestID.
func Annotate(ctx context.Context, key, value string) {
	info := infoFrom(ctx)
	if info == nil || key == "" {
		return
	}
	info.mu.Lock()
	if info.fields == nil {
		info.fields = make(map[string]string)
	}
	info.fields[key] = value
	info.mu.Unlock()
}

type annotation struct {
	key   string
	value string
}

// annotations returns the request annotations sorted by key.
func annotations(ctx context.Context) []annotation {
	info := infoFrom(ctx)
	if info == nil {
		return nil
	}
	info.mu.Lock()
	defer info.mu.Unlock()

	out := make([]annotation, 0, len(info.fields))
	for k, v := range info.fields {
		out = append(out, annotation{key: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// annotationValue returns one annotation, or "" when it is unset.
func annotationValue(ctx context.Context, key string) string {
	info := infoFrom(ctx)
	if info == nil {
		return ""
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.fields[key]
}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// validID accepts short IDs made of letters, digits and "-_.:".
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
