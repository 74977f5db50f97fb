package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuogn/logistics-front-sub000/internal/api/middleware"
)

// capture runs RequestID and returns the context the handler saw.
func capture(t *testing.T, req *http.Request) (context.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var seen context.Context
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context()
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return seen, w
}

func TestRequestID_InboundHeader(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		kept    bool
	}{
		{name: "missing", inbound: "", kept: false},
		{name: "well formed", inbound: "checkout-7f3a:quote.2", kept: true},
		{name: "contains space", inbound: "req 1", kept: false},
		{name: "contains newline", inbound: "req\nforged=1", kept: false},
		{name: "too long", inbound: strings.Repeat("a", 65), kept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/quotes:compute", http.NoBody)
			if tt.inbound != "" {
				req.Header.Set(middleware.RequestIDHeader, tt.inbound)
			}

			ctx, w := capture(t, req)
			id := middleware.GetRequestID(ctx)

			assert.Equal(t, id, w.Header().Get(middleware.RequestIDHeader))
			if tt.kept {
				assert.Equal(t, tt.inbound, id)
			} else {
				assert.True(t, strings.HasPrefix(id, "req_"), "generated id %q", id)
			}
		})
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ctx, _ := capture(t, httptest.NewRequest(http.MethodGet, "/v1/reference/provinces", http.NoBody))
		id := middleware.GetRequestID(ctx)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestRequestID_ClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/quotes:compute", http.NoBody)
	req.Header.Set(middleware.ClientIDHeader, "shop-42")
	ctx, _ := capture(t, req)
	assert.Equal(t, "shop-42", middleware.GetClientID(ctx))

	req = httptest.NewRequest(http.MethodPost, "/v1/quotes:compute", http.NoBody)
	req.Header.Set(middleware.ClientIDHeader, "shop 42; drop")
	ctx, _ = capture(t, req)
	assert.Empty(t, middleware.GetClientID(ctx), "malformed client ids are ignored")
}

func TestRequestInfo_OutsideMiddleware(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, middleware.GetRequestID(ctx))
	assert.Empty(t, middleware.GetClientID(ctx))
	assert.NotPanics(t, func() { middleware.Annotate(ctx, middleware.RouteSourceAnnotation, "provider") })
}
