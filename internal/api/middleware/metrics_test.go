package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cuogn/logistics-front-sub000/internal/api/middleware"
)

// setupTestMeter installs a meter provider with a manual reader and returns
// the reader.
func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader
}

// requestCounts returns the request counter data points.
func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			return sum.DataPoints
		}
	}
	t.Fatal("request counter not recorded")
	return nil
}

func TestMetrics_RecordsRouteSource(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, metrics.Middleware())
	r.Post("/v1/quotes:compute", func(w http.ResponseWriter, r *http.Request) {
		middleware.Annotate(r.Context(), middleware.RouteSourceAnnotation, "provider")
		_, _ = w.Write([]byte(`{}`))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/quotes:compute", http.NoBody))

	points := requestCounts(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, int64(1), points[0].Value)

	attrs := points[0].Attributes
	source, ok := attrs.Value("route.source")
	require.True(t, ok)
	assert.Equal(t, "provider", source.AsString())
	route, _ := attrs.Value("http.route")
	assert.Equal(t, "/v1/quotes:compute", route.AsString())
	status, _ := attrs.Value("http.response.status_code")
	assert.Equal(t, int64(200), status.AsInt64())
	assert.False(t, attrs.HasValue("error"))
}

func TestMetrics_RoutePatternBoundsCardinality(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/reference/provinces/{provinceCode}/wards", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, code := range []string{"01", "79", "99"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/reference/provinces/"+code+"/wards", http.NoBody))
	}

	points := requestCounts(t, reader)
	require.Len(t, points, 1, "one series for all province codes")
	assert.Equal(t, int64(3), points[0].Value)
	assert.True(t, points[0].Attributes.HasValue("error"))
	assert.False(t, points[0].Attributes.HasValue(attribute.Key("route.source")))
}

func TestMetrics_DefaultStatusCode(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("response"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/reference/provinces", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "response", w.Body.String())
}

func TestRoutePattern(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Get("/v1/reference/provinces/{provinceCode}/wards", func(w http.ResponseWriter, r *http.Request) {
		pattern = middleware.RoutePattern(r)
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/reference/provinces/01/wards", http.NoBody))

	assert.Equal(t, "/v1/reference/provinces/{provinceCode}/wards", pattern)
}

func TestRoutePattern_NoRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/unrouted", http.NoBody)
	assert.Equal(t, "/unrouted", middleware.RoutePattern(req))
}
