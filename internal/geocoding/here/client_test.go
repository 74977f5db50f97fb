package here

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuogn/logistics-front-sub000/internal/geocoding"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

const geocodeBody = `{
  "items": [
    {
      "title": "Phường Ba Đình, Hà Nội",
      "id": "here:cm:namedplace:1",
      "resultType": "locality",
      "address": {"label": "Phường Ba Đình, Hà Nội, Việt Nam", "countryCode": "VNM", "city": "Hà Nội"},
      "position": {"lat": 21.0341, "lng": 105.8372}
    },
    {
      "title": "Ba Đình",
      "address": {},
      "position": {"lat": 21.0355, "lng": 105.8340}
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		Language:   "vi",
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_Geocode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/geocode", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "mock123", q.Get("apiKey"))
		assert.Equal(t, "Ba Đình, Hà Nội, Việt Nam", q.Get("q"))
		assert.Equal(t, "countryCode:VNM", q.Get("in"))
		assert.Equal(t, "2", q.Get("limit"))
		assert.Equal(t, "vi", q.Get("lang"))
		_, _ = w.Write([]byte(geocodeBody))
	})

	results, err := client.Geocode(context.Background(), "Ba Đình, Hà Nội, Việt Nam", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, geo.Point{Lat: 21.0341, Lng: 105.8372}, results[0].Point)
	assert.Equal(t, "Phường Ba Đình, Hà Nội, Việt Nam", results[0].Label)
	assert.Equal(t, "Ba Đình", results[1].Label, "title is used when the address has no label")
}

func TestClient_Reverse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/revgeocode", r.URL.Path)
		assert.Equal(t, "21.034100,105.837200", r.URL.Query().Get("at"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(geocodeBody))
	})

	results, err := client.Reverse(context.Background(), geo.Point{Lat: 21.0341, Lng: 105.8372})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Phường Ba Đình, Hà Nội, Việt Nam", results[0].Label)
}

func TestClient_ErrorStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway} {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		_, err := client.Geocode(context.Background(), "Ba Đình", 1)
		assert.ErrorIs(t, err, geocoding.ErrProviderUnavailable, "status %d", status)
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	})

	_, err := client.Geocode(context.Background(), "Ba Đình", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, geocoding.ErrProviderUnavailable)
}

func TestNewClient_BaseURLs(t *testing.T) {
	c := NewClient(ClientConfig{APIKey: "k"})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultReverseBaseURL, c.reverseBaseURL)
	assert.Equal(t, ProviderName, c.Name())

	c = NewClient(ClientConfig{APIKey: "k", BaseURL: "http://local"})
	assert.Equal(t, "http://local", c.reverseBaseURL)

	c = NewClient(ClientConfig{APIKey: "k", BaseURL: "http://a", ReverseBaseURL: "http://b"})
	assert.Equal(t, "http://b", c.reverseBaseURL)
}
