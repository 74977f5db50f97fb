// Package here provides a geocoding provider backed by the HERE Geocoding &
// Search API v1.
package here

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/geocoding"
	"github.com/cuogn/logistics-front-sub000/internal/provider/resilience"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "here-geocoding"

	// DefaultBaseURL is the HERE forward geocoding base URL.
	DefaultBaseURL = "https://geocode.search.hereapi.com"

	// DefaultReverseBaseURL is the HERE reverse geocoding base URL.
	DefaultReverseBaseURL = "https://revgeocode.search.hereapi.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// CountryFilter restricts results to Vietnam.
	CountryFilter = "countryCode:VNM"

	maxResponseBytes = 2 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the HERE geocoding client.
type ClientConfig struct {
	APIKey string

	// BaseURL is the forward geocoding base URL. When set and ReverseBaseURL
	// is empty, reverse lookups use it as well.
	BaseURL        string
	ReverseBaseURL string

	// Language is the preferred result language (optional, e.g. "vi").
	Language string

	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is a HERE geocoding API client.
type Client struct {
	apiKey         string
	baseURL        string
	reverseBaseURL string
	language       string
	httpClient     HTTPDoer
	logger         zerolog.Logger
}

// NewClient creates a new HERE geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	reverseBaseURL := cfg.ReverseBaseURL
	switch {
	case baseURL == "":
		baseURL = DefaultBaseURL
		if reverseBaseURL == "" {
			reverseBaseURL = DefaultReverseBaseURL
		}
	case reverseBaseURL == "":
		reverseBaseURL = baseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
		reverseBaseURL: reverseBaseURL,
		language:       cfg.Language,
		httpClient:     httpClient,
		logger:         cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode converts an address to coordinates.
func (c *Client) Geocode(ctx context.Context, query string, limit int) ([]geocoding.Result, error) {
	params := c.params()
	params.Set("q", query)
	params.Set("in", CountryFilter)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	return c.get(ctx, c.baseURL+"/v1/geocode?"+params.Encode())
}

// Reverse converts coordinates to an address.
func (c *Client) Reverse(ctx context.Context, p geo.Point) ([]geocoding.Result, error) {
	params := c.params()
	params.Set("at", strconv.FormatFloat(p.Lat, 'f', 6, 64)+","+strconv.FormatFloat(p.Lng, 'f', 6, 64))
	params.Set("limit", "1")

	return c.get(ctx, c.reverseBaseURL+"/v1/revgeocode?"+params.Encode())
}

func (c *Client) params() url.Values {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	if c.language != "" {
		params.Set("lang", c.language)
	}
	return params
}

func (c *Client) get(ctx context.Context, endpoint string) ([]geocoding.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geocoding.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("geocoding provider returned an error")
		return nil, fmt.Errorf("%w: status %d", geocoding.ErrProviderUnavailable, resp.StatusCode)
	}

	var gr geocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]geocoding.Result, 0, len(gr.Items))
	for _, item := range gr.Items {
		label := item.Address.Label
		if label == "" {
			label = item.Title
		}
		results = append(results, geocoding.Result{
			Point: geo.Point{Lat: item.Position.Lat, Lng: item.Position.Lng},
			Label: label,
		})
	}
	return results, nil
}

type geocodeResponse struct {
	Items []geocodeItem `json:"items"`
}

type geocodeItem struct {
	Title      string   `json:"title"`
	ID         string   `json:"id"`
	ResultType string   `json:"resultType"`
	Address    address  `json:"address"`
	Position   position `json:"position"`
}

type address struct {
	Label       string `json:"label"`
	CountryCode string `json:"countryCode"`
	County      string `json:"county"`
	City        string `json:"city"`
	District    string `json:"district"`
	Street      string `json:"street"`
}

type position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
