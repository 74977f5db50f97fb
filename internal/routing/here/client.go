// Package here provides a routing provider backed by the HERE Routing API v8.
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

	"github.com/cuogn/logistics-front-sub000/internal/provider/resilience"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "here-routing"

	// DefaultBaseURL is the HERE routing API base URL.
	DefaultBaseURL = "https://router.hereapi.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 8 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the HERE routing client.
type ClientConfig struct {
	// APIKey is the HERE API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the HERE API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a HERE routing API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new HERE routing client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		// The resolver has its own retry tier; keep provider retries short.
		clientCfg.MaxRetries = 1
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Route requests routes between two points.
func (c *Client) Route(ctx context.Context, req routing.ProviderRequest) (*routing.ProviderResponse, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}

	endpoint := c.baseURL + "/v8/routes?" + c.query(req).Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("objective", string(req.Objective)).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lng", req.Origin.Lng).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lng", req.Destination.Lng).
		Msg("requesting route from HERE")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var hr routingResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := toProviderResponse(&hr)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received routes from HERE")

	return result, nil
}

// query builds the v8 query string for req.
func (c *Client) query(req routing.ProviderRequest) url.Values {
	mode := req.Mode
	if mode == "" {
		mode = routing.ModeCar
	}
	objective := req.Objective
	if objective == "" {
		objective = routing.ObjectiveFastest
	}

	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("transportMode", string(mode))
	params.Set("origin", formatPoint(req.Origin))
	params.Set("destination", formatPoint(req.Destination))
	params.Set("routingMode", string(objective))
	params.Set("return", "polyline,summary")
	if req.Alternatives > 0 || req.Explicit {
		params.Set("alternatives", strconv.Itoa(req.Alternatives))
	}
	if req.Units != "" {
		params.Set("units", req.Units)
	}
	return params
}

// handleErrorResponse maps HERE error responses to domain errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var herr errorResponse
	_ = json.Unmarshal(body, &herr) //nolint:errcheck // fall back to a generic message
	msg := herr.message()
	if msg == "" {
		msg = fmt.Sprintf("routing provider returned status %d", statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	case statusCode == http.StatusNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  msg,
			Err:      routing.ErrNoRouteFound,
		}
	case statusCode == http.StatusBadRequest:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  msg,
			Err:      routing.ErrInvalidCoordinates,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  msg,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toProviderResponse converts a HERE response to the domain model.
func toProviderResponse(resp *routingResponse) *routing.ProviderResponse {
	routes := make([]routing.ProviderRoute, 0, len(resp.Routes))
	for i := range resp.Routes {
		hr := &resp.Routes[i]
		sections := make([]routing.Section, 0, len(hr.Sections))
		for j := range hr.Sections {
			hs := &hr.Sections[j]
			s := routing.Section{Polyline: hs.Polyline}
			if hs.Summary != nil {
				s.Summary = &routing.Summary{
					LengthMeters:    hs.Summary.Length,
					DurationSeconds: hs.Summary.Duration,
				}
			}
			sections = append(sections, s)
		}
		routes = append(routes, routing.ProviderRoute{Sections: sections})
	}

	return &routing.ProviderResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}

func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
