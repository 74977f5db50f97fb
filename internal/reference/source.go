package reference

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/provider/resilience"
	"github.com/cuogn/logistics-front-sub000/internal/telemetry"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

const (
	// HTTPSourceName identifies the HTTP dataset source.
	HTTPSourceName = "reference-http"

	maxDatasetBytes = 64 << 20
)

// HTTPDoer abstracts HTTP request execution for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSourceConfig holds configuration for HTTPSource.
type HTTPSourceConfig struct {
	ProvincesURL string
	WardsURL     string
	HTTPClient   HTTPDoer
	Timeout      time.Duration
	Registry     *resilience.Registry
	Metrics      *telemetry.ProviderMetrics
	Logger       zerolog.Logger
}

// HTTPSource fetches the bulk datasets as JSON documents.
type HTTPSource struct {
	provincesURL string
	wardsURL     string
	httpClient   HTTPDoer
	metrics      *telemetry.ProviderMetrics
	logger       zerolog.Logger
}

// NewHTTPSource creates an HTTP dataset source. Without an explicit client it
// uses a resilient client with circuit breaker and retries.
func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(HTTPSourceName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &HTTPSource{
		provincesURL: cfg.ProvincesURL,
		wardsURL:     cfg.WardsURL,
		httpClient:   httpClient,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Name implements Source.
func (s *HTTPSource) Name() string { return HTTPSourceName }

// LoadProvinces implements Source.
func (s *HTTPSource) LoadProvinces(ctx context.Context) ([]AdministrativeUnit, error) {
	return s.fetch(ctx, "provinces", s.provincesURL)
}

// LoadWards implements Source.
func (s *HTTPSource) LoadWards(ctx context.Context) ([]AdministrativeUnit, error) {
	return s.fetch(ctx, "wards", s.wardsURL)
}

func (s *HTTPSource) fetch(ctx context.Context, dataset, url string) (units []AdministrativeUnit, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRequest(HTTPSourceName, dataset, time.Since(start), err)
	}()

	if url == "" {
		return nil, fmt.Errorf("%w: no URL configured for %s", ErrSourceUnavailable, dataset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	s.logger.Debug().Str("dataset", dataset).Str("url", url).Msg("fetching reference dataset")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, dataset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrSourceUnavailable, dataset, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", dataset, err)
	}

	return ParseUnits(body)
}

// FileSource reads the bulk datasets from local JSON files.
type FileSource struct {
	ProvincesPath string
	WardsPath     string
}

// Name implements Source.
func (s *FileSource) Name() string { return "reference-file" }

// LoadProvinces implements Source.
func (s *FileSource) LoadProvinces(_ context.Context) ([]AdministrativeUnit, error) {
	return readUnits(s.ProvincesPath)
}

// LoadWards implements Source.
func (s *FileSource) LoadWards(_ context.Context) ([]AdministrativeUnit, error) {
	return readUnits(s.WardsPath)
}

func readUnits(path string) ([]AdministrativeUnit, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrSourceUnavailable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return ParseUnits(data)
}

// StaticSource serves fixed in-memory datasets. An empty slice is reported as
// ErrEmptyDataset, the same way a remote source reports an empty payload.
type StaticSource struct {
	Provinces []AdministrativeUnit
	Wards     []AdministrativeUnit
}

// NewEmbeddedSource returns a source that only knows the embedded provinces.
func NewEmbeddedSource() *StaticSource {
	return &StaticSource{Provinces: FallbackProvinces()}
}

// Name implements Source.
func (s *StaticSource) Name() string { return "reference-static" }

// LoadProvinces implements Source.
func (s *StaticSource) LoadProvinces(_ context.Context) ([]AdministrativeUnit, error) {
	if len(s.Provinces) == 0 {
		return nil, ErrEmptyDataset
	}
	out := make([]AdministrativeUnit, len(s.Provinces))
	copy(out, s.Provinces)
	return out, nil
}

// LoadWards implements Source.
func (s *StaticSource) LoadWards(_ context.Context) ([]AdministrativeUnit, error) {
	if len(s.Wards) == 0 {
		return nil, ErrEmptyDataset
	}
	out := make([]AdministrativeUnit, len(s.Wards))
	copy(out, s.Wards)
	return out, nil
}

// PostgresSource reads the datasets from the administrative_units table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgreSQL dataset source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Name implements Source.
func (s *PostgresSource) Name() string { return "reference-postgres" }

// LoadProvinces implements Source.
func (s *PostgresSource) LoadProvinces(ctx context.Context) ([]AdministrativeUnit, error) {
	query := `
		SELECT code, name, name_with_type, type, slug, '' AS parent_code, '' AS path,
		       centroid_lat, centroid_lng
		FROM administrative_units
		WHERE parent_code IS NULL
		ORDER BY code
	`
	return s.query(ctx, query)
}

// LoadWards implements Source.
func (s *PostgresSource) LoadWards(ctx context.Context) ([]AdministrativeUnit, error) {
	query := `
		SELECT code, name, name_with_type, type, slug, parent_code, COALESCE(path_with_type, ''),
		       centroid_lat, centroid_lng
		FROM administrative_units
		WHERE parent_code IS NOT NULL
		ORDER BY code
	`
	return s.query(ctx, query)
}

func (s *PostgresSource) query(ctx context.Context, query string) ([]AdministrativeUnit, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var units []AdministrativeUnit
	for rows.Next() {
		var (
			u        AdministrativeUnit
			lat, lng *float64
		)
		err := rows.Scan(
			&u.Code,
			&u.Name,
			&u.NameWithType,
			&u.Type,
			&u.Slug,
			&u.ParentCode,
			&u.Path,
			&lat,
			&lng,
		)
		if err != nil {
			return nil, err
		}
		u.ID = u.Code
		if lat != nil && lng != nil {
			u.Centroid = &geo.Point{Lat: *lat, Lng: *lng}
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(units) == 0 {
		return nil, ErrEmptyDataset
	}
	return units, nil
}
