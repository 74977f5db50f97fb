package reference

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/cuogn/logistics-front-sub000/internal/cache"
	"github.com/cuogn/logistics-front-sub000/internal/diagnostics"
	"github.com/cuogn/logistics-front-sub000/internal/telemetry"
)

const (
	provincesKey   = "provinces"
	wardsKeyPrefix = "wards:"
	metricsName    = "reference"

	// DefaultLoadTimeout bounds a single bulk dataset fetch.
	DefaultLoadTimeout = 30 * time.Second
)

// StoreConfig holds configuration for the reference store.
type StoreConfig struct {
	Source      Source
	CacheTTL    time.Duration // How long derived lookups stay cached. Default: 5 minutes
	LoadTimeout time.Duration // Bound on one bulk dataset fetch. Default: 30 seconds
	Clock       cache.Clock
	Logger      zerolog.Logger
	Diagnostics diagnostics.Reporter
	Metrics     *telemetry.ProviderMetrics
}

// Store owns the province and ward tables. The bulk datasets are fetched at
// most once until ClearCache; derived sequences are cached per key. Load
// failures never surface: the embedded fallback is served instead.
type Store struct {
	source  Source
	logger  zerolog.Logger
	diag    diagnostics.Reporter
	metrics *telemetry.ProviderMetrics

	lookups     *cache.TTL[[]AdministrativeUnit]
	loads       singleflight.Group
	loadTimeout time.Duration

	mu        sync.RWMutex
	provinces []AdministrativeUnit
	wards     map[string][]AdministrativeUnit
}

// NewStore creates a reference store.
func NewStore(cfg StoreConfig) *Store {
	var opts []cache.Option
	if cfg.Clock != nil {
		opts = append(opts, cache.WithClock(cfg.Clock))
	}

	diag := cfg.Diagnostics
	if diag == nil {
		diag = diagnostics.Discard
	}

	source := cfg.Source
	if source == nil {
		source = NewEmbeddedSource()
	}

	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}

	return &Store{
		source:  source,
		logger:  cfg.Logger.With().Str("component", "reference").Str("source", source.Name()).Logger(),
		diag:    diag,
		metrics: cfg.Metrics,
		lookups: cache.NewTTL[[]AdministrativeUnit](cfg.CacheTTL, opts...),

		loadTimeout: loadTimeout,
	}
}

// ListProvinces returns every province, sorted by code. Within the cache TTL
// the same slice is returned on every call; callers must not modify it.
func (s *Store) ListProvinces(ctx context.Context) []AdministrativeUnit {
	if cached, ok := s.lookups.Get(provincesKey); ok {
		s.metrics.RecordCacheHit(metricsName, "provinces")
		return cached
	}
	s.metrics.RecordCacheMiss(metricsName, "provinces")

	provinces, err := s.provinceTable(ctx)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; the dataset itself has not failed.
		return FallbackProvinces()
	}
	if err != nil {
		provinces = FallbackProvinces()
		s.metrics.RecordFallback(metricsName, "provinces", "embedded")
		diagnostics.Emit(ctx, s.diag, diagnostics.Event{
			Kind:    diagnostics.KindReferenceFallback,
			Message: "provinces dataset unavailable, serving embedded list",
			Fields:  map[string]any{"dataset": "provinces", "source": s.source.Name()},
			Err:     err,
		})
	}

	s.lookups.Set(provincesKey, provinces)
	return provinces
}

// ListWards returns the wards of a province. An empty or unknown province
// code, or an unavailable wards dataset, yields five generic wards.
func (s *Store) ListWards(ctx context.Context, provinceCode string) []AdministrativeUnit {
	code := strings.TrimSpace(provinceCode)
	key := wardsKeyPrefix + code

	if cached, ok := s.lookups.Get(key); ok {
		s.metrics.RecordCacheHit(metricsName, "wards")
		return cached
	}
	s.metrics.RecordCacheMiss(metricsName, "wards")

	if code == "" {
		diagnostics.Emit(ctx, s.diag, diagnostics.Event{
			Kind:    diagnostics.KindUnknownAdminCode,
			Message: "empty province code, serving generic wards",
			Fields:  map[string]any{"province_code": provinceCode},
		})
		wards := FallbackWards(code)
		s.lookups.Set(key, wards)
		return wards
	}

	index, err := s.wardIndex(ctx)
	if err != nil && ctx.Err() != nil {
		return FallbackWards(code)
	}
	if err != nil {
		wards := FallbackWards(code)
		s.metrics.RecordFallback(metricsName, "wards", "embedded")
		diagnostics.Emit(ctx, s.diag, diagnostics.Event{
			Kind:    diagnostics.KindReferenceFallback,
			Message: "wards dataset unavailable, serving generic wards",
			Fields:  map[string]any{"dataset": "wards", "province_code": code, "source": s.source.Name()},
			Err:     err,
		})
		s.lookups.Set(key, wards)
		return wards
	}

	wards, ok := index[code]
	if !ok || len(wards) == 0 {
		wards = FallbackWards(code)
		diagnostics.Emit(ctx, s.diag, diagnostics.Event{
			Kind:    diagnostics.KindUnknownAdminCode,
			Message: "no wards for province code, serving generic wards",
			Fields:  map[string]any{"province_code": code},
		})
	}

	s.lookups.Set(key, wards)
	return wards
}

// FindProvince looks up a province by code.
func (s *Store) FindProvince(ctx context.Context, code string) (AdministrativeUnit, bool) {
	code = strings.TrimSpace(code)
	for _, p := range s.ListProvinces(ctx) {
		if p.Code == code {
			return p, true
		}
	}
	return AdministrativeUnit{}, false
}

// FindWard looks up a ward by code within a province.
func (s *Store) FindWard(ctx context.Context, provinceCode, wardCode string) (AdministrativeUnit, bool) {
	wardCode = strings.TrimSpace(wardCode)
	for _, w := range s.ListWards(ctx, provinceCode) {
		if w.Code == wardCode {
			return w, true
		}
	}
	return AdministrativeUnit{}, false
}

// SearchProvinces returns provinces whose name matches query, ignoring case,
// diacritics and the administrative prefix.
func (s *Store) SearchProvinces(ctx context.Context, query string) []AdministrativeUnit {
	var matches []AdministrativeUnit
	for _, p := range s.ListProvinces(ctx) {
		if matchesName(query, p) {
			matches = append(matches, p)
		}
	}
	return matches
}

// ClearCache drops the cached lookups and the loaded datasets so the next
// call fetches from the source again.
func (s *Store) ClearCache() {
	s.lookups.Clear()

	s.mu.Lock()
	s.provinces = nil
	s.wards = nil
	s.mu.Unlock()

	s.loads.Forget(provincesKey)
	s.loads.Forget("wards")

	s.logger.Info().Msg("reference cache cleared")
}

// Stats reports cache and dataset state for ops endpoints.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreStats{
		Source:          s.source.Name(),
		ProvincesLoaded: len(s.provinces),
		WardProvinces:   len(s.wards),
		Lookups:         s.lookups.Stats(),
	}
}

// StoreStats describes the state of a Store.
type StoreStats struct {
	Source          string      `json:"source"`
	ProvincesLoaded int         `json:"provincesLoaded"`
	WardProvinces   int         `json:"wardProvinces"`
	Lookups         cache.Stats `json:"lookups"`
}

// load runs fn once for concurrent callers of the same key. The fetch is
// detached from the caller's cancellation and bounded by loadTimeout, so one
// caller hanging up neither fails the others nor poisons the cache.
func (s *Store) load(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.loads.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		return fn(loadCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// provinceTable returns the loaded provinces, fetching them once.
func (s *Store) provinceTable(ctx context.Context) ([]AdministrativeUnit, error) {
	s.mu.RLock()
	loaded := s.provinces
	s.mu.RUnlock()
	if loaded != nil {
		return loaded, nil
	}

	v, err := s.load(ctx, provincesKey, func(ctx context.Context) (any, error) {
		s.mu.RLock()
		loaded := s.provinces
		s.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		start := time.Now()
		provinces, err := s.source.LoadProvinces(ctx)
		if err == nil && len(provinces) == 0 {
			err = ErrEmptyDataset
		}
		if err != nil {
			return nil, err
		}
		sortByCode(provinces)

		s.mu.Lock()
		s.provinces = provinces
		s.mu.Unlock()

		s.logger.Info().
			Int("count", len(provinces)).
			Dur("duration", time.Since(start)).
			Msg("provinces dataset loaded")
		return provinces, nil
	})
	if err != nil {
		return nil, err
	}

	provinces, ok := v.([]AdministrativeUnit)
	if !ok {
		return nil, errors.New("unexpected provinces load result")
	}
	return provinces, nil
}

// wardIndex returns the loaded wards grouped by province, fetching them once.
func (s *Store) wardIndex(ctx context.Context) (map[string][]AdministrativeUnit, error) {
	s.mu.RLock()
	loaded := s.wards
	s.mu.RUnlock()
	if loaded != nil {
		return loaded, nil
	}

	v, err := s.load(ctx, "wards", func(ctx context.Context) (any, error) {
		s.mu.RLock()
		loaded := s.wards
		s.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		start := time.Now()
		wards, err := s.source.LoadWards(ctx)
		if err == nil && len(wards) == 0 {
			err = ErrEmptyDataset
		}
		if err != nil {
			return nil, err
		}

		index := indexByParent(wards)
		for code := range index {
			sortByCode(index[code])
		}

		s.mu.Lock()
		s.wards = index
		s.mu.Unlock()

		s.logger.Info().
			Int("count", len(wards)).
			Int("provinces", len(index)).
			Dur("duration", time.Since(start)).
			Msg("wards dataset loaded")
		return index, nil
	})
	if err != nil {
		return nil, err
	}

	index, ok := v.(map[string][]AdministrativeUnit)
	if !ok {
		return nil, errors.New("unexpected wards load result")
	}
	return index, nil
}
