// Package quote is the caller-facing entry point: it places two locations,
// resolves a route between them and prices it.
package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuogn/logistics-front-sub000/internal/diagnostics"
	"github.com/cuogn/logistics-front-sub000/internal/geocoding"
	"github.com/cuogn/logistics-front-sub000/internal/pricing"
	"github.com/cuogn/logistics-front-sub000/internal/reference"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

const (
	fieldOrigin      = "origin"
	fieldDestination = "destination"
	fieldRate        = "ratePerKm"
)

// ReferenceStore is the subset of the reference store the service needs.
type ReferenceStore interface {
	ListProvinces(ctx context.Context) []reference.AdministrativeUnit
	ListWards(ctx context.Context, provinceCode string) []reference.AdministrativeUnit
	FindProvince(ctx context.Context, code string) (reference.AdministrativeUnit, bool)
	FindWard(ctx context.Context, provinceCode, wardCode string) (reference.AdministrativeUnit, bool)
	ClearCache()
}

// Geocoder places addresses and labels coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geocoding.Result, error)
	Reverse(ctx context.Context, p geo.Point) (geocoding.Result, error)
	ClearCache()
}

// RouteResolver resolves a route between two points.
type RouteResolver interface {
	Resolve(ctx context.Context, req routing.RouteRequest) (routing.Route, error)
	ClearCache(ctx context.Context) error
}

// Config holds the dependencies of a Service.
type Config struct {
	Reference ReferenceStore
	Geocoder  Geocoder
	Resolver  RouteResolver
	Pricing   *pricing.Engine

	// ReverseGeocode enables address labels for coordinate descriptors.
	ReverseGeocode bool

	Logger      zerolog.Logger
	Diagnostics diagnostics.Reporter
}

// Service resolves delivery quotes.
type Service struct {
	reference      ReferenceStore
	geocoder       Geocoder
	resolver       RouteResolver
	pricing        *pricing.Engine
	reverseGeocode bool
	logger         zerolog.Logger
	diag           diagnostics.Reporter
}

// NewService creates a quote service. Reference, Resolver and Pricing are
// required; a nil Geocoder leaves address descriptors to the centroid fallback.
func NewService(cfg Config) (*Service, error) {
	if cfg.Reference == nil {
		return nil, errors.New("quote: reference store is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("quote: route resolver is required")
	}
	if cfg.Pricing == nil {
		return nil, errors.New("quote: pricing engine is required")
	}

	geocoder := cfg.Geocoder
	if geocoder == nil {
		geocoder = geocoding.NewService(geocoding.ServiceConfig{Logger: cfg.Logger})
	}

	diag := cfg.Diagnostics
	if diag == nil {
		diag = diagnostics.Discard
	}

	return &Service{
		reference:      cfg.Reference,
		geocoder:       geocoder,
		resolver:       cfg.Resolver,
		pricing:        cfg.Pricing,
		reverseGeocode: cfg.ReverseGeocode,
		logger:         cfg.Logger.With().Str("component", "quote").Logger(),
		diag:           diag,
	}, nil
}

// ResolveRoute places both locations, resolves a route and prices it. Only
// caller input errors (ErrInvalidRequest) and unplaceable locations
// (ErrLocationUnresolved) are returned; provider trouble degrades silently.
func (s *Service) ResolveRoute(ctx context.Context, req Request) (Result, error) {
	if err := validateLocation(fieldOrigin, req.Origin); err != nil {
		return Result{}, err
	}
	if err := validateLocation(fieldDestination, req.Destination); err != nil {
		return Result{}, err
	}
	if req.RatePerKm != nil {
		if err := pricing.ValidateRate(*req.RatePerKm); err != nil {
			return Result{}, &ValidationError{Field: fieldRate, Message: "must be a non-negative number"}
		}
	}

	var origin, destination located
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		origin, err = s.locate(gctx, fieldOrigin, *req.Origin)
		return err
	})
	g.Go(func() error {
		var err error
		destination, err = s.locate(gctx, fieldDestination, *req.Destination)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	warnings := make([]string, 0, len(origin.warnings)+len(destination.warnings))
	warnings = append(warnings, origin.warnings...)
	warnings = append(warnings, destination.warnings...)
	warnings = append(warnings, s.checkSuspect(ctx, fieldOrigin, origin.Point)...)
	warnings = append(warnings, s.checkSuspect(ctx, fieldDestination, destination.Point)...)

	route, err := s.resolver.Resolve(ctx, routing.RouteRequest{
		Origin:      origin.Point,
		Destination: destination.Point,
		Mode:        routing.ModeCar,
	})
	if err != nil {
		return Result{}, fmt.Errorf("resolving route: %w", err)
	}
	if route.IsFallback() {
		warnings = append(warnings, "distance is a straight-line estimate")
	}

	q, err := s.pricing.Quote(route.DistanceMeters, req.RatePerKm)
	if err != nil {
		return Result{}, &ValidationError{Field: fieldRate, Message: err.Error()}
	}

	s.logger.Debug().
		Str("source", string(route.Source)).
		Float64("distance_m", route.DistanceMeters).
		Float64("amount", q.Amount).
		Msg("quote resolved")

	result := Result{
		Route:       route,
		Quote:       q,
		Origin:      origin.ResolvedLocation,
		Destination: destination.ResolvedLocation,
	}
	if len(warnings) > 0 {
		result.Warnings = warnings
	}
	return result, nil
}

// ListProvinces returns every province.
func (s *Service) ListProvinces(ctx context.Context) []reference.AdministrativeUnit {
	return s.reference.ListProvinces(ctx)
}

// ListWards returns the wards of a province.
func (s *Service) ListWards(ctx context.Context, provinceCode string) []reference.AdministrativeUnit {
	return s.reference.ListWards(ctx, provinceCode)
}

// ClearCache empties the reference, geocoding and route caches.
func (s *Service) ClearCache(ctx context.Context) error {
	s.reference.ClearCache()
	s.geocoder.ClearCache()
	if err := s.resolver.ClearCache(ctx); err != nil {
		return fmt.Errorf("clearing route cache: %w", err)
	}
	s.logger.Info().Msg("caches cleared")
	return nil
}

func (s *Service) checkSuspect(ctx context.Context, field string, p geo.Point) []string {
	if !p.Suspect() {
		return nil
	}
	s.emit(ctx, diagnostics.KindSuspectCoordinate, field+" lies outside the operating area", nil,
		map[string]any{"field": field, "lat": p.Lat, "lng": p.Lng})
	return []string{field + " lies outside Vietnam"}
}

func (s *Service) emit(ctx context.Context, kind diagnostics.Kind, msg string, err error, fields map[string]any) {
	diagnostics.Emit(ctx, s.diag, diagnostics.Event{
		Kind:    kind,
		Message: msg,
		Err:     err,
		Fields:  fields,
	})
}
