package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuogn/logistics-front-sub000/internal/diagnostics"
	"github.com/cuogn/logistics-front-sub000/internal/reference"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

const countryName = "Việt Nam"

// located is a resolved location plus the warnings raised while placing it.
type located struct {
	ResolvedLocation
	warnings []string
}

// locate turns a descriptor into a point. Coordinates are used as given;
// addresses go through the geocode chain: full address, province only,
// embedded province centroid.
func (s *Service) locate(ctx context.Context, field string, loc Location) (located, error) {
	if loc.Point != nil {
		res := located{ResolvedLocation: ResolvedLocation{Point: *loc.Point, Method: MethodCoordinates}}
		res.Label = s.reverseLabel(ctx, field, *loc.Point)
		return res, nil
	}

	province, hasProvince := s.lookupProvince(ctx, field, loc.ProvinceCode)
	ward, hasWard := s.lookupWard(ctx, field, loc.ProvinceCode, loc.WardCode, hasProvince)

	var res located
	parts := make([]string, 0, 4)
	if addr := strings.TrimSpace(loc.Address); addr != "" {
		parts = append(parts, addr)
	}
	if hasWard {
		parts = append(parts, ward.NameWithType)
	}
	if hasProvince {
		parts = append(parts, province.NameWithType)
	}

	var lastErr error
	if len(parts) > 0 {
		query := strings.Join(append(parts, countryName), ", ")
		r, err := s.geocoder.Geocode(ctx, query)
		if err == nil {
			res.ResolvedLocation = ResolvedLocation{Point: r.Point, Label: r.Label, Method: MethodGeocoded}
			return res, nil
		}
		lastErr = err
		s.emit(ctx, diagnostics.KindGeocodeFallback, field+" address could not be geocoded", err,
			map[string]any{"field": field, "query": query})
	}

	if !hasProvince {
		return located{}, &UnresolvedError{Field: field, Err: lastErr}
	}

	onlyProvince := len(parts) == 1
	if !onlyProvince {
		query := province.NameWithType + ", " + countryName
		r, err := s.geocoder.Geocode(ctx, query)
		if err == nil {
			res.ResolvedLocation = ResolvedLocation{Point: r.Point, Label: r.Label, Method: MethodProvinceGeocoded}
			res.warnings = append(res.warnings, field+" was placed at province level")
			return res, nil
		}
		lastErr = err
		s.emit(ctx, diagnostics.KindGeocodeFallback, field+" province could not be geocoded", err,
			map[string]any{"field": field, "query": query})
	}

	centroid, ok := provinceCentroid(province)
	if !ok {
		return located{}, &UnresolvedError{Field: field, Err: lastErr}
	}

	s.emit(ctx, diagnostics.KindGeocodeFallback, field+" placed at the province centroid", nil,
		map[string]any{"field": field, "province_code": province.Code})
	res.ResolvedLocation = ResolvedLocation{Point: centroid, Label: province.NameWithType, Method: MethodProvinceCentroid}
	res.warnings = append(res.warnings, field+" was placed at the centre of "+province.NameWithType)
	return res, nil
}

func (s *Service) lookupProvince(ctx context.Context, field, code string) (reference.AdministrativeUnit, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return reference.AdministrativeUnit{}, false
	}
	p, ok := s.reference.FindProvince(ctx, code)
	if !ok {
		s.emit(ctx, diagnostics.KindUnknownAdminCode, "unknown province code, component skipped", nil,
			map[string]any{"field": field, "province_code": code})
	}
	return p, ok
}

func (s *Service) lookupWard(ctx context.Context, field, provinceCode, wardCode string, hasProvince bool) (reference.AdministrativeUnit, bool) {
	wardCode = strings.TrimSpace(wardCode)
	if wardCode == "" {
		return reference.AdministrativeUnit{}, false
	}
	if hasProvince {
		if w, ok := s.reference.FindWard(ctx, strings.TrimSpace(provinceCode), wardCode); ok {
			return w, true
		}
	}
	s.emit(ctx, diagnostics.KindUnknownAdminCode, "unknown ward code, component skipped", nil,
		map[string]any{"field": field, "province_code": provinceCode, "ward_code": wardCode})
	return reference.AdministrativeUnit{}, false
}

func (s *Service) reverseLabel(ctx context.Context, field string, p geo.Point) string {
	if !s.reverseGeocode {
		return ""
	}
	r, err := s.geocoder.Reverse(ctx, p)
	if err != nil {
		s.emit(ctx, diagnostics.KindReverseGeocode, field+" label lookup failed", err,
			map[string]any{"field": field, "lat": p.Lat, "lng": p.Lng})
		return ""
	}
	return r.Label
}

func provinceCentroid(p reference.AdministrativeUnit) (geo.Point, bool) {
	if p.Centroid != nil {
		return *p.Centroid, true
	}
	return reference.ProvinceCentroid(p.Code)
}

// validateLocation checks a descriptor before any lookup happens.
func validateLocation(field string, loc *Location) error {
	if loc == nil || loc.IsZero() {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if loc.Point != nil {
		if err := loc.Point.Validate(); err != nil {
			if errors.Is(err, geo.ErrInvalidPoint) {
				return &ValidationError{
					Field:   field + ".point",
					Message: fmt.Sprintf("coordinates out of range (lat=%v, lng=%v)", loc.Point.Lat, loc.Point.Lng),
				}
			}
			return err
		}
	}
	return nil
}
