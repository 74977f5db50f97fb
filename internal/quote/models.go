package quote

import (
	"errors"
	"strings"

	"github.com/cuogn/logistics-front-sub000/internal/pricing"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

var (
	// ErrInvalidRequest indicates a caller input error. Every ValidationError
	// matches it with errors.Is.
	ErrInvalidRequest = errors.New("invalid quote request")

	// ErrLocationUnresolved indicates no geocoding fallback produced a point.
	ErrLocationUnresolved = errors.New("location could not be resolved")
)

// ValidationError describes a single invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// UnresolvedError names the location that could not be placed.
type UnresolvedError struct {
	Field string
	Err   error
}

func (e *UnresolvedError) Error() string {
	if e.Err != nil {
		return e.Field + ": " + ErrLocationUnresolved.Error() + ": " + e.Err.Error()
	}
	return e.Field + ": " + ErrLocationUnresolved.Error()
}

func (e *UnresolvedError) Is(target error) bool {
	return target == ErrLocationUnresolved
}

func (e *UnresolvedError) Unwrap() error {
	return e.Err
}

// Location describes one end of a delivery: either raw coordinates or an
// administrative address. Point takes precedence when both are set.
type Location struct {
	Point        *geo.Point `json:"point,omitempty"`
	Address      string     `json:"address,omitempty"`
	WardCode     string     `json:"wardCode,omitempty"`
	ProvinceCode string     `json:"provinceCode,omitempty"`
}

// IsZero reports whether the location carries nothing to resolve.
func (l Location) IsZero() bool {
	return l.Point == nil &&
		strings.TrimSpace(l.Address) == "" &&
		strings.TrimSpace(l.WardCode) == "" &&
		strings.TrimSpace(l.ProvinceCode) == ""
}

// Request asks for a route and fee between two locations.
type Request struct {
	Origin      *Location
	Destination *Location
	// RatePerKm overrides the platform default rate when set.
	RatePerKm *float64
}

// Method records how a location was turned into a point.
type Method string

const (
	MethodCoordinates      Method = "coordinates"
	MethodGeocoded         Method = "geocoded"
	MethodProvinceGeocoded Method = "province_geocoded"
	MethodProvinceCentroid Method = "province_centroid"
)

// ResolvedLocation is a location placed on the map.
type ResolvedLocation struct {
	Point  geo.Point `json:"point"`
	Label  string    `json:"label,omitempty"`
	Method Method    `json:"method"`
}

// Result is the outcome of ResolveRoute.
type Result struct {
	Route       routing.Route    `json:"route"`
	Quote       pricing.Quote    `json:"quote"`
	Origin      ResolvedLocation `json:"origin"`
	Destination ResolvedLocation `json:"destination"`
	Warnings    []string         `json:"warnings,omitempty"`
}
