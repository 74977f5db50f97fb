// Package geo provides geographic points and great-circle helpers used for route
// distance, duration and sanity checks.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusMeters is the mean earth radius used by HaversineDistance.
	EarthRadiusMeters = 6371000

	// AverageSpeedKmh is the assumed average speed for road travel estimates.
	AverageSpeedKmh = 40.0
)

// ErrInvalidPoint is returned when a point lies outside the valid lat/lng range.
var ErrInvalidPoint = errors.New("invalid geographic point")

// OperatingArea is the bounding box of the operating country. Points outside it
// are suspect but still usable.
var OperatingArea = BoundingBox{MinLat: 8, MaxLat: 24, MinLng: 102, MaxLng: 110}

// Point is a geographic point in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is an axis-aligned lat/lng box.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// InRange reports whether the point has finite coordinates within [-90,90]x[-180,180].
func (p Point) InRange() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Validate returns ErrInvalidPoint wrapped with the offending values when the
// point is out of range.
func (p Point) Validate() error {
	if !p.InRange() {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidPoint, p.Lat, p.Lng)
	}
	return nil
}

// Suspect reports whether a valid point falls outside the operating area.
func (p Point) Suspect() bool {
	return !OperatingArea.Contains(p)
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// HaversineDistance returns the great-circle distance between a and b in meters.
func HaversineDistance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// EstimateDuration returns the travel time in seconds for distanceMeters at
// AverageSpeedKmh. Non-positive or NaN distances yield 0.
func EstimateDuration(distanceMeters float64) float64 {
	if math.IsNaN(distanceMeters) || distanceMeters <= 0 {
		return 0
	}
	return distanceMeters / (AverageSpeedKmh * 1000 / 3600)
}

// PathLength returns the cumulative haversine length of a point sequence.
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(points); i++ {
		total += HaversineDistance(points[i-1], points[i])
	}
	return total
}
