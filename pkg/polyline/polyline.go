// Package polyline provides encoding and decoding utilities for Google's polyline algorithm.
// The polyline algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

// precision is the scale factor of the standard 5-decimal format.
const precision = 1e5

// Stats describes anomalies seen while decoding.
type Stats struct {
	// Dropped counts decoded points outside the valid lat/lng range.
	Dropped int
	// Truncated is set when the input ended in the middle of a value.
	Truncated bool
}

// Decode decodes a polyline-encoded string into a slice of points.
// Points outside [-90,90]x[-180,180] are dropped.
func Decode(encoded string) []geo.Point {
	points, _ := DecodeWithStats(encoded)
	return points
}

// DecodeWithStats decodes like Decode and also reports what was discarded.
// Out-of-range points still contribute their deltas, so later points keep
// their correct absolute position. Decoding stops at the first incomplete value.
func DecodeWithStats(encoded string) ([]geo.Point, Stats) {
	var stats Stats
	if encoded == "" {
		return nil, stats
	}

	var points []geo.Point
	index := 0
	lat := 0
	lng := 0

	for index < len(encoded) {
		latDelta, newIndex, ok := decodeValue(encoded, index)
		if !ok {
			stats.Truncated = true
			break
		}
		index = newIndex

		lngDelta, newIndex, ok := decodeValue(encoded, index)
		if !ok {
			stats.Truncated = true
			break
		}
		index = newIndex

		lat += latDelta
		lng += lngDelta

		p := geo.Point{Lat: float64(lat) / precision, Lng: float64(lng) / precision}
		if !p.InRange() {
			stats.Dropped++
			continue
		}
		points = append(points, p)
	}

	return points, stats
}

// DecodeBetween decodes a route geometry and guarantees at least two points:
// when fewer than two valid points remain, origin is prepended and destination
// appended.
func DecodeBetween(encoded string, origin, destination geo.Point) ([]geo.Point, Stats) {
	points, stats := DecodeWithStats(encoded)
	if len(points) >= 2 {
		return points, stats
	}

	padded := make([]geo.Point, 0, len(points)+2)
	padded = append(padded, origin)
	padded = append(padded, points...)
	padded = append(padded, destination)
	return padded, stats
}

// decodeValue decodes a single value from the polyline at the given index.
// Returns the decoded delta, the new index and false if the value is incomplete.
func decodeValue(encoded string, index int) (int, int, bool) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		if b < 0 {
			return 0, index, false
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			// Apply two's complement for negative values
			if result&1 != 0 {
				return ^(result >> 1), index, true
			}
			return result >> 1, index, true
		}
		if shift > 60 {
			return 0, index, false
		}
	}

	return 0, index, false
}

// Encode encodes a slice of points into a polyline-encoded string.
func Encode(points []geo.Point) string {
	if len(points) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(points)*4)
	prevLat := 0
	prevLng := 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * precision))
		lng := int(math.Round(p.Lng * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lng-prevLng)

		prevLat = lat
		prevLng = lng
	}

	return string(encoded)
}

// encodeValue encodes a single integer value using the polyline algorithm.
func encodeValue(buf []byte, value int) []byte {
	// Invert if negative
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	// Encode in 5-bit chunks
	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}

// Length calculates the total length of a polyline in meters.
func Length(points []geo.Point) float64 {
	return geo.PathLength(points)
}
