// Package worker provides background jobs that keep the reference and route
// caches warm.
package worker

import (
	"sort"
	"time"

	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

// Hub is a city whose corridors to other hubs are pre-resolved.
type Hub struct {
	// Name is the human-readable name of the hub.
	Name string

	// ProvinceCode is the administrative code of the hub's province.
	ProvinceCode string

	// Point is the dispatch location, usually the city centre.
	Point geo.Point

	// Priority determines warm order (lower = higher priority).
	Priority int
}

// Corridor is a directed hub pair.
type Corridor struct {
	From Hub
	To   Hub
}

// RefreshConfig holds configuration for the cache warm jobs.
type RefreshConfig struct {
	// Hubs are the cities whose corridors are warmed.
	// If empty, uses DefaultHubs.
	Hubs []Hub

	// Concurrency is the number of concurrent warm operations.
	// Default: 3
	Concurrency int

	// Timeout bounds each warm operation.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxPriority skips hubs with a larger priority value; zero keeps all.
	MaxPriority int
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Hubs:        DefaultHubs(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultHubs returns the main delivery hubs: the centrally governed cities
// plus the busiest provincial depots.
func DefaultHubs() []Hub {
	return []Hub{
		{Name: "Hà Nội", ProvinceCode: "01", Priority: 1, Point: geo.Point{Lat: 21.0285, Lng: 105.8542}},
		{Name: "Hồ Chí Minh", ProvinceCode: "79", Priority: 1, Point: geo.Point{Lat: 10.7769, Lng: 106.7009}},
		{Name: "Đà Nẵng", ProvinceCode: "48", Priority: 1, Point: geo.Point{Lat: 16.0544, Lng: 108.2022}},
		{Name: "Hải Phòng", ProvinceCode: "31", Priority: 2, Point: geo.Point{Lat: 20.8449, Lng: 106.6881}},
		{Name: "Cần Thơ", ProvinceCode: "92", Priority: 2, Point: geo.Point{Lat: 10.0452, Lng: 105.7469}},
		{Name: "Bắc Ninh", ProvinceCode: "27", Priority: 3, Point: geo.Point{Lat: 21.1861, Lng: 106.0763}},
		{Name: "Đồng Nai", ProvinceCode: "75", Priority: 3, Point: geo.Point{Lat: 10.9574, Lng: 106.8426}},
		{Name: "Khánh Hòa", ProvinceCode: "56", Priority: 3, Point: geo.Point{Lat: 12.2388, Lng: 109.1967}},
	}
}

// ActiveHubs returns the hubs within MaxPriority, highest priority first.
func (c RefreshConfig) ActiveHubs() []Hub {
	hubs := make([]Hub, 0, len(c.Hubs))
	for _, h := range c.Hubs {
		if c.MaxPriority > 0 && h.Priority > c.MaxPriority {
			continue
		}
		hubs = append(hubs, h)
	}
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Priority < hubs[j].Priority })
	return hubs
}

// Corridors returns every directed pair of active hubs. Routes are cached per
// direction, so both directions are listed.
func (c RefreshConfig) Corridors() []Corridor {
	hubs := c.ActiveHubs()
	corridors := make([]Corridor, 0, len(hubs)*(len(hubs)-1))
	for _, from := range hubs {
		for _, to := range hubs {
			if from.Name == to.Name {
				continue
			}
			corridors = append(corridors, Corridor{From: from, To: to})
		}
	}
	return corridors
}

// TotalCorridors returns the number of corridors a warm run resolves.
func (c RefreshConfig) TotalCorridors() int {
	n := len(c.ActiveHubs())
	if n < 2 {
		return 0
	}
	return n * (n - 1)
}
