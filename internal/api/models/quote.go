package models

// Location is one end of a delivery in a quote request.
type Location struct {
	Point        *Point `json:"point,omitempty"`
	Address      string `json:"address,omitempty" validate:"max=500"`
	WardCode     string `json:"wardCode,omitempty" validate:"omitempty,max=16,printascii"`
	ProvinceCode string `json:"provinceCode,omitempty" validate:"omitempty,max=8,numeric"`
}

// QuoteComputeRequest is the body of POST /v1/quotes:compute.
type QuoteComputeRequest struct {
	Origin      *Location `json:"origin" validate:"required"`
	Destination *Location `json:"destination" validate:"required"`
	RatePerKm   *float64  `json:"ratePerKm,omitempty" validate:"omitempty,gte=0"`
}

// QuotePoint is a coordinate in a response.
type QuotePoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ResolvedLocation describes where a request location was placed.
type ResolvedLocation struct {
	Point  QuotePoint `json:"point"`
	Label  string     `json:"label,omitempty"`
	Method string     `json:"method"`
}

// Route is the resolved route of a quote.
type Route struct {
	DistanceMeters  float64      `json:"distanceMeters"`
	DurationSeconds float64      `json:"durationSeconds"`
	Source          string       `json:"source"`
	Provider        string       `json:"provider,omitempty"`
	Polyline        string       `json:"polyline"`
	Geometry        []QuotePoint `json:"geometry,omitempty"`
}

// Price is the fee of a quote.
type Price struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	RatePerKm float64 `json:"ratePerKm"`
}

// QuoteComputeResponse is the response of POST /v1/quotes:compute.
type QuoteComputeResponse struct {
	GeneratedAt Timestamp        `json:"generatedAt"`
	Origin      ResolvedLocation `json:"origin"`
	Destination ResolvedLocation `json:"destination"`
	Route       Route            `json:"route"`
	Price       Price            `json:"price"`
	Warnings    []string         `json:"warnings,omitempty"`
}
