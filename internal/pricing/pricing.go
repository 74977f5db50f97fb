// Package pricing derives a shipping fee from a resolved route distance.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// Currency is the only currency fees are quoted in.
const Currency = "VND"

// DefaultRatePerKm is the platform-wide rate used when a caller supplies none.
const DefaultRatePerKm = 5000.0

// ErrInvalidRate indicates a rate that is negative or not a finite number.
var ErrInvalidRate = errors.New("invalid rate per km")

// Quote is a fee derived from a distance.
type Quote struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	RatePerKm float64 `json:"ratePerKm"`
}

// Price returns distanceMeters/1000 * ratePerKm. Distances that are negative,
// NaN or infinite price at zero, as do rates that are not usable.
func Price(distanceMeters, ratePerKm float64) float64 {
	if !usable(distanceMeters) || !usable(ratePerKm) {
		return 0
	}
	return distanceMeters / 1000 * ratePerKm
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// ValidateRate reports whether rate can be used for pricing.
func ValidateRate(rate float64) error {
	if !usable(rate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return nil
}

// Engine quotes fees with a configured default rate.
type Engine struct {
	defaultRate float64
}

// NewEngine creates an engine. A zero defaultRate selects DefaultRatePerKm.
func NewEngine(defaultRate float64) (*Engine, error) {
	if defaultRate == 0 {
		defaultRate = DefaultRatePerKm
	}
	if err := ValidateRate(defaultRate); err != nil {
		return nil, err
	}
	return &Engine{defaultRate: defaultRate}, nil
}

// DefaultRate returns the rate applied when a caller supplies none.
func (e *Engine) DefaultRate() float64 {
	return e.defaultRate
}

// Quote prices distanceMeters at rate, or at the default rate when rate is nil.
func (e *Engine) Quote(distanceMeters float64, rate *float64) (Quote, error) {
	r := e.defaultRate
	if rate != nil {
		if err := ValidateRate(*rate); err != nil {
			return Quote{}, err
		}
		r = *rate
	}
	return Quote{
		Amount:    Price(distanceMeters, r),
		Currency:  Currency,
		RatePerKm: r,
	}, nil
}
