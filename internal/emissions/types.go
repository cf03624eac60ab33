// Package emissions computes the greenhouse-gas impact of a flight from
// route reference data, including radiative forcing and an uncertainty
// band, and records every factor it used.
package emissions

import (
	"fmt"
	"strings"

	"github.com/rshade/ecojourney/internal/greenops"
)

// CabinClass is the travel class of the booking. It does not change fuel
// burn in this model; downstream cost and points logic may use it.
type CabinClass string

const (
	CabinEconomy  CabinClass = "economy"
	CabinBusiness CabinClass = "business"
	CabinFirst    CabinClass = "first"
)

// ParseCabinClass normalises s. An empty string means economy.
func ParseCabinClass(s string) (CabinClass, error) {
	switch c := CabinClass(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CabinEconomy, nil
	case CabinEconomy, CabinBusiness, CabinFirst:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown cabin class %q", greenops.ErrInvalidInput, s)
	}
}

// Request asks for the emissions of one booking.
type Request struct {
	RouteID    string     `json:"route_id"`
	Passengers int        `json:"passengers"`
	CabinClass CabinClass `json:"cabin_class"`
}

// NewRequest returns a single-passenger economy request for routeID.
func NewRequest(routeID string) Request {
	return Request{RouteID: routeID, Passengers: 1, CabinClass: CabinEconomy}
}

// PerPassenger holds the totals divided by the passenger count.
type PerPassenger struct {
	FuelLiters float64 `json:"fuel_liters"`
	CO2Kg      float64 `json:"co2_kg"`
	CO2eKg     float64 `json:"co2e_kg"`
}

// Uncertainty is a symmetric band around EmissionsCO2eKg.
type Uncertainty struct {
	Percent float64 `json:"percent"`
	MinKg   float64 `json:"min_kg"`
	MaxKg   float64 `json:"max_kg"`
}

// MethodologyFactor is one entry of the calculation trace. The trace is
// part of the result: UI and compliance reports render it verbatim.
type MethodologyFactor struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Source   string  `json:"source"`
	Citation string  `json:"citation,omitempty"`
}

// FlightEmissionResult is the immutable output of a calculation.
type FlightEmissionResult struct {
	RouteID         string              `json:"route_id"`
	Origin          string              `json:"origin"`
	Destination     string              `json:"destination"`
	DistanceKm      float64             `json:"distance_km"`
	Passengers      int                 `json:"passengers"`
	CabinClass      CabinClass          `json:"cabin_class"`
	FuelLiters      float64             `json:"fuel_liters"`
	EmissionsCO2Kg  float64             `json:"emissions_co2_kg"`
	EmissionsCO2eKg float64             `json:"emissions_co2e_kg"`
	PerPassenger    PerPassenger        `json:"per_passenger"`
	Uncertainty     Uncertainty         `json:"uncertainty"`
	Methodology     []MethodologyFactor `json:"methodology"`
}
