// Package refdata loads and validates the immutable reference data the
// calculators run on: routes, aircraft efficiency ratings, emission
// factors, the tier catalog and cup-return stations.
package refdata

import (
	"fmt"
	"strings"
)

// AircraftRating is the calibration class of the aircraft flying a route.
type AircraftRating string

const (
	RatingA AircraftRating = "A"
	RatingB AircraftRating = "B"
	RatingC AircraftRating = "C"
)

// Efficiency factors per rating. They are calibration constants of the
// fuel model, independent of cabin class.
const (
	EfficiencyFactorA = 0.85
	EfficiencyFactorB = 1.0
	EfficiencyFactorC = 1.15
)

// EfficiencyFactor returns the fuel-burn multiplier for the rating.
func (r AircraftRating) EfficiencyFactor() (float64, bool) {
	switch r {
	case RatingA:
		return EfficiencyFactorA, true
	case RatingB:
		return EfficiencyFactorB, true
	case RatingC:
		return EfficiencyFactorC, true
	default:
		return 0, false
	}
}

// Route is a flight leg between two airports.
type Route struct {
	ID          string         `yaml:"id" json:"id"`
	Origin      string         `yaml:"origin" json:"origin"`
	Destination string         `yaml:"destination" json:"destination"`
	DistanceKm  float64        `yaml:"distance_km" json:"distance_km"`
	Rating      AircraftRating `yaml:"rating" json:"rating"`
}

// RouteID builds the canonical id for an origin/destination pair.
func RouteID(origin, destination string) string {
	return strings.ToUpper(origin) + "-" + strings.ToUpper(destination)
}

// EmissionFactors are the physical constants of the fuel model.
type EmissionFactors struct {
	// FuelPerKmPerPassenger is litres of jet fuel per passenger-kilometre.
	FuelPerKmPerPassenger float64 `yaml:"fuel_per_km_per_passenger" json:"fuel_per_km_per_passenger"`
	// CO2PerLiter is kg CO2 released per litre of jet fuel burned.
	CO2PerLiter float64 `yaml:"co2_per_liter" json:"co2_per_liter"`
	// UncertaintyPercent is the ±uncertainty of the fuel/CO2 factors.
	UncertaintyPercent float64 `yaml:"uncertainty_percent" json:"uncertainty_percent"`
	Source             string  `yaml:"source" json:"source"`
	Citation           string  `yaml:"citation" json:"citation"`
}

// Tier is one rung of the eco-points ladder. Ranges are half-open
// [MinPoints, MaxPoints); the top tier has no MaxPoints.
type Tier struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	Level            int      `yaml:"level" json:"level"`
	MinPoints        int64    `yaml:"min_points" json:"min_points"`
	MaxPoints        *int64   `yaml:"max_points" json:"max_points"`
	PointsMultiplier float64  `yaml:"points_multiplier" json:"points_multiplier"`
	Perks            []string `yaml:"perks" json:"perks"`
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	return fmt.Sprintf("%s (level %d)", t.Name, t.Level)
}

// CupStation is a reusable-cup return point used by the circularity nudge.
type CupStation struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// Dataset is the full reference snapshot.
type Dataset struct {
	Version         string          `yaml:"version"`
	EmissionFactors EmissionFactors `yaml:"emission_factors"`
	Routes          []Route         `yaml:"routes"`
	Tiers           []Tier          `yaml:"tiers"`
	CupStations     []CupStation    `yaml:"cup_stations"`
}
