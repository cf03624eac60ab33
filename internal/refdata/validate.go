package refdata

import (
	"fmt"
	"math"

	"github.com/rshade/ecojourney/internal/greenops"
)

// ValidateTiers checks that tiers form an ordered partition of the
// non-negative integers: levels 1..N strictly increasing, the first tier
// starting at zero, every tier's MaxPoints equal to the next tier's
// MinPoints, and multipliers of at least one. Violations wrap
// greenops.ErrInvariantViolation.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: tier catalog is empty", greenops.ErrInvariantViolation)
	}

	ids := make(map[string]struct{}, len(tiers))
	for i, t := range tiers {
		if t.ID == "" {
			return fmt.Errorf("%w: tier at position %d has no id", greenops.ErrInvariantViolation, i)
		}
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("%w: duplicate tier id %q", greenops.ErrInvariantViolation, t.ID)
		}
		ids[t.ID] = struct{}{}

		if t.Level != i+1 {
			return fmt.Errorf("%w: tier %q has level %d, want %d",
				greenops.ErrInvariantViolation, t.ID, t.Level, i+1)
		}
		if t.PointsMultiplier < 1 || math.IsNaN(t.PointsMultiplier) {
			return fmt.Errorf("%w: tier %q multiplier %v is below 1",
				greenops.ErrInvariantViolation, t.ID, t.PointsMultiplier)
		}
		if i == 0 && t.MinPoints != 0 {
			return fmt.Errorf("%w: first tier %q starts at %d, want 0",
				greenops.ErrInvariantViolation, t.ID, t.MinPoints)
		}

		last := i == len(tiers)-1
		if last {
			continue
		}
		next := tiers[i+1]
		if t.MaxPoints == nil {
			return fmt.Errorf("%w: tier %q has no max_points but is not the top tier",
				greenops.ErrInvariantViolation, t.ID)
		}
		if *t.MaxPoints <= t.MinPoints {
			return fmt.Errorf("%w: tier %q range [%d, %d) is empty",
				greenops.ErrInvariantViolation, t.ID, t.MinPoints, *t.MaxPoints)
		}
		if *t.MaxPoints != next.MinPoints {
			kind := "gap"
			if *t.MaxPoints > next.MinPoints {
				kind = "overlap"
			}
			return fmt.Errorf("%w: %s between tier %q (max %d) and tier %q (min %d)",
				greenops.ErrInvariantViolation, kind, t.ID, *t.MaxPoints, next.ID, next.MinPoints)
		}
	}
	return nil
}

// ValidateRoutes checks ids are unique and every route has a positive
// distance and a known aircraft rating.
func ValidateRoutes(routes []Route) error {
	seen := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		if r.ID == "" {
			return fmt.Errorf("%w: route %s→%s has no id", greenops.ErrInvariantViolation, r.Origin, r.Destination)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate route id %q", greenops.ErrInvariantViolation, r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.DistanceKm <= 0 || math.IsNaN(r.DistanceKm) || math.IsInf(r.DistanceKm, 0) {
			return fmt.Errorf("%w: route %q distance %v must be positive",
				greenops.ErrInvariantViolation, r.ID, r.DistanceKm)
		}
		if _, ok := r.Rating.EfficiencyFactor(); !ok {
			return fmt.Errorf("%w: route %q has unknown aircraft rating %q",
				greenops.ErrInvariantViolation, r.ID, r.Rating)
		}
	}
	return nil
}

// ValidateEmissionFactors checks the fuel model constants are usable.
func ValidateEmissionFactors(f EmissionFactors) error {
	if f.FuelPerKmPerPassenger <= 0 {
		return fmt.Errorf("%w: fuel_per_km_per_passenger must be positive", greenops.ErrInvariantViolation)
	}
	if f.CO2PerLiter <= 0 {
		return fmt.Errorf("%w: co2_per_liter must be positive", greenops.ErrInvariantViolation)
	}
	if f.UncertaintyPercent < 0 || f.UncertaintyPercent > 100 {
		return fmt.Errorf("%w: uncertainty_percent %v outside [0,100]",
			greenops.ErrInvariantViolation, f.UncertaintyPercent)
	}
	return nil
}
