package nudge

import (
	"fmt"
	"time"

	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/refdata"
)

// Rule ids, in catalog order.
const (
	RulePostFlightCalculation = "post_flight_calculation"
	RuleNearCupStation        = "near_cup_station"
	RuleNearTierUpgrade       = "near_tier_upgrade"
	RuleMealTimePlantBased    = "meal_time_plant_based"
	RulePreTripTransport      = "pre_trip_transport"
	RuleJourneyComplete       = "journey_complete"
)

// Rule is one catalog entry. Condition and Template must be pure.
type Rule struct {
	ID        string
	Priority  Priority
	Condition func(Context) bool
	Template  func(Context) Nudge
}

// HourWindow is the half-open local-time interval [Start, End) in hours.
type HourWindow struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Contains reports whether t's hour falls in the window.
func (w HourWindow) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= w.Start && h < w.End
}

// Settings tune the built-in catalog and the rate limiter.
type Settings struct {
	Cooldown               time.Duration
	TierUpgradeThreshold   int64
	CupStationRadiusMeters float64
	MealWindows            []HourWindow
	Location               *time.Location
	CupStations            []refdata.CupStation
}

// Defaults for Settings.
const (
	DefaultCooldown               = 30 * time.Minute
	DefaultTierUpgradeThreshold   = 100
	DefaultCupStationRadiusMeters = 150.0
)

// DefaultMealWindows are lunch and dinner.
func DefaultMealWindows() []HourWindow {
	return []HourWindow{{Start: 11, End: 14}, {Start: 18, End: 21}}
}

// DefaultSettings returns the production tuning without cup stations.
func DefaultSettings() Settings {
	return Settings{
		Cooldown:               DefaultCooldown,
		TierUpgradeThreshold:   DefaultTierUpgradeThreshold,
		CupStationRadiusMeters: DefaultCupStationRadiusMeters,
		MealWindows:            DefaultMealWindows(),
		Location:               time.UTC,
	}
}

// Validate rejects settings that would disable the limiter or the rules.
func (s Settings) Validate() error {
	if s.Cooldown <= 0 {
		return fmt.Errorf("%w: nudge cooldown %s must be positive", greenops.ErrInvalidInput, s.Cooldown)
	}
	if s.TierUpgradeThreshold <= 0 {
		return fmt.Errorf("%w: tier upgrade threshold %d must be positive", greenops.ErrInvalidInput, s.TierUpgradeThreshold)
	}
	if s.CupStationRadiusMeters <= 0 {
		return fmt.Errorf("%w: cup station radius %v must be positive", greenops.ErrInvalidInput, s.CupStationRadiusMeters)
	}
	for _, w := range s.MealWindows {
		if w.Start < 0 || w.End > 24 || w.Start >= w.End {
			return fmt.Errorf("%w: meal window [%d,%d) is not within a day", greenops.ErrInvalidInput, w.Start, w.End)
		}
	}
	return nil
}

// DefaultCatalog returns the built-in rules in declaration order. Ties in
// priority are resolved by this order.
func DefaultCatalog(s Settings) []Rule {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	return []Rule{
		{
			ID:       RulePostFlightCalculation,
			Priority: PriorityHigh,
			Condition: func(c Context) bool {
				return c.Journey.FlightCalculated && !c.Journey.HasContribution()
			},
			Template: func(c Context) Nudge {
				return Nudge{
					ID:       RulePostFlightCalculation,
					Priority: PriorityHigh,
					Message: fmt.Sprintf("Your flight%s produces about %s CO2e. Covering it with sustainable aviation fuel earns %d eco-points per dollar.",
						destinationSuffix(c.Journey.Destination), greenops.FormatKg(c.Journey.EmissionsCO2eKg), ecopoints.PointsPerDollarSAF),
					ActionType:   "saf_contribution",
					ActionButton: "Fly greener with SAF",
				}
			},
		},
		{
			ID:       RuleNearCupStation,
			Priority: PriorityMedium,
			Condition: func(c Context) bool {
				if c.Location == nil {
					return false
				}
				_, _, ok := NearestStation(*c.Location, s.CupStations, s.CupStationRadiusMeters)
				return ok
			},
			Template: func(c Context) Nudge {
				st, dist, _ := NearestStation(*c.Location, s.CupStations, s.CupStationRadiusMeters)
				return Nudge{
					ID:       RuleNearCupStation,
					Priority: PriorityMedium,
					Message: fmt.Sprintf("%s is %s m away. Return your reusable cup there for %d eco-points.",
						st.Name, greenops.FormatFloat(dist, 0), ecopoints.PointsCircularity),
					ActionType:   "circularity",
					ActionButton: "Find the station",
				}
			},
		},
		{
			ID:       RuleNearTierUpgrade,
			Priority: PriorityHigh,
			Condition: func(c Context) bool {
				p := c.Progress
				return p != nil && p.PointsToNext != nil && p.NextTier != nil &&
					*p.PointsToNext > 0 && *p.PointsToNext <= s.TierUpgradeThreshold
			},
			Template: func(c Context) Nudge {
				return Nudge{
					ID:       RuleNearTierUpgrade,
					Priority: PriorityHigh,
					Message: fmt.Sprintf("Only %s eco-points to %s! One more green choice gets you there.",
						greenops.FormatNumber(*c.Progress.PointsToNext), c.Progress.NextTier.Name),
					ActionType:   "view_tiers",
					ActionButton: "See how to earn",
				}
			},
		},
		{
			ID:       RuleMealTimePlantBased,
			Priority: PriorityMedium,
			Condition: func(c Context) bool {
				local := c.Now.In(loc)
				for _, w := range s.MealWindows {
					if w.Contains(local) {
						return true
					}
				}
				return false
			},
			Template: func(Context) Nudge {
				return Nudge{
					ID:       RuleMealTimePlantBased,
					Priority: PriorityMedium,
					Message: fmt.Sprintf("Hungry? A plant-based meal earns %d eco-points and has a fraction of the footprint.",
						ecopoints.PointsPlantBasedMeal),
					ActionType:   "plant_based_meal",
					ActionButton: "Show plant-based options",
				}
			},
		},
		{
			ID:       RulePreTripTransport,
			Priority: PriorityMedium,
			Condition: func(c Context) bool {
				return c.Journey.FlightCalculated && !c.Journey.TransportLogged
			},
			Template: func(Context) Nudge {
				return Nudge{
					ID:       RulePreTripTransport,
					Priority: PriorityMedium,
					Message: fmt.Sprintf("Heading to the airport? Take the MRT or a bus and earn %d eco-points.",
						ecopoints.PointsPublicTransportTrip),
					ActionType:   "public_transport_trip",
					ActionButton: "Log my trip",
				}
			},
		},
		{
			ID:       RuleJourneyComplete,
			Priority: PriorityLow,
			Condition: func(c Context) bool {
				return c.Journey.HasContribution()
			},
			Template: func(Context) Nudge {
				return Nudge{
					ID:           RuleJourneyComplete,
					Priority:     PriorityLow,
					Message:      "Your journey's climate contribution is in place. Share your impact and inspire fellow travellers.",
					ActionType:   "share_impact",
					ActionButton: "Share",
				}
			},
		},
	}
}

func destinationSuffix(dest string) string {
	if dest == "" {
		return ""
	}
	return " to " + dest
}
