package ecopoints

import (
	"fmt"
	"math"

	"github.com/rshade/ecojourney/internal/greenops"
)

// ActionKind identifies an entry of the award table.
type ActionKind string

const (
	ActionSAFContribution       ActionKind = "saf_contribution"
	ActionOffsetPurchase        ActionKind = "offset_purchase"
	ActionCircularity           ActionKind = "circularity"
	ActionPlantBasedMeal        ActionKind = "plant_based_meal"
	ActionGreenMerchantPurchase ActionKind = "green_merchant_purchase"
	ActionPublicTransportTrip   ActionKind = "public_transport_trip"
)

// Award rates. SAF earns twice the offset rate per dollar: fuel
// substitution is preferred over generic offsets.
const (
	PointsPerDollarSAF           = 10
	PointsPerDollarOffset        = 5
	PointsPerDollarGreenMerchant = 3
	PointsCircularity            = 20
	PointsPlantBasedMeal         = 15
	PointsPublicTransportTrip    = 30
)

// AwardRule is one row of the award table. Exactly one of PerDollar or
// Flat is non-zero.
type AwardRule struct {
	Kind        ActionKind `json:"kind"`
	PerDollar   float64    `json:"per_dollar,omitempty"`
	Flat        int64      `json:"flat,omitempty"`
	Description string     `json:"description"`
}

// Monetary reports whether the rule scales with the spend.
func (r AwardRule) Monetary() bool { return r.PerDollar > 0 }

//nolint:gochecknoglobals // read-only lookup table
var awardTable = []AwardRule{
	{Kind: ActionSAFContribution, PerDollar: PointsPerDollarSAF, Description: "Sustainable aviation fuel contribution"},
	{Kind: ActionOffsetPurchase, PerDollar: PointsPerDollarOffset, Description: "Carbon offset purchase"},
	{Kind: ActionCircularity, Flat: PointsCircularity, Description: "Reusable cup or packaging return"},
	{Kind: ActionPlantBasedMeal, Flat: PointsPlantBasedMeal, Description: "Plant-based meal"},
	{Kind: ActionGreenMerchantPurchase, PerDollar: PointsPerDollarGreenMerchant, Description: "Purchase at a certified green merchant"},
	{Kind: ActionPublicTransportTrip, Flat: PointsPublicTransportTrip, Description: "Public transport to or from the airport"},
}

// AwardTable returns a copy of the award table in display order.
func AwardTable() []AwardRule {
	out := make([]AwardRule, len(awardTable))
	copy(out, awardTable)
	return out
}

// Rule looks up the award rule for kind.
func Rule(kind ActionKind) (AwardRule, error) {
	for _, r := range awardTable {
		if r.Kind == kind {
			return r, nil
		}
	}
	return AwardRule{}, fmt.Errorf("action %q: %w", kind, greenops.ErrNotFound)
}

// Action is a user action to be rewarded. Amount is the spend for
// monetary rules and is ignored by flat rules.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Amount float64    `json:"amount,omitempty"`
}

// Award returns the base points for action, before any tier multiplier.
func Award(action Action) (int64, error) {
	rule, err := Rule(action.Kind)
	if err != nil {
		return 0, err
	}
	if !rule.Monetary() {
		return rule.Flat, nil
	}
	if math.IsNaN(action.Amount) || math.IsInf(action.Amount, 0) || action.Amount < 0 {
		return 0, fmt.Errorf("%w: %s amount %v must be a non-negative number",
			greenops.ErrInvalidInput, action.Kind, action.Amount)
	}
	points, err := toPoints(action.Amount * rule.PerDollar)
	if err != nil {
		return 0, fmt.Errorf("%w: %s amount %v", err, action.Kind, action.Amount)
	}
	return points, nil
}

// ApplyMultiplier scales base points by a tier multiplier. Results that
// do not fit in an int64 are rejected with ErrInvalidInput.
func ApplyMultiplier(base int64, multiplier float64) (int64, error) {
	if base < 0 {
		return 0, fmt.Errorf("%w: negative base points (%d)", greenops.ErrInvalidInput, base)
	}
	points, err := toPoints(float64(base) * multiplier)
	if err != nil {
		return 0, fmt.Errorf("%w: %d x %v", err, base, multiplier)
	}
	return points, nil
}

// toPoints rounds v to whole points. float64(math.MaxInt64) is 2^63, one
// past the largest int64, so the bound is exclusive.
func toPoints(v float64) (int64, error) {
	v = math.Round(v)
	if math.IsNaN(v) || v < 0 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: points out of range", greenops.ErrInvalidInput)
	}
	return int64(v), nil
}
