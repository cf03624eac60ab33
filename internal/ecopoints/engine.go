// Package ecopoints turns sustainable actions into eco-points and maps
// cumulative points onto the tier catalog.
package ecopoints

import (
	"fmt"
	"slices"

	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/refdata"
)

// Engine is the tier state machine. It is immutable after construction.
type Engine struct {
	tiers []refdata.Tier
}

// NewEngine validates tiers and returns an engine over them. A catalog
// with gaps, overlaps or misordered levels fails with
// greenops.ErrInvariantViolation.
func NewEngine(tiers []refdata.Tier) (*Engine, error) {
	if err := refdata.ValidateTiers(tiers); err != nil {
		return nil, err
	}
	return &Engine{tiers: slices.Clone(tiers)}, nil
}

// Tiers returns a copy of the catalog.
func (e *Engine) Tiers() []refdata.Tier { return slices.Clone(e.tiers) }

// TierFor returns the tier whose [MinPoints, MaxPoints) range contains
// points. Anything at or above the top tier's MinPoints is the top tier;
// negative points are treated as zero.
func (e *Engine) TierFor(points int64) refdata.Tier {
	// Catalogs are short; walk from the top so the unbounded tier wins.
	for i := len(e.tiers) - 1; i > 0; i-- {
		if points >= e.tiers[i].MinPoints {
			return e.tiers[i]
		}
	}
	return e.tiers[0]
}

// Tier looks up a tier by id.
func (e *Engine) Tier(id string) (refdata.Tier, error) {
	for _, t := range e.tiers {
		if t.ID == id {
			return t, nil
		}
	}
	return refdata.Tier{}, fmt.Errorf("tier %q: %w", id, greenops.ErrNotFound)
}

// Progress describes how far points are through the current tier.
type Progress struct {
	Points          int64         `json:"points"`
	CurrentTier     refdata.Tier  `json:"current_tier"`
	PointsIntoTier  int64         `json:"points_into_tier"`
	PointsToNext    *int64        `json:"points_to_next"`
	NextTier        *refdata.Tier `json:"next_tier"`
	ProgressPercent float64       `json:"progress_percent"`
}

// AtTopTier reports whether there is no tier left to reach.
func (p Progress) AtTopTier() bool { return p.NextTier == nil }

// Progress reports the position of points on the ladder. At the top tier
// NextTier and PointsToNext are nil and ProgressPercent is 0.
func (e *Engine) Progress(points int64) Progress {
	if points < 0 {
		points = 0
	}
	current := e.TierFor(points)
	p := Progress{
		Points:         points,
		CurrentTier:    current,
		PointsIntoTier: points - current.MinPoints,
	}
	if current.Level >= len(e.tiers) {
		return p
	}

	next := e.tiers[current.Level]
	toNext := max(next.MinPoints-points, 0)
	span := float64(next.MinPoints - current.MinPoints)

	p.NextTier = &next
	p.PointsToNext = &toNext
	p.ProgressPercent = clampPercent(100 * float64(points-current.MinPoints) / span)
	return p
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Upgrade records a tier change caused by a credit.
type Upgrade struct {
	From refdata.Tier `json:"from"`
	To   refdata.Tier `json:"to"`
}

// DetectUpgrade compares tiers by level, so renaming or reordering ids in
// the catalog never fires a spurious upgrade.
func (e *Engine) DetectUpgrade(before, after int64) (Upgrade, bool) {
	from, to := e.TierFor(before), e.TierFor(after)
	if from.Level < to.Level {
		return Upgrade{From: from, To: to}, true
	}
	return Upgrade{}, false
}
