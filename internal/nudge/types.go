// Package nudge selects at most one proactive recommendation for a user
// from an ordered rule catalog, and keeps the per-user bookkeeping that
// rate-limits those recommendations.
package nudge

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/greenops"
)

// Priority orders nudges. Lower values win.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority is the inverse of Priority.String.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("%w: unknown priority %q", greenops.ErrInvalidInput, s)
	}
}

// MarshalJSON encodes the priority by name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a priority name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Nudge is a recommendation ready to show. It is built per evaluation
// and never stored.
type Nudge struct {
	ID           string   `json:"id"`
	Priority     Priority `json:"priority"`
	Message      string   `json:"message"`
	ActionType   string   `json:"action_type,omitempty"`
	ActionButton string   `json:"action_button,omitempty"`
}

// Journey is the caller's reconstruction of what the user has done on
// the current trip.
type Journey struct {
	FlightCalculated   bool    `json:"flight_calculated"`
	RouteID            string  `json:"route_id,omitempty"`
	Destination        string  `json:"destination,omitempty"`
	EmissionsCO2eKg    float64 `json:"emissions_co2e_kg"`
	SAFContributed     bool    `json:"saf_contributed"`
	OffsetPurchased    bool    `json:"offset_purchased"`
	TransportLogged    bool    `json:"transport_logged"`
	CircularityActions int     `json:"circularity_actions"`
	PlantBasedMeals    int     `json:"plant_based_meals"`
}

// HasContribution reports whether any SAF or offset was bought.
func (j Journey) HasContribution() bool { return j.SAFContributed || j.OffsetPurchased }

// Location is a WGS84 position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Context is everything a rule may look at. Now is set by the engine
// from its clock.
type Context struct {
	Journey  Journey             `json:"journey"`
	Progress *ecopoints.Progress `json:"progress,omitempty"`
	Location *Location           `json:"location,omitempty"`
	Now      time.Time           `json:"now"`
}

// History is a user's rate-limit state. Dismissed only ever grows.
type History struct {
	LastSentAt  time.Time `json:"last_sent_at"`
	LastNudgeID string    `json:"last_nudge_id,omitempty"`
	Dismissed   []string  `json:"dismissed,omitempty"`
}

// IsDismissed reports whether the user dismissed id.
func (h History) IsDismissed(id string) bool {
	return slices.Contains(h.Dismissed, id)
}

// Clone returns a deep copy.
func (h History) Clone() History {
	h.Dismissed = slices.Clone(h.Dismissed)
	return h
}

// merge folds next into h. Dismissals from both sides are kept, and the
// most recent delivery wins.
func (h History) merge(next History) History {
	out := h.Clone()
	for _, id := range next.Dismissed {
		out.dismiss(id)
	}
	if !next.LastSentAt.Before(out.LastSentAt) {
		out.LastSentAt = next.LastSentAt
		out.LastNudgeID = next.LastNudgeID
	}
	return out
}

func (h *History) dismiss(id string) {
	if !h.IsDismissed(id) {
		h.Dismissed = append(h.Dismissed, id)
	}
}
