// Package activity records what users did: flight calculations,
// contributions and the everyday green actions that earn eco-points.
// Storage sits behind the Log interface.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rshade/ecojourney/internal/greenops"
)

// Kind tags an activity's details.
type Kind string

const (
	KindFlightCalculated      Kind = "flight_calculated"
	KindSAFContributed        Kind = "saf_contributed"
	KindSAFStatusChanged      Kind = "saf_status_changed"
	KindOffsetPurchased       Kind = "offset_purchased"
	KindCircularity           Kind = "circularity"
	KindPlantBasedMeal        Kind = "plant_based_meal"
	KindGreenMerchantPurchase Kind = "green_merchant_purchase"
	KindPublicTransportTrip   Kind = "public_transport_trip"
)

// Details is the kind-specific payload. The set of implementations is
// closed to this package.
type Details interface {
	Kind() Kind
	sealed()
}

// FlightCalculated records an emissions calculation.
type FlightCalculated struct {
	RouteID     string  `json:"route_id"`
	Destination string  `json:"destination"`
	Passengers  int     `json:"passengers"`
	CabinClass  string  `json:"cabin_class"`
	CO2Kg       float64 `json:"co2_kg"`
	CO2eKg      float64 `json:"co2e_kg"`
}

// SAFContributed records a book-and-claim purchase.
type SAFContributed struct {
	CertificateID  string  `json:"certificate_id"`
	Provider       string  `json:"provider"`
	PercentCovered float64 `json:"percent_covered"`
	Liters         float64 `json:"liters"`
	CO2eAvoidedKg  float64 `json:"co2e_avoided_kg"`
	Cost           float64 `json:"cost"`
	Status         string  `json:"status"`
}

// SAFStatusChanged records a verification registry decision.
type SAFStatusChanged struct {
	CertificateID string `json:"certificate_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}

// OffsetPurchased records a generic offset purchase.
type OffsetPurchased struct {
	PercentCovered float64 `json:"percent_covered"`
	KgCovered      float64 `json:"kg_covered"`
	PricePerTonne  float64 `json:"price_per_tonne"`
	Cost           float64 `json:"cost"`
}

// Circularity records a reusable cup or packaging return.
type Circularity struct {
	StationID string `json:"station_id,omitempty"`
	Item      string `json:"item"`
}

// PlantBasedMeal records a plant-based meal.
type PlantBasedMeal struct {
	Venue string `json:"venue,omitempty"`
}

// GreenMerchantPurchase records spend at a certified merchant.
type GreenMerchantPurchase struct {
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
}

// PublicTransportTrip records a trip to or from the airport.
type PublicTransportTrip struct {
	Mode string `json:"mode"`
}

func (FlightCalculated) Kind() Kind      { return KindFlightCalculated }
func (SAFContributed) Kind() Kind        { return KindSAFContributed }
func (SAFStatusChanged) Kind() Kind      { return KindSAFStatusChanged }
func (OffsetPurchased) Kind() Kind       { return KindOffsetPurchased }
func (Circularity) Kind() Kind           { return KindCircularity }
func (PlantBasedMeal) Kind() Kind        { return KindPlantBasedMeal }
func (GreenMerchantPurchase) Kind() Kind { return KindGreenMerchantPurchase }
func (PublicTransportTrip) Kind() Kind   { return KindPublicTransportTrip }

func (FlightCalculated) sealed()      {}
func (SAFContributed) sealed()        {}
func (SAFStatusChanged) sealed()      {}
func (OffsetPurchased) sealed()       {}
func (Circularity) sealed()           {}
func (PlantBasedMeal) sealed()        {}
func (GreenMerchantPurchase) sealed() {}
func (PublicTransportTrip) sealed()   {}

// Activity is one entry of a user's log.
type Activity struct {
	ID         string
	UserID     string
	OccurredAt time.Time
	Points     int64
	Details    Details
}

// Kind returns the details' kind.
func (a Activity) Kind() Kind {
	if a.Details == nil {
		return ""
	}
	return a.Details.Kind()
}

type activityJSON struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       Kind            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Points     int64           `json:"points"`
	Details    json.RawMessage `json:"details"`
}

// MarshalJSON writes the details under a "type" tag.
func (a Activity) MarshalJSON() ([]byte, error) {
	if a.Details == nil {
		return nil, fmt.Errorf("%w: activity %s has no details", greenops.ErrInvalidInput, a.ID)
	}
	details, err := json.Marshal(a.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(activityJSON{
		ID:         a.ID,
		UserID:     a.UserID,
		Type:       a.Details.Kind(),
		OccurredAt: a.OccurredAt,
		Points:     a.Points,
		Details:    details,
	})
}

// UnmarshalJSON reads the "type" tag and decodes the matching details.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw activityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := DecodeDetails(raw.Type, raw.Details)
	if err != nil {
		return err
	}
	*a = Activity{
		ID:         raw.ID,
		UserID:     raw.UserID,
		OccurredAt: raw.OccurredAt,
		Points:     raw.Points,
		Details:    d,
	}
	return nil
}

// DecodeDetails decodes payload as the details of kind.
func DecodeDetails(kind Kind, payload []byte) (Details, error) {
	switch kind {
	case KindFlightCalculated:
		return decodeAs[FlightCalculated](payload)
	case KindSAFContributed:
		return decodeAs[SAFContributed](payload)
	case KindSAFStatusChanged:
		return decodeAs[SAFStatusChanged](payload)
	case KindOffsetPurchased:
		return decodeAs[OffsetPurchased](payload)
	case KindCircularity:
		return decodeAs[Circularity](payload)
	case KindPlantBasedMeal:
		return decodeAs[PlantBasedMeal](payload)
	case KindGreenMerchantPurchase:
		return decodeAs[GreenMerchantPurchase](payload)
	case KindPublicTransportTrip:
		return decodeAs[PublicTransportTrip](payload)
	default:
		return nil, fmt.Errorf("%w: unknown activity type %q", greenops.ErrInvalidInput, kind)
	}
}

func decodeAs[T Details](payload []byte) (Details, error) {
	var v T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decoding %s details: %w", v.Kind(), err)
		}
	}
	return v, nil
}

// Filter selects activities. Zero fields match everything. Results are
// oldest first; a positive Limit keeps only the most recent entries.
type Filter struct {
	UserID string
	Kinds  []Kind
	Since  time.Time
	Limit  int
}

func (f Filter) matches(a Activity) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if !f.Since.IsZero() && a.OccurredAt.Before(f.Since) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if a.Kind() == k {
			return true
		}
	}
	return false
}

// Log is an append-only activity store.
type Log interface {
	// Append stores a, assigning an id and timestamp when they are empty,
	// and returns what was stored.
	Append(ctx context.Context, a Activity) (Activity, error)
	Query(ctx context.Context, f Filter) ([]Activity, error)
}

func validate(a Activity) error {
	if a.UserID == "" {
		return fmt.Errorf("%w: activity has no user id", greenops.ErrInvalidInput)
	}
	if a.Details == nil {
		return fmt.Errorf("%w: activity has no details", greenops.ErrInvalidInput)
	}
	if a.Points < 0 {
		return fmt.Errorf("%w: activity points %d are negative", greenops.ErrInvalidInput, a.Points)
	}
	return nil
}
