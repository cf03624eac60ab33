package saf

import (
	"fmt"

	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/greenops"
)

// DefaultOffsetPricePerTonne is the price of one tonne of generic offsets.
const DefaultOffsetPricePerTonne = 15.0

// OffsetPurchase is a generic carbon offset bought instead of, or in
// addition to, SAF.
type OffsetPurchase struct {
	PercentCovered float64 `json:"percent_covered"`
	KgCovered      float64 `json:"kg_covered"`
	PricePerTonne  float64 `json:"price_per_tonne"`
	Cost           float64 `json:"cost"`
}

// EcoPoints returns the base award for the purchase.
func (o OffsetPurchase) EcoPoints() int64 {
	pts, _ := ecopoints.Award(ecopoints.Action{Kind: ecopoints.ActionOffsetPurchase, Amount: o.Cost})
	return pts
}

// QuoteOffset prices offsets covering percent of emissionsKg.
func QuoteOffset(emissionsKg, percent, pricePerTonne float64) (OffsetPurchase, error) {
	if !nonNegative(emissionsKg) {
		return OffsetPurchase{}, fmt.Errorf("%w: emissions %v kg must be non-negative", greenops.ErrInvalidInput, emissionsKg)
	}
	if !nonNegative(percent) || percent > 100 {
		return OffsetPurchase{}, fmt.Errorf("%w: coverage %v%% outside [0,100]", greenops.ErrInvalidInput, percent)
	}
	if !positive(pricePerTonne) {
		return OffsetPurchase{}, fmt.Errorf("%w: offset price %v per tonne must be positive", greenops.ErrInvalidInput, pricePerTonne)
	}

	kg := emissionsKg * percent / 100
	return OffsetPurchase{
		PercentCovered: percent,
		KgCovered:      kg,
		PricePerTonne:  pricePerTonne,
		Cost:           kg / greenops.TonsToKg * pricePerTonne,
	}, nil
}
