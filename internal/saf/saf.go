// Package saf accounts for book-and-claim Sustainable Aviation Fuel
// contributions and for generic carbon offset purchases.
package saf

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/greenops"
)

// Defaults for the fuel market.
const (
	DefaultPricePerLiter           = 2.5
	DefaultReductionFactorPerLiter = 2.27
	DefaultProvider                = "Neste MY SAF"
	certificatePrefix              = "SAF-"
)

// Status is the verification state of a contribution.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusVerified || s == StatusRejected }

// Contribution is a book-and-claim SAF purchase. CO2eAvoidedKg always
// equals LitersAttributed × ReductionFactorPerLiter.
type Contribution struct {
	CertificateID           string    `json:"certificate_id"`
	Provider                string    `json:"provider"`
	PercentCovered          float64   `json:"percent_covered"`
	LitersAttributed        float64   `json:"liters_attributed"`
	CO2eAvoidedKg           float64   `json:"co2e_avoided_kg"`
	CostAmount              float64   `json:"cost_amount"`
	PricePerLiter           float64   `json:"price_per_liter"`
	ReductionFactorPerLiter float64   `json:"reduction_factor_per_liter"`
	VerificationStatus      Status    `json:"verification_status"`
	CreatedAt               time.Time `json:"created_at"`
}

// EcoPoints returns the base award for the contribution.
func (c Contribution) EcoPoints() int64 {
	pts, _ := ecopoints.Award(ecopoints.Action{Kind: ecopoints.ActionSAFContribution, Amount: c.CostAmount})
	return pts
}

// Market holds the price and the lifecycle reduction of a litre of SAF.
type Market struct {
	Provider                string
	PricePerLiter           float64
	ReductionFactorPerLiter float64
}

// DefaultMarket returns the market with the published defaults.
func DefaultMarket() Market {
	return Market{
		Provider:                DefaultProvider,
		PricePerLiter:           DefaultPricePerLiter,
		ReductionFactorPerLiter: DefaultReductionFactorPerLiter,
	}
}

// Validate rejects non-positive or non-finite prices and factors.
func (m Market) Validate() error {
	if !positive(m.PricePerLiter) {
		return fmt.Errorf("%w: SAF price per litre %v must be positive", greenops.ErrInvalidInput, m.PricePerLiter)
	}
	if !positive(m.ReductionFactorPerLiter) {
		return fmt.Errorf("%w: SAF reduction factor %v must be positive", greenops.ErrInvalidInput, m.ReductionFactorPerLiter)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Ledger creates contributions. It never produces a verified status; that
// only happens through Transition driven by a verification registry.
type Ledger struct {
	market  Market
	now     func() time.Time
	entropy io.Reader
	mu      sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithEntropy overrides the randomness used for certificate ids.
func WithEntropy(r io.Reader) Option {
	return func(l *Ledger) { l.entropy = r }
}

// NewLedger returns a ledger over market.
func NewLedger(market Market, opts ...Option) (*Ledger, error) {
	if err := market.Validate(); err != nil {
		return nil, err
	}
	if market.Provider == "" {
		market.Provider = DefaultProvider
	}
	l := &Ledger{
		market:  market,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Market returns the market the ledger prices with.
func (l *Ledger) Market() Market { return l.market }

// FromCoveragePercent buys enough SAF to cover percent of emissionsKg.
// The avoided emissions equal emissionsKg × percent/100 by construction.
func (l *Ledger) FromCoveragePercent(emissionsKg, percent float64) (Contribution, error) {
	if !nonNegative(emissionsKg) {
		return Contribution{}, fmt.Errorf("%w: emissions %v kg must be non-negative", greenops.ErrInvalidInput, emissionsKg)
	}
	if !nonNegative(percent) || percent > 100 {
		return Contribution{}, fmt.Errorf("%w: coverage %v%% outside [0,100]", greenops.ErrInvalidInput, percent)
	}

	m := l.market
	liters := (emissionsKg * percent / 100) / m.ReductionFactorPerLiter
	return l.newContribution(percent, liters), nil
}

// FromContributionAmount buys as much SAF as amount pays for.
// PercentCovered is unknown in this direction and left at zero.
func (l *Ledger) FromContributionAmount(amount float64) (Contribution, error) {
	if !nonNegative(amount) {
		return Contribution{}, fmt.Errorf("%w: contribution amount %v must be non-negative", greenops.ErrInvalidInput, amount)
	}
	liters := amount / l.market.PricePerLiter
	return l.newContribution(0, liters), nil
}

// CoverageOf returns the percent of emissionsKg that c covers.
func CoverageOf(c Contribution, emissionsKg float64) float64 {
	if emissionsKg <= 0 {
		return 0
	}
	return c.CO2eAvoidedKg / emissionsKg * 100
}

func (l *Ledger) newContribution(percent, liters float64) Contribution {
	m := l.market
	return Contribution{
		CertificateID:           l.certificateID(),
		Provider:                m.Provider,
		PercentCovered:          percent,
		LitersAttributed:        liters,
		CO2eAvoidedKg:           liters * m.ReductionFactorPerLiter,
		CostAmount:              liters * m.PricePerLiter,
		PricePerLiter:           m.PricePerLiter,
		ReductionFactorPerLiter: m.ReductionFactorPerLiter,
		VerificationStatus:      StatusPending,
		CreatedAt:               l.now().UTC(),
	}
}

func (l *Ledger) certificateID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return certificatePrefix + ulid.MustNew(ulid.Timestamp(l.now()), l.entropy).String()
}

// Transition moves a contribution to next. Only pending → verified and
// pending → rejected are legal; repeating the current status is a no-op.
func Transition(c Contribution, next Status) (Contribution, error) {
	switch next {
	case StatusPending, StatusVerified, StatusRejected:
	default:
		return c, fmt.Errorf("%w: unknown verification status %q", greenops.ErrInvalidInput, next)
	}
	if c.VerificationStatus == next {
		return c, nil
	}
	if c.VerificationStatus != StatusPending || next == StatusPending {
		return c, fmt.Errorf("%w: cannot move certificate %s from %s to %s",
			greenops.ErrInvalidInput, c.CertificateID, c.VerificationStatus, next)
	}
	c.VerificationStatus = next
	return c, nil
}
