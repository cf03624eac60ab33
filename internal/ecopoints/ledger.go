package ecopoints

import (
	"fmt"
	"math"
	"sync"

	"github.com/rshade/ecojourney/internal/greenops"
)

// Account is a point-in-time view of a user's balance. The tier is
// derived from TotalPoints whenever the view is taken.
type Account struct {
	UserID         string `json:"user_id"`
	TotalPoints    int64  `json:"total_points"`
	LifetimePoints int64  `json:"lifetime_points"`
	TierID         string `json:"tier_id"`
}

// Credit is the outcome of a successful AddPoints or Deduct.
type Credit struct {
	UserID  string   `json:"user_id"`
	Delta   int64    `json:"delta"`
	Before  int64    `json:"before"`
	After   int64    `json:"after"`
	Upgrade *Upgrade `json:"upgrade,omitempty"`
}

// Balance is a persisted balance handed to the ledger by a Loader.
type Balance struct {
	Total    int64
	Lifetime int64
}

// Loader restores a user's balance the first time the ledger sees them.
type Loader func(userID string) (Balance, error)

type account struct {
	mu       sync.Mutex
	loaded   bool
	total    int64
	lifetime int64
}

// Ledger holds eco-points accounts. Every mutation is an atomic
// read-modify-write under the account's own mutex; accounts never share
// a lock.
type Ledger struct {
	engine *Engine
	loader Loader

	mu       sync.Mutex
	accounts map[string]*account
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLoader restores balances lazily from durable storage.
func WithLoader(l Loader) LedgerOption {
	return func(led *Ledger) { led.loader = l }
}

// NewLedger returns an empty ledger using engine for tier decisions.
func NewLedger(engine *Engine, opts ...LedgerOption) *Ledger {
	l := &Ledger{engine: engine, accounts: make(map[string]*account)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Engine returns the tier engine backing the ledger.
func (l *Ledger) Engine() *Engine { return l.engine }

func (l *Ledger) entry(userID string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[userID]
	if !ok {
		a = &account{}
		l.accounts[userID] = a
	}
	return a
}

// lock returns the user's account locked and loaded. The caller unlocks.
func (l *Ledger) lock(userID string) (*account, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", greenops.ErrInvalidInput)
	}
	a := l.entry(userID)
	a.mu.Lock()
	if a.loaded {
		return a, nil
	}
	if l.loader != nil {
		b, err := l.loader(userID)
		if err != nil {
			a.mu.Unlock()
			return nil, fmt.Errorf("loading points for %s: %w", userID, err)
		}
		if b.Total < 0 || b.Lifetime < b.Total {
			a.mu.Unlock()
			return nil, fmt.Errorf("%w: stored balance for %s has total %d, lifetime %d",
				greenops.ErrInvariantViolation, userID, b.Total, b.Lifetime)
		}
		a.total, a.lifetime = b.Total, b.Lifetime
	}
	a.loaded = true
	return a, nil
}

// Account returns the current view of userID's account. Unknown users
// have a zero balance.
func (l *Ledger) Account(userID string) (Account, error) {
	a, err := l.lock(userID)
	if err != nil {
		return Account{}, err
	}
	defer a.mu.Unlock()
	return l.view(userID, a), nil
}

func (l *Ledger) view(userID string, a *account) Account {
	return Account{
		UserID:         userID,
		TotalPoints:    a.total,
		LifetimePoints: a.lifetime,
		TierID:         l.engine.TierFor(a.total).ID,
	}
}

// AddPoints credits delta (>= 0) to userID and reports any tier upgrade.
func (l *Ledger) AddPoints(userID string, delta int64) (Credit, error) {
	if delta < 0 {
		return Credit{}, fmt.Errorf("%w: cannot add negative points (%d)", greenops.ErrInvalidInput, delta)
	}
	a, err := l.lock(userID)
	if err != nil {
		return Credit{}, err
	}
	defer a.mu.Unlock()
	return l.credit(userID, a, delta)
}

// credit adds delta to both counters. Overflowing credits are refused
// before the account changes.
func (l *Ledger) credit(userID string, a *account, delta int64) (Credit, error) {
	if delta > math.MaxInt64-a.lifetime {
		return Credit{}, fmt.Errorf("%w: crediting %d points to %s overflows the balance",
			greenops.ErrInvalidInput, delta, userID)
	}
	before := a.total
	a.total += delta
	a.lifetime += delta

	c := Credit{UserID: userID, Delta: delta, Before: before, After: a.total}
	if up, ok := l.engine.DetectUpgrade(before, a.total); ok {
		c.Upgrade = &up
	}
	return c, nil
}

// AwardAction computes the base award for action, scales it by the
// multiplier of the tier the user holds before the credit, and credits it.
func (l *Ledger) AwardAction(userID string, action Action) (Credit, error) {
	base, err := Award(action)
	if err != nil {
		return Credit{}, err
	}
	a, err := l.lock(userID)
	if err != nil {
		return Credit{}, err
	}
	defer a.mu.Unlock()

	tier := l.engine.TierFor(a.total)
	points, err := ApplyMultiplier(base, tier.PointsMultiplier)
	if err != nil {
		return Credit{}, err
	}
	return l.credit(userID, a, points)
}

// Deduct removes n points, for example when a purchase is reversed.
// Lifetime points are unchanged. A deduction larger than the balance is
// rejected rather than clamped.
func (l *Ledger) Deduct(userID string, n int64) (Credit, error) {
	if n < 0 {
		return Credit{}, fmt.Errorf("%w: cannot deduct negative points (%d)", greenops.ErrInvalidInput, n)
	}
	a, err := l.lock(userID)
	if err != nil {
		return Credit{}, err
	}
	defer a.mu.Unlock()

	if n > a.total {
		return Credit{}, fmt.Errorf("%w: deducting %d from balance %d would go negative",
			greenops.ErrInvalidInput, n, a.total)
	}
	before := a.total
	a.total -= n
	return Credit{UserID: userID, Delta: -n, Before: before, After: a.total}, nil
}

// Revert undoes a credit whose effect was never recorded, taking delta
// off both the balance and the lifetime count.
func (l *Ledger) Revert(c Credit) error {
	if c.Delta < 0 {
		return fmt.Errorf("%w: cannot revert a deduction (%d)", greenops.ErrInvalidInput, c.Delta)
	}
	a, err := l.lock(c.UserID)
	if err != nil {
		return err
	}
	defer a.mu.Unlock()

	if c.Delta > a.total {
		return fmt.Errorf("%w: reverting %d from balance %d would go negative",
			greenops.ErrInvalidInput, c.Delta, a.total)
	}
	a.total -= c.Delta
	a.lifetime -= c.Delta
	return nil
}
