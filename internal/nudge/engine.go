package nudge

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/rshade/ecojourney/internal/greenops"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now) //nolint:gochecknoglobals // stateless

const lockShards = 64

// Engine evaluates the rule catalog for a user. Evaluate never changes
// state; MarkSent and MarkDismissed do, and EvaluateAndMark combines the
// check and the mark under the user's lock.
type Engine struct {
	rules    []Rule
	ruleIDs  map[string]struct{}
	store    HistoryStore
	clock    Clock
	cooldown time.Duration

	locks [lockShards]sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces the system clock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithRules replaces the default catalog.
func WithRules(rules []Rule) EngineOption {
	return func(e *Engine) { e.rules = slices.Clone(rules) }
}

// NewEngine builds an engine over store using the default catalog tuned
// by settings.
func NewEngine(store HistoryStore, settings Settings, opts ...EngineOption) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		rules:    DefaultCatalog(settings),
		store:    store,
		clock:    SystemClock,
		cooldown: settings.Cooldown,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ruleIDs = make(map[string]struct{}, len(e.rules))
	for _, r := range e.rules {
		if r.ID == "" || r.Condition == nil || r.Template == nil {
			return nil, fmt.Errorf("%w: rule %q is incomplete", greenops.ErrInvalidInput, r.ID)
		}
		if _, dup := e.ruleIDs[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %q", greenops.ErrInvalidInput, r.ID)
		}
		e.ruleIDs[r.ID] = struct{}{}
	}
	return e, nil
}

// Rules returns the catalog ids in declaration order.
func (e *Engine) Rules() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.ID
	}
	return ids
}

// Evaluate returns the highest-priority nudge the user may see now, or
// nil. It reads the user's history but never writes it.
func (e *Engine) Evaluate(ctx context.Context, userID string, nc Context) (*Nudge, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", greenops.ErrInvalidInput)
	}
	h, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading nudge history for %s: %w", userID, err)
	}
	return e.selectNudge(h, nc), nil
}

// EvaluateAndMark evaluates and, if a nudge is selected, marks it sent
// before releasing the user's lock. Two concurrent calls for one user
// therefore never both deliver.
func (e *Engine) EvaluateAndMark(ctx context.Context, userID string, nc Context) (*Nudge, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", greenops.ErrInvalidInput)
	}
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	h, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading nudge history for %s: %w", userID, err)
	}
	n := e.selectNudge(h, nc)
	if n == nil {
		return nil, nil
	}
	h.LastSentAt = e.clock.Now()
	h.LastNudgeID = n.ID
	if err := e.store.Put(ctx, userID, h); err != nil {
		return nil, fmt.Errorf("saving nudge history for %s: %w", userID, err)
	}
	return n, nil
}

// MarkSent records that nudgeID was delivered to the user now.
func (e *Engine) MarkSent(ctx context.Context, userID, nudgeID string) error {
	return e.update(ctx, userID, nudgeID, func(h *History) {
		h.LastSentAt = e.clock.Now()
		h.LastNudgeID = nudgeID
	})
}

// MarkDismissed records that the user never wants nudgeID again.
func (e *Engine) MarkDismissed(ctx context.Context, userID, nudgeID string) error {
	return e.update(ctx, userID, nudgeID, func(h *History) {
		h.dismiss(nudgeID)
	})
}

// History returns a copy of the user's rate-limit state.
func (e *Engine) History(ctx context.Context, userID string) (History, error) {
	return e.store.Get(ctx, userID)
}

func (e *Engine) update(ctx context.Context, userID, nudgeID string, fn func(*History)) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", greenops.ErrInvalidInput)
	}
	if _, ok := e.ruleIDs[nudgeID]; !ok {
		return fmt.Errorf("nudge %q: %w", nudgeID, greenops.ErrNotFound)
	}
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	h, err := e.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading nudge history for %s: %w", userID, err)
	}
	fn(&h)
	if err := e.store.Put(ctx, userID, h); err != nil {
		return fmt.Errorf("saving nudge history for %s: %w", userID, err)
	}
	return nil
}

type candidate struct {
	rule  Rule
	nudge Nudge
}

func (e *Engine) selectNudge(h History, nc Context) *Nudge {
	nc.Now = e.clock.Now()

	if !h.LastSentAt.IsZero() && nc.Now.Sub(h.LastSentAt) < e.cooldown {
		return nil
	}

	var survivors []candidate
	for _, r := range e.rules {
		if !r.Condition(nc) || h.IsDismissed(r.ID) {
			continue
		}
		survivors = append(survivors, candidate{rule: r, nudge: r.Template(nc)})
	}
	if len(survivors) == 0 {
		return nil
	}

	slices.SortStableFunc(survivors, func(a, b candidate) int {
		return int(a.rule.Priority) - int(b.rule.Priority)
	})
	n := survivors[0].nudge
	return &n
}

func (e *Engine) lockFor(userID string) *sync.Mutex {
	return &e.locks[shardIndex(userID, lockShards)]
}

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
