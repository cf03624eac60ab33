package activity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog keeps activities in insertion order in process memory.
type MemoryLog struct {
	mu    sync.RWMutex
	items []Activity
	now   func() time.Time
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog returns an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{now: time.Now}
}

// Append implements Log.
func (l *MemoryLog) Append(_ context.Context, a Activity) (Activity, error) {
	if err := validate(a); err != nil {
		return Activity{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = l.now()
	}
	a.OccurredAt = a.OccurredAt.UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, a)
	return a, nil
}

// Query implements Log.
func (l *MemoryLog) Query(_ context.Context, f Filter) ([]Activity, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Activity, 0)
	for _, a := range l.items {
		if f.matches(a) {
			out = append(out, a)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// Len returns the number of stored activities.
func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
