package nudge

import (
	"context"
	"sync"
)

// HistoryStore persists per-user nudge history. Get returns a zero
// History for unknown users. Implementations must be safe for concurrent
// use; the engine serialises writes for a given user.
type HistoryStore interface {
	Get(ctx context.Context, userID string) (History, error)
	Put(ctx context.Context, userID string, h History) error
}

const storeShards = 32

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]History
}

// MemoryHistoryStore keeps history in process memory, split across
// independently locked shards.
type MemoryHistoryStore struct {
	shards [storeShards]memoryShard
}

var _ HistoryStore = (*MemoryHistoryStore)(nil)

// NewMemoryHistoryStore returns an empty store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	s := &MemoryHistoryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]History)
	}
	return s
}

func (s *MemoryHistoryStore) shard(userID string) *memoryShard {
	return &s.shards[shardIndex(userID, storeShards)]
}

// Get implements HistoryStore.
func (s *MemoryHistoryStore) Get(_ context.Context, userID string) (History, error) {
	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.entries[userID].Clone(), nil
}

// Put implements HistoryStore.
func (s *MemoryHistoryStore) Put(_ context.Context, userID string, h History) error {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[userID] = h.Clone()
	return nil
}

// Len returns the number of users with history.
func (s *MemoryHistoryStore) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += len(s.shards[i].entries)
		s.shards[i].mu.RUnlock()
	}
	return n
}
