package nudge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHistory() History {
	return History{
		LastSentAt:  time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		LastNudgeID: RulePostFlightCalculation,
		Dismissed:   []string{RuleMealTimePlantBased},
	}
}

func assertSameHistory(t *testing.T, want, got History) {
	t.Helper()
	assert.True(t, want.LastSentAt.Equal(got.LastSentAt), "last sent %s != %s", want.LastSentAt, got.LastSentAt)
	assert.Equal(t, want.LastNudgeID, got.LastNudgeID)
	assert.Equal(t, want.Dismissed, got.Dismissed)
}

func TestMemoryHistoryStore(t *testing.T) {
	t.Parallel()
	s := NewMemoryHistoryStore()
	ctx := context.Background()

	h, err := s.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, h.LastSentAt.IsZero())

	require.NoError(t, s.Put(ctx, "alice", sampleHistory()))
	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, sampleHistory(), got)

	// Returned copies do not alias the stored slice.
	got.Dismissed[0] = "tampered"
	again, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, RuleMealTimePlantBased, again.Dismissed[0])
	assert.Equal(t, 1, s.Len())
}

func TestMemoryHistoryStore_Concurrent(t *testing.T) {
	t.Parallel()
	s := NewMemoryHistoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			if err := s.Put(ctx, user, sampleHistory()); err != nil {
				t.Error(err)
			}
			if _, err := s.Get(ctx, user); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, s.Len())
}

func TestFileHistoryStore_PersistsAcrossOpens(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "nudges.json")
	ctx := context.Background()

	s, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
	require.NoError(t, s.Put(ctx, "alice", sampleHistory()))

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock file must be released")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	reopened, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "alice")
	require.NoError(t, err)
	assertSameHistory(t, sampleHistory(), got)
	assert.Equal(t, path, reopened.FilePath())
}

func TestFileHistoryStore_KeepsOtherHandlesWrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nudges.json")
	ctx := context.Background()

	a, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	b, err := NewFileHistoryStore(path)
	require.NoError(t, err)

	require.NoError(t, a.Put(ctx, "alice", sampleHistory()))
	require.NoError(t, b.Put(ctx, "bob", History{LastSentAt: lunchtime, LastNudgeID: RuleNearCupStation}))
	assert.Equal(t, 2, b.Count())

	reopened, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	alice, err := reopened.Get(ctx, "alice")
	require.NoError(t, err)
	assertSameHistory(t, sampleHistory(), alice)
	bob, err := reopened.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, RuleNearCupStation, bob.LastNudgeID)
}

func TestFileHistoryStore_PutNeverUndismisses(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nudges.json")
	ctx := context.Background()

	a, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	b, err := NewFileHistoryStore(path)
	require.NoError(t, err)

	require.NoError(t, a.Put(ctx, "alice", sampleHistory()))

	// b still holds the empty entry it loaded and writes a newer delivery.
	later := sampleHistory().LastSentAt.Add(time.Hour)
	require.NoError(t, b.Put(ctx, "alice", History{
		LastSentAt:  later,
		LastNudgeID: RuleNearCupStation,
		Dismissed:   []string{RulePostFlightCalculation},
	}))

	got, err := b.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, later.Equal(got.LastSentAt))
	assert.Equal(t, RuleNearCupStation, got.LastNudgeID)
	assert.ElementsMatch(t, []string{RuleMealTimePlantBased, RulePostFlightCalculation}, got.Dismissed)

	// An older write does not roll the delivery back.
	require.NoError(t, a.Put(ctx, "alice", sampleHistory()))
	got, err = a.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, later.Equal(got.LastSentAt))
	assert.Len(t, got.Dismissed, 2)
}

func TestFileHistoryStore_Corrupted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{oops"},
		{"wrong version", `{"version": 99, "users": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "nudges.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := NewFileHistoryStore(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStoreCorrupted)
		})
	}
}

func TestFileHistoryStore_RemovesStaleLock(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nudges.json")
	lock := path + ".lock"

	// A lock with no readable pid, old enough to be stale.
	require.NoError(t, os.WriteFile(lock, nil, 0o600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))

	s, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "alice", sampleHistory()))
}

func TestFileHistoryStore_DrivesEngine(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nudges.json")
	ctx := context.Background()

	store, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	clock := newFakeClock(lunchtime)
	e, err := NewEngine(store, testSettings(), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, e.MarkDismissed(ctx, "alice", RulePostFlightCalculation))

	// A fresh process sees the dismissal.
	store2, err := NewFileHistoryStore(path)
	require.NoError(t, err)
	e2, err := NewEngine(store2, testSettings(), WithClock(clock))
	require.NoError(t, err)
	n, err := e2.Evaluate(ctx, "alice", postFlight())
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.NotEqual(t, RulePostFlightCalculation, n.ID)
}

func TestRedisHistoryStore(t *testing.T) {
	url := os.Getenv("ECOJOURNEY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ECOJOURNEY_TEST_REDIS_URL not set")
	}
	client, err := NewRedisClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	prefix := fmt.Sprintf("ecojourney:test:%d:", time.Now().UnixNano())
	s := NewRedisHistoryStore(client, prefix, time.Minute)
	require.NoError(t, s.Ping(ctx))
	t.Cleanup(func() { _ = client.Del(context.Background(), prefix+"alice").Err() })

	h, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, h.LastSentAt.IsZero())

	require.NoError(t, s.Put(ctx, "alice", sampleHistory()))
	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assertSameHistory(t, sampleHistory(), got)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	t.Parallel()
	_, err := NewRedisClient("not-a-url://")
	assert.Error(t, err)
}
