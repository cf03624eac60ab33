package nudge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces history keys.
const DefaultRedisKeyPrefix = "ecojourney:nudge:history:"

// RedisHistoryStore shares nudge history between API replicas. Values
// are JSON-encoded History documents, one key per user. Updates from
// separate processes are last-writer-wins; only the engine's in-process
// lock serializes evaluate-and-mark.
type RedisHistoryStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ HistoryStore = (*RedisHistoryStore)(nil)

// NewRedisHistoryStore wraps client. A zero ttl keeps entries forever.
func NewRedisHistoryStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisHistoryStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisHistoryStore{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisHistoryStore) key(userID string) string { return s.prefix + userID }

// Get implements HistoryStore.
func (s *RedisHistoryStore) Get(ctx context.Context, userID string) (History, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return History{}, nil
	}
	if err != nil {
		return History{}, fmt.Errorf("redis get %s: %w", s.key(userID), err)
	}
	var h History
	if err := json.Unmarshal(raw, &h); err != nil {
		return History{}, fmt.Errorf("%w: key %s: %w", ErrStoreCorrupted, s.key(userID), err)
	}
	return h, nil
}

// Put implements HistoryStore.
func (s *RedisHistoryStore) Put(ctx context.Context, userID string, h History) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshaling nudge history: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(userID), err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisHistoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
