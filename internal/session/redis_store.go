package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. Each conversation identity is
// one JSON document under a prefixed key with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "converse:session:", ttl: ttl}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "converse:session:", ttl: ttl}
}

func (r *RedisStore) key(scopeKey string) string {
	return r.prefix + scopeKey
}

// Get loads a state document and refreshes the sliding TTL. A document
// that fails to parse is reported as ErrBadDocument so the engine can
// reset the identity instead of crashing the turn.
func (r *RedisStore) Get(ctx context.Context, scopeKey string) (*State, bool, error) {
	key := r.key(scopeKey)

	raw, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session from Redis: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if state.Slots == nil {
		state.Slots = Slots{}
	}

	// Sliding session: reading keeps the conversation alive.
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return nil, false, fmt.Errorf("failed to refresh session TTL: %w", err)
	}

	return &state, true, nil
}

// Set overwrites the full state document and resets the TTL.
func (r *RedisStore) Set(ctx context.Context, scopeKey string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	if err := r.client.Set(ctx, r.key(scopeKey), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}

	return nil
}

// Ping verifies the Redis connection is alive.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
