package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/feelscape/cache"
)

// SessionStore implements cache.SessionStore using Redis hashes.
type SessionStore struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewSessionStore creates a new [SessionStore] instance.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a given session key.
func (r *SessionStore) redisKey(key string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, key)
}

// Set stores the entry and lets Redis expire it at entry.ExpiresAt.
func (r *SessionStore) Set(ctx context.Context, key string, entry *cache.SessionEntry) error {
	rkey := r.redisKey(key)

	fields := map[string]interface{}{
		"id":         entry.ID,
		"user_id":    entry.UserID,
		"token":      entry.Token,
		"created_at": entry.CreatedAt.Unix(),
		"expires_at": entry.ExpiresAt.Unix(),
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, rkey)
	pipe.HSet(ctx, rkey, fields)
	if !entry.ExpiresAt.IsZero() {
		pipe.ExpireAt(ctx, rkey, entry.ExpiresAt)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}

	return nil
}

// Get retrieves a session entry from Redis.
func (r *SessionStore) Get(ctx context.Context, key string) (*cache.SessionEntry, error) {
	res, err := r.client.HGetAll(ctx, r.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}

	if len(res) == 0 {
		return nil, cache.ErrSessionNotFound
	}

	createdAt, err := parseUnix(res["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for session %s: %w", key, err)
	}

	expiresAt, err := parseUnix(res["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at for session %s: %w", key, err)
	}

	return &cache.SessionEntry{
		ID:        res["id"],
		UserID:    res["user_id"],
		Token:     res["token"],
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes a session from Redis. Deleting a missing key is not an error.
func (r *SessionStore) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, r.redisKey(key)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

func parseUnix(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if sec <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0), nil
}
