package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemorySessionStore implements SessionStore using ttlcache. Entries expire
// at their own ExpiresAt.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, SessionEntry]
}

// NewMemorySessionStore creates a new in-memory session store with automatic
// cleanup. Close stops the cleanup goroutine.
func NewMemorySessionStore() *MemorySessionStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, SessionEntry](),
	)

	go cache.Start()

	return &MemorySessionStore{
		cache: cache,
	}
}

// Set implements SessionStore.Set.
func (s *MemorySessionStore) Set(_ context.Context, key string, entry *SessionEntry) error {
	ttl := ttlcache.NoTTL
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			s.cache.Delete(HashKey(key))
			return nil
		}
	}
	s.cache.Set(HashKey(key), *entry, ttl)
	return nil
}

// Get implements SessionStore.Get.
func (s *MemorySessionStore) Get(_ context.Context, key string) (*SessionEntry, error) {
	item := s.cache.Get(HashKey(key))
	if item == nil || item.IsExpired() {
		return nil, ErrSessionNotFound
	}

	entry := item.Value()
	return &entry, nil
}

// Delete removes a session from the cache.
func (s *MemorySessionStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(HashKey(key))

	return nil
}


// Close stops the cleanup goroutine.
func (s *MemorySessionStore) Close() error {
	s.cache.Stop()

	return nil
}
