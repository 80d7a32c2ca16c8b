package cache

import (
	"context"
	"time"

	autherrors "go.pilab.hu/feelscape/errors"
)

// DeviceKey is the key under which the signed-in session of this device is
// kept.
const DeviceKey = "device"

// ErrSessionNotFound is returned by Get when no live entry exists.
var ErrSessionNotFound = autherrors.ErrSessionNotFound

// SessionEntry is a persisted device session.
type SessionEntry struct {
	ID        string    // Token id (jti)
	UserID    string    // Account the token was issued to
	Token     string    // Signed session token
	CreatedAt time.Time // Issue time
	ExpiresAt time.Time // Expiration timestamp
}

// Expired reports whether the entry is past its expiry at now.
func (e *SessionEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// SessionStore persists device sessions between runs.
type SessionStore interface {
	Set(ctx context.Context, key string, entry *SessionEntry) error
	Get(ctx context.Context, key string) (*SessionEntry, error)
	Delete(ctx context.Context, key string) error
}
