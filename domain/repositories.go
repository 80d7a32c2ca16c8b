package domain

import (
	"context"

	autherrors "go.pilab.hu/feelscape/errors"
)

// Errors the controller inspects.
var (
	ErrNoSignedInUser  = autherrors.ErrNoSignedInUser
	ErrProfileNotFound = autherrors.ErrProfileNotFound
)

// IdentityUser is a handle to an authenticated identity.
// The accessor methods return locally cached fields; Reload refreshes them.
type IdentityUser interface {
	UID() string
	DisplayName() string
	Email() string
	UpdateProfile(ctx context.Context, displayName string) error
	Reload(ctx context.Context) error
}

// SessionListener receives the current identity, or nil when signed out.
type SessionListener func(user IdentityUser)

// IdentityService provides email/password authentication and session
// change notifications.
type IdentityService interface {
	SignInWithEmailAndPassword(ctx context.Context, email, password string) (IdentityUser, error)
	CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (IdentityUser, error)
	// CurrentUser returns nil when no session is active.
	CurrentUser() IdentityUser
	// AddSessionListener fires fn once with the current user, then on every
	// session transition. The returned func removes the listener.
	AddSessionListener(fn SessionListener) (remove func())
	SignOut(ctx context.Context) error
}

// ProfileRepository is the document store holding mirrored profile fields.
type ProfileRepository interface {
	// GetProfile returns ErrProfileNotFound when no document exists.
	GetProfile(ctx context.Context, uid string) (*ProfileDocument, error)
	// PutProfile writes the full document, replacing any existing one.
	PutProfile(ctx context.Context, doc *ProfileDocument) error
	// MergeProfile applies a partial update and sets a server-assigned
	// update timestamp.
	MergeProfile(ctx context.Context, uid string, update ProfileUpdate) error
}
