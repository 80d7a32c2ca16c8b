package domain

import (
	"context"
	"time"

	autherrors "go.pilab.hu/feelscape/errors"
)

// AccountsCollection holds the identity records.
const AccountsCollection = "accounts"

var (
	ErrAccountNotFound   = autherrors.ErrAccountNotFound
	ErrEmailAlreadyInUse = autherrors.ErrEmailAlreadyInUse
)

// Account is the identity record of a user: credentials plus the
// authoritative display name.
type Account struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"` // Stored lower-cased
	PasswordHash string    `bson:"password_hash"`
	DisplayName  string    `bson:"display_name"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
	LastLoginAt  time.Time `bson:"last_login_at,omitempty"`
}

// AccountRepository persists identity records.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
