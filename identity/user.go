package identity

import (
	"context"
	"sync"

	"go.pilab.hu/feelscape/domain"
)

// User is a handle on a signed-in account. Its fields reflect the account at
// the last sign-in, profile update or Reload.
type User struct {
	svc *Service
	uid string

	mu          sync.RWMutex
	email       string
	displayName string
}

var _ domain.IdentityUser = (*User)(nil)

func newUser(svc *Service, a *domain.Account) *User {
	return &User{svc: svc, uid: a.ID, email: a.Email, displayName: a.DisplayName}
}

func (u *User) UID() string { return u.uid }

func (u *User) Email() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.email
}

func (u *User) DisplayName() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.displayName
}

// UpdateProfile persists a new display name to the account record.
func (u *User) UpdateProfile(ctx context.Context, displayName string) error {
	if err := u.svc.accounts.UpdateDisplayName(ctx, u.uid, displayName); err != nil {
		u.svc.audit.Log("update_profile", u.uid, u.Email(), err)
		return err
	}
	u.mu.Lock()
	u.displayName = displayName
	u.mu.Unlock()
	u.svc.audit.Log("update_profile", u.uid, u.Email(), nil)
	return nil
}

// Reload re-reads the account record.
func (u *User) Reload(ctx context.Context) error {
	a, err := u.svc.accounts.GetAccountByID(ctx, u.uid)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.email = a.Email
	u.displayName = a.DisplayName
	u.mu.Unlock()
	return nil
}
