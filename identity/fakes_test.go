package identity

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/feelscape/domain"
	"go.pilab.hu/feelscape/internal/auth"
)

type memAccounts struct {
	mu      sync.Mutex
	byID    map[string]domain.Account
	updates int
	failGet error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[string]domain.Account)}
}

func (m *memAccounts) CreateAccount(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, a.Email) {
			return domain.ErrEmailAlreadyInUse
		}
	}
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) GetAccountByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (m *memAccounts) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *memAccounts) UpdateDisplayName(_ context.Context, id, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.DisplayName = displayName
	m.byID[id] = a
	m.updates++
	return nil
}

func (m *memAccounts) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.LastLoginAt = at
	m.byID[id] = a
	return nil
}

func fastHasher() auth.PasswordHasher {
	return auth.NewBcryptPasswordHasher(bcrypt.MinCost)
}

// countingHasher counts Verify calls on top of a fast bcrypt hasher.
type countingHasher struct {
	auth.PasswordHasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(hashedPassword, password string) error {
	h.verifies.Add(1)
	return h.PasswordHasher.Verify(hashedPassword, password)
}
