// Package identity implements email/password accounts with a persisted
// device session on top of an account repository and a session store.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/feelscape/cache"
	"go.pilab.hu/feelscape/domain"
	autherrors "go.pilab.hu/feelscape/errors"
	"go.pilab.hu/feelscape/internal/audit"
	"go.pilab.hu/feelscape/internal/auth"
)

const minPasswordLength = 6

// Service implements domain.IdentityService.
type Service struct {
	accounts domain.AccountRepository
	sessions cache.SessionStore
	hasher   auth.PasswordHasher
	signer   *TokenSigner
	audit    *audit.Logger
	now      func() time.Time

	mu      sync.RWMutex // guards current
	current *User

	// Unknown emails are verified against dummyHash so they cost the same
	// as a wrong password.
	dummyOnce sync.Once
	dummyHash string

	// transitions serializes state changes with their notifications so
	// listeners observe them in order.
	transitions sync.Mutex
	listeners   map[uint64]domain.SessionListener
	order       []uint64
	nextID      uint64
}

var _ domain.IdentityService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger records account events to l.
func WithAuditLogger(l *audit.Logger) Option {
	return func(s *Service) { s.audit = l }
}

// WithPasswordHasher replaces the default bcrypt hasher.
func WithPasswordHasher(h auth.PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

// NewService creates a signed-out Service. Call Restore to resume the
// persisted device session.
func NewService(accounts domain.AccountRepository, sessions cache.SessionStore, signer *TokenSigner, opts ...Option) *Service {
	s := &Service{
		accounts:  accounts,
		sessions:  sessions,
		hasher:    auth.NewBcryptPasswordHasher(0),
		signer:    signer,
		now:       time.Now,
		listeners: make(map[uint64]domain.SessionListener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns the signed-in user or nil.
func (s *Service) CurrentUser() domain.IdentityUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return s.current
}

// AddSessionListener registers fn and calls it right away with the current
// user. fn must not add or remove listeners.
func (s *Service) AddSessionListener(fn domain.SessionListener) func() {
	s.transitions.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	fn(s.CurrentUser())
	s.transitions.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.transitions.Lock()
			defer s.transitions.Unlock()
			delete(s.listeners, id)
		})
	}
}

// setCurrent switches the signed-in user and notifies listeners.
func (s *Service) setCurrent(u *User) {
	s.transitions.Lock()
	defer s.transitions.Unlock()

	s.mu.Lock()
	s.current = u
	s.mu.Unlock()

	var arg domain.IdentityUser
	if u != nil {
		arg = u
	}

	live := s.order[:0]
	for _, id := range s.order {
		fn, ok := s.listeners[id]
		if !ok {
			continue
		}
		live = append(live, id)
		fn(arg)
	}
	s.order = live
}

// SignInWithEmailAndPassword verifies the credentials and starts a device
// session.
func (s *Service) SignInWithEmailAndPassword(ctx context.Context, email, password string) (domain.IdentityUser, error) {
	email = normalizeEmail(email)

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.verifyDummy(password)
			err = autherrors.ErrInvalidCredentials
		}
		s.audit.Log("sign_in", "", email, err)
		return nil, err
	}
	if err := s.hasher.Verify(account.PasswordHash, password); err != nil {
		s.audit.Log("sign_in", account.ID, email, autherrors.ErrInvalidCredentials)
		return nil, autherrors.ErrInvalidCredentials
	}

	u, err := s.startSession(ctx, account)
	s.audit.Log("sign_in", account.ID, email, err)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.TouchLastLogin(ctx, account.ID, s.now()); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("uid", account.ID).Msg("Failed to record last login")
	}
	return u, nil
}

// CreateUserWithEmailAndPassword creates an account without a display name
// and signs it in.
func (s *Service) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (domain.IdentityUser, error) {
	email = normalizeEmail(email)

	if err := validateEmail(email); err != nil {
		s.audit.Log("sign_up", "", email, err)
		return nil, err
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		s.audit.Log("sign_up", "", email, autherrors.ErrWeakPassword)
		return nil, autherrors.ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		s.audit.Log("sign_up", "", email, err)
		return nil, err
	}

	u, err := s.startSession(ctx, account)
	s.audit.Log("sign_up", account.ID, email, err)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) startSession(ctx context.Context, account *domain.Account) (*User, error) {
	token, claims, err := s.signer.Issue(account.ID)
	if err != nil {
		return nil, err
	}

	entry := &cache.SessionEntry{
		ID:        claims.ID,
		UserID:    account.ID,
		Token:     token,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.sessions.Set(ctx, cache.DeviceKey, entry); err != nil {
		return nil, fmt.Errorf("persist device session: %w", err)
	}

	u := newUser(s, account)
	s.setCurrent(u)
	log.Ctx(ctx).Info().Str("uid", account.ID).Msg("Signed in")
	return u, nil
}

// SignOut drops the device session. The local state is cleared even when
// the store cannot be reached.
func (s *Service) SignOut(ctx context.Context) error {
	var uid, email string
	if u := s.CurrentUser(); u != nil {
		uid, email = u.UID(), u.Email()
	}

	err := s.sessions.Delete(ctx, cache.DeviceKey)
	if err != nil {
		err = fmt.Errorf("delete device session: %w", err)
	}
	s.setCurrent(nil)
	s.audit.Log("sign_out", uid, email, err)
	return err
}

// Restore resumes the persisted device session. Any problem with the stored
// session leaves the service signed out and removes the stale entry; only
// store failures are returned.
func (s *Service) Restore(ctx context.Context) error {
	entry, err := s.sessions.Get(ctx, cache.DeviceKey)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("load device session: %w", err)
	}

	account, err := s.validate(ctx, entry)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("Discarding stored device session")
		if derr := s.sessions.Delete(ctx, cache.DeviceKey); derr != nil {
			log.Ctx(ctx).Warn().Err(derr).Msg("Failed to delete stale device session")
		}
		return nil
	}

	s.setCurrent(newUser(s, account))
	log.Ctx(ctx).Debug().Str("uid", account.ID).Msg("Device session restored")
	return nil
}

func (s *Service) validate(ctx context.Context, entry *cache.SessionEntry) (*domain.Account, error) {
	if entry.Expired(s.now()) {
		return nil, autherrors.ErrSessionExpired
	}
	claims, err := s.signer.Verify(entry.Token)
	if err != nil {
		return nil, err
	}
	if claims.Subject != entry.UserID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return s.accounts.GetAccountByID(ctx, claims.Subject)
}

func (s *Service) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prepare dummy password hash")
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_ = s.hasher.Verify(s.dummyHash, password)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return autherrors.ErrInvalidEmail
	}
	return nil
}
