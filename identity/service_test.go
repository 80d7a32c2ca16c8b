package identity

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/feelscape/cache"
	"go.pilab.hu/feelscape/domain"
	autherrors "go.pilab.hu/feelscape/errors"
	"go.pilab.hu/feelscape/internal/audit"
)

const testSecret = "test-secret"

type fixture struct {
	accounts *memAccounts
	sessions *cache.MemorySessionStore
	signer   *TokenSigner
	svc      *Service
	auditLog *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := NewTokenSigner(testSecret, time.Hour)
	require.NoError(t, err)

	sessions := cache.NewMemorySessionStore()
	t.Cleanup(func() { _ = sessions.Close() })

	f := &fixture{
		accounts: newMemAccounts(),
		sessions: sessions,
		signer:   signer,
		auditLog: &bytes.Buffer{},
	}
	f.svc = f.newService()
	return f
}

func (f *fixture) newService() *Service {
	return NewService(f.accounts, f.sessions, f.signer,
		WithPasswordHasher(fastHasher()),
		WithAuditLogger(audit.NewWithLogger(zerolog.New(f.auditLog))),
	)
}

// recorder collects listener notifications as uids, "" for signed out.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) listen(u domain.IdentityUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u == nil {
		r.events = append(r.events, "")
		return
	}
	r.events = append(r.events, u.UID())
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestService_CreateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.svc.CreateUserWithEmailAndPassword(ctx, " Jane@X.com ", "secret1")
	require.NoError(t, err)
	require.NotNil(t, u)

	assert.NotEmpty(t, u.UID())
	assert.Equal(t, "jane@x.com", u.Email())
	assert.Empty(t, u.DisplayName())
	assert.Equal(t, u.UID(), f.svc.CurrentUser().UID())

	entry, err := f.sessions.Get(ctx, cache.DeviceKey)
	require.NoError(t, err)
	assert.Equal(t, u.UID(), entry.UserID)

	stored, err := f.accounts.GetAccountByID(ctx, u.UID())
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)

	assert.Contains(t, f.auditLog.String(), `"action":"sign_up"`)
}

func TestService_CreateUser_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateUserWithEmailAndPassword(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, autherrors.ErrInvalidEmail)

	_, err = f.svc.CreateUserWithEmailAndPassword(ctx, "jane@localhost", "secret1")
	assert.ErrorIs(t, err, autherrors.ErrInvalidEmail)

	_, err = f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "12345")
	assert.ErrorIs(t, err, autherrors.ErrWeakPassword)
	assert.Equal(t, "The password must be 6 characters long or more.", err.Error())

	_, err = f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)
	_, err = f.svc.CreateUserWithEmailAndPassword(ctx, "JANE@x.com", "secret2")
	assert.ErrorIs(t, err, autherrors.ErrEmailAlreadyInUse)
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.svc.SignOut(ctx))
	assert.Nil(t, f.svc.CurrentUser())

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.SignInWithEmailAndPassword(ctx, "jane@x.com", "nope123")
		assert.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
		assert.Nil(t, f.svc.CurrentUser())
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.SignInWithEmailAndPassword(ctx, "bob@x.com", "secret1")
		assert.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("success ignores email case", func(t *testing.T) {
		u, err := f.svc.SignInWithEmailAndPassword(ctx, "JANE@x.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, created.UID(), u.UID())
		assert.Equal(t, created.UID(), f.svc.CurrentUser().UID())

		stored, err := f.accounts.GetAccountByID(ctx, u.UID())
		require.NoError(t, err)
		assert.False(t, stored.LastLoginAt.IsZero())
	})
}

func TestService_SignIn_UnknownEmailVerifiesPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hasher := &countingHasher{PasswordHasher: fastHasher()}
	svc := NewService(f.accounts, f.sessions, f.signer, WithPasswordHasher(hasher))

	_, err := svc.SignInWithEmailAndPassword(ctx, "nobody@x.com", "secret1")
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	assert.Equal(t, int32(1), hasher.verifies.Load())

	_, err = svc.SignInWithEmailAndPassword(ctx, "nobody@x.com", "secret2")
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	assert.Equal(t, int32(2), hasher.verifies.Load())
	assert.Nil(t, svc.CurrentUser())
}

func TestService_Listeners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec := &recorder{}
	remove := f.svc.AddSessionListener(rec.listen)
	assert.Equal(t, []string{""}, rec.snapshot(), "fired at subscription with the current user")

	u, err := f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.svc.SignOut(ctx))

	assert.Equal(t, []string{"", u.UID(), ""}, rec.snapshot())

	late := &recorder{}
	f.svc.AddSessionListener(late.listen)
	_, err = f.svc.SignInWithEmailAndPassword(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, []string{"", u.UID()}, late.snapshot())

	remove()
	remove()
	require.NoError(t, f.svc.SignOut(ctx))
	assert.Equal(t, []string{"", u.UID(), "", u.UID()}, rec.snapshot())
	assert.Equal(t, []string{"", u.UID(), ""}, late.snapshot())
}

func TestService_CurrentUserIsUntypedNil(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.svc.CurrentUser() == nil)
}

func TestService_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("no stored session", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.Restore(ctx))
		assert.Nil(t, f.svc.CurrentUser())
	})

	t.Run("valid session", func(t *testing.T) {
		f := newFixture(t)
		u, err := f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
		require.NoError(t, err)
		require.NoError(t, u.UpdateProfile(ctx, "Jane"))

		restarted := f.newService()
		rec := &recorder{}
		restarted.AddSessionListener(rec.listen)

		require.NoError(t, restarted.Restore(ctx))
		cur := restarted.CurrentUser()
		require.NotNil(t, cur)
		assert.Equal(t, u.UID(), cur.UID())
		assert.Equal(t, "Jane", cur.DisplayName())
		assert.Equal(t, []string{"", u.UID()}, rec.snapshot())
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
		require.NoError(t, err)

		other, err := NewTokenSigner("other-secret", time.Hour)
		require.NoError(t, err)
		restarted := NewService(f.accounts, f.sessions, other, WithPasswordHasher(fastHasher()))

		require.NoError(t, restarted.Restore(ctx))
		assert.Nil(t, restarted.CurrentUser())
		_, err = f.sessions.Get(ctx, cache.DeviceKey)
		assert.ErrorIs(t, err, cache.ErrSessionNotFound, "stale entry removed")
	})

	t.Run("account gone", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
		require.NoError(t, err)
		f.accounts.failGet = domain.ErrAccountNotFound

		restarted := f.newService()
		require.NoError(t, restarted.Restore(ctx))
		assert.Nil(t, restarted.CurrentUser())
	})

	t.Run("subject mismatch", func(t *testing.T) {
		f := newFixture(t)
		token, claims, err := f.signer.Issue("uid-a")
		require.NoError(t, err)
		require.NoError(t, f.sessions.Set(ctx, cache.DeviceKey, &cache.SessionEntry{
			ID: claims.ID, UserID: "uid-b", Token: token, ExpiresAt: claims.ExpiresAt.Time,
		}))

		require.NoError(t, f.svc.Restore(ctx))
		assert.Nil(t, f.svc.CurrentUser())
	})
}

type failingSessions struct{ cache.SessionStore }

func (failingSessions) Delete(context.Context, string) error { return errors.New("store down") }

func TestService_SignOutClearsLocalStateOnStoreError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)

	f.svc.sessions = failingSessions{f.sessions}
	err = f.svc.SignOut(ctx)
	require.Error(t, err)
	assert.Nil(t, f.svc.CurrentUser())
}

func TestUser_UpdateProfileAndReload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.svc.CreateUserWithEmailAndPassword(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, u.UpdateProfile(ctx, "Jane"))
	assert.Equal(t, "Jane", u.DisplayName())
	assert.Equal(t, 1, f.accounts.updates)

	// Another device renames the account.
	require.NoError(t, f.accounts.UpdateDisplayName(ctx, u.UID(), "Janet"))
	assert.Equal(t, "Jane", u.DisplayName())
	require.NoError(t, u.Reload(ctx))
	assert.Equal(t, "Janet", u.DisplayName())

	f.accounts.failGet = errors.New("unreachable")
	require.Error(t, u.Reload(ctx))
	assert.Equal(t, "Janet", u.DisplayName())
}
