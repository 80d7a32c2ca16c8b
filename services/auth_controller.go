package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"go.pilab.hu/feelscape/domain"
	"go.pilab.hu/feelscape/internal/metrics"
	"go.pilab.hu/feelscape/internal/observable"
	"go.pilab.hu/feelscape/tracing"
)

// User-facing messages.
const (
	MsgCredentialsRequired = "Email and password required"
	MsgLoginFailed         = "Login failed"
	MsgSignUpInvalid       = "Enter name, email, and 6+ char password"
	MsgSignUpFailed        = "Sign up failed"
	MsgUserUnavailable     = "User not available after sign up"
	MsgDisplayNameFailed   = "Failed to set display name"
	MsgProfileWriteFailed  = "Saved account but failed writing profile"
	MsgSaveFailed          = "Save failed"
)

const minPasswordLength = 6

// ControllerOption configures an AuthController.
type ControllerOption func(*AuthController)

// WithSaveOptions overrides the profile save timeouts and attempts.
func WithSaveOptions(opts SaveOptions) ControllerOption {
	return func(c *AuthController) { c.saveOpts = opts }
}

// WithMetrics reports flow outcomes to r.
func WithMetrics(r metrics.Recorder) ControllerOption {
	return func(c *AuthController) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithClock replaces the clock used for client-captured timestamps.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *AuthController) { c.now = now }
}

// AuthController is the single authority for authentication actions and for
// keeping the in-memory Session consistent with the identity service and the
// profile document store. Every operation returns immediately; outcomes are
// published through the observable state.
type AuthController struct {
	identity domain.IdentityService
	profiles domain.ProfileRepository
	saveOpts SaveOptions
	metrics  metrics.Recorder
	now      func() time.Time

	session   *observable.Value[*domain.Session]
	ui        *observable.Value[domain.AuthUIState]
	save      *observable.Value[domain.SaveState]
	authReady *observable.Value[bool]
	readyOnce sync.Once

	refreshMu sync.Mutex // serializes refreshes

	ctx            context.Context
	cancel         context.CancelFunc
	tasks          sync.WaitGroup
	closed         atomic.Bool
	removeListener func()
}

// NewAuthController creates the controller, seeds the Session from an
// already-active identity and subscribes to session changes.
func NewAuthController(identity domain.IdentityService, profiles domain.ProfileRepository, opts ...ControllerOption) *AuthController {
	ctx, cancel := context.WithCancel(context.Background())
	c := &AuthController{
		identity:  identity,
		profiles:  profiles,
		saveOpts:  DefaultSaveOptions(),
		metrics:   metrics.Nop{},
		now:       time.Now,
		session:   observable.New[*domain.Session](nil),
		ui:        observable.New(domain.AuthUIState{}),
		save:      observable.New(domain.SaveState{}),
		authReady: observable.New(false),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Seed from cached identity fields so the UI does not flash signed-out
	// while the authoritative refresh runs.
	if u := identity.CurrentUser(); u != nil {
		c.session.Store(domain.SessionFromIdentity(u))
	}

	c.removeListener = identity.AddSessionListener(c.onSessionChange)
	return c
}

func (c *AuthController) onSessionChange(u domain.IdentityUser) {
	if u == nil {
		c.session.Store(nil)
	} else {
		c.RefreshAsync()
	}
	c.readyOnce.Do(func() { c.authReady.Store(true) })
}

// Session returns the current session, nil when signed out.
func (c *AuthController) Session() *domain.Session { return c.session.Load() }

// UIState returns the sign-in / sign-up form state.
func (c *AuthController) UIState() domain.AuthUIState { return c.ui.Load() }

// SaveState returns the profile edit state.
func (c *AuthController) SaveState() domain.SaveState { return c.save.Load() }

// AuthReady reports whether the first session notification has arrived.
func (c *AuthController) AuthReady() bool { return c.authReady.Load() }

// WatchSession streams session snapshots until cancel is called.
func (c *AuthController) WatchSession() (<-chan *domain.Session, func()) {
	return c.session.Subscribe()
}

// WatchUIState streams form state snapshots until cancel is called.
func (c *AuthController) WatchUIState() (<-chan domain.AuthUIState, func()) {
	return c.ui.Subscribe()
}

// WatchSaveState streams save state snapshots until cancel is called.
func (c *AuthController) WatchSaveState() (<-chan domain.SaveState, func()) {
	return c.save.Subscribe()
}

// WatchAuthReady streams the auth-ready flag until cancel is called.
func (c *AuthController) WatchAuthReady() (<-chan bool, func()) {
	return c.authReady.Subscribe()
}

// SignIn validates the credentials locally, then signs in remotely.
// onSuccess runs once after a successful sign-in.
func (c *AuthController) SignIn(email, password string, onSuccess func()) {
	if isBlank(email) || isBlank(password) {
		c.ui.Update(func(s domain.AuthUIState) domain.AuthUIState {
			s.Error = MsgCredentialsRequired
			return s
		})
		c.metrics.SignIn(metrics.ResultInvalid)
		return
	}
	c.ui.Store(domain.AuthUIState{Loading: true})

	email = strings.TrimSpace(email)
	c.goAsync(func(ctx context.Context) {
		ctx, span := tracing.Start(ctx, "auth.SignIn")
		_, err := c.identity.SignInWithEmailAndPassword(ctx, email, password)
		tracing.End(span, err)

		if err != nil {
			log.Warn().Err(err).Str("email", email).Msg("Sign in failed")
			c.ui.Store(domain.AuthUIState{Error: messageOr(err, MsgLoginFailed)})
			c.metrics.SignIn(metrics.ResultFailure)
			return
		}

		c.ui.Store(domain.AuthUIState{})
		c.metrics.SignIn(metrics.ResultSuccess)
		c.RefreshAsync()
		if onSuccess != nil {
			onSuccess()
		}
	})
}

// SignUp creates the account, sets its display name and writes the profile
// document. Each step short-circuits the rest on failure.
func (c *AuthController) SignUp(displayName, email, password string, onSuccess func()) {
	name := strings.TrimSpace(displayName)
	if name == "" || isBlank(email) || utf8.RuneCountInString(password) < minPasswordLength {
		c.ui.Update(func(s domain.AuthUIState) domain.AuthUIState {
			s.Error = MsgSignUpInvalid
			return s
		})
		c.metrics.SignUp(metrics.ResultInvalid)
		return
	}
	c.ui.Store(domain.AuthUIState{Loading: true})

	email = strings.TrimSpace(email)
	c.goAsync(func(ctx context.Context) {
		ctx, span := tracing.Start(ctx, "auth.SignUp")
		msg, err := c.signUp(ctx, name, email, password)
		tracing.End(span, err)

		if err != nil {
			log.Warn().Err(err).Str("email", email).Msg("Sign up failed")
			c.ui.Store(domain.AuthUIState{Error: messageOr(err, msg)})
			c.metrics.SignUp(metrics.ResultFailure)
			return
		}

		c.ui.Store(domain.AuthUIState{})
		c.metrics.SignUp(metrics.ResultSuccess)
		c.RefreshAsync()
		if onSuccess != nil {
			onSuccess()
		}
	})
}

// signUp returns the fallback message of the failed step along with its error.
func (c *AuthController) signUp(ctx context.Context, name, email, password string) (string, error) {
	user, err := c.identity.CreateUserWithEmailAndPassword(ctx, email, password)
	if err != nil {
		return MsgSignUpFailed, err
	}
	if user == nil {
		return MsgUserUnavailable, errUserUnavailable
	}

	createdAt := c.now().UTC().Truncate(time.Millisecond)

	if err := user.UpdateProfile(ctx, name); err != nil {
		return MsgDisplayNameFailed, err
	}

	doc := &domain.ProfileDocument{
		UID:         user.UID(),
		DisplayName: name,
		Email:       user.Email(),
		CreatedAt:   &createdAt,
	}
	if err := c.profiles.PutProfile(ctx, doc); err != nil {
		return MsgProfileWriteFailed, err
	}

	log.Info().Str("uid", doc.UID).Msg("Account created")
	return "", nil
}

// RefreshSession reloads the identity record, reads the mirrored creation
// time and replaces the Session. A failed document read leaves CreatedAt
// unset; a failed identity reload keeps the previous Session.
func (c *AuthController) RefreshSession(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	u := c.identity.CurrentUser()
	if u == nil {
		c.session.Store(nil)
		return nil
	}

	ctx, span := tracing.Start(ctx, "auth.RefreshSession", attribute.String("uid", u.UID()))
	defer span.End()

	if err := u.Reload(ctx); err != nil {
		log.Warn().Err(err).Str("uid", u.UID()).Msg("Identity reload failed, keeping previous session")
		span.RecordError(err)
		return err
	}

	next := &domain.Session{
		UserID:      u.UID(),
		DisplayName: u.DisplayName(),
		Email:       u.Email(),
		CreatedAt:   c.readCreatedAt(ctx, u.UID()),
	}

	// A sign-out or account switch while reloading wins over this snapshot.
	// The identity is re-read under the cell lock so a concurrent SignOut
	// either sees the stored snapshot or prevents it.
	stored := c.session.CompareAndUpdate(
		func(*domain.Session) bool {
			cur := c.identity.CurrentUser()
			return cur != nil && cur.UID() == next.UserID
		},
		func(*domain.Session) *domain.Session { return next },
	)
	if !stored {
		log.Debug().Str("uid", next.UserID).Msg("Session changed during refresh, dropping snapshot")
	}
	return nil
}

func (c *AuthController) readCreatedAt(ctx context.Context, uid string) *time.Time {
	doc, err := c.profiles.GetProfile(ctx, uid)
	if err != nil {
		log.Debug().Err(err).Str("uid", uid).Msg("Profile document unavailable, createdAt unknown")
		return nil
	}
	return doc.CreatedAt
}

// RefreshAsync runs RefreshSession in the background. Failures are logged by
// RefreshSession and leave the previous Session in place.
func (c *AuthController) RefreshAsync() {
	c.goAsync(func(ctx context.Context) {
		_ = c.RefreshSession(ctx)
	})
}

// OnSaveProfile starts a profile save unless one is already running.
func (c *AuthController) OnSaveProfile(displayName string) {
	started := c.save.CompareAndUpdate(
		func(s domain.SaveState) bool { return !s.IsSaving },
		func(domain.SaveState) domain.SaveState { return domain.SaveState{IsSaving: true} },
	)
	if !started {
		log.Debug().Msg("Profile save already in flight, ignoring")
		return
	}

	c.goAsync(func(ctx context.Context) {
		log.Debug().Msg("Profile save start")
		err := c.saveProfile(ctx, displayName)
		log.Debug().Err(err).Msg("Profile save end")

		if err != nil {
			c.metrics.ProfileSave(metrics.ResultFailure)
			c.save.Store(domain.SaveState{SaveError: messageOr(err, MsgSaveFailed)})
			return
		}

		c.metrics.ProfileSave(metrics.ResultSuccess)
		c.RefreshAsync()
		c.save.Store(domain.SaveState{SaveDone: true})
	})
}

// ResetSaveState clears the save flags. The edit screen calls it on every
// entry so a stale SaveDone does not dismiss it immediately.
func (c *AuthController) ResetSaveState() {
	c.save.Store(domain.SaveState{})
}

// SignOut ends the identity session and clears the Session without waiting
// for the change notification.
func (c *AuthController) SignOut() {
	if err := c.identity.SignOut(c.ctx); err != nil {
		log.Warn().Err(err).Msg("Sign out reported an error")
	}
	c.session.Store(nil)
}

// Wait blocks until all background operations have finished.
func (c *AuthController) Wait() {
	c.tasks.Wait()
}

// Close stops listening for session changes, cancels in-flight remote calls
// and waits for them to return.
func (c *AuthController) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.removeListener != nil {
		c.removeListener()
	}
	c.cancel()
	c.tasks.Wait()
}

func (c *AuthController) goAsync(fn func(ctx context.Context)) {
	if c.closed.Load() {
		return
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn(c.ctx)
	}()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// messageOr returns err's message, or fallback when it has none.
func messageOr(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
