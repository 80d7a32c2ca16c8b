package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"go.pilab.hu/feelscape/domain"
	"go.pilab.hu/feelscape/internal/retry"
	"go.pilab.hu/feelscape/tracing"
)

const (
	stepIdentityUpdate = "identity_update"
	stepProfileMirror  = "profile_mirror"
	stepSinglePath     = "profile_save_single"
)

var errUserUnavailable = errors.New(MsgUserUnavailable)

// SaveOptions bounds the profile save procedure.
type SaveOptions struct {
	IdentityTimeout time.Duration // Per attempt, step A
	DocumentTimeout time.Duration // Per attempt, step B
	Attempts        int           // Per step

	// SinglePath runs both writes once inside SinglePathTimeout, without
	// retries and without the unchanged-name short-circuit.
	SinglePath        bool
	SinglePathTimeout time.Duration
}

// DefaultSaveOptions returns the production save budget.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{
		IdentityTimeout:   8 * time.Second,
		DocumentTimeout:   12 * time.Second,
		Attempts:          2,
		SinglePathTimeout: 15 * time.Second,
	}
}

// saveProfile updates the identity display name, then mirrors it into the
// profile document. Step B only runs after step A succeeded. If step B fails
// the identity and the document disagree until the next successful save.
func (c *AuthController) saveProfile(ctx context.Context, displayName string) error {
	user := c.identity.CurrentUser()
	if user == nil {
		return domain.ErrNoSignedInUser
	}
	newName := strings.TrimSpace(displayName)

	ctx, span := tracing.Start(ctx, "auth.SaveProfile", attribute.String("uid", user.UID()))
	var err error
	defer func() { tracing.End(span, err) }()

	if c.saveOpts.SinglePath {
		err = c.saveSinglePath(ctx, user, newName)
		return err
	}

	if newName == user.DisplayName() {
		log.Debug().Str("uid", user.UID()).Msg("Display name unchanged, nothing to save")
		return nil
	}

	stepA := retry.Policy{
		Name:     stepIdentityUpdate,
		Attempts: c.saveOpts.Attempts,
		Timeout:  c.saveOpts.IdentityTimeout,
		Observer: c.metrics.RemoteAttempt,
	}
	err = stepA.Do(ctx, func(ctx context.Context, attempt int) error {
		log.Debug().Int("attempt", attempt).Msg("Updating identity display name")
		return user.UpdateProfile(ctx, newName)
	})
	if err != nil {
		return err
	}

	stepB := retry.Policy{
		Name:     stepProfileMirror,
		Attempts: c.saveOpts.Attempts,
		Timeout:  c.saveOpts.DocumentTimeout,
		Observer: c.metrics.RemoteAttempt,
	}
	err = stepB.Do(ctx, func(ctx context.Context, attempt int) error {
		log.Debug().Int("attempt", attempt).Msg("Mirroring display name to profile document")
		return c.profiles.MergeProfile(ctx, user.UID(), domain.ProfileUpdate{DisplayName: newName})
	})
	if err != nil {
		log.Warn().Err(err).Str("uid", user.UID()).
			Msg("Identity display name updated but profile document was not; mirror is stale")
		c.metrics.MirrorDivergence()
		return err
	}
	return nil
}

func (c *AuthController) saveSinglePath(ctx context.Context, user domain.IdentityUser, newName string) error {
	p := retry.Policy{
		Name:     stepSinglePath,
		Attempts: 1,
		Timeout:  c.saveOpts.SinglePathTimeout,
		Observer: c.metrics.RemoteAttempt,
	}
	return p.Do(ctx, func(ctx context.Context, _ int) error {
		if err := user.UpdateProfile(ctx, newName); err != nil {
			return err
		}
		return c.profiles.MergeProfile(ctx, user.UID(), domain.ProfileUpdate{DisplayName: newName})
	})
}
