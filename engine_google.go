package eduauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aimlabs/eduauth/internal/googleid"
	"github.com/aimlabs/eduauth/internal/store"
)

// GoogleLogin signs in with a Google ID token, creating the account on
// first contact. Federated accounts always start as students; elevated
// roles are granted out of band, never claimed by the client. The OTP
// gate is skipped because Google has already verified the identity.
func (e *Engine) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if e.google == nil {
		return nil, errors.New("eduauth: google login not configured")
	}

	identity, err := e.google.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, googleid.ErrInvalidToken) {
			e.emit(ctx, auditGoogleLogin, "", "", "", false, err, nil)
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	email := normalizeEmail(identity.Email)
	user, err := e.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		user, err = e.createFederated(ctx, email, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	// A verified Google address vouches for an account that registered
	// with a password but never confirmed its email.
	if identity.EmailVerified && !user.EmailVerified {
		if err := e.users.MarkEmailVerified(ctx, user.ID); err != nil {
			e.logger.Warn("email verification mark failed", "user_id", user.ID, "error", err)
		} else {
			user.EmailVerified = true
		}
	}

	session, err := e.issueSession(user)
	if err != nil {
		return nil, err
	}
	e.metrics.LoginSuccess.Add(1)
	e.emit(ctx, auditGoogleLogin, user.ID, email, "", true, nil, nil)
	return session, nil
}

func (e *Engine) createFederated(ctx context.Context, email string, identity *googleid.Identity) (*store.User, error) {
	// The hash slot is filled with an unusable value so every account
	// verifies in constant shape; credential login stays impossible until
	// SetPassword installs a real one.
	decoy, err := e.hasher.RandomUnusableHash()
	if err != nil {
		return nil, err
	}

	user := &store.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  decoy,
		FirstName:     identity.GivenName,
		LastName:      identity.FamilyName,
		Role:          string(RoleStudent),
		IsActive:      true,
		EmailVerified: identity.EmailVerified,
		ExternalID:    identity.Subject,
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			// Raced with another first login for the same address.
			return e.users.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	e.metrics.RegistrationCompleted.Add(1)
	return user, nil
}
