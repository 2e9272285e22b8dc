package eduauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimlabs/eduauth/internal/store"
	"github.com/aimlabs/eduauth/token"
)

// ChangePassword replaces the caller's password after proving the old
// one. The access token stays valid; only the credential changes.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error {
	identity, err := e.Validate(ctx, accessToken)
	if err != nil {
		return err
	}
	if !e.policy.Check(newPassword) {
		return ErrPasswordPolicy
	}

	user, err := e.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	ok, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	if err := e.updateHash(ctx, user.ID, newPassword); err != nil {
		return err
	}
	e.metrics.PasswordChanges.Add(1)
	e.emit(ctx, auditPasswordChanged, user.ID, user.Email, "", true, nil, nil)
	return nil
}

// RequestPasswordReset issues a reset token for the account behind email
// and mails it out. The outcome is identical whether or not the account
// exists; the caller learns nothing about the address.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.emit(ctx, auditPasswordResetRequest, "", email, "", false, store.ErrNotFound, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	resetToken, _, err := e.tokens.IssueReset(user.ID)
	if err != nil {
		return err
	}
	e.mail.PasswordReset(user.Email, user.FirstName, resetToken)
	e.emit(ctx, auditPasswordResetRequest, user.ID, email, "", true, nil, nil)
	return nil
}

// ResetPassword consumes a mailed reset token and installs the new
// password. The token is single use: success revokes its ID, and the
// reset jti namespace keeps it from ever passing as an access or
// refresh token.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := e.parseLive(ctx, resetToken, token.KindReset)
	if err != nil {
		return err
	}
	if !e.policy.Check(newPassword) {
		return ErrPasswordPolicy
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := e.updateHash(ctx, user.ID, newPassword); err != nil {
		return err
	}
	if err := e.revoke(ctx, claims); err != nil {
		return err
	}

	// A reset proves control of the mailbox, and any in-flight lockout on
	// the account is no longer protecting anything.
	if err := e.emailTracker.Reset(ctx, user.Email); err != nil {
		e.logger.Warn("lockout reset failed after password reset", "user_id", user.ID, "error", err)
	}

	e.metrics.PasswordResets.Add(1)
	e.emit(ctx, auditPasswordResetDone, user.ID, user.Email, "", true, nil, nil)
	return nil
}

// SetPassword installs a first password on a federated account so its
// owner can also log in with credentials. Accounts created with a
// password must use ChangePassword, which proves the old one.
func (e *Engine) SetPassword(ctx context.Context, accessToken, newPassword string) error {
	identity, err := e.Validate(ctx, accessToken)
	if err != nil {
		return err
	}
	if !e.policy.Check(newPassword) {
		return ErrPasswordPolicy
	}

	user, err := e.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if user.ExternalID == "" {
		return ErrPasswordAlreadySet
	}

	if err := e.updateHash(ctx, user.ID, newPassword); err != nil {
		return err
	}
	e.metrics.PasswordChanges.Add(1)
	e.emit(ctx, auditPasswordChanged, user.ID, user.Email, "", true, nil, map[string]string{
		"first_password": "true",
	})
	return nil
}

func (e *Engine) updateHash(ctx context.Context, userID, newPassword string) error {
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
