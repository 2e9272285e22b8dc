package eduauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimlabs/eduauth/internal/limiters"
	"github.com/aimlabs/eduauth/internal/store"
)

// Login authenticates an email/password pair from the given source
// address. The order of checks is fixed: source-address block, account
// block, then credentials. Both trackers only learn about failures after
// the block checks pass, so a blocked caller cannot inflate counters.
func (e *Engine) Login(ctx context.Context, email, pass, ip string) (*Session, error) {
	email = normalizeEmail(email)

	if ip != "" {
		blocked, wait, err := e.ipTracker.Blocked(ctx, ip)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if blocked {
			e.metrics.LoginIPBlocked.Add(1)
			e.emit(ctx, auditLoginLocked, "", email, ip, false, ErrIPBlocked, nil)
			return nil, retryAfter(ErrIPBlocked, wait)
		}
	}

	blocked, wait, err := e.emailTracker.Blocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if blocked {
		e.metrics.LoginLocked.Add(1)
		e.emit(ctx, auditLoginLocked, "", email, ip, false, ErrAccountLocked, nil)
		return nil, retryAfter(ErrAccountLocked, wait)
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown address burns a verification anyway so timing does
			// not reveal account existence, and the failure still counts.
			e.burnVerify(pass)
			return nil, e.loginFailed(ctx, email, ip, "unknown_email")
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.loginFailed(ctx, email, ip, "bad_password")
	}

	if !user.IsActive {
		e.emit(ctx, auditLoginFailure, user.ID, email, ip, false, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	// Success wipes the account's failure history. The source-address
	// tracker is left alone: one good login from a spraying address is
	// not exoneration.
	if err := e.emailTracker.Reset(ctx, email); err != nil && !errors.Is(err, limiters.ErrBackendUnavailable) {
		return nil, err
	}

	e.maybeUpgradeHash(ctx, user, pass)

	session, err := e.issueSession(user)
	if err != nil {
		return nil, err
	}
	e.metrics.LoginSuccess.Add(1)
	e.emit(ctx, auditLoginSuccess, user.ID, email, ip, true, nil, nil)
	return session, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, reason string) error {
	if _, _, err := e.emailTracker.RecordFailure(ctx, email); err != nil {
		e.logger.Warn("failure tracker unavailable", "identifier", "email", "error", err)
	}
	if ip != "" {
		if _, _, err := e.ipTracker.RecordFailure(ctx, ip); err != nil {
			e.logger.Warn("failure tracker unavailable", "identifier", "ip", "error", err)
		}
	}
	e.metrics.LoginFailure.Add(1)
	e.emit(ctx, auditLoginFailure, "", email, ip, false, ErrInvalidCredentials, map[string]string{
		"reason": reason,
	})
	return ErrInvalidCredentials
}

// burnVerify runs a hash verification against a throwaway hash so the
// unknown-email path costs the same as a wrong password.
func (e *Engine) burnVerify(pass string) {
	if decoy, err := e.hasher.RandomUnusableHash(); err == nil {
		_, _ = e.hasher.Verify(pass, decoy)
	}
}

// maybeUpgradeHash rehashes credentials stored under older cost
// parameters. Best effort: a failed upgrade never blocks the login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *store.User, pass string) {
	if !e.cfg.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.logger.Warn("password hash upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
}
