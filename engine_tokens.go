package eduauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimlabs/eduauth/internal/store"
	"github.com/aimlabs/eduauth/token"
)

// Validate verifies an access token end to end: signature, expiry, kind
// and revocation list. This is the check behind every protected route.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := e.parseLive(ctx, accessToken, token.KindAccess)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID:    claims.Subject,
		Role:      Role(claims.Role),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// refresh token itself is not rotated; it stays valid until it expires
// naturally or the client logs out.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := e.parseLive(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		e.metrics.RefreshFailure.Add(1)
		e.emit(ctx, auditRefreshFailure, "", "", "", false, err, nil)
		return nil, err
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.metrics.RefreshFailure.Add(1)
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !user.IsActive {
		e.metrics.RefreshFailure.Add(1)
		e.emit(ctx, auditRefreshFailure, user.ID, user.Email, "", false, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	access, _, err := e.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	session := &Session{
		TokenPair: TokenPair{AccessToken: access, RefreshToken: refreshToken},
		User:      userView(user),
	}
	e.metrics.RefreshSuccess.Add(1)
	e.emit(ctx, auditRefreshSuccess, user.ID, user.Email, "", true, nil, nil)
	return session, nil
}

// Logout revokes the presented tokens. Both arguments are optional;
// revoking an already revoked or expired token is a success, so logout
// is idempotent from the client's point of view.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var userID string
	for _, presented := range []struct {
		raw  string
		kind token.Kind
	}{
		{accessToken, token.KindAccess},
		{refreshToken, token.KindRefresh},
	} {
		if presented.raw == "" {
			continue
		}
		claims, err := e.tokens.Parse(presented.raw, presented.kind)
		if err != nil {
			// Expired or garbage tokens have nothing left to revoke.
			continue
		}
		if err := e.revoke(ctx, claims); err != nil {
			return err
		}
		userID = claims.Subject
	}
	e.emit(ctx, auditLogout, userID, "", "", true, nil, nil)
	return nil
}

// CurrentUser resolves an access token to the account behind it.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*UserView, error) {
	identity, err := e.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := e.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	view := userView(user)
	return &view, nil
}

// parseLive parses raw as kind and rejects revoked token IDs.
func (e *Engine) parseLive(ctx context.Context, raw string, kind token.Kind) (*token.Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	claims, err := e.tokens.Parse(raw, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	revoked, err := e.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (e *Engine) revoke(ctx context.Context, claims *token.Claims) error {
	if err := e.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	e.metrics.TokensRevoked.Add(1)
	return nil
}

// PurgeRevoked evicts revocation entries whose tokens have expired
// anyway. Meant to run periodically from the service binary.
func (e *Engine) PurgeRevoked(ctx context.Context) (int64, error) {
	return e.revocations.PurgeExpired(ctx, e.now())
}
