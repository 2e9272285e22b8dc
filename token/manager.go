package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes the three token families the service issues. Each
// kind carries a distinct jti prefix so revocation entries never collide
// across families.
type Kind string

const (
	// KindAccess is the short-lived bearer token presented on protected routes.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived token exchanged for new access tokens.
	KindRefresh Kind = "refresh"
	// KindReset is the single-use password-reset token delivered by email.
	KindReset Kind = "reset"
)

var (
	// ErrTokenInvalid covers signature, expiry, and malformed-claim failures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrWrongKind is returned when a structurally valid token of one family
	// is presented where another family is required.
	ErrWrongKind = errors.New("wrong token kind")
)

// Config holds signing parameters. Only HS256 is supported; the secret
// must be at least 32 bytes.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	Leeway     time.Duration
}

// Claims is the JWT payload for every eduauth token. Subject carries the
// user ID; Kind and the jti prefix together pin the token family.
type Claims struct {
	Role string `json:"role,omitempty"`
	Kind Kind   `json:"knd"`
	jwt.RegisteredClaims
}

// Manager signs and parses eduauth tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// ResetTTL reports the configured reset-token lifetime.
func (m *Manager) ResetTTL() time.Duration { return m.config.ResetTTL }

// IssueAccess signs a fresh access token for the user.
func (m *Manager) IssueAccess(userID, role string) (string, *Claims, error) {
	return m.issue(KindAccess, userID, role, m.config.AccessTTL)
}

// IssueRefresh signs a fresh refresh token for the user.
func (m *Manager) IssueRefresh(userID, role string) (string, *Claims, error) {
	return m.issue(KindRefresh, userID, role, m.config.RefreshTTL)
}

// IssueReset signs a password-reset token for the user.
func (m *Manager) IssueReset(userID string) (string, *Claims, error) {
	return m.issue(KindReset, userID, "", m.config.ResetTTL)
}

func (m *Manager) issue(kind Kind, userID, role string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jtiPrefix(kind) + uuid.NewString(),
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse validates signature, expiry, and issuer, then enforces that the
// token belongs to the expected family. A token of the wrong family is
// rejected with [ErrWrongKind] even when otherwise valid, so reset tokens
// can never be replayed as access or refresh tokens.
func (m *Manager) Parse(tokenStr string, expect Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != expect || !hasJTIPrefix(claims.ID, expect) {
		return nil, ErrWrongKind
	}

	return claims, nil
}

func jtiPrefix(kind Kind) string {
	switch kind {
	case KindAccess:
		return "at-"
	case KindRefresh:
		return "rt-"
	default:
		return "pr-"
	}
}

func hasJTIPrefix(jti string, kind Kind) bool {
	prefix := jtiPrefix(kind)
	return len(jti) > len(prefix) && jti[:len(prefix)] == prefix
}
