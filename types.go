package eduauth

import (
	"strings"
	"time"
)

// Role is the account's coarse authorization level. It rides inside the
// JWT, so changing a user's role only takes effect as tokens roll over.
type Role string

const (
	// RoleStudent is the default role for self-service registrations.
	RoleStudent Role = "student"
	// RoleInstructor is selectable at registration.
	RoleInstructor Role = "instructor"
	// RoleAdmin is never self-assignable; it is granted out of band.
	RoleAdmin Role = "admin"
)

// ParseRole resolves the self-assignable roles. Empty defaults to
// student; admin and unknown values are rejected.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleStudent:
		return RoleStudent, nil
	case RoleInstructor:
		return RoleInstructor, nil
	}
	return "", ErrInvalidRole
}

// RegistrationInput is the payload of a registration submission.
type RegistrationInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Bio       string
	Role      string
}

// RegistrationReceipt acknowledges a staged registration. Token is the
// opaque handle the client echoes back on verify and resend; it is not a
// JWT and grants nothing on its own.
type RegistrationReceipt struct {
	Token        string
	OTPExpiresAt time.Time
}

// TokenPair is an issued access/refresh token couple.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is the result of a successful login, registration, or refresh.
type Session struct {
	TokenPair
	User UserView
}

// Identity is the verified claim set behind a presented access token.
type Identity struct {
	UserID    string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// UserView is the externally visible account projection. It never carries
// the password hash.
type UserView struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	Bio           string
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
}
