package eduauth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for a wrong email/password pair.
	// Unknown email and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked means the account crossed the failed-login threshold
	// and is temporarily blocked. Carried inside a RetryAfterError.
	ErrAccountLocked = errors.New("account locked")
	// ErrIPBlocked means the source address crossed its failure threshold.
	// Carried inside a RetryAfterError.
	ErrIPBlocked = errors.New("source address blocked")
	// ErrAccountDisabled means the account exists but is deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrRateLimited means a fixed-window route quota was exhausted.
	// Carried inside a RetryAfterError.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmailTaken means the email already belongs to a committed account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPhoneInFlight means another registration for the same phone is
	// already awaiting OTP confirmation.
	ErrPhoneInFlight = errors.New("registration already in progress for phone")
	// ErrRegistrationNotFound means the registration token matches no live
	// pending registration. Expired and never-existed are indistinguishable.
	ErrRegistrationNotFound = errors.New("registration not found or expired")
	// ErrOTPInvalid means the submitted code did not match.
	ErrOTPInvalid = errors.New("verification code invalid")
	// ErrOTPExpired means the verification lapsed; the client must restart.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPDeliveryFailed means the provider could not send a code.
	ErrOTPDeliveryFailed = errors.New("verification code delivery failed")

	// ErrTokenInvalid covers malformed, tampered, expired, and wrong-kind
	// tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenRevoked means a structurally valid token was revoked.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrPasswordPolicy means the candidate password fails the strength
	// policy.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrPasswordAlreadySet means SetPassword was called on an account that
	// did not arrive through a federated provider.
	ErrPasswordAlreadySet = errors.New("password already set")
	// ErrInvalidRole means the requested role is not self-assignable.
	ErrInvalidRole = errors.New("invalid role")
	// ErrUserNotFound means the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput means a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackendUnavailable means Redis or the database is unreachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// RetryAfterError wraps a throttling sentinel with the duration after
// which the caller may try again. errors.Is matches the wrapped sentinel.
type RetryAfterError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v: retry after %s", e.Err, e.RetryAfter)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

// retryAfter rounds d up to whole seconds so clients never retry early.
func retryAfter(err error, d time.Duration) error {
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	if d < time.Second {
		d = time.Second
	}
	return &RetryAfterError{Err: err, RetryAfter: d}
}
