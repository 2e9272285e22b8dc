// Package otp abstracts the one-time-passcode delivery provider. The
// engine only sees the Gateway contract and the provider's status
// vocabulary; the Twilio Verify implementation lives in twilio.go.
package otp

import (
	"context"
	"errors"
)

// Status is the provider's verdict on a verification attempt.
type Status string

const (
	// StatusPending means a code was sent and not yet checked.
	StatusPending Status = "pending"
	// StatusApproved means the submitted code matched.
	StatusApproved Status = "approved"
	// StatusRejected means the submitted code did not match.
	StatusRejected Status = "rejected"
	// StatusExpired means the verification lapsed before a valid check.
	StatusExpired Status = "expired"
)

// ErrSendFailed is returned when the provider could not dispatch a code.
var ErrSendFailed = errors.New("otp send failed")

// ErrCheckFailed is returned when the provider could not evaluate a code.
var ErrCheckFailed = errors.New("otp check failed")

// Gateway sends codes to phones and checks submitted codes.
type Gateway interface {
	// Send dispatches a fresh code to phone over SMS.
	Send(ctx context.Context, phone string) (Status, error)
	// Check evaluates code against the pending verification for phone.
	Check(ctx context.Context, phone, code string) (Status, error)
}
