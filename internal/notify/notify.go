// Package notify delivers account lifecycle email. Delivery is
// fire-and-forget from the engine's point of view: a failed welcome or
// reset mail is logged, never surfaced into the auth flow's result.
package notify

import (
	"context"
	"errors"
)

// ErrDeliveryFailed is returned when the mail provider rejected or
// could not accept the message.
var ErrDeliveryFailed = errors.New("mail delivery failed")

// Mailer renders and sends the account lifecycle messages.
type Mailer interface {
	// SendWelcome greets a freshly registered user.
	SendWelcome(ctx context.Context, email, firstName string) error
	// SendPasswordReset delivers the reset link carrying token.
	SendPasswordReset(ctx context.Context, email, firstName, token string) error
}

// NoOp is a Mailer that silently discards everything.
type NoOp struct{}

func (NoOp) SendWelcome(context.Context, string, string) error                { return nil }
func (NoOp) SendPasswordReset(context.Context, string, string, string) error { return nil }
