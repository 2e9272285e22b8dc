package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher wraps a Mailer and sends in the background. Auth flows
// must not block on or fail because of mail delivery, so each send runs
// on its own goroutine against a detached context; failures are logged.
type Dispatcher struct {
	mailer  Mailer
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher wraps mailer. A nil logger discards delivery failures.
func NewDispatcher(mailer Mailer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		mailer:  mailer,
		logger:  logger,
		timeout: 15 * time.Second,
	}
}

// Welcome queues a welcome mail.
func (d *Dispatcher) Welcome(email, firstName string) {
	d.dispatch("welcome", email, func(ctx context.Context) error {
		return d.mailer.SendWelcome(ctx, email, firstName)
	})
}

// PasswordReset queues a reset mail.
func (d *Dispatcher) PasswordReset(email, firstName, token string) {
	d.dispatch("password_reset", email, func(ctx context.Context) error {
		return d.mailer.SendPasswordReset(ctx, email, firstName, token)
	})
}

func (d *Dispatcher) dispatch(kind, email string, send func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			d.logger.Warn("mail delivery failed",
				slog.String("kind", kind),
				slog.String("email", email),
				slog.Any("error", err))
		}
	}()
}

// Flush blocks until all queued sends have finished. Test hook.
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}
