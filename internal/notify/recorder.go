package notify

import (
	"context"
	"sync"
)

// Sent is one recorded delivery.
type Sent struct {
	Kind      string
	Email     string
	FirstName string
	Token     string
}

// Recorder is a Mailer for tests that captures deliveries in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) SendWelcome(ctx context.Context, email, firstName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{Kind: "welcome", Email: email, FirstName: firstName})
	return nil
}

func (r *Recorder) SendPasswordReset(ctx context.Context, email, firstName, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{Kind: "password_reset", Email: email, FirstName: firstName, Token: token})
	return nil
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}
