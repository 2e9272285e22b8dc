package otp

import (
	"context"
	"sync"
)

// Fake is an in-process Gateway for tests. It records sends and
// approves exactly the configured code per phone.
type Fake struct {
	mu       sync.Mutex
	codes    map[string]string
	sends    map[string]int
	SendErr  error
	CheckErr error
	// SendStatus, when set, is returned by Send instead of StatusPending.
	SendStatus Status
}

// NewFake creates an empty fake gateway.
func NewFake() *Fake {
	return &Fake{
		codes: make(map[string]string),
		sends: make(map[string]int),
	}
}

// SetCode fixes the code that Check will approve for phone.
func (f *Fake) SetCode(phone, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[phone] = code
}

// Expire discards the pending code for phone so the next Check reports
// StatusExpired.
func (f *Fake) Expire(phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.codes, phone)
}

// Sends reports how many codes were dispatched to phone.
func (f *Fake) Sends(phone string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[phone]
}

func (f *Fake) Send(ctx context.Context, phone string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return "", f.SendErr
	}
	if f.SendStatus != "" {
		return f.SendStatus, nil
	}
	f.sends[phone]++
	if _, fixed := f.codes[phone]; !fixed {
		f.codes[phone] = "123456"
	}
	return StatusPending, nil
}

func (f *Fake) Check(ctx context.Context, phone, code string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CheckErr != nil {
		return "", f.CheckErr
	}
	want, ok := f.codes[phone]
	if !ok {
		return StatusExpired, nil
	}
	if code != want {
		return StatusRejected, nil
	}
	return StatusApproved, nil
}
