// Package metrics provides cheap in-process counters for the auth engine.
// Counters are plain atomics; a Snapshot can be exported by whatever
// telemetry layer the host process runs.
package metrics

import "sync/atomic"

// Metrics holds one atomic counter per security-relevant outcome.
// The zero value is ready to use.
type Metrics struct {
	LoginSuccess          atomic.Uint64
	LoginFailure          atomic.Uint64
	LoginLocked           atomic.Uint64
	LoginIPBlocked        atomic.Uint64
	RateLimited           atomic.Uint64
	RegistrationStarted   atomic.Uint64
	RegistrationCompleted atomic.Uint64
	OTPSendFailed         atomic.Uint64
	OTPRejected           atomic.Uint64
	OTPExpired            atomic.Uint64
	RefreshSuccess        atomic.Uint64
	RefreshFailure        atomic.Uint64
	TokensRevoked         atomic.Uint64
	PasswordChanges       atomic.Uint64
	PasswordResets        atomic.Uint64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot map[string]uint64

// Snapshot copies all counters. Returns nil for a nil receiver.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return nil
	}
	return Snapshot{
		"login_success":          m.LoginSuccess.Load(),
		"login_failure":          m.LoginFailure.Load(),
		"login_locked":           m.LoginLocked.Load(),
		"login_ip_blocked":       m.LoginIPBlocked.Load(),
		"rate_limited":           m.RateLimited.Load(),
		"registration_started":   m.RegistrationStarted.Load(),
		"registration_completed": m.RegistrationCompleted.Load(),
		"otp_send_failed":        m.OTPSendFailed.Load(),
		"otp_rejected":           m.OTPRejected.Load(),
		"otp_expired":            m.OTPExpired.Load(),
		"refresh_success":        m.RefreshSuccess.Load(),
		"refresh_failure":        m.RefreshFailure.Load(),
		"tokens_revoked":         m.TokensRevoked.Load(),
		"password_changes":       m.PasswordChanges.Load(),
		"password_resets":        m.PasswordResets.Load(),
	}
}
