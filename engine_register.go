package eduauth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/aimlabs/eduauth/internal/otp"
	"github.com/aimlabs/eduauth/internal/pending"
	"github.com/aimlabs/eduauth/internal/store"
)

func newUserFromPending(rec *pending.Registration, hash string) *store.User {
	return &store.User{
		ID:           uuid.NewString(),
		Email:        rec.Email,
		PasswordHash: hash,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		Phone:        rec.Phone,
		Bio:          rec.Bio,
		Role:         rec.Role,
		IsActive:     true,
	}
}

// SubmitRegistration validates input, stages the registration and sends
// an OTP to the phone. No account exists until VerifyRegistration
// approves the code; the stage expires on its own if the client walks
// away.
func (e *Engine) SubmitRegistration(ctx context.Context, input RegistrationInput) (*RegistrationReceipt, error) {
	email := normalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone", ErrInvalidInput)
	}
	role, err := ParseRole(input.Role)
	if err != nil {
		return nil, err
	}
	if !e.policy.Check(input.Password) {
		return nil, ErrPasswordPolicy
	}

	// Early duplicate check. The unique index at commit time is the
	// authority; this only spares the user an OTP round trip.
	if _, err := e.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	}

	// Stage first: Save claims the phone atomically, so concurrent
	// submissions for the same number can never each dispatch a paid SMS.
	regToken := uuid.NewString()
	otpExpiry := e.now().Add(e.cfg.Registration.OTPTTL)
	rec := &pending.Registration{
		Email:     email,
		Password:  input.Password,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     phone,
		Bio:       strings.TrimSpace(input.Bio),
		Role:      string(role),
		OTPExpiry: otpExpiry.Unix(),
	}
	if err := e.pending.Save(ctx, regToken, rec, e.cfg.Registration.PendingTTL); err != nil {
		switch {
		case errors.Is(err, pending.ErrPhoneInFlight):
			return nil, ErrPhoneInFlight
		case errors.Is(err, pending.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil, err
	}

	// A failed send tears the stage down again; no partial state survives
	// and the phone claim is released for a retry.
	if err := e.sendCode(ctx, phone); err != nil {
		_ = e.pending.Delete(ctx, regToken)
		e.emit(ctx, auditRegistrationFailed, "", email, "", false, err, nil)
		return nil, err
	}

	e.metrics.RegistrationStarted.Add(1)
	e.emit(ctx, auditRegistrationStarted, "", email, "", true, nil, map[string]string{
		"role": string(role),
	})
	return &RegistrationReceipt{Token: regToken, OTPExpiresAt: otpExpiry}, nil
}

// VerifyRegistration checks the submitted OTP and, on approval, commits
// the staged registration into a real account and signs the first token
// pair. A rejected code leaves the stage in place for another attempt;
// an expired verification destroys it.
func (e *Engine) VerifyRegistration(ctx context.Context, regToken, code string) (*Session, error) {
	rec, err := e.loadPending(ctx, regToken)
	if err != nil {
		return nil, err
	}

	// The local expiry is authoritative regardless of what the provider
	// would still accept. A stale stage is destroyed, never committed.
	if e.now().Unix() > rec.OTPExpiry {
		e.metrics.OTPExpired.Add(1)
		_ = e.pending.Delete(ctx, regToken)
		return nil, ErrOTPExpired
	}

	status, err := e.otp.Check(ctx, rec.Phone, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}
	switch status {
	case otp.StatusApproved:
	case otp.StatusExpired:
		e.metrics.OTPExpired.Add(1)
		_ = e.pending.Delete(ctx, regToken)
		return nil, ErrOTPExpired
	default:
		e.metrics.OTPRejected.Add(1)
		e.emit(ctx, auditRegistrationFailed, "", rec.Email, "", false, ErrOTPInvalid, nil)
		return nil, ErrOTPInvalid
	}

	session, err := e.commitRegistration(ctx, regToken, rec)
	if err != nil {
		return nil, err
	}
	e.metrics.RegistrationCompleted.Add(1)
	e.emit(ctx, auditRegistrationCompleted, session.User.ID, rec.Email, "", true, nil, nil)
	e.mail.Welcome(rec.Email, rec.FirstName)
	return session, nil
}

// ResendOTP sends a fresh code for a live, non-expired staged
// registration and extends the stage's lifetime. The fixed-window quota
// on the resend route bounds provider spend.
func (e *Engine) ResendOTP(ctx context.Context, regToken string) (*RegistrationReceipt, error) {
	rec, err := e.loadPending(ctx, regToken)
	if err != nil {
		return nil, err
	}

	if e.now().Unix() > rec.OTPExpiry {
		e.metrics.OTPExpired.Add(1)
		_ = e.pending.Delete(ctx, regToken)
		return nil, ErrOTPExpired
	}

	// The stage stays on a failed resend; the previous code may still be
	// good and the client can try again.
	if err := e.sendCode(ctx, rec.Phone); err != nil {
		return nil, err
	}

	otpExpiry := e.now().Add(e.cfg.Registration.OTPTTL)
	rec.OTPExpiry = otpExpiry.Unix()
	if err := e.pending.Update(ctx, regToken, rec, e.cfg.Registration.PendingTTL); err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return &RegistrationReceipt{Token: regToken, OTPExpiresAt: otpExpiry}, nil
}

// sendCode dispatches an OTP and treats anything but the provider's
// pending status as a delivery failure.
func (e *Engine) sendCode(ctx context.Context, phone string) error {
	status, err := e.otp.Send(ctx, phone)
	if err != nil {
		e.metrics.OTPSendFailed.Add(1)
		return fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}
	if status != otp.StatusPending {
		e.metrics.OTPSendFailed.Add(1)
		return fmt.Errorf("%w: gateway status %q", ErrOTPDeliveryFailed, status)
	}
	return nil
}

func (e *Engine) loadPending(ctx context.Context, regToken string) (*pending.Registration, error) {
	if regToken == "" {
		return nil, ErrRegistrationNotFound
	}
	rec, err := e.pending.Get(ctx, regToken)
	if err != nil {
		switch {
		case errors.Is(err, pending.ErrNotFound):
			return nil, ErrRegistrationNotFound
		case errors.Is(err, pending.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil, err
	}
	return rec, nil
}

func (e *Engine) commitRegistration(ctx context.Context, regToken string, rec *pending.Registration) (*Session, error) {
	hash, err := e.hasher.Hash(rec.Password)
	if err != nil {
		return nil, err
	}

	user := newUserFromPending(rec, hash)
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			// Lost the race to another commit for the same address. The
			// stage is worthless now.
			_ = e.pending.Delete(ctx, regToken)
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	// The stage is spent regardless of what happens after this point.
	_ = e.pending.Delete(ctx, regToken)

	return e.issueSession(user)
}
