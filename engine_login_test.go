package eduauth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, validInput())

	session, err := env.engine.Login(context.Background(), "learner@example.com", "Sup3rSecret!", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.User.Email != "learner@example.com" {
		t.Fatalf("email = %q", session.User.Email)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, validInput())

	_, err := env.engine.Login(context.Background(), "learner@example.com", "WrongPass1!", "10.0.0.1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmailIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, validInput())
	ctx := context.Background()

	_, unknownErr := env.engine.Login(ctx, "nobody@example.com", "WrongPass1!", "10.0.0.1")
	_, wrongErr := env.engine.Login(ctx, "learner@example.com", "WrongPass1!", "10.0.0.1")

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("unknown = %v, wrong = %v, both must be ErrInvalidCredentials", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("error text must not reveal whether the account exists")
	}
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, validInput())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Login(ctx, "learner@example.com", "WrongPass1!", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v", i+1, err)
		}
	}

	// The correct password is refused while the block stands.
	_, err := env.engine.Login(ctx, "learner@example.com", "Sup3rSecret!", "10.0.0.1")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
	var ra *RetryAfterError
	if !errors.As(err, &ra) || ra.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry-after, got %v", err)
	}
}

func TestLoginLockoutExpires(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, validInput())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		env.engine.Login(ctx, "learner@example.com", "WrongPass1!", "")
	}
	if _, err := env.engine.Login(ctx, "learner@example.com", "Sup3rSecret!", ""); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}

	env.mr.FastForward(31 * time.Minute)

	if _, err := env.engine.Login(ctx, "learner@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("login after block expiry: %v", err)
	}
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, validInput())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		env.engine.Login(ctx, "learner@example.com", "WrongPass1!", "")
	}
	if _, err := env.engine.Login(ctx, "learner@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// The slate is clean: four more failures stay under the threshold.
	for i := 0; i < 4; i++ {
		if _, err := env.engine.Login(ctx, "learner@example.com", "WrongPass1!", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d after reset: err = %v", i+1, err)
		}
	}
	if _, err := env.engine.Login(ctx, "learner@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("login after sub-threshold failures: %v", err)
	}
}

func TestLoginIPBlock(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.IPLockout.Threshold = 3
	})
	env.register(t, validInput())
	ctx := context.Background()

	// A spraying address fails against different accounts; the per-account
	// counters never reach their threshold but the source address does.
	for i := 0; i < 3; i++ {
		email := fmt.Sprintf("target%d@example.com", i)
		if _, err := env.engine.Login(ctx, email, "WrongPass1!", "203.0.113.9"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v", i+1, err)
		}
	}

	_, err := env.engine.Login(ctx, "learner@example.com", "Sup3rSecret!", "203.0.113.9")
	if !errors.Is(err, ErrIPBlocked) {
		t.Fatalf("err = %v, want ErrIPBlocked", err)
	}

	// The same account from a clean address is untouched.
	if _, err := env.engine.Login(ctx, "learner@example.com", "Sup3rSecret!", "198.51.100.7"); err != nil {
		t.Fatalf("login from clean address: %v", err)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, validInput())

	env.users.SetActive(session.User.ID, false)

	_, err := env.engine.Login(context.Background(), "learner@example.com", "Sup3rSecret!", "")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}
