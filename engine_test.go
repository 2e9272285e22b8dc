package eduauth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aimlabs/eduauth/internal/notify"
	"github.com/aimlabs/eduauth/internal/otp"
	"github.com/aimlabs/eduauth/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	engine      *Engine
	mr          *miniredis.Miniredis
	users       *memory.UserStore
	revocations *memory.RevocationStore
	otp         *otp.Fake
	mail        *notify.Recorder
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	for _, fn := range mutate {
		fn(&cfg)
	}

	env := &testEnv{
		mr:          mr,
		users:       memory.NewUserStore(),
		revocations: memory.NewRevocationStore(),
		otp:         otp.NewFake(),
		mail:        &notify.Recorder{},
	}

	engine, err := New(cfg, Deps{
		Redis:       client,
		Users:       env.users,
		Revocations: env.revocations,
		OTP:         env.otp,
		Mailer:      env.mail,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

func validInput() RegistrationInput {
	return RegistrationInput{
		Email:     "learner@example.com",
		Password:  "Sup3rSecret!",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+15551230001",
		Role:      "student",
	}
}

// resetToken returns the token from the recorded password-reset mail.
// The dispatcher delivers on independent goroutines, so recorder order
// is not deterministic; select by kind instead of position.
func (env *testEnv) resetToken(t *testing.T) string {
	t.Helper()
	for _, sent := range env.mail.All() {
		if sent.Kind == "password_reset" {
			return sent.Token
		}
	}
	t.Fatal("expected a reset mail")
	return ""
}

// register drives a full registration for input and returns the session.
func (env *testEnv) register(t *testing.T, input RegistrationInput) *Session {
	t.Helper()
	ctx := context.Background()

	receipt, err := env.engine.SubmitRegistration(ctx, input)
	if err != nil {
		t.Fatalf("SubmitRegistration: %v", err)
	}
	env.otp.SetCode(input.Phone, "424242")
	session, err := env.engine.VerifyRegistration(ctx, receipt.Token, "424242")
	if err != nil {
		t.Fatalf("VerifyRegistration: %v", err)
	}
	return session
}
