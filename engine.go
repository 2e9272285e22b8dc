package eduauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aimlabs/eduauth/internal/audit"
	"github.com/aimlabs/eduauth/internal/googleid"
	"github.com/aimlabs/eduauth/internal/limiters"
	"github.com/aimlabs/eduauth/internal/metrics"
	"github.com/aimlabs/eduauth/internal/notify"
	"github.com/aimlabs/eduauth/internal/otp"
	"github.com/aimlabs/eduauth/internal/pending"
	"github.com/aimlabs/eduauth/internal/store"
	"github.com/aimlabs/eduauth/password"
	"github.com/aimlabs/eduauth/token"
)

// Audit event types emitted by the engine.
const (
	auditRegistrationStarted   = "registration.started"
	auditRegistrationCompleted = "registration.completed"
	auditRegistrationFailed    = "registration.failed"
	auditLoginSuccess          = "login.success"
	auditLoginFailure          = "login.failure"
	auditLoginLocked           = "login.locked"
	auditRefreshSuccess        = "refresh.success"
	auditRefreshFailure        = "refresh.failure"
	auditLogout                = "logout"
	auditPasswordChanged       = "password.changed"
	auditPasswordResetRequest  = "password.reset_requested"
	auditPasswordResetDone     = "password.reset_completed"
	auditGoogleLogin           = "login.google"
)

// Deps are the external collaborators the engine is wired with. Redis,
// Users, Revocations and OTP are required; the rest default to no-ops.
type Deps struct {
	Redis       redis.UniversalClient
	Users       store.UserStore
	Revocations store.RevocationStore
	OTP         otp.Gateway
	Mailer      notify.Mailer
	Google      *googleid.Verifier
	AuditSink   audit.Sink
	Logger      *slog.Logger
}

// Engine implements the identity and access-control workflows: OTP-gated
// registration, credential login behind adaptive lockout, token
// issue/refresh/revoke, and password lifecycle. It is immutable after New
// and safe for concurrent use.
type Engine struct {
	cfg          Config
	users        store.UserStore
	revocations  store.RevocationStore
	pending      *pending.Store
	tokens       *token.Manager
	hasher       *password.Argon2
	policy       password.Policy
	emailTracker *limiters.Tracker
	ipTracker    *limiters.Tracker
	otp          otp.Gateway
	mail         *notify.Dispatcher
	google       *googleid.Verifier
	audit        *audit.Dispatcher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// New validates cfg, wires deps and returns a ready engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if deps.Redis == nil {
		return nil, errors.New("eduauth: redis client required")
	}
	if deps.Users == nil || deps.Revocations == nil {
		return nil, errors.New("eduauth: user and revocation stores required")
	}
	if deps.OTP == nil {
		return nil, errors.New("eduauth: otp gateway required")
	}

	tokens, err := token.NewManager(cfg.tokenConfig())
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewArgon2(cfg.hashConfig())
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = notify.NoOp{}
	}
	sink := deps.AuditSink
	if sink == nil {
		sink = audit.NoOpSink{}
	}

	return &Engine{
		cfg:          cfg,
		users:        deps.Users,
		revocations:  deps.Revocations,
		pending:      pending.NewStore(deps.Redis, "eduauth:preg"),
		tokens:       tokens,
		hasher:       hasher,
		policy:       password.DefaultPolicy(),
		emailTracker: limiters.NewTracker(deps.Redis, "eduauth:acct", cfg.Lockout.trackerConfig()),
		ipTracker:    limiters.NewTracker(deps.Redis, "eduauth:src", cfg.IPLockout.trackerConfig()),
		otp:          deps.OTP,
		mail:         notify.NewDispatcher(mailer, logger),
		google:       deps.Google,
		audit:        audit.NewDispatcher(cfg.Audit.dispatcherConfig(), sink),
		metrics:      &metrics.Metrics{},
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Close drains the audit dispatcher and outstanding mail sends.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mail.Flush()
	if e.audit != nil {
		e.audit.Close()
	}
}

// MetricsSnapshot returns the current counter values.
func (e *Engine) MetricsSnapshot() metrics.Snapshot {
	return e.metrics.Snapshot()
}

// NoteRateLimited counts a request rejected by a route quota. Called by
// the HTTP layer, where the quotas live.
func (e *Engine) NoteRateLimited() {
	e.metrics.RateLimited.Add(1)
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// normalizeEmail is the single normalization point for email addresses.
// Every path that stores or looks up an email goes through it.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) emit(ctx context.Context, eventType, userID, email, ip string, success bool, cause error, md map[string]string) {
	if e.audit == nil {
		return
	}
	event := audit.Event{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        ip,
		Success:   success,
		Metadata:  md,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.audit.Emit(ctx, event)
}

func userView(u *store.User) UserView {
	return UserView{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		Bio:           u.Bio,
		Role:          Role(u.Role),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// issueSession signs a fresh access/refresh pair for user.
func (e *Engine) issueSession(user *store.User) (*Session, error) {
	access, _, err := e.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, _, err := e.tokens.IssueRefresh(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{
		TokenPair: TokenPair{AccessToken: access, RefreshToken: refresh},
		User:      userView(user),
	}, nil
}
