// Package httpapi exposes the auth engine over HTTP. Handlers stay
// thin: decode, call the engine, map the error taxonomy onto status
// codes. Route quotas sit in front as middleware.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aimlabs/eduauth"
	"github.com/aimlabs/eduauth/internal/rate"
)

// Route quotas, keyed by client address unless noted. The OTP resend and
// reset-token quotas key on the targeted identifier instead, so rotating
// addresses does not multiply paid SMS or mail sends.
var (
	quotaDefault  = rate.Quota{Limit: 50, Window: time.Hour}
	quotaRegister = rate.Quota{Limit: 5, Window: time.Hour}
	quotaVerify   = rate.Quota{Limit: 10, Window: time.Hour}
	quotaResend   = rate.Quota{Limit: 3, Window: time.Hour}
	quotaLogin    = rate.Quota{Limit: 10, Window: 15 * time.Minute}
	quotaGoogle   = rate.Quota{Limit: 20, Window: time.Hour}
	quotaSendTok  = rate.Quota{Limit: 3, Window: time.Hour}
	quotaReset    = rate.Quota{Limit: 5, Window: time.Hour}
)

// Server is the HTTP surface over an Engine.
type Server struct {
	engine  *eduauth.Engine
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a Server. redisClient backs the route quotas; nil disables
// them (tests).
func New(engine *eduauth.Engine, redisClient redis.UniversalClient, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var limiter *rate.Limiter
	if redisClient != nil {
		limiter = rate.New(redisClient, "eduauth:rl", logger)
	}
	return &Server{engine: engine, limiter: limiter, logger: logger}
}

// Handler assembles the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /auth/register", s.limit("register", quotaRegister, byClient, s.handleRegister))
	mux.Handle("POST /auth/verify-otp", s.limit("verify", quotaVerify, byClient, s.handleVerifyOTP))
	mux.Handle("POST /auth/resend-otp", s.limit("resend", quotaResend, byRegistrationToken, s.handleResendOTP))
	mux.Handle("POST /auth/login", s.limit("login", quotaLogin, byClient, s.handleLogin))
	mux.Handle("POST /auth/google", s.limit("google", quotaGoogle, byClient, s.handleGoogleLogin))
	mux.Handle("POST /auth/refresh", s.limit("refresh", quotaDefault, byClient, s.handleRefresh))
	mux.Handle("POST /auth/logout", s.limit("logout", quotaDefault, byClient, s.handleLogout))
	mux.Handle("POST /auth/send-token", s.limit("sendtok", quotaSendTok, byTargetEmail, s.handleSendResetToken))
	mux.Handle("POST /auth/reset-password", s.limit("reset", quotaReset, byClient, s.handleResetPassword))

	mux.Handle("GET /auth/me", s.limit("me", quotaDefault, byClient, s.handleCurrentUser))
	mux.Handle("PUT /auth/change-password", s.limit("chpass", quotaDefault, byClient, s.handleChangePassword))
	mux.Handle("POST /auth/set-password", s.limit("setpass", quotaDefault, byClient, s.handleSetPassword))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /internal/metrics", s.handleMetrics)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.engine.MetricsSnapshot())
}
