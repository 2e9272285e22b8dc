package httpapi

import (
	"net"
	"net/http"
	"strings"

	"github.com/aimlabs/eduauth"
	"github.com/aimlabs/eduauth/internal/rate"
)

// keyFunc extracts the quota key from a request. An empty key skips the
// quota for that request.
type keyFunc func(r *http.Request) string

// byClient keys on the caller's address.
func byClient(r *http.Request) string {
	return clientIP(r)
}

// byRegistrationToken keys OTP resends on the pending registration, so
// one stage cannot be drained from many addresses and many stages cannot
// be drained from one.
func byRegistrationToken(r *http.Request) string {
	return peekField(r, "registration_token")
}

// byTargetEmail keys reset-token issuance on the targeted mailbox.
func byTargetEmail(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(peekField(r, "email")))
}

// limit wraps next with a fixed-window quota. The limiter fails open
// when its backend is down, so a Redis outage degrades to unmetered
// service instead of an outage of our own making.
func (s *Server) limit(route string, q rate.Quota, key keyFunc, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next(w, r)
			return
		}
		k := key(r)
		if k == "" {
			k = clientIP(r)
		}
		res := s.limiter.Allow(r.Context(), route+":"+k, q)
		if !res.Allowed {
			s.engine.NoteRateLimited()
			s.fail(w, r, &eduauth.RetryAfterError{Err: eduauth.ErrRateLimited, RetryAfter: res.RetryAfter})
			return
		}
		next(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket address. The deployment terminates TLS at a proxy that sets
// the header.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bearerToken pulls the token out of the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
