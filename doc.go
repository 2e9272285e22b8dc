// Package eduauth is the identity and access-control engine for the
// learning platform: OTP-gated registration, credential login behind
// adaptive lockout, Google federated login, JWT issue/refresh/revoke
// with a jti revocation list, and the password lifecycle.
//
// The Engine is the single entry point. It is wired with Redis (failure
// tracking, pending registrations, route quotas), a durable user and
// revocation store, an OTP gateway and an optional mailer, and exposes
// one method per workflow. The httpapi package maps the engine onto an
// HTTP surface; cmd/eduauth assembles the service binary.
package eduauth
