// Package pending stages registration data between submit and OTP
// verification. Records are Redis-resident, TTL-bound (the OTP window),
// and keyed by an opaque token so the flow survives load balancing
// without sticky sessions. No durable user row exists until the OTP
// check approves.
package pending
