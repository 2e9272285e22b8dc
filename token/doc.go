// Package token signs and parses the three JWT families eduauth issues:
// access (1h), refresh (30d), and password-reset (30m) tokens.
//
// Every token carries a jti with a family prefix (at-, rt-, pr-) so the
// revocation list never confuses one family for another, and [Manager.Parse]
// rejects any token presented outside its family. Revocation itself lives in
// the durable store; this package is pure crypto and holds no state.
package token
