// Package password implements password hashing, verification, and strength
// policy for eduauth.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports whether a stored hash was produced with
// weaker parameters than the current configuration so callers can re-hash
// on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, constant-time verification, and the strength
// [Policy]. It never stores passwords and never logs plaintext.
package password
