// Package limiters implements the brute-force defenses in front of login:
// a sliding-window failure [Tracker] used per account (email identifier)
// and per source address (ip identifier). State lives in Redis so every
// instance behind the load balancer sees the same counters.
package limiters
