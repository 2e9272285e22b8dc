package rate

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Quota is a fixed-window budget: at most Limit requests per Window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// Limiter enforces per-route fixed-window quotas on Redis counters.
//
// Degradation policy: if Redis is unreachable the limiter FAILS OPEN;
// the request is allowed and the error is logged. Rejecting all traffic
// whenever the counter backend blips would turn a cache outage into a
// platform outage.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// Result reports one admission decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// New creates a Limiter. prefix namespaces its Redis keys.
func New(redisClient redis.UniversalClient, prefix string, log *slog.Logger) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{redis: redisClient, prefix: prefix, log: log}
}

// Allow records one hit against key's window and decides admission.
// key is "<route>:<client>", where client is the caller address for ordinary
// routes, or the targeted identifier (phone, email) for sensitive routes.
func (l *Limiter) Allow(ctx context.Context, key string, q Quota) Result {
	if q.Limit <= 0 || q.Window <= 0 {
		return Result{Allowed: true}
	}

	fullKey := l.prefix + ":" + key

	count, err := l.redis.Incr(ctx, fullKey).Result()
	if err != nil {
		l.log.Warn("rate limiter backend unavailable, failing open",
			"key", key, "error", err)
		return Result{Allowed: true}
	}

	// Fixed-window semantics: the TTL is set only on the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, fullKey, q.Window).Err(); err != nil {
			l.log.Warn("rate limiter expire failed, failing open",
				"key", key, "error", err)
			return Result{Allowed: true}
		}
	}

	if count > int64(q.Limit) {
		retry := q.Window
		if ttl, err := l.redis.PTTL(ctx, fullKey).Result(); err == nil && ttl > 0 {
			retry = ttl
		}
		return Result{Allowed: false, RetryAfter: retry}
	}

	return Result{Allowed: true, Remaining: q.Limit - int(count)}
}
