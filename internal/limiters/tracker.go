package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrBackendUnavailable indicates the shared counter backend is unreachable.
	ErrBackendUnavailable = errors.New("limiter backend unavailable")
)

// TrackerConfig tunes a failure tracker.
type TrackerConfig struct {
	// Window is the sliding interval over which failures are counted.
	Window time.Duration
	// Threshold is the failure count at which the identifier is blocked.
	Threshold int
	// BlockDuration is how long a crossed threshold keeps the identifier out.
	BlockDuration time.Duration
}

// Tracker counts failures per identifier over a sliding window and blocks
// the identifier once the threshold is crossed. Failure timestamps live in
// a Redis sorted set; a crossed threshold sets an explicit block key whose
// TTL is the lockout duration, so the common "is this identifier blocked?"
// check is a single O(1) lookup that also yields the retry-after.
//
// The same mechanism serves both tracker roles in the login path: keyed by
// "email:<addr>" it is the per-account lockout, keyed by "ip:<addr>" it is
// the coarse source-address blocker.
type Tracker struct {
	redis  redis.UniversalClient
	prefix string
	config TrackerConfig
	now    func() time.Time
}

// NewTracker creates a failure tracker. prefix namespaces its Redis keys.
func NewTracker(redisClient redis.UniversalClient, prefix string, cfg TrackerConfig) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 30 * time.Minute
	}
	return &Tracker{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
		now:    time.Now,
	}
}

func (t *Tracker) failKey(id string) string  { return t.prefix + ":fail:" + id }
func (t *Tracker) blockKey(id string) string { return t.prefix + ":blk:" + id }

// Blocked reports whether id is currently blocked and, if so, how long
// until the block expires. Checked before any counter arithmetic.
func (t *Tracker) Blocked(ctx context.Context, id string) (bool, time.Duration, error) {
	ttl, err := t.redis.PTTL(ctx, t.blockKey(id)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	// PTTL returns a negative duration for missing keys.
	if ttl <= 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}

// RecordFailure appends a failure timestamp for id, prunes entries older
// than the window, and blocks the identifier when the remaining count
// reaches the threshold. Returns the post-prune count and whether this
// failure triggered the block.
func (t *Tracker) RecordFailure(ctx context.Context, id string) (int64, bool, error) {
	now := t.now()
	key := t.failKey(id)
	cutoff := now.Add(-t.config.Window)

	pipe := t.redis.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixMilli(), 10))
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, t.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	count := card.Val()
	if count < int64(t.config.Threshold) {
		return count, false, nil
	}

	if err := t.redis.Set(ctx, t.blockKey(id), now.Unix(), t.config.BlockDuration).Err(); err != nil {
		return count, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return count, true, nil
}

// Reset clears both the failure window and any active block for id.
// Called after a successful login.
func (t *Tracker) Reset(ctx context.Context, id string) error {
	if err := t.redis.Del(ctx, t.failKey(id), t.blockKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// FailureCount returns the number of failures for id within the current
// window, pruning stale entries first.
func (t *Tracker) FailureCount(ctx context.Context, id string) (int64, error) {
	now := t.now()
	key := t.failKey(id)
	cutoff := now.Add(-t.config.Window)

	pipe := t.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixMilli(), 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return card.Val(), nil
}

// Block force-blocks id for the given duration, bypassing the counter.
// Used for operator-initiated blocks.
func (t *Tracker) Block(ctx context.Context, id string, d time.Duration) error {
	if d <= 0 {
		d = t.config.BlockDuration
	}
	if err := t.redis.Set(ctx, t.blockKey(id), t.now().Unix(), d).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Unblock removes an active block without touching the failure window.
func (t *Tracker) Unblock(ctx context.Context, id string) error {
	if err := t.redis.Del(ctx, t.blockKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// WithClock overrides the tracker's time source. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}
