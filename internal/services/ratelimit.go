package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

// RateLimitPolicy allows MaxAttempts hits per fixed Window.
type RateLimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter counts hits against a fixed-window bucket identified by key.
type Limiter interface {
	Hit(ctx context.Context, key string) (models.RateLimitResult, error)
}

// evaluateBucket turns the post-hit bucket state into a result. count is the
// number of hits recorded in the current window including this one.
func evaluateBucket(policy RateLimitPolicy, count int, expiresAt, now time.Time) models.RateLimitResult {
	if count <= policy.MaxAttempts {
		return models.RateLimitResult{Allowed: true, Remaining: policy.MaxAttempts - count}
	}
	retry := expiresAt.Sub(now)
	if retry < 0 {
		retry = 0
	}
	return models.RateLimitResult{Allowed: false, Remaining: 0, RetryAfter: retry}
}

// PostgresLimiter keeps buckets in the rate_limits table. Every hit is a single
// conditional upsert, so concurrent hits on an expired bucket cannot both reset it.
type PostgresLimiter struct {
	db     Querier
	policy RateLimitPolicy
	now    func() time.Time
}

func NewPostgresLimiter(db Querier, policy RateLimitPolicy) *PostgresLimiter {
	return &PostgresLimiter{db: db, policy: policy, now: time.Now}
}

func (l *PostgresLimiter) Hit(ctx context.Context, key string) (models.RateLimitResult, error) {
	now := l.now()

	var count int
	var expiresAt time.Time
	// The count is capped one past the limit so rejected hits do not grow it.
	err := l.db.QueryRow(ctx,
		`INSERT INTO rate_limits (key, count, expires_at)
		 VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE SET
		   count = CASE WHEN rate_limits.expires_at <= $3 THEN 1
		                ELSE LEAST(rate_limits.count + 1, $4) END,
		   expires_at = CASE WHEN rate_limits.expires_at <= $3 THEN EXCLUDED.expires_at
		                     ELSE rate_limits.expires_at END
		 RETURNING count, expires_at`,
		key, now.Add(l.policy.Window), now, l.policy.MaxAttempts+1,
	).Scan(&count, &expiresAt)
	if err != nil {
		return models.RateLimitResult{}, fmt.Errorf("recording rate limit hit: %w", err)
	}

	return evaluateBucket(l.policy, count, expiresAt, now), nil
}

// PurgeExpired removes buckets whose window has closed.
func (l *PostgresLimiter) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := l.db.Exec(ctx, "DELETE FROM rate_limits WHERE expires_at <= $1", l.now())
	if err != nil {
		return 0, fmt.Errorf("purging rate limits: %w", err)
	}
	return result.RowsAffected(), nil
}

var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter keeps buckets as expiring counters; the script makes increment
// and expiry one atomic step.
type RedisLimiter struct {
	client redis.Scripter
	policy RateLimitPolicy
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.Scripter, policy RateLimitPolicy, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string) (models.RateLimitResult, error) {
	vals, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return models.RateLimitResult{}, fmt.Errorf("recording rate limit hit: %w", err)
	}
	if len(vals) != 2 {
		return models.RateLimitResult{}, fmt.Errorf("unexpected rate limit reply: %v", vals)
	}

	now := l.now()
	expiresAt := now.Add(time.Duration(vals[1]) * time.Millisecond)
	return evaluateBucket(l.policy, int(vals[0]), expiresAt, now), nil
}

type memoryBucket struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter is process-local and only suited to tests and single-instance setups.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
	policy  RateLimitPolicy
	now     func() time.Time
}

func NewMemoryLimiter(policy RateLimitPolicy) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*memoryBucket),
		policy:  policy,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Hit(_ context.Context, key string) (models.RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.buckets[key]
	if !ok || !bucket.expiresAt.After(now) {
		bucket = &memoryBucket{count: 1, expiresAt: now.Add(l.policy.Window)}
		l.buckets[key] = bucket
		return evaluateBucket(l.policy, bucket.count, bucket.expiresAt, now), nil
	}

	if bucket.count <= l.policy.MaxAttempts {
		bucket.count++
	}
	return evaluateBucket(l.policy, bucket.count, bucket.expiresAt, now), nil
}
