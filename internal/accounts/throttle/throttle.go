// Package throttle locks out login attempts after repeated failures.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("throttle: too many failed attempts")
	ErrRedisUnavailable = errors.New("throttle: redis unavailable")
)

// Limiter tracks failed login attempts per identifier and client IP.
type Limiter interface {
	// Check returns ErrRateLimited while the identifier or ip is locked out.
	Check(ctx context.Context, identifier, ip string) error

	// Fail records a failed attempt.
	Fail(ctx context.Context, identifier, ip string) error

	// Reset clears the identifier's counter after a successful login.
	Reset(ctx context.Context, identifier, ip string) error
}

type Config struct {
	MaxAttempts int           // failures allowed before lockout
	Lockout     time.Duration // window the failures are counted over
	Prefix      string        // key namespace, e.g. "clipshare:"
	ThrottleIP  bool          // also count failures per client IP
}

const (
	DefaultMaxAttempts = 5
	DefaultLockout     = 15 * time.Minute
)

// RedisLimiter keeps fixed window counters in Redis. The window starts at
// the first failure and the key expires with it.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = DefaultLockout
	}
	return &RedisLimiter{redis: client, config: cfg}
}

func (l *RedisLimiter) Check(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *RedisLimiter) Fail(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.config.Lockout).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
	}
	return nil
}

// Reset only clears the identifier counter. Failures from the same IP
// against other accounts keep counting.
func (l *RedisLimiter) Reset(ctx context.Context, identifier, _ string) error {
	if identifier == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.userKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts reports the failure count for identifier in the current window.
func (l *RedisLimiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.userKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

func (l *RedisLimiter) keys(identifier, ip string) []string {
	var keys []string
	if identifier != "" {
		keys = append(keys, l.userKey(identifier))
	}
	if l.config.ThrottleIP && ip != "" {
		keys = append(keys, l.config.Prefix+"login:ip:"+ip)
	}
	return keys
}

func (l *RedisLimiter) userKey(identifier string) string {
	return l.config.Prefix + "login:user:" + identifier
}

// Nop never limits. Used when no Redis is configured.
type Nop struct{}

func (Nop) Check(context.Context, string, string) error { return nil }
func (Nop) Fail(context.Context, string, string) error  { return nil }
func (Nop) Reset(context.Context, string, string) error { return nil }
