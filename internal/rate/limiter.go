package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a fixed-window failure counter over Redis.
type Window struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewWindow returns a counter whose windows last ttl from their first hit.
func NewWindow(redisClient redis.UniversalClient, ttl time.Duration) *Window {
	return &Window{redis: redisClient, ttl: ttl}
}

// Incr records one hit on key and returns the count in the current window.
func (w *Window) Incr(ctx context.Context, key string) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Count returns the hits recorded on key. Missing keys count zero.
func (w *Window) Count(ctx context.Context, key string) (int64, error) {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Clear removes keys.
func (w *Window) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Config holds login throttle tuning.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter throttles failed logins per account and, optionally, per client IP.
type Limiter struct {
	window *Window
	config Config
}

// New creates a login Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		window: NewWindow(redisClient, cfg.LoginCooldownDuration),
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when the account or IP exceeded the
// failure budget.
func (l *Limiter) CheckLogin(ctx context.Context, accountID, ip string) error {
	if err := l.checkCounter(ctx, loginAccountKey(accountID)); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, accountID, ip string) error {
	count, err := l.window.Incr(ctx, loginAccountKey(accountID))
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.window.Incr(ctx, loginIPKey(ip))
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the failure counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, accountID, ip string) error {
	keys := []string{loginAccountKey(accountID)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	return l.window.Clear(ctx, keys...)
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.window.Count(ctx, key)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

func loginAccountKey(accountID string) string {
	return "sl:" + accountID
}

func loginIPKey(ip string) string {
	return "sli:" + ip
}
