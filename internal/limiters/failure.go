package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSecure/internal/rate"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 5
	defaultCooldown    = time.Minute
)

var (
	// ErrRateLimited is returned when an account exhausted its failure budget.
	ErrRateLimited = errors.New("failure limit reached")
)

// Scope names the failure namespace a limiter counts in.
type Scope string

const (
	// ScopeOTP counts rejected one-time codes.
	ScopeOTP Scope = "otp"
	// ScopeBackupCode counts rejected backup codes.
	ScopeBackupCode Scope = "bkp"
	// ScopePassword counts failed password re-verifications.
	ScopePassword Scope = "pwd"
)

// Config holds the thresholds of one failure limiter.
type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// FailureLimiter counts failed verifications per account in a fixed window.
// A nil *FailureLimiter never limits.
type FailureLimiter struct {
	scope       Scope
	window      *rate.Window
	maxAttempts int64
}

// NewFailureLimiter creates a limiter for scope. Zero-value fields in cfg
// fall back to 5 attempts per minute.
func NewFailureLimiter(redisClient redis.UniversalClient, scope Scope, cfg Config) *FailureLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultCooldown
	}
	return &FailureLimiter{
		scope:       scope,
		window:      rate.NewWindow(redisClient, cd),
		maxAttempts: int64(max),
	}
}

func (l *FailureLimiter) key(accountID string) string {
	return "sf:" + string(l.scope) + ":" + accountID
}

// Check returns ErrRateLimited once the account reached the budget.
func (l *FailureLimiter) Check(ctx context.Context, accountID string) error {
	if l == nil {
		return nil
	}
	count, err := l.window.Count(ctx, l.key(accountID))
	if err != nil {
		return err
	}
	if count >= l.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts one failure. It returns ErrRateLimited when this
// failure exhausts the budget.
func (l *FailureLimiter) RecordFailure(ctx context.Context, accountID string) error {
	if l == nil {
		return nil
	}
	count, err := l.window.Incr(ctx, l.key(accountID))
	if err != nil {
		return err
	}
	if count >= l.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the account's failures after a success.
func (l *FailureLimiter) Reset(ctx context.Context, accountID string) error {
	if l == nil {
		return nil
	}
	return l.window.Clear(ctx, l.key(accountID))
}
