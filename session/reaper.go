package session

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig controls background purging of expired records.
type ReaperConfig struct {
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// Reaper periodically deletes records that expired more than Retention ago.
// It uses the same expiry predicate as Record.Live, so purging never changes
// what readers observe.
type Reaper struct {
	store  *Store
	cfg    ReaperConfig
	logger *slog.Logger
}

// NewReaper returns a Reaper. Interval defaults to one hour.
func NewReaper(store *Store, cfg ReaperConfig, logger *slog.Logger) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Retention < 0 {
		cfg.Retention = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{store: store, cfg: cfg, logger: logger.With("component", "session_reaper")}
}

// RunOnce purges once and returns the number of records removed.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.cfg.Now().Add(-r.cfg.Retention)
	return r.store.PurgeExpired(ctx, cutoff)
}

// Run purges on every tick until ctx is done. Failures are logged and the
// next tick retries.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.WarnContext(ctx, "purge failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.InfoContext(ctx, "purged expired sessions", "count", n)
			}
		}
	}
}
