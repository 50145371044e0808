package upload

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically removes sessions that were opened but never completed.
type Reaper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewReaper(store Store, ttl, interval time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables
// reaping and Run returns immediately.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		slog.Warn("upload session reaper disabled", "interval", r.interval.String())
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := r.ReapOnce(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("upload session reap failed", "error", err)
			}
		}
	}
}

// ReapOnce removes every session older than the TTL.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	n, err := r.store.Reap(ctx, r.now().Add(-r.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("reaped orphaned upload sessions", "count", n, "ttl", r.ttl.String())
	}
	return n, nil
}
