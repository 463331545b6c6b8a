package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Ticker drives playback advancement: each period it asks the scheduler to
// advance when the player is idle, then lets virtual time elapse. The lock
// is taken per step, never held across the wait.
type Ticker struct {
	Scheduler *Scheduler
	Interval  time.Duration
	Logger    *slog.Logger
}

func (t Ticker) Run(ctx context.Context) {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.step(ctx, interval, logger)
		}
	}
}

// step swallows transient errors: a failed advance is retried on the next
// tick once the store or player recovers.
func (t Ticker) step(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if t.Scheduler.PlayerIdle() {
		if _, err := t.Scheduler.Advance(ctx, false); err != nil {
			logger.Warn("ticker: advance failed", slog.String("error", err.Error()))
		}
	}
	t.Scheduler.Tick(interval)
}
