package engine

import (
	"context"
	"time"
)

// Run drives the Engine on a wall-clock-aligned cadence until ctx is
// cancelled (§4.3: "ticks run on a fixed cadence, aligned to wall-clock
// boundaries, not a fixed-delay loop that drifts with tick duration").
// Grounded on the teacher's internal/scheduler.Scheduler ticker loop,
// generalized from a cron-parsed job runner into a single fixed-interval
// boundary computed from cfg.Cadence.
//
// If a tick is still running when the next boundary arrives, that boundary
// is skipped rather than queued (§4.3 step "skip, don't queue, an overrun
// tick") — Tick's own lease already prevents overlap, so Run only needs to
// record the skip for observability.
func (e *Engine) Run(ctx context.Context) error {
	next := nextBoundary(e.clock(), e.cfg.Cadence)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			boundary := next
			_, ran, err := e.Tick(ctx)
			if err != nil {
				e.log.Error().Err(err).Msg("tick returned error")
			}
			if !ran {
				e.Skip(ctx, boundary)
			}

			next = nextBoundary(e.clock(), e.cfg.Cadence)
			for missed := nextBoundary(boundary, e.cfg.Cadence); missed.Before(next); missed = nextBoundary(missed, e.cfg.Cadence) {
				e.Skip(ctx, missed)
			}
			timer.Reset(time.Until(next))
		}
	}
}

// nextBoundary returns the next multiple of cadence since the Unix epoch
// that is strictly after now, so every process on the same cadence wakes
// at the same wall-clock instant regardless of when it started.
func nextBoundary(now time.Time, cadence time.Duration) time.Time {
	epoch := now.Unix()
	step := int64(cadence.Seconds())
	if step <= 0 {
		step = 1
	}
	n := (epoch/step + 1) * step
	return time.Unix(n, 0).In(now.Location())
}
