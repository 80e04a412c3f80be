package humanoid

import (
	"context"
	"time"
)

// JitterDelay returns a delay drawn uniformly from [MinDelay, MaxDelay].
func (h *Humanoid) JitterDelay() time.Duration {
	lo, hi := h.cfg.MinDelay, h.cfg.MaxDelay
	if hi <= lo {
		return lo
	}
	d := time.Duration(h.uniform(float64(lo), float64(hi)))
	// Float rounding must not push the result outside the configured range.
	return min(max(d, lo), hi)
}

// JitterDuration returns base varied uniformly by +/- variation*base, never below floor.
func (h *Humanoid) JitterDuration(base time.Duration, variation float64, floor time.Duration) time.Duration {
	spread := variation * float64(base)
	d := time.Duration(float64(base) + h.uniform(-spread, spread))
	return max(d, floor)
}

// TapDuration jitters a tap's press duration.
func (h *Humanoid) TapDuration(base time.Duration) time.Duration {
	return h.JitterDuration(base, tapVariation, tapFloor)
}

// SwipeDuration jitters a swipe's duration.
func (h *Humanoid) SwipeDuration(base time.Duration) time.Duration {
	return h.JitterDuration(base, swipeVariation, swipeFloor)
}

// LoopDelay jitters the pause between rows.
func (h *Humanoid) LoopDelay(base time.Duration) time.Duration {
	return h.JitterDuration(base, loopVariation, loopFloor)
}

// Sleeper waits for a duration or until ctx is done. The controller sleeps only
// through a Sleeper so tests can record waits instead of spending them.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ContextSleeper is the production Sleeper.
type ContextSleeper struct{}

// Sleep blocks for d. It returns ctx.Err() if the context ends first.
func (ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
