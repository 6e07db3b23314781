package app

import (
	"context"
	"time"
)

// DefaultTickInterval is the countdown cadence of a timed attempt.
const DefaultTickInterval = time.Minute

// RunTimer ticks c every interval until the attempt leaves in-progress, its
// countdown runs out, or ctx is done. Untimed attempts return immediately.
func RunTimer(ctx context.Context, c *Controller, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if !running(c) {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !running(c) {
				return
			}
			if err := c.Tick(ctx); err != nil {
				c.log.Warn("timer tick failed", "error", err)
			}
			if !running(c) {
				return
			}
		}
	}
}

func running(c *Controller) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateInProgress && c.timeLeft != nil && *c.timeLeft > 0
}
