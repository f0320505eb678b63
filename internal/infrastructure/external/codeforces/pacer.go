package codeforces

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PACER - fixed delay before every request
// ══════════════════════════════════════════════════════════════════════════════

// Pacer sleeps a fixed delay before each request.
// Codeforces answers "Call limit exceeded" above roughly one call per second.
type Pacer struct {
	delay time.Duration
}

// NewPacer creates a pacer. A non-positive delay disables waiting.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait blocks for the configured delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the configured delay.
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}
