// Package clock paces long-running loops that must wait between attempts.
package clock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Pacer hands out growing delays between consecutive failed attempts of a loop and goes back
// to the initial delay after Reset.
type Pacer struct {
	policy *backoff.ExponentialBackOff
	wait   WaitFunc
}

// NewPacer doubles the delay from initial up to max. A nil wait uses Wait.
func NewPacer(initial, max time.Duration, wait WaitFunc) *Pacer {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxInterval = max
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.Reset()

	if wait == nil {
		wait = Wait
	}
	return &Pacer{policy: policy, wait: wait}
}

// Pause waits for the next delay and returns it.
func (p *Pacer) Pause(ctx context.Context) (time.Duration, error) {
	d := p.policy.NextBackOff()
	if d == backoff.Stop {
		d = p.policy.MaxInterval
	}
	return d, p.wait(ctx, d)
}

// Reset makes the next Pause use the initial delay.
func (p *Pacer) Reset() {
	p.policy.Reset()
}

// Wait blocks for d or until ctx is done. A non-positive d only reports the context state.
func Wait(ctx context.Context, d time.Duration) error {
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
