package realtime

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff is a capped exponential retry policy with jitter.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int     // 0 retries forever
	Jitter      float64 // fraction of the delay randomised, 0..1
}

// DefaultBackoff returns the policy used for resubscribing dropped feeds.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        500 * time.Millisecond,
		Max:         30 * time.Second,
		MaxAttempts: 10,
		Jitter:      0.2,
	}
}

// New returns a fresh retry schedule for b. NextBackOff yields backoff.Stop
// once MaxAttempts delays have been handed out or ctx ends; Reset starts
// the count over.
func (b Backoff) New(ctx context.Context) backoff.BackOff {
	var policy backoff.BackOff = b.exponential()
	if b.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(b.MaxAttempts))
	}
	return backoff.WithContext(policy, ctx)
}

func (b Backoff) exponential() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Base
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = 500 * time.Millisecond
	}
	eb.MaxInterval = b.Max
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = 30 * time.Second
	}
	eb.Multiplier = 2
	eb.RandomizationFactor = min(max(b.Jitter, 0), 1)
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// Wait sleeps for delay or until ctx ends.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
