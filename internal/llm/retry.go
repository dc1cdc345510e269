package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how a Completer retries transient failures against the
// same model. Rate-limit failures are never waited out regardless of policy.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryDelay is the fixed wait between retries when Backoff is nil.
	RetryDelay time.Duration

	// HonorRetryAfter makes a transient failure's provider wait hint replace
	// the policy wait. Off by default: a 503 asking for minutes still waits
	// RetryDelay or the Backoff interval.
	HonorRetryAfter bool

	// MaxWait caps an honored provider hint. Zero leaves hints uncapped.
	MaxWait time.Duration

	// Backoff, when set, supplies the waits between retries instead of
	// RetryDelay. It is called once per completion so state is never shared.
	Backoff func() backoff.BackOff
}

func (p RetryPolicy) validate() error {
	switch {
	case p.MaxRetries < 0:
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	case p.RetryDelay < 0:
		return fmt.Errorf("retry delay must be >= 0, got %s", p.RetryDelay)
	case p.MaxWait < 0:
		return fmt.Errorf("max wait must be >= 0, got %s", p.MaxWait)
	}
	return nil
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	var b backoff.BackOff
	if p.Backoff != nil {
		b = p.Backoff()
	}
	if b == nil {
		b = backoff.NewConstantBackOff(p.RetryDelay)
	}
	b.Reset()
	return b
}

// waitAfter returns how long to wait before retrying after f. The backoff is
// always advanced so an honored hint does not skew later waits. ok is false
// when the backoff has given up.
func (p RetryPolicy) waitAfter(f *Failure, b backoff.BackOff) (wait time.Duration, ok bool) {
	next := b.NextBackOff()
	if next == backoff.Stop {
		return 0, false
	}
	if p.HonorRetryAfter && f.RetryAfter > 0 {
		next = f.RetryAfter
		if p.MaxWait > 0 && next > p.MaxWait {
			next = p.MaxWait
		}
	}
	return next, true
}

// ExponentialBackoff returns a Backoff factory growing from initial by
// multiplier up to max, with ±20% jitter. It never gives up on its own;
// MaxRetries bounds the attempts.
func ExponentialBackoff(initial, max time.Duration, multiplier float64) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = multiplier
		b.RandomizationFactor = 0.2
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// Sleeper waits for d, returning early with ctx.Err() if ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
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
