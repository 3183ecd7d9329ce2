// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"time"
)

// Policy caps both the number of attempts and the total elapsed time.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxElapsed  time.Duration
}

// Do calls op until it succeeds, returns an error retryable rejects, or the policy is
// exhausted. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	start := time.Now()
	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt >= attempts {
			return err
		}
		wait := delay
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		if p.MaxElapsed > 0 && time.Since(start)+wait > p.MaxElapsed {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay *= 2
	}
}
