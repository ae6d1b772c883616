package persist

import (
	"context"
	"time"
)

// RetryPolicy retries a pure write operation a bounded number of times with
// a fixed backoff between attempts. It holds no network state, so policies
// are testable with plain functions.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetry matches the persistence layer's write budget: three attempts
// about a second apart.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, Backoff: time.Second}

// Do runs op until it succeeds, the attempts are exhausted, or ctx is
// cancelled. The last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}
