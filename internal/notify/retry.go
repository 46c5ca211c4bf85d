package notify

import (
	"context"
	"fmt"
	"time"

	"code.hybscloud.com/iox"

	"github.com/Iron-Ham/numduel/internal/errors"
)

// RetryPolicy bounds how a sender reacts to a retryable channel error.
type RetryPolicy struct {
	// Attempts is the number of retries after the first try. 0 disables retries.
	Attempts int
	// Backoff is the delay before the first retry; it doubles on each retry.
	Backoff time.Duration
	// MaxBackoff caps the delay. 0 means one second.
	MaxBackoff time.Duration
}

// NoRetry surfaces the first error.
var NoRetry = RetryPolicy{}

// SendWithRetry calls send until it succeeds, fails with a non-retryable
// error, the policy is exhausted, or ctx is done. Once retries run out the
// last error is marked non-retryable so callers treat it as fatal.
func SendWithRetry(ctx context.Context, policy RetryPolicy, send func() error) error {
	bo := policy.backoff()

	for attempt := 0; ; attempt++ {
		err := send()
		if err == nil {
			return nil
		}
		if !errors.IsRetryable(err) {
			return err
		}
		if attempt >= policy.Attempts {
			return exhausted(err, attempt)
		}

		if bo == nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			continue
		}
		timer := time.NewTimer(bo.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return context.Cause(ctx)
		case <-timer.C:
		}
		policy.advance(bo)
	}
}

// backoff returns the delay schedule for p, or nil when retries do not wait.
func (p RetryPolicy) backoff() *iox.Backoff {
	if p.Backoff <= 0 {
		return nil
	}
	bo := &iox.Backoff{}
	bo.SetMax(p.maxBackoff())
	bo.SetBase(min(p.Backoff, p.maxBackoff()))
	return bo
}

// advance doubles the next delay, capped at the policy maximum.
func (p RetryPolicy) advance(bo *iox.Backoff) {
	bo.SetBase(min(2*bo.Duration(), p.maxBackoff()))
}

func (p RetryPolicy) maxBackoff() time.Duration {
	if p.MaxBackoff <= 0 {
		return time.Second
	}
	return p.MaxBackoff
}

func exhausted(err error, retries int) error {
	var chErr *errors.ChannelError
	if errors.As(err, &chErr) {
		return chErr.WithRetryable(false)
	}
	return errors.NewChannelError(fmt.Sprintf("send failed after %d retries", retries), err).
		WithRetryable(false)
}
