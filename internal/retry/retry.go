// Package retry runs calls to flaky dependencies (LLM providers, SMTP) with a
// bounded number of attempts and a linearly growing pause between them.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a retried call.
type Policy struct {
	Attempts int
	Step     time.Duration
}

// Default is three attempts waiting 1s then 2s.
var Default = Policy{Attempts: 3, Step: time.Second}

// linearBackOff waits Step, 2*Step, 3*Step, ...
type linearBackOff struct {
	step time.Duration
	n    int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.step
}

func (l *linearBackOff) Reset() { l.n = 0 }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify is called before each wait with the failed attempt number (1-based).
type Notify func(attempt int, err error, wait time.Duration)

// Do calls op until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(&linearBackOff{step: p.Step}),
		backoff.WithMaxTries(uint(p.Attempts)),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}))
	}

	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		return op(ctx)
	}, opts...)
}
