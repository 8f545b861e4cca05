package llm

import (
	"context"
	"errors"
	"time"

	"postflow/internal/logger"
	"postflow/internal/model"
	"postflow/internal/retry"
)

// Resilient bounds each provider attempt with a timeout and retries
// transient failures.
type Resilient struct {
	next    Generator
	timeout time.Duration
	policy  retry.Policy
	log     *logger.Logger
}

// NewResilient wraps next. A zero timeout disables the per-attempt deadline.
func NewResilient(next Generator, timeout time.Duration, policy retry.Policy, log *logger.Logger) *Resilient {
	return &Resilient{next: next, timeout: timeout, policy: policy, log: log.With("llm")}
}

func (r *Resilient) Name() model.Provider { return r.next.Name() }

func (r *Resilient) Generate(ctx context.Context, req Request) (any, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) (any, error) {
		attemptCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		out, err := r.next.Generate(attemptCtx, req)
		if err == nil {
			return out, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) || ctx.Err() != nil {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}, func(attempt int, err error, wait time.Duration) {
		r.log.Warn("llm_generate_retry", err, map[string]any{
			"provider": string(r.next.Name()),
			"attempt":  attempt,
			"wait_ms":  wait.Milliseconds(),
		})
	})
}
