package invoker

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates attempts on requests per minute and tokens per minute.
// The two budgets are independent of the pipeline admission limit.
type Limiter struct {
	requests *rate.Limiter
	tokens   *rate.Limiter
}

// NewLimiter creates a Limiter. A zero rpm or tpm disables that budget.
func NewLimiter(rpm, tpm int) *Limiter {
	l := &Limiter{}
	if rpm > 0 {
		l.requests = rate.NewLimiter(rate.Limit(float64(rpm)/60), max(1, rpm/60))
	}
	if tpm > 0 {
		l.tokens = rate.NewLimiter(rate.Limit(float64(tpm)/60), max(1, tpm/60))
	}
	return l
}

func (l *Limiter) limitsTokens() bool {
	return l != nil && l.tokens != nil
}

// Wait blocks until one request carrying roughly n tokens may start.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	if l.requests != nil {
		if err := l.requests.Wait(ctx); err != nil {
			return err
		}
	}
	if l.tokens != nil && n > 0 {
		if burst := l.tokens.Burst(); n > burst {
			n = burst
		}
		if err := l.tokens.WaitN(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
