package fetcher

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffUnit = time.Second
)

// RetryPolicy bounds the attempts made for one provider call. The wait
// before retry k (k >= 1) is 2^k * Unit: 2u, 4u, 8u, ...
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, first attempt included.
	MaxAttempts int

	// Unit is the base backoff unit.
	Unit time.Duration

	// NewTimer supplies the timer used for each wait. Nil uses a real timer.
	// Each call gets its own timer, so the factory must not return a shared one.
	NewTimer func() backoff.Timer
}

// DefaultRetryPolicy returns a policy of 3 attempts with a 1s unit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Unit: DefaultBackoffUnit}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Unit <= 0 {
		p.Unit = DefaultBackoffUnit
	}
	return p
}

// Waits returns the backoff schedule between attempts.
func (p RetryPolicy) Waits() []time.Duration {
	p = p.withDefaults()
	waits := make([]time.Duration, 0, p.MaxAttempts-1)
	for k := 1; k < p.MaxAttempts; k++ {
		waits = append(waits, time.Duration(math.Pow(2, float64(k)))*p.Unit)
	}
	return waits
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(2*p.Unit),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(time.Duration(math.MaxInt64)),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, returns a permanent error, or the attempt
// budget is spent. notify is called before every wait with the error that
// triggered it. The returned error is the last one op produced, or the
// context error if ctx ended during a wait.
func Do[T any](ctx context.Context, policy RetryPolicy, notify backoff.Notify, op func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var timer backoff.Timer
	if policy.NewTimer != nil {
		timer = policy.NewTimer()
	}

	operation := func() (T, error) {
		res, err := op(ctx)
		if err != nil && !domain.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	return backoff.RetryNotifyWithTimerAndData(operation, policy.backOff(ctx), notify, timer)
}
