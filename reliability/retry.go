package reliability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pacsforge/dicomnet/audit"
)

// Strategy selects the delay progression between attempts.
type Strategy interface {
	// NewBackOff builds a fresh backoff sequence for one execution.
	NewBackOff(initial, max time.Duration) backoff.BackOff
	String() string
}

// FixedStrategy waits the initial delay between every attempt.
type FixedStrategy struct{}

func (FixedStrategy) NewBackOff(initial, _ time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(initial)
}

func (FixedStrategy) String() string { return "fixed" }

// ExponentialStrategy multiplies the delay by Factor each attempt, capped at
// the policy's maximum delay.
type ExponentialStrategy struct {
	Factor float64
}

func (s ExponentialStrategy) NewBackOff(initial, max time.Duration) backoff.BackOff {
	return s.exponential(initial, max, 0)
}

func (s ExponentialStrategy) String() string { return "exponential" }

func (s ExponentialStrategy) exponential(initial, max time.Duration, jitter float64) backoff.BackOff {
	factor := s.Factor
	if factor <= 1 {
		factor = 2
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = factor
	b.RandomizationFactor = jitter
	b.MaxElapsedTime = 0 // the executor enforces the total-time budget
	b.Reset()
	return b
}

// JitterStrategy is exponential backoff with each delay randomized by
// ±Randomization around the base.
type JitterStrategy struct {
	Factor        float64
	Randomization float64
}

func (s JitterStrategy) NewBackOff(initial, max time.Duration) backoff.BackOff {
	r := s.Randomization
	if r <= 0 {
		r = 0.5
	}
	return ExponentialStrategy{Factor: s.Factor}.exponential(initial, max, r)
}

func (s JitterStrategy) String() string { return "exponential_with_jitter" }

// LinearStrategy grows the delay by initial·Increment each attempt.
type LinearStrategy struct {
	Increment float64
}

func (s LinearStrategy) NewBackOff(initial, max time.Duration) backoff.BackOff {
	return &linearBackOff{initial: initial, max: max, increment: s.Increment}
}

func (s LinearStrategy) String() string { return "linear" }

// linearBackOff implements backoff.BackOff with delay(n) = d0·(1 + n·inc).
type linearBackOff struct {
	initial   time.Duration
	max       time.Duration
	increment float64
	attempt   int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	d := time.Duration(float64(b.initial) * (1 + float64(b.attempt)*b.increment))
	b.attempt++
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// RetryPolicy configures the retry executor.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// MaxTotalTime bounds elapsed time across attempts and waits; zero
	// disables the bound.
	MaxTotalTime time.Duration
	Strategy     Strategy
	// RetryableCategories overrides the default retryable set when set.
	RetryableCategories map[Category]bool
	// UseCircuitBreaker routes attempts through the endpoint's breaker when
	// the executor is given one.
	UseCircuitBreaker bool
}

// DefaultRetryPolicy mirrors the documented defaults: three attempts,
// exponential backoff from one second capped at thirty.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		Strategy:          ExponentialStrategy{Factor: 2},
		UseCircuitBreaker: true,
	}
}

// RetryExhaustedError aggregates the error of every failed attempt.
type RetryExhaustedError struct {
	Attempts int
	Errs     []error
}

func (e *RetryExhaustedError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = fmt.Sprintf("attempt %d: %v", i+1, err)
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %s", e.Attempts, strings.Join(parts, "; "))
}

// Unwrap exposes the final attempt's error for errors.Is/As chains.
func (e *RetryExhaustedError) Unwrap() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[len(e.Errs)-1]
}

// Execute runs op under the policy. The first attempt executes immediately;
// subsequent attempts wait the strategy's delay. A non-retryable error stops
// immediately and propagates unchanged; exhaustion surfaces every
// accumulated error; context cancellation terminates at once.
func Execute(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	return ExecuteBreaker(ctx, policy, nil, op)
}

// ExecuteBreaker is Execute with an optional circuit breaker guarding each
// attempt.
func ExecuteBreaker(ctx context.Context, policy RetryPolicy, breaker *CircuitBreaker, op func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Strategy == nil {
		policy.Strategy = ExponentialStrategy{Factor: 2}
	}
	retryable := policy.RetryableCategories
	if retryable == nil {
		retryable = DefaultRetryableCategories()
	}

	delays := policy.Strategy.NewBackOff(policy.InitialDelay, policy.MaxDelay)
	start := time.Now()
	var attemptErrs []error

	for attempt := 1; ; attempt++ {
		err := runAttempt(ctx, policy, breaker, op)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attemptErrs = append(attemptErrs, err)

		if !IsRetryable(err, retryable) {
			// Non-retryable errors propagate unchanged.
			return err
		}
		if attempt >= policy.MaxAttempts {
			return &RetryExhaustedError{Attempts: attempt, Errs: attemptErrs}
		}

		delay := delays.NextBackOff()
		if delay == backoff.Stop {
			return &RetryExhaustedError{Attempts: attempt, Errs: attemptErrs}
		}
		if policy.MaxTotalTime > 0 && time.Since(start)+delay > policy.MaxTotalTime {
			return &RetryExhaustedError{Attempts: attempt, Errs: attemptErrs}
		}

		audit.Log().WithCategory(audit.CategoryPerformance).
			WithField("attempt", attempt).
			WithField("delay", delay.String()).
			WithField("strategy", policy.Strategy.String()).
			Debug("retrying after failure")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func runAttempt(ctx context.Context, policy RetryPolicy, breaker *CircuitBreaker, op func(ctx context.Context) error) error {
	if breaker != nil && policy.UseCircuitBreaker {
		return breaker.Execute(ctx, op)
	}
	return op(ctx)
}
