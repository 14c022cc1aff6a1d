package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the breaker's time source deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("pacs.example.org", 11112, cfg)
	cb.now = clock.now
	return cb, clock
}

// TestBreaker_TripAndRecover is the canonical trip sequence: three failures
// open the circuit, the reset timeout admits a half-open trial, two
// successes close it.
func TestBreaker_TripAndRecover(t *testing.T) {
	cb, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		ResetTimeout:     200 * time.Millisecond,
		FailureWindow:    time.Minute,
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.CheckState())
		cb.RecordFailure()
	}
	assert.Equal(t, BreakerOpen, cb.State())
	assert.Equal(t, 1, cb.TimesOpened())

	err := cb.CheckState()
	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "pacs.example.org", open.Host)
	assert.Equal(t, 11112, open.Port)

	clock.advance(time.Second)
	require.NoError(t, cb.CheckState())
	assert.Equal(t, BreakerHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, BreakerHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, BreakerClosed, cb.State())
}

// TestBreaker_SuccessesNeverOpen: with only successes the breaker stays
// closed.
func TestBreaker_SuccessesNeverOpen(t *testing.T) {
	cb, _ := newTestBreaker(DefaultBreakerConfig())
	for i := 0; i < 1000; i++ {
		require.NoError(t, cb.CheckState())
		cb.RecordSuccess()
	}
	assert.Equal(t, BreakerClosed, cb.State())
	assert.Equal(t, 0, cb.TimesOpened())
}

// TestBreaker_WindowPruning: failures outside the sliding window stop
// counting toward the threshold.
func TestBreaker_WindowPruning(t *testing.T) {
	cb, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		ResetTimeout:     time.Second,
		FailureWindow:    10 * time.Second,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	clock.advance(11 * time.Second)
	cb.RecordFailure()
	assert.Equal(t, BreakerClosed, cb.State(), "stale failures must not count")

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())
}

// TestBreaker_HalfOpenFailureReopens: any failure during the trial phase
// reopens immediately.
func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		ResetTimeout:     time.Second,
		FailureWindow:    time.Minute,
	})

	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())

	clock.advance(2 * time.Second)
	require.NoError(t, cb.CheckState())
	assert.Equal(t, BreakerHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())
	assert.Equal(t, 2, cb.TimesOpened())
}

func TestBreaker_ExecuteRecordsOutcomes(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		ResetTimeout:     time.Minute,
		FailureWindow:    time.Minute,
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}
	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
}

// TestBreakerRegistry_SharedInstances: one breaker per endpoint, created on
// first use.
func TestBreakerRegistry_SharedInstances(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig())
	a := registry.For("host-a", 104)
	b := registry.For("host-b", 104)
	assert.NotSame(t, a, b)
	assert.Same(t, a, registry.For("host-a", 104))
}
