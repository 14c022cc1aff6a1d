package reliability

import (
	"context"
	"sync"
	"time"

	"github.com/pacsforge/dicomnet/audit"
	"github.com/pacsforge/dicomnet/metrics"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold failures within FailureWindow open the circuit.
	FailureThreshold int
	// SuccessThreshold successes in half-open close it again.
	SuccessThreshold int
	// ResetTimeout is how long the circuit stays open before a trial call.
	ResetTimeout time.Duration
	// FailureWindow is the sliding window over which failures count.
	FailureWindow time.Duration
}

// DefaultBreakerConfig mirrors the documented defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		FailureWindow:    60 * time.Second,
	}
}

// CircuitBreaker guards one endpoint. State transitions are atomic with
// respect to concurrent callers; the sliding failure window is pruned lazily
// on each access.
type CircuitBreaker struct {
	host   string
	port   int
	config BreakerConfig

	mu           sync.Mutex
	state        BreakerState
	failures     []time.Time
	halfOpenHits int
	openedAt     time.Time
	timesOpened  int
	now          func() time.Time // test hook
}

// NewCircuitBreaker creates a closed breaker for an endpoint.
func NewCircuitBreaker(host string, port int, config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		host:   host,
		port:   port,
		config: config,
		state:  BreakerClosed,
		now:    time.Now,
	}
}

// CheckState admits or rejects a call. While open it fails fast with
// CircuitOpenError; once the reset timeout passes the next call transitions
// the breaker to half-open and is admitted as a trial.
func (cb *CircuitBreaker) CheckState() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneLocked()
	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return nil
	default: // open
		retryAfter := cb.openedAt.Add(cb.config.ResetTimeout)
		if cb.now().Before(retryAfter) {
			return &CircuitOpenError{Host: cb.host, Port: cb.port, RetryAfter: retryAfter}
		}
		cb.setStateLocked(BreakerHalfOpen)
		cb.halfOpenHits = 0
		return nil
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerHalfOpen:
		cb.halfOpenHits++
		if cb.halfOpenHits >= cb.config.SuccessThreshold {
			cb.setStateLocked(BreakerClosed)
			cb.failures = nil
			cb.halfOpenHits = 0
		}
	case BreakerClosed:
		// Successes do not clear the window; only time does.
	}
}

// RecordFailure records a failed call. In half-open any failure reopens the
// circuit immediately; in closed, reaching the threshold within the window
// opens it.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerHalfOpen:
		cb.openLocked()
	case BreakerClosed:
		cb.failures = append(cb.failures, cb.now())
		cb.pruneLocked()
		if len(cb.failures) >= cb.config.FailureThreshold {
			cb.openLocked()
		}
	}
}

// Execute wraps one call with admission control and outcome recording.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.CheckState(); err != nil {
		return err
	}
	err := op(ctx)
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// State returns the stored state without applying any transition; the move
// from open to half-open happens only in CheckState.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// TimesOpened returns how many times the breaker has opened.
func (cb *CircuitBreaker) TimesOpened() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.timesOpened
}

func (cb *CircuitBreaker) openLocked() {
	cb.openedAt = cb.now()
	cb.timesOpened++
	cb.failures = nil
	cb.halfOpenHits = 0
	cb.setStateLocked(BreakerOpen)
	metrics.BreakerOpened(cb.host, cb.port)
	audit.Log().WithCategory(audit.CategoryConnection).
		WithField("host", cb.host).
		WithField("port", cb.port).
		WithField("times_opened", cb.timesOpened).
		Warning("circuit breaker opened")
}

func (cb *CircuitBreaker) setStateLocked(s BreakerState) {
	if cb.state != s {
		cb.state = s
		metrics.BreakerState(cb.host, cb.port, int(s))
	}
}

// pruneLocked drops failures older than the sliding window.
func (cb *CircuitBreaker) pruneLocked() {
	if cb.config.FailureWindow <= 0 || len(cb.failures) == 0 {
		return
	}
	cutoff := cb.now().Add(-cb.config.FailureWindow)
	kept := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failures = kept
}

// BreakerRegistry maps endpoints to breaker instances sharing one
// configuration. Breakers are created on first use; unrelated endpoints use
// separate locks and do not contend.
type BreakerRegistry struct {
	config   BreakerConfig
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry with a shared configuration.
func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for an endpoint, creating it on first use.
func (r *BreakerRegistry) For(host string, port int) *CircuitBreaker {
	key := endpointKey(host, port)
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(host, port, r.config)
		r.breakers[key] = cb
	}
	return cb
}
