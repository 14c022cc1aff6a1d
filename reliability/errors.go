// Package reliability provides the failure-handling envelope around DIMSE
// operations: an error taxonomy with recovery hints, a retry executor with
// pluggable backoff, per-endpoint circuit breakers, and a connection pool.
package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pacsforge/dicomnet/dicom"
	"github.com/pacsforge/dicomnet/dimse/dimse"
	"github.com/pacsforge/dicomnet/dimse/dul"
	"github.com/pacsforge/dicomnet/dimse/pdu"
	"github.com/pacsforge/dicomnet/dimse/scu"
)

// Category classifies every recoverable error into exactly one bucket.
type Category int

const (
	CategoryTransient Category = iota
	CategoryTimeout
	CategoryResource
	CategoryConfiguration
	CategoryProtocol
	CategoryPermanent
)

func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryTimeout:
		return "timeout"
	case CategoryResource:
		return "resource"
	case CategoryConfiguration:
		return "configuration"
	case CategoryProtocol:
		return "protocol"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// DefaultRetryableCategories is the default retryable set:
// transient, timeout, and resource failures.
func DefaultRetryableCategories() map[Category]bool {
	return map[Category]bool{
		CategoryTransient: true,
		CategoryTimeout:   true,
		CategoryResource:  true,
	}
}

// CircuitOpenError is the fail-fast error returned while a breaker is open.
type CircuitOpenError struct {
	Host       string
	Port       int
	RetryAfter time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s:%d, retry after %s",
		e.Host, e.Port, e.RetryAfter.Format(time.RFC3339))
}

// PoolExhaustedError indicates acquire waited its full timeout with no
// connection becoming available.
type PoolExhaustedError struct {
	Host    string
	Port    int
	Waited  time.Duration
	MaxSize int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool for %s:%d exhausted (max %d) after waiting %s",
		e.Host, e.Port, e.MaxSize, e.Waited)
}

// Classify maps an error to its taxonomy category.
//
// Association rejections split by the peer's result: permanent rejections
// are permanent, transient rejections are retry-safe. Codec and framing
// errors are protocol failures; context cancellation is permanent (the
// caller gave up, retrying is wrong).
func Classify(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var rejected *dul.AssociationRejectedError
	if errors.As(err, &rejected) {
		if rejected.IsTransient() {
			return CategoryTransient
		}
		return CategoryPermanent
	}

	var circuitOpen *CircuitOpenError
	var poolExhausted *PoolExhaustedError
	if errors.As(err, &circuitOpen) || errors.As(err, &poolExhausted) {
		return CategoryResource
	}

	var opTimeout *dul.OperationTimeoutError
	if errors.As(err, &opTimeout) ||
		errors.Is(err, dul.ErrArtimTimerExpired) ||
		errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	if errors.Is(err, pdu.ErrInvalidAETitle) {
		return CategoryConfiguration
	}

	var aborted *dul.AssociationAbortedError
	var unexpected *dul.UnexpectedPDUError
	if errors.As(err, &aborted) || errors.As(err, &unexpected) ||
		errors.Is(err, pdu.ErrUnrecognizedPDUType) ||
		errors.Is(err, pdu.ErrTruncatedPDU) ||
		errors.Is(err, pdu.ErrPDUTooLarge) ||
		errors.Is(err, dimse.ErrProtocolViolation) ||
		errors.Is(err, dul.ErrInvalidState) ||
		errors.Is(err, dicom.ErrMalformedElement) ||
		errors.Is(err, dicom.ErrUnexpectedEndOfData) {
		return CategoryProtocol
	}

	var storeFailed *scu.StoreFailedError
	if errors.As(err, &storeFailed) {
		if dimse.ClassifyStatus(storeFailed.Status) == dimse.StatusClassRefused {
			// Refused statuses (out of resources) clear up on their own.
			return CategoryTransient
		}
		return CategoryPermanent
	}
	var queryFailed *scu.QueryFailedError
	var retrieveFailed *scu.RetrieveFailedError
	if errors.As(err, &queryFailed) || errors.As(err, &retrieveFailed) {
		return CategoryPermanent
	}

	if errors.Is(err, scu.ErrSopClassNotSupported) ||
		errors.Is(err, dul.ErrNoPresentationContextAccepted) ||
		errors.Is(err, dicom.ErrUnsupportedTransferSyntax) {
		return CategoryConfiguration
	}

	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}

	// Connection-level failures default to transient: the next attempt may
	// land on a healthy path.
	if errors.Is(err, dul.ErrConnectionClosed) || errors.As(err, &netErr) {
		return CategoryTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryTransient
	}

	return CategoryTransient
}

// IsRetryable reports membership of the error's category in the retryable
// set.
func IsRetryable(err error, retryable map[Category]bool) bool {
	return retryable[Classify(err)]
}

// RecoveryHint is the deterministic remediation advice for an error kind.
type RecoveryHint struct {
	Action string
	// Delay suggests how long to wait before acting, for the wait-style
	// actions.
	Delay time.Duration
	// Detail carries configuration or administrator guidance.
	Detail string
}

// Recovery hint actions.
const (
	HintRetry                = "retry"
	HintRetryWithBackoff     = "retry_with_backoff"
	HintCheckConfiguration   = "check_configuration"
	HintWaitAndRetry         = "wait_and_retry"
	HintUseAlternateServer   = "use_alternate_server"
	HintNoRecovery           = "no_recovery"
	HintContactAdministrator = "contact_administrator"
)

// Recover computes the recovery hint for an error. Hints are derived from
// the error kind, never stored.
func Recover(err error) RecoveryHint {
	var circuitOpen *CircuitOpenError
	if errors.As(err, &circuitOpen) {
		return RecoveryHint{Action: HintWaitAndRetry, Delay: time.Until(circuitOpen.RetryAfter)}
	}

	switch Classify(err) {
	case CategoryTransient:
		return RecoveryHint{Action: HintRetryWithBackoff, Delay: time.Second}
	case CategoryTimeout:
		return RecoveryHint{Action: HintRetry}
	case CategoryResource:
		return RecoveryHint{Action: HintWaitAndRetry, Delay: 30 * time.Second}
	case CategoryConfiguration:
		return RecoveryHint{Action: HintCheckConfiguration, Detail: err.Error()}
	case CategoryProtocol:
		return RecoveryHint{Action: HintUseAlternateServer, Detail: err.Error()}
	default:
		return RecoveryHint{Action: HintNoRecovery, Detail: err.Error()}
	}
}
