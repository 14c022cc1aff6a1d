// Package queue implements the durable store-and-forward queue for C-STORE
// operations: an append-only journal plus per-item metadata and dataset
// sidecar files, a priority scheduler, and a drain-aware lifecycle. The
// on-disk state survives process restarts; items in flight at crash time
// resume as pending.
package queue

import (
	"fmt"
	"time"
)

// Status is the delivery state of a queued item.
//
// Transitions: Pending → Sending → {Completed, Failed, Pending};
// Pending → Cancelled; Failed → Pending (manual retry). An item found in
// Sending at load time is rewound to Pending with its attempt count intact.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Priority orders eligible items when priority ordering is enabled.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityMedium Priority = 1
	PriorityHigh   Priority = 2
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Item is one queued C-STORE intent. The dataset bytes live in the item's
// blob sidecar, not in memory.
type Item struct {
	ID                string     `json:"id"`
	SOPClassUID       string     `json:"sop_class_uid"`
	SOPInstanceUID    string     `json:"sop_instance_uid"`
	TransferSyntaxUID string     `json:"transfer_syntax_uid"`
	Host              string     `json:"host"`
	Port              int        `json:"port"`
	CallingAE         string     `json:"calling_ae"`
	CalledAE          string     `json:"called_ae"`
	Priority          Priority   `json:"priority"`
	FileSize          int64      `json:"file_size"`
	Status            Status     `json:"status"`
	AttemptCount      int        `json:"attempt_count"`
	EnqueuedAt        time.Time  `json:"enqueued_at"`
	LastAttemptAt     *time.Time `json:"last_attempt_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`

	// notBefore delays the next attempt after a retryable failure. It is
	// in-memory only: a restart retries immediately, which is safe.
	notBefore time.Time
}

// clone returns a copy safe to hand to callers.
func (it *Item) clone() *Item {
	c := *it
	if it.LastAttemptAt != nil {
		t := *it.LastAttemptAt
		c.LastAttemptAt = &t
	}
	if it.CompletedAt != nil {
		t := *it.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// validTransition enforces the status DAG.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusSending || to == StatusCancelled
	case StatusSending:
		return to == StatusCompleted || to == StatusFailed || to == StatusPending
	case StatusFailed:
		return to == StatusPending
	default:
		return false
	}
}

// ErrQueueFull is the admission-control rejection.
type ErrQueueFull struct {
	Items int
	Bytes int64
}

func (e *ErrQueueFull) Error() string {
	return fmt.Sprintf("queue full: %d items, %d bytes", e.Items, e.Bytes)
}
