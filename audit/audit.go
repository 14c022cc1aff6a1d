package audit

import (
	"sync"
	"time"
)

// EventType enumerates the audited protocol events.
type EventType string

const (
	EventAssociationEstablished EventType = "associationEstablished"
	EventAssociationRejected    EventType = "associationRejected"
	EventAssociationReleased    EventType = "associationReleased"
	EventAssociationAborted     EventType = "associationAborted"
	EventStoreSent              EventType = "storeSent"
	EventStoreReceived          EventType = "storeReceived"
	EventQueryExecuted          EventType = "queryExecuted"
	EventRetrieveStarted        EventType = "retrieveStarted"
	EventRetrieveCompleted      EventType = "retrieveCompleted"
	EventVerificationPerformed  EventType = "verificationPerformed"
	EventCommitmentRequested    EventType = "commitmentRequested"
	EventCommitmentResult       EventType = "commitmentResultReceived"
	EventConnectionEstablished  EventType = "connectionEstablished"
	EventConnectionFailed       EventType = "connectionFailed"
	EventSecurity               EventType = "securityEvent"
)

// Event is one structured audit record.
type Event struct {
	Type      EventType
	Timestamp time.Time
	// CallingAE and CalledAE identify the association, when applicable.
	CallingAE string
	CalledAE  string
	// Endpoint is "host:port" of the peer, when applicable.
	Endpoint string
	// SOPClassUID and SOPInstanceUID identify the object of a store or
	// retrieve event.
	SOPClassUID    string
	SOPInstanceUID string
	// Status is the DIMSE status of the operation, when applicable.
	Status uint16
	// Detail carries free-form context (rejection reasons, error text).
	Detail string
}

// Handler consumes audit events. Implementations must be safe for
// concurrent use and must not block.
type Handler interface {
	HandleAudit(Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(Event)

// HandleAudit calls f.
func (f HandlerFunc) HandleAudit(e Event) { f(e) }

var (
	handlersMu sync.RWMutex
	handlers   []Handler
)

// RegisterHandler adds an audit handler. Registration is rare; emission is
// hot, so handlers are copied under a read lock on every emit.
func RegisterHandler(h Handler) {
	if h == nil {
		return
	}
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers = append(handlers, h)
}

// ResetHandlers removes all registered handlers. Intended for tests.
func ResetHandlers() {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers = nil
}

// Emit dispatches an event to every registered handler. The timestamp is
// stamped here when unset. Emission never blocks protocol work on handler
// registration and is safe to call from handler code.
func Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	handlersMu.RLock()
	snapshot := make([]Handler, len(handlers))
	copy(snapshot, handlers)
	handlersMu.RUnlock()

	for _, h := range snapshot {
		h.HandleAudit(e)
	}
}
