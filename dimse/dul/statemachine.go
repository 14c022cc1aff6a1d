package dul

import (
	"fmt"
	"sync"
)

// State is a state of the DICOM Upper Layer state machine, following the
// PS3.8 Section 9.2 numbering for the subset of states this module drives.
type State int

const (
	Sta1  State = iota + 1 // Idle
	Sta2                   // Transport connection open, awaiting A-ASSOCIATE-RQ
	Sta3                   // Awaiting local A-ASSOCIATE response primitive
	Sta4                   // Awaiting transport connection opening
	Sta5                   // Awaiting A-ASSOCIATE-AC or A-ASSOCIATE-RJ PDU
	Sta6                   // Association established, data transfer allowed
	Sta7                   // Awaiting A-RELEASE-RP PDU
	Sta8                   // Awaiting local A-RELEASE response primitive
	Sta13                  // Awaiting transport connection close
)

// Event is a state machine event per PS3.8 Section 9.2.
type Event int

const (
	EvTransportConfirm    Event = iota + 1 // transport connect confirmation
	EvTransportAccept                      // transport connection indication
	EvAssociateRequest                     // local A-ASSOCIATE request
	EvAssociateAccept                      // local A-ASSOCIATE response (accept)
	EvAssociateReject                      // local A-ASSOCIATE response (reject)
	EvAssociateACReceived                  // A-ASSOCIATE-AC PDU received
	EvAssociateRJReceived                  // A-ASSOCIATE-RJ PDU received
	EvAssociateRQReceived                  // A-ASSOCIATE-RQ PDU received
	EvDataRequest                          // local P-DATA request
	EvDataReceived                         // P-DATA-TF PDU received
	EvReleaseRequest                       // local A-RELEASE request
	EvReleaseRQReceived                    // A-RELEASE-RQ PDU received
	EvReleaseRPReceived                    // A-RELEASE-RP PDU received
	EvReleaseResponse                      // local A-RELEASE response
	EvAbortRequest                         // local A-ABORT request
	EvAbortReceived                        // A-ABORT PDU received
	EvTransportClosed                      // transport connection closed
	EvArtimExpired                         // ARTIM timer expired
	EvInvalidPDU                           // unrecognized or unexpected PDU
)

// Action is what the caller must perform in response to an event.
type Action int

const (
	ActionNone Action = iota
	ActionSendAssociateRQ
	ActionSendAssociateAC
	ActionSendAssociateRJ
	ActionSendData
	ActionSendReleaseRQ
	ActionSendReleaseRP
	ActionSendAbort
	ActionIssueAssociateConfirmation
	ActionIssueAssociateIndication
	ActionIssueDataIndication
	ActionIssueReleaseIndication
	ActionCloseTransport
)

// StateMachine drives the ACSE protocol over a reliable byte stream and
// enforces legal PDU ordering. It is safe for concurrent use.
type StateMachine struct {
	mu      sync.RWMutex
	current State
}

// NewStateMachine creates a state machine in the idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: Sta1}
}

// CurrentState returns the current state.
func (sm *StateMachine) CurrentState() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// IsEstablished reports whether the association is open for data transfer.
func (sm *StateMachine) IsEstablished() bool {
	return sm.CurrentState() == Sta6
}

// ProcessEvent applies an event, transitions, and returns the action the
// caller must perform. Illegal transitions leave the state unchanged and
// return an error.
func (sm *StateMachine) ProcessEvent(event Event) (Action, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	next, action := transition(sm.current, event)
	if next == 0 {
		return ActionNone, fmt.Errorf("%w: state=%v event=%v", ErrInvalidState, sm.current, event)
	}
	sm.current = next
	return action, nil
}

// transition is the PS3.8 Section 9.2 transition table for the states this
// module uses.
func transition(state State, event Event) (State, Action) {
	switch state {
	case Sta1:
		switch event {
		case EvTransportConfirm:
			return Sta4, ActionNone
		case EvTransportAccept:
			return Sta2, ActionNone
		case EvAssociateRequest:
			return Sta4, ActionSendAssociateRQ
		}

	case Sta2:
		switch event {
		case EvAssociateRQReceived:
			return Sta3, ActionIssueAssociateIndication
		case EvAssociateACReceived, EvAssociateRJReceived:
			return Sta13, ActionSendAbort
		case EvAbortRequest:
			return Sta13, ActionSendAbort
		case EvAbortReceived:
			return Sta1, ActionCloseTransport
		case EvTransportClosed:
			return Sta1, ActionNone
		case EvArtimExpired:
			return Sta13, ActionSendAbort
		case EvInvalidPDU:
			return Sta13, ActionSendAbort
		}

	case Sta3:
		switch event {
		case EvAssociateAccept:
			return Sta6, ActionSendAssociateAC
		case EvAssociateReject:
			return Sta13, ActionSendAssociateRJ
		case EvAbortRequest:
			return Sta13, ActionSendAbort
		case EvAbortReceived:
			return Sta1, ActionCloseTransport
		case EvTransportClosed:
			return Sta1, ActionNone
		}

	case Sta4:
		switch event {
		case EvTransportConfirm, EvAssociateRequest:
			return Sta5, ActionSendAssociateRQ
		case EvAbortRequest:
			return Sta1, ActionCloseTransport
		case EvTransportClosed:
			return Sta1, ActionNone
		}

	case Sta5:
		switch event {
		case EvAssociateACReceived:
			return Sta6, ActionIssueAssociateConfirmation
		case EvAssociateRJReceived:
			return Sta1, ActionCloseTransport
		case EvAbortRequest:
			return Sta13, ActionSendAbort
		case EvAbortReceived:
			return Sta1, ActionCloseTransport
		case EvTransportClosed:
			return Sta1, ActionNone
		case EvArtimExpired:
			return Sta13, ActionSendAbort
		case EvInvalidPDU:
			return Sta13, ActionSendAbort
		}

	case Sta6:
		switch event {
		case EvDataRequest:
			return Sta6, ActionSendData
		case EvDataReceived:
			return Sta6, ActionIssueDataIndication
		case EvReleaseRequest:
			return Sta7, ActionSendReleaseRQ
		case EvReleaseRQReceived:
			return Sta8, ActionIssueReleaseIndication
		case EvAbortRequest:
			return Sta13, ActionSendAbort
		case EvAbortReceived:
			return Sta1, ActionCloseTransport
		case EvTransportClosed:
			return Sta1, ActionNone
		case EvInvalidPDU:
			return Sta13, ActionSendAbort
		}

	case Sta7:
		switch event {
		case EvDataReceived:
			// P-DATA during release collision is discarded.
			return Sta7, ActionNone
		case EvReleaseRQReceived:
			return Sta7, ActionSendReleaseRP
		case EvReleaseRPReceived:
			return Sta1, ActionCloseTransport
		case EvAbortRequest:
			return Sta13, ActionSendAbort
		case EvAbortReceived:
			return Sta1, ActionCloseTransport
		case EvTransportClosed:
			return Sta1, ActionNone
		case EvArtimExpired:
			return Sta13, ActionSendAbort
		case EvInvalidPDU:
			return Sta13, ActionSendAbort
		}

	case Sta8:
		switch event {
		case EvDataReceived:
			return Sta8, ActionNone
		case EvReleaseResponse:
			return Sta13, ActionSendReleaseRP
		case EvAbortRequest:
			return Sta13, ActionSendAbort
		case EvAbortReceived:
			return Sta1, ActionCloseTransport
		case EvTransportClosed:
			return Sta1, ActionNone
		case EvInvalidPDU:
			return Sta13, ActionSendAbort
		}

	case Sta13:
		switch event {
		case EvTransportClosed:
			return Sta1, ActionNone
		case EvArtimExpired:
			return Sta1, ActionCloseTransport
		case EvAbortReceived, EvInvalidPDU, EvDataReceived:
			return Sta13, ActionNone
		}
	}

	return 0, ActionNone
}

func (s State) String() string {
	switch s {
	case Sta1:
		return "Sta1 (Idle)"
	case Sta2:
		return "Sta2 (Awaiting A-ASSOCIATE-RQ)"
	case Sta3:
		return "Sta3 (Awaiting Local Associate Response)"
	case Sta4:
		return "Sta4 (Awaiting Transport Opening)"
	case Sta5:
		return "Sta5 (Awaiting A-ASSOCIATE-AC/RJ)"
	case Sta6:
		return "Sta6 (Association Established)"
	case Sta7:
		return "Sta7 (Awaiting A-RELEASE-RP)"
	case Sta8:
		return "Sta8 (Awaiting Local Release Response)"
	case Sta13:
		return "Sta13 (Awaiting Transport Close)"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

func (e Event) String() string {
	names := map[Event]string{
		EvTransportConfirm:    "transport-confirm",
		EvTransportAccept:     "transport-accept",
		EvAssociateRequest:    "associate-request",
		EvAssociateAccept:     "associate-accept",
		EvAssociateReject:     "associate-reject",
		EvAssociateACReceived: "associate-ac-received",
		EvAssociateRJReceived: "associate-rj-received",
		EvAssociateRQReceived: "associate-rq-received",
		EvDataRequest:         "data-request",
		EvDataReceived:        "data-received",
		EvReleaseRequest:      "release-request",
		EvReleaseRQReceived:   "release-rq-received",
		EvReleaseRPReceived:   "release-rp-received",
		EvReleaseResponse:     "release-response",
		EvAbortRequest:        "abort-request",
		EvAbortReceived:       "abort-received",
		EvTransportClosed:     "transport-closed",
		EvArtimExpired:        "artim-expired",
		EvInvalidPDU:          "invalid-pdu",
	}
	if n, ok := names[e]; ok {
		return n
	}
	return fmt.Sprintf("Unknown(%d)", int(e))
}
