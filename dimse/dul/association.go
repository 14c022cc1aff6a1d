package dul

import (
	"context"
	"fmt"
	"sync"

	"github.com/pacsforge/dicomnet/audit"
	"github.com/pacsforge/dicomnet/dicom/uid"
	"github.com/pacsforge/dicomnet/dimse/pdu"
)

// PresentationContext is one negotiated presentation context. A context is
// usable only when Accepted is true and TransferSyntax is set.
type PresentationContext struct {
	ID             uint8
	AbstractSyntax string
	TransferSyntax string
	Result         uint8
	Accepted       bool
}

// NegotiatedAssociation is the typed outcome of a successful negotiation.
type NegotiatedAssociation struct {
	CallingAETitle string
	CalledAETitle  string
	// Contexts maps presentation context id to its negotiated result.
	Contexts map[uint8]*PresentationContext
	// MaxPDULength is min(locally proposed, peer proposed).
	MaxPDULength uint32
	// Peer implementation identity from the User Information item.
	PeerImplementationClassUID string
	PeerImplementationVersion  string
	// UserIdentityResponse is the server response to a user identity
	// negotiation, when the peer returned one.
	UserIdentityResponse []byte
}

// AcceptedContext returns the first accepted context for the abstract
// syntax, or nil.
func (n *NegotiatedAssociation) AcceptedContext(abstractSyntax string) *PresentationContext {
	for _, pc := range n.Contexts {
		if pc.Accepted && pc.AbstractSyntax == abstractSyntax {
			return pc
		}
	}
	return nil
}

// HasAcceptedContext reports whether any context was accepted.
func (n *NegotiatedAssociation) HasAcceptedContext() bool {
	for _, pc := range n.Contexts {
		if pc.Accepted {
			return true
		}
	}
	return false
}

// Association owns one connection exclusively and drives the ACSE protocol
// on it. Operations against one association are serialized by the caller;
// the association itself is safe for concurrent inspection.
type Association struct {
	conn                   *Connection
	calledAETitle          string
	callingAETitle         string
	maxPDULength           uint32
	implementationClassUID string
	implementationVersion  string
	userIdentity           *pdu.UserIdentity
	negotiated             *NegotiatedAssociation
	mu                     sync.RWMutex
}

// NewAssociation creates an association over an owned connection.
func NewAssociation(conn *Connection, calledAE, callingAE string) *Association {
	return &Association{
		conn:                   conn,
		calledAETitle:          calledAE,
		callingAETitle:         callingAE,
		maxPDULength:           pdu.DefaultMaxPDULength,
		implementationClassUID: uid.ImplementationClassUID,
		implementationVersion:  uid.ImplementationVersionName,
	}
}

// SetMaxPDULength sets the locally proposed maximum PDU length.
func (a *Association) SetMaxPDULength(length uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if length > 0 {
		a.maxPDULength = length
	}
}

// SetUserIdentity attaches a user identity negotiation item to the next
// A-ASSOCIATE-RQ.
func (a *Association) SetUserIdentity(id *pdu.UserIdentity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userIdentity = id
}

// RequestAssociation performs the requestor side of negotiation: send
// A-ASSOCIATE-RQ, await AC or RJ under the ARTIM timer, and expose the
// typed negotiation outcome.
func (a *Association) RequestAssociation(ctx context.Context, contexts []pdu.PresentationContextRQ) (*NegotiatedAssociation, error) {
	if err := pdu.ValidateAETitle(a.callingAETitle); err != nil {
		return nil, err
	}
	if err := pdu.ValidateAETitle(a.calledAETitle); err != nil {
		return nil, err
	}

	action, err := a.conn.sm.ProcessEvent(EvAssociateRequest)
	if err != nil {
		return nil, err
	}
	if action != ActionSendAssociateRQ {
		return nil, fmt.Errorf("%w: unexpected action %d", ErrInvalidState, action)
	}

	a.mu.RLock()
	rq := &pdu.AssociateRQ{
		ProtocolVersion:      0x0001,
		CalledAETitle:        pdu.PadAETitle(a.calledAETitle),
		CallingAETitle:       pdu.PadAETitle(a.callingAETitle),
		ApplicationContext:   uid.ApplicationContextName,
		PresentationContexts: contexts,
		UserInfo: pdu.UserInformation{
			MaxPDULength:           a.maxPDULength,
			ImplementationClassUID: a.implementationClassUID,
			ImplementationVersion:  a.implementationVersion,
			UserIdentity:           a.userIdentity,
		},
	}
	localMax := a.maxPDULength
	a.mu.RUnlock()

	proposed := make(map[uint8]string, len(contexts))
	for _, pc := range contexts {
		proposed[pc.ID] = pc.AbstractSyntax
	}

	if err := a.conn.SendPDU(ctx, rq); err != nil {
		return nil, fmt.Errorf("send A-ASSOCIATE-RQ: %w", err)
	}

	response, err := a.conn.ReadPDUArtim(ctx)
	if err != nil {
		return nil, fmt.Errorf("await association response: %w", err)
	}

	switch p := response.(type) {
	case *pdu.AssociateAC:
		if _, err := a.conn.sm.ProcessEvent(EvAssociateACReceived); err != nil {
			return nil, err
		}
		negotiated := buildNegotiated(a.callingAETitle, a.calledAETitle, p, proposed, localMax)

		a.mu.Lock()
		a.negotiated = negotiated
		a.mu.Unlock()
		a.conn.SetMaxPDULength(negotiated.MaxPDULength)

		audit.Emit(audit.Event{
			Type:      audit.EventAssociationEstablished,
			CallingAE: a.callingAETitle,
			CalledAE:  a.calledAETitle,
			Endpoint:  a.conn.RemoteAddr().String(),
		})
		audit.Log().WithCategory(audit.CategoryAssociation).
			WithField("contexts", len(negotiated.Contexts)).
			WithField("max_pdu", negotiated.MaxPDULength).
			Info("association established")
		return negotiated, nil

	case *pdu.AssociateRJ:
		_, _ = a.conn.sm.ProcessEvent(EvAssociateRJReceived)
		audit.Emit(audit.Event{
			Type:      audit.EventAssociationRejected,
			CallingAE: a.callingAETitle,
			CalledAE:  a.calledAETitle,
			Detail:    fmt.Sprintf("result=%d source=%d reason=%d", p.Result, p.Source, p.Reason),
		})
		return nil, &AssociationRejectedError{Result: p.Result, Source: p.Source, Reason: p.Reason}

	case *pdu.Abort:
		_, _ = a.conn.sm.ProcessEvent(EvAbortReceived)
		return nil, &AssociationAbortedError{Source: p.Source, Reason: p.Reason}

	default:
		// Anything else while awaiting the AC is a protocol violation:
		// abort toward the peer and fail.
		_, _ = a.conn.sm.ProcessEvent(EvInvalidPDU)
		_ = a.conn.SendPDU(ctx, &pdu.Abort{
			Source: pdu.AbortSourceServiceProvider,
			Reason: pdu.AbortReasonUnexpectedPDU,
		})
		_ = a.conn.Close()
		return nil, &UnexpectedPDUError{Expected: "A-ASSOCIATE-AC or A-ASSOCIATE-RJ", Received: response.Type()}
	}
}

func buildNegotiated(callingAE, calledAE string, ac *pdu.AssociateAC, proposed map[uint8]string, localMax uint32) *NegotiatedAssociation {
	negotiated := &NegotiatedAssociation{
		CallingAETitle:             callingAE,
		CalledAETitle:              calledAE,
		Contexts:                   make(map[uint8]*PresentationContext, len(ac.PresentationContexts)),
		MaxPDULength:               effectiveMaxPDU(localMax, ac.UserInfo.MaxPDULength),
		PeerImplementationClassUID: ac.UserInfo.ImplementationClassUID,
		PeerImplementationVersion:  ac.UserInfo.ImplementationVersion,
	}
	if ac.UserInfo.UserIdentityResponse != nil {
		negotiated.UserIdentityResponse = ac.UserInfo.UserIdentityResponse.ServerResponse
	}
	for _, pc := range ac.PresentationContexts {
		accepted := pc.Result == pdu.PresentationContextAcceptance && pc.TransferSyntax != ""
		negotiated.Contexts[pc.ID] = &PresentationContext{
			ID:             pc.ID,
			AbstractSyntax: proposed[pc.ID],
			TransferSyntax: pc.TransferSyntax,
			Result:         pc.Result,
			Accepted:       accepted,
		}
	}
	return negotiated
}

// effectiveMaxPDU applies the min(local, peer) rule; zero means the peer
// declared no limit.
func effectiveMaxPDU(local, peer uint32) uint32 {
	if peer == 0 || peer > pdu.MaxPDULength {
		peer = pdu.MaxPDULength
	}
	if local > 0 && local < peer {
		return local
	}
	return peer
}

// AcceptAssociation performs the acceptor side: negotiate each proposed
// context against the supported abstract→transfer syntax map and send the
// AC. The RQ must already have been read by the caller.
func (a *Association) AcceptAssociation(ctx context.Context, rq *pdu.AssociateRQ, supported map[string][]string) (*NegotiatedAssociation, error) {
	if _, err := a.conn.sm.ProcessEvent(EvAssociateRQReceived); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.calledAETitle = pdu.TrimAETitle(rq.CalledAETitle)
	a.callingAETitle = pdu.TrimAETitle(rq.CallingAETitle)
	localMax := a.maxPDULength
	a.mu.Unlock()

	negotiated := &NegotiatedAssociation{
		CallingAETitle: a.callingAETitle,
		CalledAETitle:  a.calledAETitle,
		Contexts:       make(map[uint8]*PresentationContext, len(rq.PresentationContexts)),
		MaxPDULength:   effectiveMaxPDU(localMax, rq.UserInfo.MaxPDULength),
	}

	var acContexts []pdu.PresentationContextAC
	for _, pcRQ := range rq.PresentationContexts {
		pc := negotiateContext(pcRQ, supported)
		negotiated.Contexts[pc.ID] = pc
		acContexts = append(acContexts, pdu.PresentationContextAC{
			ID:             pc.ID,
			Result:         pc.Result,
			TransferSyntax: pc.TransferSyntax,
		})
	}

	ac := &pdu.AssociateAC{
		ProtocolVersion:      0x0001,
		CalledAETitle:        rq.CalledAETitle,
		CallingAETitle:       rq.CallingAETitle,
		ApplicationContext:   rq.ApplicationContext,
		PresentationContexts: acContexts,
		UserInfo: pdu.UserInformation{
			MaxPDULength:           localMax,
			ImplementationClassUID: a.implementationClassUID,
			ImplementationVersion:  a.implementationVersion,
		},
	}

	action, err := a.conn.sm.ProcessEvent(EvAssociateAccept)
	if err != nil {
		return nil, err
	}
	if action != ActionSendAssociateAC {
		return nil, fmt.Errorf("%w: unexpected action %d", ErrInvalidState, action)
	}

	if err := a.conn.SendPDU(ctx, ac); err != nil {
		return nil, fmt.Errorf("send A-ASSOCIATE-AC: %w", err)
	}

	a.mu.Lock()
	a.negotiated = negotiated
	a.mu.Unlock()
	a.conn.SetMaxPDULength(negotiated.MaxPDULength)

	audit.Emit(audit.Event{
		Type:      audit.EventAssociationEstablished,
		CallingAE: a.callingAETitle,
		CalledAE:  a.calledAETitle,
		Endpoint:  a.conn.RemoteAddr().String(),
	})
	return negotiated, nil
}

// negotiateContext resolves one proposed context against the supported map
// of abstract syntax to transfer syntaxes.
func negotiateContext(rq pdu.PresentationContextRQ, supported map[string][]string) *PresentationContext {
	pc := &PresentationContext{ID: rq.ID, AbstractSyntax: rq.AbstractSyntax}

	supportedTS, ok := supported[rq.AbstractSyntax]
	if !ok {
		pc.Result = pdu.PresentationContextAbstractSyntaxNotSupported
		return pc
	}
	for _, requested := range rq.TransferSyntaxes {
		for _, ts := range supportedTS {
			if requested == ts {
				pc.TransferSyntax = requested
				pc.Result = pdu.PresentationContextAcceptance
				pc.Accepted = true
				return pc
			}
		}
	}
	pc.Result = pdu.PresentationContextTransferSyntaxesNotSupported
	return pc
}

// Release performs a graceful release: send A-RELEASE-RQ, await the RP
// under the ARTIM timer, close the transport.
func (a *Association) Release(ctx context.Context) error {
	action, err := a.conn.sm.ProcessEvent(EvReleaseRequest)
	if err != nil {
		return err
	}
	if action != ActionSendReleaseRQ {
		return fmt.Errorf("%w: unexpected action %d", ErrInvalidState, action)
	}

	if err := a.conn.SendPDU(ctx, &pdu.ReleaseRQ{}); err != nil {
		return fmt.Errorf("send A-RELEASE-RQ: %w", err)
	}

	for {
		response, err := a.conn.ReadPDUArtim(ctx)
		if err != nil {
			_ = a.conn.Close()
			return fmt.Errorf("await release response: %w", err)
		}
		switch p := response.(type) {
		case *pdu.ReleaseRP:
			_, _ = a.conn.sm.ProcessEvent(EvReleaseRPReceived)
			audit.Emit(audit.Event{
				Type:      audit.EventAssociationReleased,
				CallingAE: a.callingAETitle,
				CalledAE:  a.calledAETitle,
			})
			return a.conn.Close()
		case *pdu.DataTF:
			// Late P-DATA during release is discarded.
			_, _ = a.conn.sm.ProcessEvent(EvDataReceived)
		case *pdu.Abort:
			_, _ = a.conn.sm.ProcessEvent(EvAbortReceived)
			_ = a.conn.Close()
			return &AssociationAbortedError{Source: p.Source, Reason: p.Reason}
		default:
			_, _ = a.conn.sm.ProcessEvent(EvInvalidPDU)
			_ = a.conn.SendPDU(ctx, &pdu.Abort{
				Source: pdu.AbortSourceServiceProvider,
				Reason: pdu.AbortReasonUnexpectedPDU,
			})
			_ = a.conn.Close()
			return &UnexpectedPDUError{Expected: "A-RELEASE-RP", Received: response.Type()}
		}
	}
}

// Abort sends A-ABORT if the transport is still writable and closes. It is
// callable from any state and never waits for a response.
func (a *Association) Abort(ctx context.Context, source, reason uint8) error {
	_, _ = a.conn.sm.ProcessEvent(EvAbortRequest)
	_ = a.conn.SendPDU(ctx, &pdu.Abort{Source: source, Reason: reason})
	audit.Emit(audit.Event{
		Type:      audit.EventAssociationAborted,
		CallingAE: a.callingAETitle,
		CalledAE:  a.calledAETitle,
		Detail:    fmt.Sprintf("source=%d reason=%d", source, reason),
	})
	return a.conn.Close()
}

// SendData sends one P-DATA-TF PDU inside an open association.
func (a *Association) SendData(ctx context.Context, data *pdu.DataTF) error {
	action, err := a.conn.sm.ProcessEvent(EvDataRequest)
	if err != nil {
		return err
	}
	if action != ActionSendData {
		return fmt.Errorf("%w: unexpected action %d", ErrInvalidState, action)
	}
	return a.conn.SendPDU(ctx, data)
}

// Negotiated returns the negotiation outcome, or nil before establishment.
func (a *Association) Negotiated() *NegotiatedAssociation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.negotiated
}

// Connection returns the underlying connection.
func (a *Association) Connection() *Connection { return a.conn }

// CalledAETitle returns the called AE title.
func (a *Association) CalledAETitle() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.calledAETitle
}

// CallingAETitle returns the calling AE title.
func (a *Association) CallingAETitle() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.callingAETitle
}
