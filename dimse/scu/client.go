// Package scu implements the service class user side of the supported DIMSE
// services: C-ECHO, C-STORE, C-FIND, C-GET, and C-MOVE with their cancel
// variant.
package scu

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/pacsforge/dicomnet/audit"
	"github.com/pacsforge/dicomnet/dicom"
	"github.com/pacsforge/dicomnet/dicom/uid"
	"github.com/pacsforge/dicomnet/dimse/dimse"
	"github.com/pacsforge/dicomnet/dimse/dul"
	"github.com/pacsforge/dicomnet/dimse/pdu"
)

// Config holds SCU client configuration.
type Config struct {
	CallingAETitle string
	CalledAETitle  string
	Host           string
	Port           int
	MaxPDULength   uint32
	// PresentationContexts proposed at association time. When empty, a
	// default set covering verification, the standard storage classes, and
	// study-root query/retrieve is proposed.
	PresentationContexts []pdu.PresentationContextRQ
	// UserIdentity is attached to the A-ASSOCIATE-RQ when set.
	UserIdentity *pdu.UserIdentity
	Timeouts     dul.Timeouts
}

// Addr returns the host:port form of the endpoint.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is a DIMSE SCU bound to one association. Operations on one client
// are serialized; the association is owned exclusively.
type Client struct {
	config     Config
	conn       *dul.Connection
	assoc      *dul.Association
	negotiated *dul.NegotiatedAssociation
	messageID  uint32
	assembler  *dimse.Assembler
}

// NewClient creates a client for the given endpoint. Connect must be called
// before any operation.
func NewClient(config Config) *Client {
	if config.MaxPDULength == 0 {
		config.MaxPDULength = pdu.DefaultMaxPDULength
	}
	if config.Timeouts == (dul.Timeouts{}) {
		config.Timeouts = dul.DefaultTimeouts()
	}
	return &Client{
		config:    config,
		assembler: dimse.NewAssembler(),
	}
}

// DefaultPresentationContexts proposes verification, the standard storage
// classes, and study-root query/retrieve, each with the standard
// uncompressed transfer syntaxes.
func DefaultPresentationContexts() []pdu.PresentationContextRQ {
	abstract := append([]string{uid.Verification}, uid.StandardStorageClasses...)
	abstract = append(abstract,
		uid.StudyRootQueryRetrieveFind,
		uid.StudyRootQueryRetrieveMove,
		uid.StudyRootQueryRetrieveGet,
	)
	contexts := make([]pdu.PresentationContextRQ, 0, len(abstract))
	id := uint8(1)
	for _, as := range abstract {
		contexts = append(contexts, pdu.PresentationContextRQ{
			ID:               id,
			AbstractSyntax:   as,
			TransferSyntaxes: uid.StandardTransferSyntaxes,
		})
		id += 2
	}
	return contexts
}

// Connect dials the endpoint and negotiates an association.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := dul.DialTimeouts(ctx, "tcp", c.config.Addr(), c.config.Timeouts)
	if err != nil {
		audit.Emit(audit.Event{
			Type:     audit.EventConnectionFailed,
			Endpoint: c.config.Addr(),
			Detail:   err.Error(),
		})
		return err
	}
	c.conn = conn
	c.conn.SetMaxPDULength(c.config.MaxPDULength)

	c.assoc = dul.NewAssociation(conn, c.config.CalledAETitle, c.config.CallingAETitle)
	c.assoc.SetMaxPDULength(c.config.MaxPDULength)
	if c.config.UserIdentity != nil {
		c.assoc.SetUserIdentity(c.config.UserIdentity)
	}

	contexts := c.config.PresentationContexts
	if len(contexts) == 0 {
		contexts = DefaultPresentationContexts()
	}

	negotiated, err := c.assoc.RequestAssociation(ctx, contexts)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("request association: %w", err)
	}
	if !negotiated.HasAcceptedContext() {
		_ = c.assoc.Abort(ctx, pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
		return dul.ErrNoPresentationContextAccepted
	}
	c.negotiated = negotiated
	audit.Emit(audit.Event{
		Type:      audit.EventConnectionEstablished,
		CallingAE: c.config.CallingAETitle,
		CalledAE:  c.config.CalledAETitle,
		Endpoint:  c.config.Addr(),
	})
	return nil
}

// Negotiated returns the association negotiation outcome.
func (c *Client) Negotiated() *dul.NegotiatedAssociation {
	return c.negotiated
}

// Close releases the association gracefully.
func (c *Client) Close(ctx context.Context) error {
	if c.assoc == nil {
		return nil
	}
	err := c.assoc.Release(ctx)
	c.assoc = nil
	c.negotiated = nil
	return err
}

// Abort aborts the association without waiting for the peer.
func (c *Client) Abort(ctx context.Context) error {
	if c.assoc == nil {
		return nil
	}
	err := c.assoc.Abort(ctx, pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
	c.assoc = nil
	c.negotiated = nil
	return err
}

// Echo performs a C-ECHO against the verification SOP class.
func (c *Client) Echo(ctx context.Context) error {
	pc, err := c.acceptedContext(uid.Verification)
	if err != nil {
		return err
	}

	cmd := &dimse.CommandSet{
		CommandField:        dimse.CommandCEchoRQ,
		MessageID:           c.nextMessageID(),
		CommandDataSetType:  dimse.DataSetNotPresent,
		AffectedSOPClassUID: uid.Verification,
	}
	if err := c.sendMessage(ctx, cmd, nil, pc.ID); err != nil {
		return fmt.Errorf("send C-ECHO-RQ: %w", err)
	}
	rsp, err := c.receiveMessage(ctx)
	if err != nil {
		return fmt.Errorf("receive C-ECHO-RSP: %w", err)
	}

	audit.Emit(audit.Event{
		Type:      audit.EventVerificationPerformed,
		CallingAE: c.config.CallingAETitle,
		CalledAE:  c.config.CalledAETitle,
		Endpoint:  c.config.Addr(),
		Status:    rsp.Command.Status,
	})
	if rsp.Command.Status != dimse.StatusSuccess {
		return &EchoFailedError{Status: rsp.Command.Status}
	}
	return nil
}

// Store sends one dataset with C-STORE, encoding it with the transfer
// syntax negotiated for the SOP class.
func (c *Client) Store(ctx context.Context, ds *dicom.DataSet, sopClassUID, sopInstanceUID string) error {
	pc, err := c.acceptedContext(sopClassUID)
	if err != nil {
		return err
	}
	ts, err := dicom.LookupTransferSyntax(pc.TransferSyntax)
	if err != nil {
		return err
	}
	data, err := dimse.EncodeDataSet(ds, ts)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return c.StoreRaw(ctx, data, sopClassUID, sopInstanceUID)
}

// StoreRaw sends pre-encoded dataset bytes with C-STORE. The bytes must
// already be in the transfer syntax negotiated for the SOP class; this is
// the path used by the store-and-forward queue, which persists the dataset
// exactly as parsed.
func (c *Client) StoreRaw(ctx context.Context, data []byte, sopClassUID, sopInstanceUID string) error {
	pc, err := c.acceptedContext(sopClassUID)
	if err != nil {
		return err
	}

	cmd := &dimse.CommandSet{
		CommandField:           dimse.CommandCStoreRQ,
		MessageID:              c.nextMessageID(),
		Priority:               dimse.PriorityMedium,
		CommandDataSetType:     dimse.DataSetPresent,
		AffectedSOPClassUID:    sopClassUID,
		AffectedSOPInstanceUID: sopInstanceUID,
	}
	if err := c.sendMessage(ctx, cmd, data, pc.ID); err != nil {
		return fmt.Errorf("send C-STORE-RQ: %w", err)
	}
	rsp, err := c.receiveMessage(ctx)
	if err != nil {
		return fmt.Errorf("receive C-STORE-RSP: %w", err)
	}

	audit.Emit(audit.Event{
		Type:           audit.EventStoreSent,
		CallingAE:      c.config.CallingAETitle,
		CalledAE:       c.config.CalledAETitle,
		Endpoint:       c.config.Addr(),
		SOPClassUID:    sopClassUID,
		SOPInstanceUID: sopInstanceUID,
		Status:         rsp.Command.Status,
	})
	if !dimse.IsSuccessOrWarning(rsp.Command.Status) {
		return &StoreFailedError{Status: rsp.Command.Status}
	}
	return nil
}

// Find performs C-FIND with the given identifier, invoking callback for
// each pending match. Returning an error from the callback issues a
// C-CANCEL and stops the query.
func (c *Client) Find(ctx context.Context, sopClassUID string, identifier *dicom.DataSet, callback func(*dicom.DataSet) error) error {
	pc, err := c.acceptedContext(sopClassUID)
	if err != nil {
		return err
	}
	ts, err := dicom.LookupTransferSyntax(pc.TransferSyntax)
	if err != nil {
		return err
	}
	query, err := dimse.EncodeDataSet(identifier, ts)
	if err != nil {
		return fmt.Errorf("encode identifier: %w", err)
	}

	messageID := c.nextMessageID()
	cmd := &dimse.CommandSet{
		CommandField:        dimse.CommandCFindRQ,
		MessageID:           messageID,
		Priority:            dimse.PriorityMedium,
		CommandDataSetType:  dimse.DataSetPresent,
		AffectedSOPClassUID: sopClassUID,
	}
	if err := c.sendMessage(ctx, cmd, query, pc.ID); err != nil {
		return fmt.Errorf("send C-FIND-RQ: %w", err)
	}

	matches := 0
	for {
		rsp, err := c.receiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("receive C-FIND-RSP: %w", err)
		}
		switch dimse.ClassifyStatus(rsp.Command.Status) {
		case dimse.StatusClassPending:
			if rsp.HasData() && callback != nil {
				match, err := dimse.DecodeDataSet(rsp.Data, ts)
				if err != nil {
					return fmt.Errorf("decode match: %w", err)
				}
				matches++
				if err := callback(match); err != nil {
					if cancelErr := c.Cancel(ctx, messageID, pc.ID); cancelErr != nil {
						return cancelErr
					}
					return err
				}
			}
		case dimse.StatusClassSuccess:
			audit.Emit(audit.Event{
				Type:      audit.EventQueryExecuted,
				CallingAE: c.config.CallingAETitle,
				CalledAE:  c.config.CalledAETitle,
				Endpoint:  c.config.Addr(),
				Detail:    fmt.Sprintf("matches=%d", matches),
			})
			return nil
		case dimse.StatusClassCancel:
			return nil
		default:
			return &QueryFailedError{Status: rsp.Command.Status}
		}
	}
}

// Get performs C-GET; retrieved instances arrive as C-STORE sub-operations
// on the same association and are handed to storeHandler as raw dataset
// bytes with their command set.
func (c *Client) Get(ctx context.Context, sopClassUID string, identifier *dicom.DataSet, storeHandler func(cs *dimse.CommandSet, data []byte) uint16) error {
	pc, err := c.acceptedContext(sopClassUID)
	if err != nil {
		return err
	}
	ts, err := dicom.LookupTransferSyntax(pc.TransferSyntax)
	if err != nil {
		return err
	}
	query, err := dimse.EncodeDataSet(identifier, ts)
	if err != nil {
		return fmt.Errorf("encode identifier: %w", err)
	}

	cmd := &dimse.CommandSet{
		CommandField:        dimse.CommandCGetRQ,
		MessageID:           c.nextMessageID(),
		Priority:            dimse.PriorityMedium,
		CommandDataSetType:  dimse.DataSetPresent,
		AffectedSOPClassUID: sopClassUID,
	}
	audit.Emit(audit.Event{
		Type:      audit.EventRetrieveStarted,
		CallingAE: c.config.CallingAETitle,
		CalledAE:  c.config.CalledAETitle,
		Endpoint:  c.config.Addr(),
	})
	if err := c.sendMessage(ctx, cmd, query, pc.ID); err != nil {
		return fmt.Errorf("send C-GET-RQ: %w", err)
	}

	for {
		rsp, err := c.receiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("receive C-GET-RSP: %w", err)
		}

		// Inbound C-STORE sub-operation.
		if rsp.Command.CommandField == dimse.CommandCStoreRQ {
			status := dimse.StatusSuccess
			if storeHandler != nil {
				status = storeHandler(rsp.Command, rsp.Data)
			}
			storeRsp := &dimse.CommandSet{
				CommandField:              dimse.CommandCStoreRSP,
				MessageIDBeingRespondedTo: rsp.Command.MessageID,
				CommandDataSetType:        dimse.DataSetNotPresent,
				Status:                    status,
				AffectedSOPClassUID:       rsp.Command.AffectedSOPClassUID,
				AffectedSOPInstanceUID:    rsp.Command.AffectedSOPInstanceUID,
			}
			if err := c.sendMessage(ctx, storeRsp, nil, rsp.PresentationContextID); err != nil {
				return fmt.Errorf("send C-STORE-RSP: %w", err)
			}
			continue
		}

		switch dimse.ClassifyStatus(rsp.Command.Status) {
		case dimse.StatusClassPending:
			continue
		case dimse.StatusClassSuccess:
			audit.Emit(audit.Event{
				Type:      audit.EventRetrieveCompleted,
				CallingAE: c.config.CallingAETitle,
				CalledAE:  c.config.CalledAETitle,
				Endpoint:  c.config.Addr(),
				Status:    rsp.Command.Status,
			})
			return nil
		default:
			return &RetrieveFailedError{
				Status:    rsp.Command.Status,
				Completed: rsp.Command.NumberOfCompletedSubOps,
				Failed:    rsp.Command.NumberOfFailedSubOps,
				Warnings:  rsp.Command.NumberOfWarningSubOps,
			}
		}
	}
}

// Move performs C-MOVE toward the named destination AE.
func (c *Client) Move(ctx context.Context, sopClassUID, destination string, identifier *dicom.DataSet) error {
	pc, err := c.acceptedContext(sopClassUID)
	if err != nil {
		return err
	}
	ts, err := dicom.LookupTransferSyntax(pc.TransferSyntax)
	if err != nil {
		return err
	}
	query, err := dimse.EncodeDataSet(identifier, ts)
	if err != nil {
		return fmt.Errorf("encode identifier: %w", err)
	}

	cmd := &dimse.CommandSet{
		CommandField:        dimse.CommandCMoveRQ,
		MessageID:           c.nextMessageID(),
		Priority:            dimse.PriorityMedium,
		CommandDataSetType:  dimse.DataSetPresent,
		AffectedSOPClassUID: sopClassUID,
		MoveDestination:     destination,
	}
	audit.Emit(audit.Event{
		Type:      audit.EventRetrieveStarted,
		CallingAE: c.config.CallingAETitle,
		CalledAE:  c.config.CalledAETitle,
		Endpoint:  c.config.Addr(),
		Detail:    "destination=" + destination,
	})
	if err := c.sendMessage(ctx, cmd, query, pc.ID); err != nil {
		return fmt.Errorf("send C-MOVE-RQ: %w", err)
	}

	for {
		rsp, err := c.receiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("receive C-MOVE-RSP: %w", err)
		}
		switch dimse.ClassifyStatus(rsp.Command.Status) {
		case dimse.StatusClassPending:
			continue
		case dimse.StatusClassSuccess:
			audit.Emit(audit.Event{
				Type:      audit.EventRetrieveCompleted,
				CallingAE: c.config.CallingAETitle,
				CalledAE:  c.config.CalledAETitle,
				Endpoint:  c.config.Addr(),
			})
			return nil
		default:
			return &RetrieveFailedError{
				Status:    rsp.Command.Status,
				Completed: rsp.Command.NumberOfCompletedSubOps,
				Failed:    rsp.Command.NumberOfFailedSubOps,
				Warnings:  rsp.Command.NumberOfWarningSubOps,
			}
		}
	}
}

// Cancel sends a C-CANCEL-RQ for an in-flight operation.
func (c *Client) Cancel(ctx context.Context, messageID uint16, contextID uint8) error {
	cmd := &dimse.CommandSet{
		CommandField:              dimse.CommandCCancelRQ,
		MessageIDBeingRespondedTo: messageID,
		CommandDataSetType:        dimse.DataSetNotPresent,
	}
	return c.sendMessage(ctx, cmd, nil, contextID)
}

func (c *Client) acceptedContext(abstractSyntax string) (*dul.PresentationContext, error) {
	if c.negotiated == nil {
		return nil, ErrNotConnected
	}
	pc := c.negotiated.AcceptedContext(abstractSyntax)
	if pc == nil {
		return nil, fmt.Errorf("%w: %s", ErrSopClassNotSupported, abstractSyntax)
	}
	return pc, nil
}

func (c *Client) nextMessageID() uint16 {
	id := atomic.AddUint32(&c.messageID, 1)
	return uint16(id%0xFFFF + 1)
}

func (c *Client) sendMessage(ctx context.Context, cmd *dimse.CommandSet, data []byte, contextID uint8) error {
	pdus, err := dimse.Fragment(cmd.Encode(), data, contextID, c.conn.MaxPDULength())
	if err != nil {
		return err
	}
	for _, p := range pdus {
		if err := c.assoc.SendData(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) receiveMessage(ctx context.Context) (*dimse.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			// Cooperative cancellation: abort toward the peer and stop.
			_ = c.Abort(context.WithoutCancel(ctx))
			return nil, err
		}
		p, err := c.conn.ReadPDU(ctx)
		if err != nil {
			return nil, err
		}
		switch typed := p.(type) {
		case *pdu.DataTF:
			_, _ = c.conn.StateMachine().ProcessEvent(dul.EvDataReceived)
			msg, err := c.assembler.AddPDU(typed)
			if err != nil {
				// Framing violations are fatal: abort toward the peer.
				_ = c.assoc.Abort(ctx, pdu.AbortSourceServiceProvider, pdu.AbortReasonInvalidPDUParameter)
				return nil, err
			}
			if msg != nil {
				return msg, nil
			}
		case *pdu.Abort:
			_, _ = c.conn.StateMachine().ProcessEvent(dul.EvAbortReceived)
			_ = c.conn.Close()
			return nil, &dul.AssociationAbortedError{Source: typed.Source, Reason: typed.Reason}
		default:
			_, _ = c.conn.StateMachine().ProcessEvent(dul.EvInvalidPDU)
			_ = c.assoc.Abort(ctx, pdu.AbortSourceServiceProvider, pdu.AbortReasonUnexpectedPDU)
			return nil, &dul.UnexpectedPDUError{Expected: "P-DATA-TF", Received: p.Type()}
		}
	}
}
