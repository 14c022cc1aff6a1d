// Package scp implements the service class provider side: an association
// acceptor that dispatches C-ECHO, C-STORE, and C-FIND requests to pluggable
// handlers. It also serves as the in-process peer for exercising the
// requestor stack in tests.
package scp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/pacsforge/dicomnet/audit"
	"github.com/pacsforge/dicomnet/dicom/uid"
	"github.com/pacsforge/dicomnet/dimse/dimse"
	"github.com/pacsforge/dicomnet/dimse/dul"
	"github.com/pacsforge/dicomnet/dimse/pdu"
)

// EchoHandler handles C-ECHO requests.
type EchoHandler interface {
	HandleEcho(ctx context.Context, callingAE, calledAE string) uint16
}

// StoreRequest is one inbound C-STORE.
type StoreRequest struct {
	CallingAE      string
	CalledAE       string
	SOPClassUID    string
	SOPInstanceUID string
	TransferSyntax string
	// Data is the dataset exactly as received, encoded per TransferSyntax.
	Data []byte
}

// StoreHandler handles C-STORE requests and returns the DIMSE status.
type StoreHandler interface {
	HandleStore(ctx context.Context, req *StoreRequest) uint16
}

// FindRequest is one inbound C-FIND.
type FindRequest struct {
	CallingAE      string
	CalledAE       string
	SOPClassUID    string
	TransferSyntax string
	Identifier     []byte
}

// FindHandler handles C-FIND requests: it returns the encoded matches (one
// dataset per match, in the context's transfer syntax) and the final status.
type FindHandler interface {
	HandleFind(ctx context.Context, req *FindRequest) ([][]byte, uint16)
}

// Config holds SCP server configuration.
type Config struct {
	AETitle      string
	ListenAddr   string
	MaxPDULength uint32
	// SupportedContexts maps abstract syntax to acceptable transfer
	// syntaxes. When empty, verification and the standard storage classes
	// are accepted with the standard uncompressed syntaxes.
	SupportedContexts map[string][]string

	EchoHandler  EchoHandler
	StoreHandler StoreHandler
	FindHandler  FindHandler
}

// Server accepts associations and serves DIMSE requests.
type Server struct {
	config   Config
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// NewServer creates a server. Start must be called to begin listening.
func NewServer(config Config) *Server {
	if config.MaxPDULength == 0 {
		config.MaxPDULength = pdu.DefaultMaxPDULength
	}
	if len(config.SupportedContexts) == 0 {
		config.SupportedContexts = DefaultSupportedContexts()
	}
	return &Server{config: config}
}

// DefaultSupportedContexts accepts verification and the standard storage
// classes with the standard uncompressed transfer syntaxes.
func DefaultSupportedContexts() map[string][]string {
	supported := map[string][]string{
		uid.Verification: uid.StandardTransferSyntaxes,
	}
	for _, sop := range uid.StandardStorageClasses {
		supported[sop] = uid.StandardTransferSyntaxes
	}
	return supported
}

// Start begins listening. It returns once the listener is bound; serving
// happens on background goroutines.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener
	audit.Log().WithCategory(audit.CategoryConnection).
		WithField("addr", listener.Addr().String()).Info("SCP listening")

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight associations.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			audit.Log().WithCategory(audit.CategoryConnection).WithError(err).Warning("accept failed")
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn drives one inbound association: negotiation, the message loop,
// and release.
func (s *Server) serveConn(ctx context.Context, netConn net.Conn) {
	conn := dul.NewConnection(netConn)
	conn.SetMaxPDULength(s.config.MaxPDULength)
	defer conn.Close()

	if err := conn.AcceptTransport(); err != nil {
		return
	}

	// The peer must open with an A-ASSOCIATE-RQ, under the ARTIM timer.
	first, err := conn.ReadPDUArtim(ctx)
	if err != nil {
		return
	}
	rq, ok := first.(*pdu.AssociateRQ)
	if !ok {
		_, _ = conn.StateMachine().ProcessEvent(dul.EvInvalidPDU)
		_ = conn.SendPDU(ctx, &pdu.Abort{
			Source: pdu.AbortSourceServiceProvider,
			Reason: pdu.AbortReasonUnexpectedPDU,
		})
		return
	}

	assoc := dul.NewAssociation(conn, s.config.AETitle, "")
	assoc.SetMaxPDULength(s.config.MaxPDULength)
	negotiated, err := assoc.AcceptAssociation(ctx, rq, s.config.SupportedContexts)
	if err != nil {
		audit.Log().WithCategory(audit.CategoryAssociation).WithError(err).Warning("accept failed")
		return
	}

	s.messageLoop(ctx, conn, assoc, negotiated)
}

func (s *Server) messageLoop(ctx context.Context, conn *dul.Connection, assoc *dul.Association, negotiated *dul.NegotiatedAssociation) {
	assembler := dimse.NewAssembler()
	for {
		p, err := conn.ReadPDU(ctx)
		if err != nil {
			return
		}
		switch typed := p.(type) {
		case *pdu.DataTF:
			_, _ = conn.StateMachine().ProcessEvent(dul.EvDataReceived)
			msg, err := assembler.AddPDU(typed)
			if err != nil {
				_ = assoc.Abort(ctx, pdu.AbortSourceServiceProvider, pdu.AbortReasonInvalidPDUParameter)
				return
			}
			if msg == nil {
				continue
			}
			if err := s.dispatch(ctx, conn, assoc, negotiated, msg); err != nil {
				return
			}

		case *pdu.ReleaseRQ:
			_, _ = conn.StateMachine().ProcessEvent(dul.EvReleaseRQReceived)
			_, _ = conn.StateMachine().ProcessEvent(dul.EvReleaseResponse)
			_ = conn.SendPDU(ctx, &pdu.ReleaseRP{})
			return

		case *pdu.Abort:
			_, _ = conn.StateMachine().ProcessEvent(dul.EvAbortReceived)
			return

		default:
			_, _ = conn.StateMachine().ProcessEvent(dul.EvInvalidPDU)
			_ = conn.SendPDU(ctx, &pdu.Abort{
				Source: pdu.AbortSourceServiceProvider,
				Reason: pdu.AbortReasonUnexpectedPDU,
			})
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, conn *dul.Connection, assoc *dul.Association, negotiated *dul.NegotiatedAssociation, msg *dimse.Message) error {
	pc := negotiated.Contexts[msg.PresentationContextID]
	transferSyntax := ""
	if pc != nil {
		transferSyntax = pc.TransferSyntax
	}

	switch msg.Command.CommandField {
	case dimse.CommandCEchoRQ:
		status := dimse.StatusSuccess
		if s.config.EchoHandler != nil {
			status = s.config.EchoHandler.HandleEcho(ctx, assoc.CallingAETitle(), assoc.CalledAETitle())
		}
		rsp := &dimse.CommandSet{
			CommandField:              dimse.CommandCEchoRSP,
			MessageIDBeingRespondedTo: msg.Command.MessageID,
			CommandDataSetType:        dimse.DataSetNotPresent,
			Status:                    status,
			AffectedSOPClassUID:       msg.Command.AffectedSOPClassUID,
		}
		return s.send(ctx, conn, assoc, rsp, nil, msg.PresentationContextID)

	case dimse.CommandCStoreRQ:
		status := dimse.StatusProcessingFailure
		if s.config.StoreHandler != nil {
			status = s.config.StoreHandler.HandleStore(ctx, &StoreRequest{
				CallingAE:      assoc.CallingAETitle(),
				CalledAE:       assoc.CalledAETitle(),
				SOPClassUID:    msg.Command.AffectedSOPClassUID,
				SOPInstanceUID: msg.Command.AffectedSOPInstanceUID,
				TransferSyntax: transferSyntax,
				Data:           msg.Data,
			})
		}
		audit.Emit(audit.Event{
			Type:           audit.EventStoreReceived,
			CallingAE:      assoc.CallingAETitle(),
			CalledAE:       assoc.CalledAETitle(),
			SOPClassUID:    msg.Command.AffectedSOPClassUID,
			SOPInstanceUID: msg.Command.AffectedSOPInstanceUID,
			Status:         status,
		})
		rsp := &dimse.CommandSet{
			CommandField:              dimse.CommandCStoreRSP,
			MessageIDBeingRespondedTo: msg.Command.MessageID,
			CommandDataSetType:        dimse.DataSetNotPresent,
			Status:                    status,
			AffectedSOPClassUID:       msg.Command.AffectedSOPClassUID,
			AffectedSOPInstanceUID:    msg.Command.AffectedSOPInstanceUID,
		}
		return s.send(ctx, conn, assoc, rsp, nil, msg.PresentationContextID)

	case dimse.CommandCFindRQ:
		var matches [][]byte
		status := dimse.StatusSuccess
		if s.config.FindHandler != nil {
			matches, status = s.config.FindHandler.HandleFind(ctx, &FindRequest{
				CallingAE:      assoc.CallingAETitle(),
				CalledAE:       assoc.CalledAETitle(),
				SOPClassUID:    msg.Command.AffectedSOPClassUID,
				TransferSyntax: transferSyntax,
				Identifier:     msg.Data,
			})
		}
		for _, match := range matches {
			pending := &dimse.CommandSet{
				CommandField:              dimse.CommandCFindRSP,
				MessageIDBeingRespondedTo: msg.Command.MessageID,
				CommandDataSetType:        dimse.DataSetPresent,
				Status:                    dimse.StatusPending,
				AffectedSOPClassUID:       msg.Command.AffectedSOPClassUID,
			}
			if err := s.send(ctx, conn, assoc, pending, match, msg.PresentationContextID); err != nil {
				return err
			}
		}
		final := &dimse.CommandSet{
			CommandField:              dimse.CommandCFindRSP,
			MessageIDBeingRespondedTo: msg.Command.MessageID,
			CommandDataSetType:        dimse.DataSetNotPresent,
			Status:                    status,
			AffectedSOPClassUID:       msg.Command.AffectedSOPClassUID,
		}
		return s.send(ctx, conn, assoc, final, nil, msg.PresentationContextID)

	case dimse.CommandCCancelRQ:
		// Cancellation of an already-answered operation: nothing pending.
		return nil

	default:
		// Unsupported service on this server.
		rsp := &dimse.CommandSet{
			CommandField:              msg.Command.CommandField | 0x8000,
			MessageIDBeingRespondedTo: msg.Command.MessageID,
			CommandDataSetType:        dimse.DataSetNotPresent,
			Status:                    dimse.StatusSOPClassNotSupported,
		}
		return s.send(ctx, conn, assoc, rsp, nil, msg.PresentationContextID)
	}
}

func (s *Server) send(ctx context.Context, conn *dul.Connection, assoc *dul.Association, cmd *dimse.CommandSet, data []byte, contextID uint8) error {
	pdus, err := dimse.Fragment(cmd.Encode(), data, contextID, conn.MaxPDULength())
	if err != nil {
		return err
	}
	for _, p := range pdus {
		if err := assoc.SendData(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
