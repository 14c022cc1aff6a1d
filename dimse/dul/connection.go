package dul

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pacsforge/dicomnet/audit"
	"github.com/pacsforge/dicomnet/dimse/pdu"
)

// Timeouts holds the per-phase timeouts of a connection. Zero values disable
// the corresponding deadline.
type Timeouts struct {
	Connect     time.Duration
	Read        time.Duration
	Write       time.Duration
	Association time.Duration // ARTIM value during negotiation and release
}

// DefaultTimeouts returns the conventional 30-second per-phase timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:     30 * time.Second,
		Read:        30 * time.Second,
		Write:       30 * time.Second,
		Association: 30 * time.Second,
	}
}

// Connection wraps a reliable byte stream (TCP, or TCP+TLS supplied by the
// caller) and frames PDUs over it. The state machine rides along so PDU
// ordering is enforced at one place.
type Connection struct {
	conn         net.Conn
	sm           *StateMachine
	timeouts     Timeouts
	maxPDULength uint32
	mu           sync.Mutex
	closed       bool
}

// NewConnection wraps an established net.Conn.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:         conn,
		sm:           NewStateMachine(),
		timeouts:     DefaultTimeouts(),
		maxPDULength: pdu.DefaultMaxPDULength,
	}
}

// Dial opens a transport connection to the given address.
func Dial(ctx context.Context, network, address string) (*Connection, error) {
	return DialTimeouts(ctx, network, address, DefaultTimeouts())
}

// DialTimeouts opens a transport connection with explicit timeouts.
func DialTimeouts(ctx context.Context, network, address string, t Timeouts) (*Connection, error) {
	d := net.Dialer{Timeout: t.Connect}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		audit.Log().WithCategory(audit.CategoryConnection).
			WithField("address", address).WithError(err).Warning("dial failed")
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	c := NewConnection(conn)
	c.timeouts = t
	_, _ = c.sm.ProcessEvent(EvTransportConfirm)
	audit.Log().WithCategory(audit.CategoryConnection).
		WithField("address", address).Debug("transport connected")
	return c, nil
}

// SetTimeouts replaces the per-phase timeouts.
func (c *Connection) SetTimeouts(t Timeouts) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts = t
}

// Timeouts returns the per-phase timeouts.
func (c *Connection) Timeouts() Timeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeouts
}

// SetMaxPDULength caps the negotiated maximum PDU length.
func (c *Connection) SetMaxPDULength(length uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if length == 0 || length > pdu.MaxPDULength {
		length = pdu.MaxPDULength
	}
	c.maxPDULength = length
}

// MaxPDULength returns the effective maximum PDU length.
func (c *Connection) MaxPDULength() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxPDULength
}

// SendPDU writes one PDU under the write deadline.
func (c *Connection) SendPDU(ctx context.Context, p pdu.PDU) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else if c.timeouts.Write > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.Write))
	}
	defer c.conn.SetWriteDeadline(time.Time{})

	if err := p.Encode(c.conn); err != nil {
		if isTimeout(err) {
			return &OperationTimeoutError{Phase: "write", Duration: c.timeouts.Write}
		}
		return fmt.Errorf("send PDU 0x%02X: %w", p.Type(), err)
	}
	audit.Log().WithCategory(audit.CategoryPDU).
		WithField("type", fmt.Sprintf("0x%02X", p.Type())).Trace("sent PDU")
	return nil
}

// ReadPDU reads one PDU under the regular read deadline.
func (c *Connection) ReadPDU(ctx context.Context) (pdu.PDU, error) {
	return c.readPDU(ctx, c.Timeouts().Read, "read")
}

// ReadPDUArtim reads one PDU under the ARTIM deadline. Used while awaiting
// an associate or release response; expiry surfaces as ErrArtimTimerExpired
// and moves the state machine to the aborted path.
func (c *Connection) ReadPDUArtim(ctx context.Context) (pdu.PDU, error) {
	p, err := c.readPDU(ctx, c.Timeouts().Association, "association")
	if err != nil {
		var timeoutErr *OperationTimeoutError
		if errors.As(err, &timeoutErr) {
			_, _ = c.sm.ProcessEvent(EvArtimExpired)
			return nil, fmt.Errorf("%w: after %s", ErrArtimTimerExpired, timeoutErr.Duration)
		}
		return nil, err
	}
	return p, nil
}

func (c *Connection) readPDU(ctx context.Context, timeout time.Duration, phase string) (pdu.PDU, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	conn := c.conn
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	c.mu.Unlock()
	defer conn.SetReadDeadline(time.Time{})

	p, err := pdu.ReadPDU(conn)
	if err != nil {
		if err == io.EOF {
			_, _ = c.sm.ProcessEvent(EvTransportClosed)
			return nil, ErrConnectionClosed
		}
		if isTimeout(err) {
			return nil, &OperationTimeoutError{Phase: phase, Duration: timeout}
		}
		return nil, err
	}
	audit.Log().WithCategory(audit.CategoryPDU).
		WithField("type", fmt.Sprintf("0x%02X", p.Type())).Trace("received PDU")
	return p, nil
}

// Close closes the transport.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.conn.Close()
	_, _ = c.sm.ProcessEvent(EvTransportClosed)
	return err
}

// RemoteAddr returns the remote network address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// LocalAddr returns the local network address.
func (c *Connection) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// StateMachine returns the state machine driving this connection.
func (c *Connection) StateMachine() *StateMachine { return c.sm }

// AcceptTransport marks an inbound transport connection (SCP side): the
// connection now waits for the peer's A-ASSOCIATE-RQ.
func (c *Connection) AcceptTransport() error {
	_, err := c.sm.ProcessEvent(EvTransportAccept)
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
