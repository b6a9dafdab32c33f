package server

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Transport is the byte-oriented bidirectional collaborator a Conn reads
// from and writes to. It deliberately says nothing about sockets, TLS,
// or buffering — any collaborator satisfying this contract (a net.Conn
// wrapper, an in-memory test fake) can drive a Conn.
type Transport interface {
	// Read blocks until at least one byte is available and returns it.
	// A non-nil error is terminal: the connection is torn down.
	Read() ([]byte, error)
	// Write sends bytes to the peer. A non-nil error is terminal.
	Write([]byte) error
}

// ErrClosedByPeer is returned by Serve when the peer initiated a normal
// WebSocket close.
var ErrClosedByPeer = errors.New("server: connection closed by peer")

// MessageHandler receives fully reassembled application messages.
type MessageHandler func(Message)

// Conn drives one accepted socket through the handshake and then the
// frame/message loop described by the connection driver design: read
// incrementally until the HTTP upgrade boundary is found, validate the
// handshake and write the fixed response, then alternate between
// feeding the frame parser and handing completed frames to the control-
// frame handler or the message reassembler.
type Conn struct {
	transport Transport
	log       *logrus.Entry
	metrics   *Metrics

	buf []byte
}

// NewConn wraps transport for a single connection's lifetime. log and
// metrics may be nil: a nil log is replaced by an entry on the standard
// logrus logger, and a nil metrics skips metrics recording.
func NewConn(transport Transport, log *logrus.Entry, m *Metrics) *Conn {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Conn{transport: transport, log: log, metrics: m}
}

// Serve runs the handshake and then the message loop, invoking handle
// for every fully reassembled message. It returns when the connection
// terminates, for any reason: transport error, protocol error, or a
// peer-initiated close (ErrClosedByPeer).
func (c *Conn) Serve(handle MessageHandler) error {
	if c.metrics != nil {
		c.metrics.ActiveConnections.Inc()
		defer c.metrics.ActiveConnections.Dec()
	}

	p, err := c.readUpgradeRequest()
	if err != nil {
		c.log.WithError(err).Debug("connection closed before handshake completed")
		return err
	}

	acceptance, rejection := AcceptRequest(p)
	if rejection != nil {
		if c.metrics != nil {
			c.metrics.recordRejection(rejection.Reason)
		}
		c.log.WithField("reason", rejectionNames[rejection.Reason]).Warn("websocket handshake rejected")
		_ = c.transport.Write(rejection.ToResponseBytes())
		return rejection
	}

	if err := c.transport.Write(acceptance.ToResponseBytes()); err != nil {
		c.log.WithError(err).Debug("failed writing handshake response")
		return err
	}

	c.log.Debug("websocket handshake accepted")
	return c.frameLoop(handle)
}

// readUpgradeRequest feeds the HTTP parser from the transport until the
// upgrade boundary is observed, stashing any residual frame bytes from
// the final chunk into c.buf for the frame loop to consume first.
func (c *Conn) readUpgradeRequest() (Parser, error) {
	p := NewParser()

	for {
		chunk, err := c.transport.Read()
		if err != nil {
			return p, err
		}
		if c.metrics != nil {
			c.metrics.recordBytesRead(len(chunk))
		}

		p = p.Parse(chunk)

		if p.Upgrade() {
			c.buf = append(c.buf, chunk[p.Offset():]...)
			return p, nil
		}
		if !p.Success() {
			return p, errors.New("server: " + p.ErrorDescription())
		}
	}
}

func (c *Conn) frameLoop(handle MessageHandler) error {
	fp := NewFrameParser()
	var recv Receiver

	for {
		if len(c.buf) == 0 {
			chunk, err := c.transport.Read()
			if err != nil {
				return err
			}
			if c.metrics != nil {
				c.metrics.recordBytesRead(len(chunk))
			}
			c.buf = chunk
		}

		var n int
		fp, n = fp.Parse(c.buf)
		c.buf = c.buf[n:]

		if !fp.IsDone() {
			continue
		}

		frame := fp.Frame()
		fp = NewFrameParser()

		if c.metrics != nil {
			c.metrics.recordFrame(frame.OpCode)
		}

		if frame.OpCode.IsControl() {
			closed, err := c.handleControlFrame(frame)
			if err != nil {
				return err
			}
			if closed {
				return ErrClosedByPeer
			}
			continue
		}

		reception := recv.NextFragment(frame)
		if reception.Err != nil {
			c.log.WithError(reception.Err).Warn("message reassembly error")
			return reception.Err
		}
		if reception.Next != nil {
			recv = *reception.Next
		}
		if reception.Received != nil && handle != nil {
			handle(*reception.Received)
		}
	}
}

// handleControlFrame answers Ping with Pong, echoes Close, and ignores
// Pong and reserved control opcodes, matching the fixed inline-handling
// policy of the connection driver design.
func (c *Conn) handleControlFrame(f Frame) (closed bool, err error) {
	switch f.OpCode.kind {
	case opPing:
		pong := Frame{Fin: true, OpCode: OpPong, Payload: f.UnmaskedPayload()}
		return false, c.transport.Write(pong.Compose())

	case opClose:
		echo := Frame{Fin: true, OpCode: OpClose, Payload: f.UnmaskedPayload()}
		_ = c.transport.Write(echo.Compose())
		return true, nil

	default:
		return false, nil
	}
}
