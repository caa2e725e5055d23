package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/mickamy/gobolt/internal/packstream"
)

// Conn is a single Bolt connection: a negotiated transport, a state
// machine tracking what may legally be sent next, and a PackStream
// registry used to materialize Structure values received on the wire.
type Conn struct {
	netConn  net.Conn
	machine  *Machine
	registry *packstream.Registry
	reader   *FrameReader
	version  Version

	readBuf []byte
	id      string
}

// Dial negotiates the handshake over netConn and returns a ready Conn. The
// caller is responsible for having already established netConn (TCP or
// TLS) via the transport package.
func Dial(ctx context.Context, netConn net.Conn, registry *packstream.Registry) (*Conn, error) {
	v, err := Negotiate(ctx, netConn)
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("wire: dial: %w", err)
	}
	m := NewMachine()
	m.EnterNegotiation()
	return &Conn{
		netConn:  netConn,
		machine:  m,
		registry: registry,
		reader:   NewFrameReader(),
		version:  v,
		readBuf:  make([]byte, 4096),
	}, nil
}

// Version returns the protocol version negotiated during Dial.
func (c *Conn) Version() Version { return c.version }

// ID returns the connection's correlation ID, or "" if the caller never
// set one with SetID.
func (c *Conn) ID() string { return c.id }

// SetID assigns a correlation ID used only for log lines; it has no
// protocol meaning. The driver sets this once, right after Dial.
func (c *Conn) SetID(id string) { c.id = id }

// State returns the connection's current position in the state machine.
func (c *Conn) State() State { return c.machine.State() }

// Send encodes msg, validates it against the state machine, and writes it
// chunked to the socket.
func (c *Conn) Send(msg Message) error {
	if err := c.machine.BeforeSend(msg.Tag); err != nil {
		return err
	}
	body, err := packstream.EncodeValue(msg.Value())
	if err != nil {
		c.machine.MarkDefunct()
		return fmt.Errorf("wire: send: encode: %w", err)
	}
	if _, err := c.netConn.Write(ChunkMessage(body)); err != nil {
		c.machine.MarkDefunct()
		return &ConnectionClosedError{Err: err}
	}
	return nil
}

// Receive blocks until one complete message has arrived and returns it.
// RECORD fields are still raw packstream Values at this point; call
// MaterializeRecord to decode them into graph-native types.
func (c *Conn) Receive() (Message, error) {
	for {
		raw, ok, err := c.reader.Next()
		if err != nil {
			c.machine.MarkDefunct()
			return Message{}, err
		}
		if ok {
			v, _, err := packstream.DecodeValue(raw)
			if err != nil {
				c.machine.MarkDefunct()
				return Message{}, fmt.Errorf("wire: receive: decode: %w", err)
			}
			msg, err := FromValue(v)
			if err != nil {
				c.machine.MarkDefunct()
				return Message{}, err
			}
			_, kind, isSummary := msg.Summary()
			if isSummary {
				final := kind != TagSuccess || !hasMore(msg)
				c.machine.AfterReceive(kind, final)
			} else {
				c.machine.AfterReceive(TagRecord, false)
			}
			return msg, nil
		}

		n, err := c.netConn.Read(c.readBuf)
		if n > 0 {
			c.reader.Feed(c.readBuf[:n])
		}
		if err != nil {
			c.machine.MarkDefunct()
			if errors.Is(err, io.EOF) {
				return Message{}, &ConnectionClosedError{Err: err}
			}
			return Message{}, &ConnectionClosedError{Err: err}
		}
	}
}

// MaterializeRecord converts a RECORD message's field list into
// domain-native values (Node, Relationship, UnboundRelationship, Path). A
// structure the registry has no factory for comes back as a
// packstream.Structure; any other value as the packstream.Value itself. ok
// is false if msg is not a RECORD.
func (c *Conn) MaterializeRecord(msg Message) ([]any, bool, error) {
	items, ok := msg.RecordFields()
	if !ok {
		return nil, false, nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := c.registry.Materialize(item)
		if err != nil {
			return nil, true, fmt.Errorf("wire: materialize record field %d: %w", i, err)
		}
		out[i] = v
	}
	return out, true, nil
}

func hasMore(msg Message) bool {
	if len(msg.Fields) == 0 {
		return false
	}
	entries, ok := msg.Fields[0].AsDict()
	if !ok {
		return false
	}
	for _, e := range entries {
		if e.Key == "has_more" {
			b, _ := e.Value.AsBool()
			return b
		}
	}
	return false
}

// Interrupt moves the connection's state machine to INTERRUPTED, used to
// mark a connection as needing a RESET before further reuse (e.g. after a
// caller abandons a query mid-stream).
func (c *Conn) Interrupt() { c.machine.Interrupt() }

// Close sends GOODBYE best-effort and closes the underlying socket.
func (c *Conn) Close() error {
	if c.machine.State() != StateDefunct {
		_ = c.Send(NewGoodbye())
	}
	return c.netConn.Close()
}

// SetDeadline forwards to the underlying net.Conn, used to bound a single
// request/response exchange the way Negotiate bounds the handshake.
func (c *Conn) SetDeadline(t time.Time) error { return c.netConn.SetDeadline(t) }

// ConnectionClosedError wraps a read or write failure on an established
// connection -- the socket is no longer usable and the Conn must be
// discarded (not returned to a pool).
type ConnectionClosedError struct {
	Err error
}

func (e *ConnectionClosedError) Error() string {
	return fmt.Sprintf("wire: connection closed: %v", e.Err)
}
func (e *ConnectionClosedError) Unwrap() error { return e.Err }

// IsClosed reports whether err indicates the underlying socket is gone,
// covering both io.EOF and the platform-specific "connection reset"/"use
// of closed network connection" shapes net.Conn can surface.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var closedErr *ConnectionClosedError
	if errors.As(err, &closedErr) {
		return true
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "closed")
}
