package gobolt

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mickamy/gobolt/internal/packstream"
	"github.com/mickamy/gobolt/internal/pool"
	"github.com/mickamy/gobolt/internal/transport"
	"github.com/mickamy/gobolt/internal/wire"
)

// Driver owns a connection pool for one target address and hands out
// Sessions. A Driver is safe for concurrent use and should be created
// once per process per target.
type Driver struct {
	target Target
	auth   AuthToken
	cfg    Config
	pool   *pool.Pool
}

// NewDriver parses uri and returns a Driver configured to authenticate
// with auth. The pool starts dialing MinConnectionPoolSize connections
// (default 1) in the background right away; further dials happen on demand.
func NewDriver(uri string, auth AuthToken, opts ...Option) (*Driver, error) {
	target, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts...)

	d := &Driver{target: target, auth: auth, cfg: cfg}
	d.pool = pool.New(d.dial, pool.Config{
		MinSize:        cfg.MinConnectionPoolSize,
		MaxSize:        cfg.MaxConnectionPoolSize,
		MaxIdle:        cfg.MaxConnectionIdleTime,
		AcquireTimeout: cfg.ConnectionAcquireTimeout,
	})
	return d, nil
}

// dial opens a transport connection, negotiates the Bolt handshake, and
// completes HELLO/LOGON before handing the connection to the pool.
func (d *Driver) dial(ctx context.Context) (pool.Conn, error) {
	if d.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ConnectTimeout)
		defer cancel()
	}
	netConn, err := transport.Connect(ctx, transport.Config{
		Host:           d.target.Host,
		Port:           d.target.Port,
		Encrypted:      d.target.Encrypted,
		Trust:          d.target.Trust,
		ConnectTimeout: d.cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	conn, err := wire.Dial(ctx, netConn, wire.NewGraphRegistry())
	if err != nil {
		return nil, err
	}
	conn.SetID(uuid.NewString())

	if err := conn.Send(wire.NewHello(map[string]packstream.Value{
		"user_agent": packstream.String(d.cfg.UserAgent),
	})); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := expectSuccess(conn, "HELLO"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.Send(wire.NewLogon(d.auth.Fields())); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := expectSuccess(conn, "LOGON"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// expectSuccess receives one response and turns a FAILURE into an
// AuthenticationError, since HELLO/LOGON are the only points where a
// FAILURE response means "the credentials were rejected" rather than
// "the query failed".
func expectSuccess(conn *wire.Conn, step string) error {
	msg, err := conn.Receive()
	if err != nil {
		return err
	}
	metadata, kind, ok := msg.Summary()
	if !ok {
		return fmt.Errorf("gobolt: %s: unexpected response tag 0x%02X", step, msg.Tag)
	}
	if kind == wire.TagSuccess {
		return nil
	}
	code, message := failureDetails(metadata)
	return &AuthenticationError{Code: code, Message: message}
}

func failureDetails(metadata packstream.Value) (code, message string) {
	if v, ok := metadata.DictGet("code"); ok {
		code, _ = v.AsString()
	}
	if v, ok := metadata.DictGet("message"); ok {
		message, _ = v.AsString()
	}
	return code, message
}

// NewSession returns a Session bound to cfg. No connection is acquired
// until the session runs a query or begins a transaction.
func (d *Driver) NewSession(cfg SessionConfig) *Session {
	bookmarks := make([]string, len(cfg.Bookmarks))
	copy(bookmarks, cfg.Bookmarks)
	return &Session{driver: d, cfg: cfg, bookmarks: bookmarks}
}

// acquireConn pulls a connection out of the pool and asserts it back to
// its concrete wire type; d.dial is the only Dialer ever installed on the
// pool, so the assertion cannot fail in practice.
func (d *Driver) acquireConn(ctx context.Context) (*wire.Conn, error) {
	c, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	conn, ok := c.(*wire.Conn)
	if !ok {
		return nil, fmt.Errorf("gobolt: pool returned unexpected connection type %T", c)
	}
	return conn, nil
}

// releaseConn returns conn to the pool, or discards it if the query that
// just ran on it left the connection unusable. usageErr is the error (if
// any) from the request that just completed on conn; a *DatabaseError
// only leaves the connection in FAILED, which RESET can recover, while a
// transport-level failure leaves it DEFUNCT.
func (d *Driver) releaseConn(conn *wire.Conn, usageErr error) {
	if wire.IsClosed(usageErr) || conn.State() == wire.StateDefunct {
		d.cfg.Logger.Printf("gobolt: conn %s discarded: %v", conn.ID(), usageErr)
		d.pool.Discard(conn)
		return
	}
	if conn.State() == wire.StateFailed || conn.State() == wire.StateInterrupted {
		if err := resetConn(conn); err != nil {
			d.cfg.Logger.Printf("gobolt: conn %s reset failed, discarding: %v", conn.ID(), err)
			d.pool.Discard(conn)
			return
		}
	}
	d.pool.Release(conn)
}

// resetConn sends RESET and waits for its SUCCESS, returning the
// connection's state machine to READY so it can be reused.
func resetConn(conn *wire.Conn) error {
	if err := conn.Send(wire.NewReset()); err != nil {
		return err
	}
	for {
		msg, err := conn.Receive()
		if err != nil {
			return err
		}
		_, kind, ok := msg.Summary()
		if !ok {
			continue
		}
		if kind == wire.TagSuccess {
			return nil
		}
		return fmt.Errorf("gobolt: reset failed")
	}
}

// VerifyConnectivity acquires and immediately releases one connection, to
// confirm the target is reachable and credentials are valid.
func (d *Driver) VerifyConnectivity(ctx context.Context) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	d.pool.Release(conn)
	return nil
}

// Close closes the underlying connection pool, closing every pooled
// connection.
func (d *Driver) Close() error {
	return d.pool.Close()
}
