package gobolt

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/mickamy/gobolt/internal/packstream"
	"github.com/mickamy/gobolt/internal/wire"
)

// AccessMode hints whether a query or transaction reads or writes, so a
// future routing layer can send it to the right cluster member. gobolt
// itself only forwards the hint to the server via RUN/BEGIN's mode field.
type AccessMode int

const (
	AccessWrite AccessMode = iota
	AccessRead
)

// SessionConfig scopes a Session to a database and access pattern.
type SessionConfig struct {
	Database   string
	AccessMode AccessMode
	Bookmarks  []string
}

// Session is a logical, sequential unit of work against a Driver's target.
// A Session is not safe for concurrent use; create one per goroutine.
type Session struct {
	driver    *Driver
	cfg       SessionConfig
	bookmarks []string
	tx        *Transaction
	closed    bool
}

// TransactionWork is the body of a managed transaction passed to
// ExecuteRead/ExecuteWrite. Returning a transient DatabaseError causes the
// whole unit to be retried in a fresh transaction.
type TransactionWork func(tx *Transaction) (any, error)

// Run executes query as an auto-commit statement: it acquires a
// connection, sends RUN and waits for its SUCCESS, and returns a Result
// that sends PULL on the first Next, streams records and releases the
// connection once drained.
func (s *Session) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	if s.closed {
		return nil, &SessionClosedError{}
	}
	if s.tx != nil {
		return nil, fmt.Errorf("gobolt: session has an open transaction; run queries through it instead")
	}

	conn, err := s.driver.acquireConn(ctx)
	if err != nil {
		return nil, err
	}

	pvParams, err := toParamDict(params)
	if err != nil {
		s.driver.releaseConn(conn, err)
		return nil, err
	}

	s.driver.observeQuery(query)

	extra := runExtra(s.cfg.Database, s.cfg.AccessMode, s.bookmarks)
	if err := conn.Send(wire.NewRun(query, pvParams, extra)); err != nil {
		s.driver.releaseConn(conn, err)
		return nil, err
	}

	msg, err := conn.Receive()
	if err != nil {
		s.driver.releaseConn(conn, err)
		return nil, err
	}
	metadata, kind, ok := msg.Summary()
	if !ok {
		err := fmt.Errorf("gobolt: unexpected response to RUN (tag 0x%02X)", msg.Tag)
		s.driver.releaseConn(conn, err)
		return nil, err
	}
	if kind == wire.TagFailure {
		dbErr := databaseErrorFromMetadata(metadata)
		s.driver.releaseConn(conn, dbErr)
		return nil, dbErr
	}

	released := false
	release := func(relErr error) {
		if released {
			return
		}
		released = true
		s.driver.releaseConn(conn, relErr)
	}
	return newResult(conn, fieldsOf(metadata), release), nil
}

// BeginTransaction starts an explicit transaction, pinning one connection
// to it until Commit or Rollback is called.
func (s *Session) BeginTransaction(ctx context.Context) (*Transaction, error) {
	if s.closed {
		return nil, &SessionClosedError{}
	}
	if s.tx != nil {
		return nil, fmt.Errorf("gobolt: session already has an open transaction")
	}

	conn, err := s.driver.acquireConn(ctx)
	if err != nil {
		return nil, err
	}

	extra := runExtra(s.cfg.Database, s.cfg.AccessMode, s.bookmarks)
	if err := conn.Send(wire.NewBegin(extra)); err != nil {
		s.driver.releaseConn(conn, err)
		return nil, err
	}
	msg, err := conn.Receive()
	if err != nil {
		s.driver.releaseConn(conn, err)
		return nil, err
	}
	metadata, kind, ok := msg.Summary()
	if !ok {
		err := fmt.Errorf("gobolt: unexpected response to BEGIN (tag 0x%02X)", msg.Tag)
		s.driver.releaseConn(conn, err)
		return nil, err
	}
	if kind == wire.TagFailure {
		dbErr := databaseErrorFromMetadata(metadata)
		s.driver.releaseConn(conn, dbErr)
		return nil, dbErr
	}

	tx := &Transaction{session: s, conn: conn, id: uuid.NewString()}
	s.tx = tx
	return tx, nil
}

// ExecuteRead runs work in a managed read transaction, retrying on
// transient database errors within MaxTransactionRetryTime.
func (s *Session) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	return s.executeManaged(ctx, AccessRead, work)
}

// ExecuteWrite runs work in a managed write transaction, retrying on
// transient database errors within MaxTransactionRetryTime.
func (s *Session) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	return s.executeManaged(ctx, AccessWrite, work)
}

func (s *Session) executeManaged(ctx context.Context, mode AccessMode, work TransactionWork) (any, error) {
	if s.closed {
		return nil, &SessionClosedError{}
	}

	original := s.cfg.AccessMode
	s.cfg.AccessMode = mode
	defer func() { s.cfg.AccessMode = original }()

	var result any
	attempt := func() error {
		tx, err := s.BeginTransaction(ctx)
		if err != nil {
			return err
		}
		r, werr := work(tx)
		if werr != nil {
			_ = tx.Rollback(ctx)
			return werr
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			return cerr
		}
		result = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.driver.cfg.MaxTransactionRetryTime

	err := backoff.Retry(func() error {
		err := attempt()
		if err == nil {
			return nil
		}
		var dbErr *DatabaseError
		if errors.As(err, &dbErr) && dbErr.Classification == ClassTransient {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, err
	}
	return result, nil
}

// LastBookmark returns the bookmark produced by the most recently
// committed transaction in this session, or "" if none has committed yet.
func (s *Session) LastBookmark() string {
	if len(s.bookmarks) == 0 {
		return ""
	}
	return s.bookmarks[len(s.bookmarks)-1]
}

// Close ends the session, rolling back any still-open transaction and
// releasing its connection.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tx != nil && !s.tx.closed {
		return s.tx.Rollback(context.Background())
	}
	return nil
}

func runExtra(database string, mode AccessMode, bookmarks []string) map[string]packstream.Value {
	extra := map[string]packstream.Value{}
	if database != "" {
		extra["db"] = packstream.String(database)
	}
	if mode == AccessRead {
		extra["mode"] = packstream.String("r")
	}
	if len(bookmarks) > 0 {
		items := make([]packstream.Value, len(bookmarks))
		for i, b := range bookmarks {
			items[i] = packstream.String(b)
		}
		extra["bookmarks"] = packstream.List(items)
	}
	return extra
}

func toParamDict(params map[string]any) (map[string]packstream.Value, error) {
	out := make(map[string]packstream.Value, len(params))
	for k, v := range params {
		pv, err := packstream.FromNative(v)
		if err != nil {
			return nil, fmt.Errorf("gobolt: parameter %q: %w", k, err)
		}
		out[k] = pv
	}
	return out, nil
}

func fieldsOf(metadata packstream.Value) []string {
	v, ok := metadata.DictGet("fields")
	if !ok {
		return nil
	}
	items, ok := v.AsList()
	if !ok {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = item.AsString()
	}
	return out
}

func databaseErrorFromMetadata(metadata packstream.Value) error {
	code, message := failureDetails(metadata)
	return errorFromFailure(code, message)
}
