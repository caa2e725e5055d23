package gobolt

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mickamy/gobolt/internal/packstream"
	"github.com/mickamy/gobolt/internal/wire"
)

// Transaction is an explicit, pinned-connection unit of work. It is not
// safe for concurrent use.
type Transaction struct {
	session *Session
	conn    *wire.Conn
	id      string
	closed  bool
	failed  bool
}

// Run executes query within the transaction and returns a Result bound to
// the transaction's connection. The connection is not released back to
// the pool until Commit or Rollback, regardless of whether the Result's
// records are drained.
func (tx *Transaction) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	if tx.closed {
		return nil, &TransactionClosedError{}
	}

	pvParams, err := toParamDict(params)
	if err != nil {
		return nil, err
	}

	tx.session.driver.observeQuery(query)

	if err := tx.conn.Send(wire.NewRun(query, pvParams, map[string]packstream.Value{})); err != nil {
		tx.failed = true
		return nil, err
	}

	msg, err := tx.conn.Receive()
	if err != nil {
		tx.failed = true
		return nil, err
	}
	metadata, kind, ok := msg.Summary()
	if !ok {
		tx.failed = true
		return nil, fmt.Errorf("gobolt: unexpected response to RUN (tag 0x%02X)", msg.Tag)
	}
	if kind == wire.TagFailure {
		tx.failed = true
		return nil, databaseErrorFromMetadata(metadata)
	}

	release := func(relErr error) {
		if relErr != nil {
			tx.failed = true
		}
	}
	return newResult(tx.conn, fieldsOf(metadata), release), nil
}

// Commit finalizes the transaction's writes and returns its connection to
// the pool. If an earlier Run within this transaction failed, Commit sends
// ROLLBACK instead of COMMIT, closes the transaction and returns an error.
func (tx *Transaction) Commit(_ context.Context) error {
	if tx.closed {
		return &TransactionClosedError{}
	}
	tx.closed = true
	tx.session.tx = nil

	if tx.failed {
		tx.session.driver.cfg.Logger.Printf("gobolt: tx %s commit refused, a prior query failed", tx.id)
		_ = tx.sendRollback()
		return fmt.Errorf("gobolt: cannot commit: a query in this transaction failed")
	}

	if err := tx.conn.Send(wire.NewCommit()); err != nil {
		tx.session.driver.releaseConn(tx.conn, err)
		return err
	}
	msg, err := tx.conn.Receive()
	if err != nil {
		tx.session.driver.releaseConn(tx.conn, err)
		return err
	}
	metadata, kind, ok := msg.Summary()
	if !ok {
		err := fmt.Errorf("gobolt: unexpected response to COMMIT (tag 0x%02X)", msg.Tag)
		tx.session.driver.releaseConn(tx.conn, err)
		return err
	}
	if kind == wire.TagFailure {
		dbErr := databaseErrorFromMetadata(metadata)
		tx.session.driver.cfg.Logger.Printf("gobolt: tx %s commit failed: %v", tx.id, dbErr)
		tx.session.driver.releaseConn(tx.conn, dbErr)
		return dbErr
	}

	if v, ok := metadata.DictGet("bookmark"); ok {
		if bm, ok := v.AsString(); ok {
			tx.session.bookmarks = append(tx.session.bookmarks, bm)
		}
	}

	tx.session.driver.cfg.Logger.Printf("gobolt: tx %s committed", tx.id)
	tx.session.driver.releaseConn(tx.conn, nil)
	return nil
}

// Rollback discards the transaction's writes and returns its connection
// to the pool.
func (tx *Transaction) Rollback(_ context.Context) error {
	if tx.closed {
		return &TransactionClosedError{}
	}
	tx.closed = true
	tx.session.tx = nil
	return tx.sendRollback()
}

func (tx *Transaction) sendRollback() error {
	if tx.conn.State() == wire.StateDefunct {
		tx.session.driver.releaseConn(tx.conn, fmt.Errorf("gobolt: connection defunct"))
		return nil
	}

	if err := tx.conn.Send(wire.NewRollback()); err != nil {
		tx.session.driver.releaseConn(tx.conn, err)
		return err
	}
	msg, err := tx.conn.Receive()
	if err != nil {
		tx.session.driver.releaseConn(tx.conn, err)
		return err
	}
	_, kind, _ := msg.Summary()
	var rerr error
	if kind == wire.TagFailure {
		rerr = fmt.Errorf("gobolt: rollback failed")
	}
	tx.session.driver.cfg.Logger.Printf("gobolt: tx %s rolled back: %v", tx.id, rerr)
	tx.session.driver.releaseConn(tx.conn, rerr)
	return rerr
}
