package gobolt

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/mickamy/gobolt/internal/packstream"
	"github.com/mickamy/gobolt/internal/pool"
	"github.com/mickamy/gobolt/internal/wire"
)

// scriptedServer drives the server end of a net.Pipe: it answers the
// handshake, then replies with the next message in responses to each
// inbound request, looping forever on the last response once exhausted
// so a test's later RESET/GOODBYE never blocks.
func scriptedServer(t *testing.T, conn net.Conn, responses []wire.Message) {
	t.Helper()
	go func() {
		var hdr [20]byte
		if _, err := io.ReadFull(conn, hdr[:4]); err != nil {
			return
		}
		if _, err := io.ReadFull(conn, hdr[4:]); err != nil {
			return
		}
		if _, err := conn.Write([]byte{0x00, 0x00, 0x05, 0x08}); err != nil {
			return
		}

		reader := wire.NewFrameReader()
		buf := make([]byte, 4096)
		idx := 0
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				reader.Feed(buf[:n])
			}
			if err != nil {
				return
			}
			for {
				_, ok, err := reader.Next()
				if err != nil || !ok {
					break
				}
				resp := responses[idx]
				if idx < len(responses)-1 {
					idx++
				}
				body, err := packstream.EncodeValue(resp.Value())
				if err != nil {
					return
				}
				if _, err := conn.Write(wire.ChunkMessage(body)); err != nil {
					return
				}
			}
		}
	}()
}

func successMsg(entries ...packstream.DictEntry) wire.Message {
	return wire.Message{Tag: wire.TagSuccess, Fields: []packstream.Value{packstream.Dict(entries)}}
}

func failureMsg(code, message string) wire.Message {
	return wire.Message{Tag: wire.TagFailure, Fields: []packstream.Value{packstream.Dict([]packstream.DictEntry{
		{Key: "code", Value: packstream.String(code)},
		{Key: "message", Value: packstream.String(message)},
	})}}
}

// testDriver wires a Driver to an in-process fake server via net.Pipe,
// bypassing the real transport package entirely. responses are replayed
// in order to every request the driver sends (HELLO and LOGON consume
// the first two).
func testDriver(t *testing.T, responses []wire.Message) *Driver {
	t.Helper()

	dial := func(ctx context.Context) (pool.Conn, error) {
		client, server := net.Pipe()
		t.Cleanup(func() { _ = client.Close(); _ = server.Close() })
		scriptedServer(t, server, responses)

		conn, err := wire.Dial(ctx, client, wire.NewGraphRegistry())
		if err != nil {
			return nil, err
		}
		if err := conn.Send(wire.NewHello(map[string]packstream.Value{"user_agent": packstream.String("gobolt-test/0")})); err != nil {
			return nil, err
		}
		if err := expectSuccess(conn, "HELLO"); err != nil {
			return nil, err
		}
		if err := conn.Send(wire.NewLogon(map[string]packstream.Value{"scheme": packstream.String("none")})); err != nil {
			return nil, err
		}
		if err := expectSuccess(conn, "LOGON"); err != nil {
			return nil, err
		}
		return conn, nil
	}

	d := &Driver{cfg: newConfig(), auth: NoAuth()}
	d.pool = pool.New(dial, pool.Config{MaxSize: 4, AcquireTimeout: time.Second})
	return d
}

func TestSession_RunStreamsRecords(t *testing.T) {
	t.Parallel()

	driver := testDriver(t, []wire.Message{
		successMsg(),
		successMsg(),
		successMsg(packstream.DictEntry{Key: "fields", Value: packstream.List([]packstream.Value{packstream.String("n")})}),
		{Tag: wire.TagRecord, Fields: []packstream.Value{packstream.List([]packstream.Value{packstream.Int(1)})}},
	})

	session := driver.NewSession(SessionConfig{})
	defer func() { _ = session.Close() }()

	result, err := session.Run(context.Background(), "RETURN 1 AS n", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := result.Keys(); len(got) != 1 || got[0] != "n" {
		t.Fatalf("Keys = %v, want [n]", got)
	}

	// The scripted server repeats its last response (a RECORD), so the
	// first Next() always succeeds; exercise that and stop there.
	if !result.Next() {
		t.Fatalf("Next() = false, want true; err = %v", result.Err())
	}
	n, err := result.Record().Int64("n")
	if err != nil {
		t.Fatalf("Int64(n): %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
}

func TestSession_RunFailureSurfacesDatabaseError(t *testing.T) {
	t.Parallel()

	driver := testDriver(t, []wire.Message{
		successMsg(),
		successMsg(),
		failureMsg("Neo.ClientError.Statement.SyntaxError", "bad query"),
	})

	session := driver.NewSession(SessionConfig{})
	defer func() { _ = session.Close() }()

	_, err := session.Run(context.Background(), "NOT CYPHER", nil)
	if err == nil {
		t.Fatal("Run: expected error")
	}
	dbErr, ok := err.(*DatabaseError)
	if !ok {
		t.Fatalf("error type = %T, want *DatabaseError", err)
	}
	if dbErr.Classification != ClassClient {
		t.Errorf("Classification = %v, want ClassClient", dbErr.Classification)
	}
}

func TestTransaction_CommitReturnsConnectionToPool(t *testing.T) {
	t.Parallel()

	driver := testDriver(t, []wire.Message{
		successMsg(),
		successMsg(),
		successMsg(), // BEGIN
		successMsg(packstream.DictEntry{Key: "fields", Value: packstream.List(nil)}), // RUN
		successMsg(), // COMMIT
	})

	session := driver.NewSession(SessionConfig{})
	defer func() { _ = session.Close() }()

	tx, err := session.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if _, err := tx.Run(context.Background(), "CREATE (n)", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if stats := driver.pool.Stats(); stats.Idle != 1 {
		t.Errorf("pool.Stats().Idle = %d, want 1 after commit", stats.Idle)
	}
}

func TestResult_NextAfterFullyConsumedReturnsResultConsumedError(t *testing.T) {
	t.Parallel()

	driver := testDriver(t, []wire.Message{
		successMsg(),
		successMsg(),
		successMsg(packstream.DictEntry{Key: "fields", Value: packstream.List(nil)}),
		successMsg(), // PULL: no has_more, stream ends with zero records
	})

	session := driver.NewSession(SessionConfig{})
	defer func() { _ = session.Close() }()

	result, err := session.Run(context.Background(), "MATCH (n) WHERE false RETURN n", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Next() {
		t.Fatalf("Next() = true, want false on an empty result")
	}
	if err := result.Err(); err != nil {
		t.Fatalf("Err() after normal exhaustion = %v, want nil", err)
	}

	// Consume() on an already-drained result must return the cached outcome
	// rather than treating its internal re-iteration as a consumer error.
	summary, err := result.Consume()
	if err != nil {
		t.Fatalf("Consume() after manual drain: %v", err)
	}
	if summary == nil {
		t.Fatalf("Consume() after manual drain returned nil summary")
	}

	// A caller directly re-iterating past the end gets ResultConsumed.
	if result.Next() {
		t.Fatalf("second Next() after exhaustion = true, want false")
	}
	if _, ok := result.Err().(*ResultConsumedError); !ok {
		t.Fatalf("Err() after re-iterating an exhausted result = %v (%T), want *ResultConsumedError", result.Err(), result.Err())
	}
}

func TestSession_RunFailureWithSecurityCodeSurfacesAuthorizationError(t *testing.T) {
	t.Parallel()

	driver := testDriver(t, []wire.Message{
		successMsg(),
		successMsg(),
		failureMsg("Neo.ClientError.Security.Forbidden", "not authorized for this database"),
	})

	session := driver.NewSession(SessionConfig{})
	defer func() { _ = session.Close() }()

	_, err := session.Run(context.Background(), "MATCH (n) RETURN n", nil)
	if err == nil {
		t.Fatal("Run: expected error")
	}
	if _, ok := err.(*AuthorizationError); !ok {
		t.Fatalf("error type = %T, want *AuthorizationError", err)
	}
}

func TestTransaction_RunFailureBlocksCommit(t *testing.T) {
	t.Parallel()

	driver := testDriver(t, []wire.Message{
		successMsg(),
		successMsg(),
		successMsg(), // BEGIN
		failureMsg("Neo.ClientError.Statement.SyntaxError", "bad query"), // RUN
	})

	session := driver.NewSession(SessionConfig{})
	defer func() { _ = session.Close() }()

	tx, err := session.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if _, err := tx.Run(context.Background(), "NOT CYPHER", nil); err == nil {
		t.Fatal("Run: expected error")
	}
	if err := tx.Commit(context.Background()); err == nil {
		t.Fatal("Commit: expected error after a failed Run")
	}
}
