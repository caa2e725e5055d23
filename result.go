package gobolt

import (
	"fmt"

	"github.com/mickamy/gobolt/internal/packstream"
	"github.com/mickamy/gobolt/internal/wire"
)

// fetchSize bounds how many records a single PULL asks the server for.
// Further PULLs are issued automatically as the caller advances past the
// end of a batch, so callers never see this number directly.
const fetchSize = 1000

// Record is one row of a Result: an ordered list of values keyed by the
// Result's field names. Structure-shaped values (nodes, relationships,
// paths) arrive already decoded into their domain-native Go types;
// structures with no registered factory arrive as packstream.Structure, and
// every other value is a packstream.Value.
type Record struct {
	keys   []string
	values []any
}

// Keys returns the field names of r, in the Result's column order.
func (r *Record) Keys() []string { return r.keys }

// Raw returns the value stored at key without any type assertion.
func (r *Record) Raw(key string) (any, error) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], nil
		}
	}
	return nil, &FieldNotFoundError{Key: key}
}

func (r *Record) value(key string) (packstream.Value, error) {
	raw, err := r.Raw(key)
	if err != nil {
		return packstream.Value{}, err
	}
	v, ok := raw.(packstream.Value)
	if !ok {
		return packstream.Value{}, &TypeMismatchError{Key: key, Want: "scalar", Got: fmt.Sprintf("%T", raw)}
	}
	return v, nil
}

// String returns the string stored at key.
func (r *Record) String(key string) (string, error) {
	v, err := r.value(key)
	if err != nil {
		return "", err
	}
	if v.IsNull() {
		return "", &UnexpectedNullError{Key: key}
	}
	s, ok := v.AsString()
	if !ok {
		return "", &TypeMismatchError{Key: key, Want: "String", Got: v.Kind().String()}
	}
	return s, nil
}

// Int64 returns the integer stored at key.
func (r *Record) Int64(key string) (int64, error) {
	v, err := r.value(key)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, &UnexpectedNullError{Key: key}
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, &TypeMismatchError{Key: key, Want: "Integer", Got: v.Kind().String()}
	}
	return i, nil
}

// Float64 returns the float stored at key.
func (r *Record) Float64(key string) (float64, error) {
	v, err := r.value(key)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, &UnexpectedNullError{Key: key}
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, &TypeMismatchError{Key: key, Want: "Float", Got: v.Kind().String()}
	}
	return f, nil
}

// Bool returns the boolean stored at key.
func (r *Record) Bool(key string) (bool, error) {
	v, err := r.value(key)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, &UnexpectedNullError{Key: key}
	}
	b, ok := v.AsBool()
	if !ok {
		return false, &TypeMismatchError{Key: key, Want: "Boolean", Got: v.Kind().String()}
	}
	return b, nil
}

// IsNull reports whether the scalar value stored at key is Null.
func (r *Record) IsNull(key string) (bool, error) {
	v, err := r.value(key)
	if err != nil {
		return false, err
	}
	return v.IsNull(), nil
}

// Node returns the graph node stored at key.
func (r *Record) Node(key string) (wire.Node, error) {
	raw, err := r.Raw(key)
	if err != nil {
		return wire.Node{}, err
	}
	n, ok := raw.(wire.Node)
	if !ok {
		return wire.Node{}, &TypeMismatchError{Key: key, Want: "Node", Got: fmt.Sprintf("%T", raw)}
	}
	return n, nil
}

// Relationship returns the graph relationship stored at key.
func (r *Record) Relationship(key string) (wire.Relationship, error) {
	raw, err := r.Raw(key)
	if err != nil {
		return wire.Relationship{}, err
	}
	rel, ok := raw.(wire.Relationship)
	if !ok {
		return wire.Relationship{}, &TypeMismatchError{Key: key, Want: "Relationship", Got: fmt.Sprintf("%T", raw)}
	}
	return rel, nil
}

// Path returns the graph path stored at key.
func (r *Record) Path(key string) (wire.Path, error) {
	raw, err := r.Raw(key)
	if err != nil {
		return wire.Path{}, err
	}
	p, ok := raw.(wire.Path)
	if !ok {
		return wire.Path{}, &TypeMismatchError{Key: key, Want: "Path", Got: fmt.Sprintf("%T", raw)}
	}
	return p, nil
}

// Summary reports the server-reported outcome of a finished query: the
// statement type, write/read counters, and timings, extracted from the
// final SUCCESS message's metadata.
type Summary struct {
	QueryType            string
	Counters             map[string]int64
	ResultAvailableAfter int64
	ResultConsumedAfter  int64
	Database             string
}

func summaryFromMetadata(meta packstream.Value) *Summary {
	s := &Summary{Counters: map[string]int64{}}
	if v, ok := meta.DictGet("type"); ok {
		s.QueryType, _ = v.AsString()
	}
	if v, ok := meta.DictGet("t_first"); ok {
		s.ResultAvailableAfter, _ = v.AsInt()
	}
	if v, ok := meta.DictGet("t_last"); ok {
		s.ResultConsumedAfter, _ = v.AsInt()
	}
	if v, ok := meta.DictGet("db"); ok {
		s.Database, _ = v.AsString()
	}
	if v, ok := meta.DictGet("stats"); ok {
		if entries, ok := v.AsDict(); ok {
			for _, e := range entries {
				if n, ok := e.Value.AsInt(); ok {
					s.Counters[e.Key] = n
				}
			}
		}
	}
	return s
}

// Result is the one-shot record stream produced by Run. Records must be
// consumed by repeatedly calling Next before calling Consume; calling
// Consume early implicitly drains whatever remains.
type Result struct {
	keys    []string
	conn    *wire.Conn
	release func(error)

	current *Record
	summary *Summary
	err     error
	done    bool
	started bool
}

func newResult(conn *wire.Conn, keys []string, release func(error)) *Result {
	return &Result{conn: conn, keys: keys, release: release}
}

// Keys returns the field names of the query, available as soon as Result
// is returned by Run.
func (res *Result) Keys() []string { return res.keys }

// Next advances to the next record, issuing further PULLs as needed. It
// returns false once the stream is exhausted or an error occurred; Err
// reports which.
func (res *Result) Next() bool {
	if res.done {
		// The stream already reached its terminal state on an earlier call;
		// this is a second, redundant pass over it.
		if res.err == nil {
			res.err = &ResultConsumedError{}
		}
		return false
	}
	if !res.started {
		res.started = true
		if err := res.conn.Send(wire.NewPull(map[string]packstream.Value{"n": packstream.Int(fetchSize)})); err != nil {
			res.finish(err)
			return false
		}
	}

	for {
		msg, err := res.conn.Receive()
		if err != nil {
			res.finish(err)
			return false
		}

		if rec, ok, rerr := res.conn.MaterializeRecord(msg); ok {
			if rerr != nil {
				res.finish(rerr)
				return false
			}
			res.current = &Record{keys: res.keys, values: rec}
			return true
		}

		metadata, kind, ok := msg.Summary()
		if !ok {
			res.finish(fmt.Errorf("gobolt: unexpected response tag 0x%02X while streaming", msg.Tag))
			return false
		}
		switch kind {
		case wire.TagFailure:
			code, message := failureDetails(metadata)
			res.finish(errorFromFailure(code, message))
			return false
		case wire.TagIgnored:
			res.finish(fmt.Errorf("gobolt: request ignored by server"))
			return false
		case wire.TagSuccess:
			if moreValue, ok := metadata.DictGet("has_more"); ok {
				if more, _ := moreValue.AsBool(); more {
					if err := res.conn.Send(wire.NewPull(map[string]packstream.Value{"n": packstream.Int(fetchSize)})); err != nil {
						res.finish(err)
						return false
					}
					continue
				}
			}
			res.summary = summaryFromMetadata(metadata)
			res.finish(nil)
			return false
		}
	}
}

// Record returns the record most recently returned by Next.
func (res *Result) Record() *Record { return res.current }

// Err returns the error that stopped iteration, if any.
func (res *Result) Err() error { return res.err }

// Consume discards any unread records and returns the query's Summary. If
// the stream was already fully drained (by an earlier Consume or a manual
// Next loop), it returns the same outcome again rather than treating the
// call as a redundant re-iteration.
func (res *Result) Consume() (*Summary, error) {
	if res.done {
		return res.summary, res.err
	}
	for res.Next() {
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.summary, nil
}

func (res *Result) finish(err error) {
	if res.done {
		return
	}
	res.done = true
	res.err = err
	if res.release != nil {
		res.release(err)
	}
}
