package wire

import (
	"fmt"

	"github.com/mickamy/gobolt/internal/packstream"
)

// Message is a Bolt message: a PackStream Structure whose tag is a
// well-known signature. Typed constructors below build the field shape each
// request needs; Message itself stays a thin value type so the
// chunker and codec never need to know about request/response semantics.
type Message struct {
	Tag    byte
	Fields []packstream.Value
}

// Value returns m as a packstream Value ready for encoding.
func (m Message) Value() packstream.Value {
	return packstream.Struct(m.Tag, m.Fields)
}

// FromValue extracts a Message from a decoded Structure Value.
func FromValue(v packstream.Value) (Message, error) {
	s, ok := v.AsStructure()
	if !ok {
		return Message{}, &InvalidMessageError{Reason: fmt.Sprintf("top-level value is %s, not a Structure", v.Kind())}
	}
	return Message{Tag: s.Tag, Fields: s.Fields}, nil
}

func dictField(fields map[string]packstream.Value) packstream.Value {
	entries := make([]packstream.DictEntry, 0, len(fields))
	for k, v := range fields {
		entries = append(entries, packstream.DictEntry{Key: k, Value: v})
	}
	return packstream.Dict(entries)
}

// NewHello builds a HELLO request. extra carries user_agent, scheme,
// principal, credentials, bolt_agent, and routing as applicable.
func NewHello(extra map[string]packstream.Value) Message {
	return Message{Tag: TagHello, Fields: []packstream.Value{dictField(extra)}}
}

// NewLogon builds a LOGON request (protocol >= 5.1, auth split from HELLO).
func NewLogon(extra map[string]packstream.Value) Message {
	return Message{Tag: TagLogon, Fields: []packstream.Value{dictField(extra)}}
}

// NewGoodbye builds a GOODBYE request.
func NewGoodbye() Message { return Message{Tag: TagGoodbye} }

// NewReset builds a RESET request.
func NewReset() Message { return Message{Tag: TagReset} }

// NewRun builds a RUN request.
func NewRun(query string, params map[string]packstream.Value, extra map[string]packstream.Value) Message {
	return Message{
		Tag: TagRun,
		Fields: []packstream.Value{
			packstream.String(query),
			dictField(params),
			dictField(extra),
		},
	}
}

// NewBegin builds a BEGIN request.
func NewBegin(extra map[string]packstream.Value) Message {
	return Message{Tag: TagBegin, Fields: []packstream.Value{dictField(extra)}}
}

// NewCommit builds a COMMIT request.
func NewCommit() Message { return Message{Tag: TagCommit} }

// NewRollback builds a ROLLBACK request.
func NewRollback() Message { return Message{Tag: TagRollback} }

// NewDiscard builds a DISCARD request. extra may be nil, in which case an
// empty dictionary is sent (the field is structurally required; its
// contents are optional).
func NewDiscard(extra map[string]packstream.Value) Message {
	return Message{Tag: TagDiscard, Fields: []packstream.Value{dictField(extra)}}
}

// NewPull builds a PULL request. extra may be nil, same convention as
// NewDiscard.
func NewPull(extra map[string]packstream.Value) Message {
	return Message{Tag: TagPull, Fields: []packstream.Value{dictField(extra)}}
}

// Summary classifies a response Message as SUCCESS, IGNORED, or FAILURE.
// ok is false for RECORD or any unrecognized tag.
func (m Message) Summary() (metadata packstream.Value, kind byte, ok bool) {
	switch m.Tag {
	case TagSuccess:
		if len(m.Fields) > 0 {
			return m.Fields[0], TagSuccess, true
		}
		return packstream.Dict(nil), TagSuccess, true
	case TagIgnored:
		return packstream.Dict(nil), TagIgnored, true
	case TagFailure:
		if len(m.Fields) > 0 {
			return m.Fields[0], TagFailure, true
		}
		return packstream.Dict(nil), TagFailure, true
	default:
		return packstream.Value{}, 0, false
	}
}

// RecordFields returns a RECORD message's field list. ok is false if m is
// not a RECORD.
func (m Message) RecordFields() ([]packstream.Value, bool) {
	if m.Tag != TagRecord || len(m.Fields) == 0 {
		return nil, false
	}
	items, ok := m.Fields[0].AsList()
	return items, ok
}

// ValidateRequestShape checks a request message's field count against its
// schema, returning InvalidMessageError on mismatch. Constructors above
// always produce valid shapes; this checks messages built by hand. Conn.Send
// does not call it.
func ValidateRequestShape(m Message) error {
	want, ok := requestFieldCounts[m.Tag]
	if !ok {
		return &InvalidMessageError{Tag: m.Tag, Reason: "unknown request tag"}
	}
	if len(m.Fields) != want {
		return &InvalidMessageError{Tag: m.Tag, Reason: fmt.Sprintf("expected %d fields, got %d", want, len(m.Fields))}
	}
	return nil
}

var requestFieldCounts = map[byte]int{
	TagHello:    1,
	TagLogon:    1,
	TagGoodbye:  0,
	TagReset:    0,
	TagRun:      3,
	TagBegin:    1,
	TagCommit:   0,
	TagRollback: 0,
	TagDiscard:  1,
	TagPull:     1,
}
