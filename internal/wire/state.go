package wire

// State is a connection's position in the server-side automaton, mirrored
// client-side so a request can be rejected locally before it ever reaches
// the wire.
type State int

const (
	StateDisconnected State = iota
	StateNegotiation
	StateAuthentication
	StateReady
	StateStreaming
	StateTxReady
	StateTxStreaming
	StateFailed
	StateInterrupted
	StateDefunct
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateNegotiation:
		return "NEGOTIATION"
	case StateAuthentication:
		return "AUTHENTICATION"
	case StateReady:
		return "READY"
	case StateStreaming:
		return "STREAMING"
	case StateTxReady:
		return "TX_READY"
	case StateTxStreaming:
		return "TX_STREAMING"
	case StateFailed:
		return "FAILED"
	case StateInterrupted:
		return "INTERRUPTED"
	case StateDefunct:
		return "DEFUNCT"
	}
	return "UNKNOWN"
}

// allowedRequests enumerates, for each state, the request tags a client may
// legally send. RESET is legal in every state from READY onward except
// DEFUNCT (the socket is already gone). GOODBYE is legal in every state
// except DISCONNECTED and DEFUNCT, since it is always sent on close.
var allowedRequests = map[State]map[byte]bool{
	StateNegotiation:    {TagHello: true, TagGoodbye: true},
	StateAuthentication: {TagLogon: true, TagGoodbye: true},
	StateReady: {
		TagRun: true, TagBegin: true, TagGoodbye: true, TagReset: true,
	},
	StateStreaming: {
		TagPull: true, TagDiscard: true, TagGoodbye: true, TagReset: true,
	},
	StateTxReady: {
		TagRun: true, TagCommit: true, TagRollback: true, TagGoodbye: true, TagReset: true,
	},
	StateTxStreaming: {
		TagPull: true, TagDiscard: true, TagGoodbye: true, TagReset: true,
	},
	// FAILED and INTERRUPTED accept any request tag onto the wire: the
	// server ignores everything but RESET and responds IGNORED rather than
	// refusing the write locally.
	StateFailed: {
		TagHello: true, TagLogon: true, TagRun: true, TagBegin: true,
		TagCommit: true, TagRollback: true, TagPull: true, TagDiscard: true,
		TagGoodbye: true, TagReset: true,
	},
	StateInterrupted: {
		TagHello: true, TagLogon: true, TagRun: true, TagBegin: true,
		TagCommit: true, TagRollback: true, TagPull: true, TagDiscard: true,
		TagGoodbye: true, TagReset: true,
	},
}

// CanSend reports whether tag is a legal request in state s.
func CanSend(s State, tag byte) bool {
	allowed, ok := allowedRequests[s]
	if !ok {
		return false
	}
	return allowed[tag]
}

// Machine tracks a single connection's State and applies its transition
// rules. It holds no I/O; a Connection drives it alongside the transport
// and chunker.
type Machine struct {
	state   State
	inTx    bool
	lastTag byte // signature most recently sent, for classifying the response
}

// NewMachine returns a Machine in StateDisconnected.
func NewMachine() *Machine {
	return &Machine{state: StateDisconnected}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// BeforeSend validates that tag is legal in the current state and, if so,
// records it so AfterReceive can interpret the response correctly. It
// never mutates state by itself (the state change happens on response,
// except for GOODBYE which is terminal immediately).
func (m *Machine) BeforeSend(tag byte) error {
	if !CanSend(m.state, tag) {
		return &InvalidTransitionError{State: m.state, Tag: tag}
	}
	m.lastTag = tag
	if tag == TagGoodbye {
		m.state = StateDefunct
	}
	return nil
}

// AfterReceive advances state given the response tag to the most recently
// sent request. kind is one of TagSuccess,
// TagIgnored, TagFailure (for summaries) or TagRecord (detail, no
// transition). final matters only for a TagSuccess following PULL/DISCARD:
// a SUCCESS carrying has_more=true keeps the connection in a streaming
// state for further PULLs; final=true is the terminal summary of the
// request.
func (m *Machine) AfterReceive(kind byte, final bool) {
	if kind == TagRecord {
		return
	}

	if m.state == StateFailed || m.state == StateInterrupted {
		if m.lastTag == TagReset && kind == TagSuccess {
			m.state = StateReady
			m.inTx = false
		}
		return
	}

	if kind == TagFailure {
		m.state = StateFailed
		return
	}

	switch m.lastTag {
	case TagHello:
		if kind == TagSuccess {
			m.state = StateAuthentication
		}
	case TagLogon:
		if kind == TagSuccess {
			m.state = StateReady
		}
	case TagRun:
		if kind == TagSuccess {
			if m.inTx {
				m.state = StateTxStreaming
			} else {
				m.state = StateStreaming
			}
		}
	case TagPull, TagDiscard:
		if kind == TagSuccess && final {
			if m.inTx {
				m.state = StateTxReady
			} else {
				m.state = StateReady
			}
		}
	case TagBegin:
		if kind == TagSuccess {
			m.inTx = true
			m.state = StateTxReady
		}
	case TagCommit, TagRollback:
		if kind == TagSuccess {
			m.inTx = false
			m.state = StateReady
		}
	case TagReset:
		if kind == TagSuccess {
			m.state = StateReady
			m.inTx = false
		}
	}
}

// Interrupt moves the machine to INTERRUPTED, e.g. on caller-initiated
// cancellation mid-query.
func (m *Machine) Interrupt() {
	if m.state != StateDefunct {
		m.state = StateInterrupted
	}
}

// MarkDefunct forces DEFUNCT, e.g. on a transport error.
func (m *Machine) MarkDefunct() {
	m.state = StateDefunct
}

// EnterNegotiation transitions from DISCONNECTED once the handshake
// completes successfully.
func (m *Machine) EnterNegotiation() {
	m.state = StateNegotiation
}
