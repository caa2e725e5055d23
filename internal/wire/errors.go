package wire

import "fmt"

// TruncatedChunkError reports a chunk header whose declared payload size
// could not be fully read, or an otherwise incomplete frame. Fatal for the
// connection.
type TruncatedChunkError struct {
	Reason string
}

func (e *TruncatedChunkError) Error() string {
	return fmt.Sprintf("wire: truncated chunk: %s", e.Reason)
}

// InvalidMessageError reports that a message's field count or per-field
// type does not match the schema for its tag.
type InvalidMessageError struct {
	Tag    byte
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("wire: invalid message 0x%02X: %s", e.Tag, e.Reason)
}

// ProtocolError reports a handshake failure or a server response that
// violates the agreed protocol (an illegal transition the server itself
// made, or a version the client never proposed).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wire: protocol error: %s", e.Reason)
}

// InvalidTransitionError reports that the caller attempted to send a
// request tag not permitted by the connection's current State. It is a
// programming error raised before any bytes are written to the transport.
type InvalidTransitionError struct {
	State State
	Tag   byte
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("wire: invalid transition: tag 0x%02X not permitted in state %s", e.Tag, e.State)
}
