package wire

import "encoding/binary"

// maxChunkSize is the largest payload a single 16-bit length prefix can
// declare.
const maxChunkSize = 65535

// ChunkMessage splits a message's serialized bytes into length-prefixed
// chunks terminated by a zero-length chunk. An empty message becomes a
// single terminator. It returns one contiguous buffer rather than a slice
// of chunk slices, since callers always want to write the whole frame in
// one call.
func ChunkMessage(body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	for len(body) > 0 {
		n := len(body)
		if n > maxChunkSize {
			n = maxChunkSize
		}
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], uint16(n))
		out = append(out, header[:]...)
		out = append(out, body[:n]...)
		body = body[n:]
	}
	out = append(out, 0x00, 0x00)
	return out
}

// FrameReader is a resumable state machine over arriving byte fragments. It
// is fed fragments of arbitrary size via Feed and emits complete
// reassembled messages; partial chunk headers and payloads are retained
// across Feed calls in an append-only buffer with an advancing cursor, so
// a caller that reads from the network in arbitrary-sized bursts never
// has to reassemble chunks itself.
type FrameReader struct {
	pending []byte // undigested bytes fed but not yet consumed into a chunk
	message []byte // bytes reassembled for the in-progress message
}

// NewFrameReader returns an empty FrameReader.
func NewFrameReader() *FrameReader {
	return &FrameReader{}
}

// Feed appends newly-arrived bytes to the reader's internal buffer.
func (r *FrameReader) Feed(data []byte) {
	r.pending = append(r.pending, data...)
}

// Next attempts to drain one complete message out of the buffered bytes.
// ok is false if more input is needed; err is non-nil only on a malformed
// frame.
func (r *FrameReader) Next() (msg []byte, ok bool, err error) {
	for {
		if len(r.pending) < 2 {
			return nil, false, nil
		}
		size := int(binary.BigEndian.Uint16(r.pending[:2]))
		if size == 0 {
			r.pending = r.pending[2:]
			out := r.message
			r.message = nil
			return out, true, nil
		}
		if len(r.pending) < 2+size {
			return nil, false, nil
		}
		r.message = append(r.message, r.pending[2:2+size]...)
		r.pending = r.pending[2+size:]
		r.compact()
	}
}

// compact copies the undigested tail to the front of a fresh slice once the
// backing array has at least 4096 bytes of spare capacity, so a long-lived
// connection doesn't pin an ever-growing buffer behind a shrinking slice.
func (r *FrameReader) compact() {
	if cap(r.pending)-len(r.pending) < 4096 {
		return
	}
	fresh := make([]byte, len(r.pending))
	copy(fresh, r.pending)
	r.pending = fresh
}

// Reset discards any partially-reassembled message and buffered bytes, so
// residual bytes from a discarded stream cannot bleed into the next
// message. Conn does not call it.
func (r *FrameReader) Reset() {
	r.pending = nil
	r.message = nil
}
