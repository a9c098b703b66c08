package conn

import (
	"io"

	"github.com/lattice-mq/amqpcore/api"
)

// DefaultReadBufferSize is the size of FrameReader's fixed inbound
// buffer when none is specified.
const DefaultReadBufferSize = 128 * 1024

// FrameReader pulls bytes from a Stream, feeds them to a Codec, and
// yields complete frames. Implements spec.md §4.1 exactly: a fixed
// inbound buffer with offset/limit cursors, looping HandleInput over the
// readable prefix until a frame is produced or the stream ends.
type FrameReader struct {
	stream api.Stream
	codec  api.Codec

	buf           []byte
	offset, limit int
}

// NewFrameReader constructs a FrameReader with the given fixed buffer
// capacity.
func NewFrameReader(stream api.Stream, codec api.Codec, bufSize int) *FrameReader {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	return &FrameReader{stream: stream, codec: codec, buf: make([]byte, bufSize)}
}

// WaitFrame blocks until a complete frame has been decoded, the stream
// closes cleanly (io.EOF), or a transport error occurs.
//
// Cursor invariant: 0 <= offset <= limit <= len(buf) holds on entry and
// exit of every iteration below.
func (r *FrameReader) WaitFrame() (*api.Frame, error) {
	for {
		if r.offset < r.limit {
			var fr api.Frame
			consumed, err := r.codec.HandleInput(r.buf[r.offset:r.limit], &fr)
			if err != nil {
				return nil, err
			}
			if consumed == 0 && fr.Type == api.FrameNone {
				panic(&api.InvariantViolation{Reason: "codec consumed 0 bytes and produced no frame"})
			}
			r.offset += consumed
			if fr.Type != api.FrameNone {
				return &fr, nil
			}
			continue
		}

		r.offset, r.limit = 0, 0
		n, err := r.stream.Read(r.buf)
		if err != nil {
			return nil, &api.TransportError{Op: "read", Cause: err}
		}
		if n == 0 {
			return nil, io.EOF
		}
		r.limit = n
	}
}
