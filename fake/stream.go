// Package fake provides in-memory test doubles for the interfaces
// package api declares, grounded on the teacher's fake package
// (fake/transport.go, fake/buffer.go) and narrowed from batch-of-buffers
// transport semantics to a continuous byte stream, since AMQP framing
// has no datagram boundaries.
package fake

import (
	"bytes"
	"sync"

	"github.com/lattice-mq/amqpcore/api"
)

// Stream is an in-memory api.Stream: writes accumulate in Sent, and
// reads drain a pre-loaded inbound buffer. Reads past the end of the
// inbound buffer return (0, nil), the clean-EOF signal spec.md §4.1
// assigns to FrameReader.
type Stream struct {
	mu sync.Mutex

	in   bytes.Buffer
	Sent bytes.Buffer

	closed   bool
	readErr  error
	writeErr error
}

// NewStream constructs an empty fake Stream.
func NewStream() *Stream { return &Stream{} }

// Feed appends bytes that future Read calls will return, in order.
// Grounded on fake/transport.go's AddRecvData.
func (s *Stream) Feed(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in.Write(b)
}

// SetReadError makes the next Read fail with err.
func (s *Stream) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// SetWriteError makes the next Write fail with err.
func (s *Stream) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Read implements api.Stream. It returns (0, nil) once the fed buffer is
// exhausted — the stream-level clean-EOF signal, distinct from an error.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		err := s.readErr
		s.readErr = nil
		return 0, err
	}
	if s.in.Len() == 0 {
		return 0, nil
	}
	return s.in.Read(p)
}

// Write implements api.Stream, appending to Sent. Grounded on
// fake/transport.go's GetSentData/ClearSentData pair, collapsed into a
// single accumulating buffer since the core writes one frame at a time.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		err := s.writeErr
		s.writeErr = nil
		return 0, err
	}
	return s.Sent.Write(p)
}

// Close marks the stream closed. Further Feed/Read/Write are still
// permitted for test introspection; the core only calls this once it is
// done with the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SentBytes returns a copy of everything written so far.
func (s *Stream) SentBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.Sent.Len())
	copy(out, s.Sent.Bytes())
	return out
}

var _ api.Stream = (*Stream)(nil)
