package conn

import (
	"github.com/lattice-mq/amqpcore/api"
)

// FrameWriter serializes a Frame via Codec and writes it to the stream in
// full. Matches spec.md §4.3.
type FrameWriter struct {
	stream api.Stream
	codec  api.Codec
}

// NewFrameWriter constructs a FrameWriter over stream using codec.
func NewFrameWriter(stream api.Stream, codec api.Codec) *FrameWriter {
	return &FrameWriter{stream: stream, codec: codec}
}

// SendFrame encodes and writes f, returning whatever error the codec
// surfaces (a stream write failure, or a malformed Frame it refused to
// encode).
func (w *FrameWriter) SendFrame(f *api.Frame) error {
	return w.codec.SendFrame(w.stream, f)
}

// SendMethod is a shortcut constructing and sending a METHOD frame.
func (w *FrameWriter) SendMethod(channel uint16, m api.Method) error {
	return w.SendFrame(&api.Frame{Type: api.FrameMethod, Channel: channel, Method: m})
}
