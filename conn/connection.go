// Package conn implements the connection state machine: frame transport,
// the login handshake, synchronous RPC, and streaming publish, per
// SPEC_FULL.md §5.6-§5.10. Single-threaded and synchronous throughout
// (spec.md §5) — unlike the teacher's protocol.WSConnection, nothing
// here runs a background goroutine.
package conn

import (
	"fmt"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/pool"
	"github.com/lattice-mq/amqpcore/queue"
	"github.com/lattice-mq/amqpcore/wire"
)

// PublishChannel is the only channel this client ever opens or publishes
// on. DESIGN NOTES §9 calls the source's hard-coded single channel a
// library-imposed limit, not a protocol one; SPEC_FULL.md §10 keeps it.
const PublishChannel uint16 = 1

// Connection owns the reader, writer, pools, and frame queue for one
// AMQP connection over an already-connected Stream.
type Connection struct {
	stream api.Stream
	codec  api.Codec

	reader *FrameReader
	writer *FrameWriter

	frameMax uint32

	decodingPool api.BufferPool
	frameQueue   *queue.FrameQueue
}

// New wraps stream in a Connection, ready for Login. frameMax is the
// caller's preferred ceiling; Login may lower it per spec.md §3's
// min(caller, server) negotiation.
func New(stream api.Stream, frameMax uint32) *Connection {
	return newWithPool(stream, frameMax, pool.NewArena(4096))
}

// newWithPool is New with an injectable decoding pool, so tests can
// substitute an instrumented api.BufferPool double for the real Arena
// and observe Alloc/Release traffic through the interface boundary
// rather than the concrete type.
func newWithPool(stream api.Stream, frameMax uint32, bp api.BufferPool) *Connection {
	codec := &wire.FrameCodec{}
	return &Connection{
		stream:       stream,
		codec:        codec,
		reader:       NewFrameReader(stream, codec, DefaultReadBufferSize),
		writer:       NewFrameWriter(stream, codec),
		frameMax:     frameMax,
		decodingPool: bp,
		frameQueue:   queue.New(),
	}
}

// FrameMax returns the currently negotiated maximum frame size.
func (c *Connection) FrameMax() uint32 { return c.frameMax }

// FramesEnqueued reports whether frames are currently parked in the
// FrameQueue, awaiting delivery via WaitFrame.
func (c *Connection) FramesEnqueued() bool { return !c.frameQueue.Empty() }

// WaitFrame drains the FrameQueue before the FrameReader, preserving
// on-wire order for frames parked during a prior RPC (spec.md §4.2).
func (c *Connection) WaitFrame() (*api.Frame, error) {
	if f, ok := c.frameQueue.PopFront(); ok {
		return f, nil
	}
	return c.reader.WaitFrame()
}

// WaitMethod waits for the next frame and asserts it is a METHOD frame.
func (c *Connection) WaitMethod() (api.Method, uint16, error) {
	f, err := c.WaitFrame()
	if err != nil {
		return nil, 0, err
	}
	if f.Type != api.FrameMethod {
		return nil, 0, fmt.Errorf("amqpcore: expected method frame, got %v", f.Type)
	}
	return f.Method, f.Channel, nil
}

// SendMethod sends a bare METHOD frame on channel.
func (c *Connection) SendMethod(channel uint16, m api.Method) error {
	return c.writer.SendMethod(channel, m)
}

// Close tears down the underlying Stream. It does not attempt the
// CONNECTION.CLOSE/CLOSE-OK handshake; callers that need a graceful
// protocol-level close should run that RPC themselves before calling
// Close, the way the old WSConnection.Close left the close handshake to
// its caller and only tore down the transport here.
func (c *Connection) Close() error {
	return c.stream.Close()
}

// enqueue parks a frame observed out of expected order during an RPC.
// Its Body, if any, is copied into the decoding pool (spec.md §4.4's
// "copied into the decoding pool and appended to the FrameQueue") —
// this is what makes the pool's reset policy load-bearing: resetting
// decodingPool while frames remain queued would corrupt their Body
// slices, which is exactly what MaybeReleaseBuffers' queueEmpty guard
// prevents.
func (c *Connection) enqueue(f *api.Frame) {
	cp := &api.Frame{Type: f.Type, Channel: f.Channel, Method: f.Method, Header: f.Header}
	if f.Body != nil {
		b := c.decodingPool.Alloc(len(f.Body))
		copy(b, f.Body)
		cp.Body = b
	}
	c.frameQueue.PushBack(cp)
}
