package conn

import (
	"testing"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/fake"
)

// TestEnqueueUsesInjectedBufferPool exercises Connection against the
// api.BufferPool interface rather than the concrete *pool.Arena, using
// the instrumented fake.BufferPool double to observe the Alloc/Release
// traffic enqueue produces.
func TestEnqueueUsesInjectedBufferPool(t *testing.T) {
	stream := fake.NewStream()
	bp := fake.NewBufferPool()
	c := newWithPool(stream, 4096, bp)

	original := []byte{1, 2, 3, 4}
	c.enqueue(&api.Frame{Type: api.FrameBody, Channel: PublishChannel, Body: original})

	if bp.AllocCount != 1 {
		t.Fatalf("AllocCount = %d, want 1 after enqueueing one body-bearing frame", bp.AllocCount)
	}
	if !c.FramesEnqueued() {
		t.Fatalf("expected the enqueued frame to be visible via FramesEnqueued")
	}

	// Mutating the original slice must not affect the parked copy: the
	// whole point of copying through the pool is independence.
	original[0] = 0xFF
	parked, err := c.WaitFrame()
	if err != nil {
		t.Fatalf("WaitFrame: %v", err)
	}
	if parked.Body[0] != 1 {
		t.Fatalf("parked frame aliases the caller's slice: got %v", parked.Body)
	}

	// With the queue now empty, MaybeReleaseBuffers must actually reset.
	if reset := bp.MaybeReleaseBuffers(c.frameQueue.Empty()); !reset {
		t.Fatalf("MaybeReleaseBuffers did not reset with an empty queue")
	}
	if bp.ReleaseCount != 1 {
		t.Fatalf("ReleaseCount = %d, want 1", bp.ReleaseCount)
	}
}

// TestMaybeReleaseBuffersSkippedWhileQueueHoldsFrames exercises the
// skip branch of the injected api.BufferPool while a frame is parked.
func TestMaybeReleaseBuffersSkippedWhileQueueHoldsFrames(t *testing.T) {
	stream := fake.NewStream()
	bp := fake.NewBufferPool()
	c := newWithPool(stream, 4096, bp)

	c.enqueue(&api.Frame{Type: api.FrameMethod, Channel: PublishChannel})
	if reset := bp.MaybeReleaseBuffers(c.frameQueue.Empty()); reset {
		t.Fatalf("MaybeReleaseBuffers reset while the FrameQueue still held a frame")
	}
	if bp.MaybeReleaseSkipped != 1 {
		t.Fatalf("MaybeReleaseSkipped = %d, want 1", bp.MaybeReleaseSkipped)
	}
}
