// Package queue implements FrameQueue: the ordered holding area for
// frames that arrive out of expected order during a synchronous RPC
// (spec.md §3, §4.2). Grounded on internal/concurrency/executor.go's use
// of github.com/eapache/queue for task dispatch, retargeted from
// "pending work" to "frames parked mid-RPC" — the same ring-buffer-backed
// FIFO concern, a different domain.
package queue

import (
	"github.com/eapache/queue"

	"github.com/lattice-mq/amqpcore/api"
)

// FrameQueue is a strict FIFO of *api.Frame. Not safe for concurrent
// use; the core is single-threaded (spec.md §5).
type FrameQueue struct {
	q *queue.Queue
}

// New creates an empty FrameQueue.
func New() *FrameQueue {
	return &FrameQueue{q: queue.New()}
}

// PushBack appends f to the tail.
func (fq *FrameQueue) PushBack(f *api.Frame) {
	fq.q.Add(f)
}

// PopFront removes and returns the head frame, or (nil, false) if empty.
func (fq *FrameQueue) PopFront() (*api.Frame, bool) {
	if fq.q.Length() == 0 {
		return nil, false
	}
	f := fq.q.Remove().(*api.Frame)
	return f, true
}

// Len reports the number of queued frames.
func (fq *FrameQueue) Len() int { return fq.q.Length() }

// Empty reports whether the queue holds no frames.
func (fq *FrameQueue) Empty() bool { return fq.q.Length() == 0 }
