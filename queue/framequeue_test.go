package queue_test

import (
	"testing"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/queue"
)

func TestFrameQueueFIFOOrder(t *testing.T) {
	q := queue.New()
	if !q.Empty() {
		t.Fatalf("new queue should be empty")
	}

	a := &api.Frame{Channel: 1}
	b := &api.Frame{Channel: 2}
	c := &api.Frame{Channel: 3}
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}

	for _, want := range []*api.Frame{a, b, c} {
		got, ok := q.PopFront()
		if !ok {
			t.Fatalf("PopFront reported empty too early")
		}
		if got != want {
			t.Fatalf("PopFront returned %v, want %v", got, want)
		}
	}

	if !q.Empty() {
		t.Fatalf("queue should be empty after draining")
	}
	if _, ok := q.PopFront(); ok {
		t.Fatalf("PopFront on empty queue should report false")
	}
}
