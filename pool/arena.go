// Package pool implements FramePool: a scoped byte arena with two reset
// points, matching spec.md §3's FramePool contract. Grounded on
// pool/slab_pool.go's size-classed arena and pool/bytepool.go's
// SimpleBytePool — simplified to a single bump region, since the core is
// single-threaded and never needs NUMA placement (spec.md §5).
package pool

import "github.com/lattice-mq/amqpcore/api"

// Arena is a bump allocator: Alloc carves a new slice off the end of a
// backing array that grows as needed; ReleaseBuffers/MaybeReleaseBuffers
// reset the bump pointer, invalidating every previously returned slice.
// It is not safe for concurrent use — the core never uses it that way.
type Arena struct {
	buf []byte
	len int
}

// NewArena creates an Arena with an initial backing capacity. Zero or
// negative sizes fall back to a small default; the backing array grows
// on demand regardless.
func NewArena(initialCapacity int) *Arena {
	if initialCapacity <= 0 {
		initialCapacity = 4096
	}
	return &Arena{buf: make([]byte, initialCapacity)}
}

// Alloc returns a zeroed slice of length n, valid until the next reset.
func (a *Arena) Alloc(n int) []byte {
	if n < 0 {
		n = 0
	}
	if a.len+n > len(a.buf) {
		grown := make([]byte, max(len(a.buf)*2, a.len+n))
		copy(grown, a.buf[:a.len])
		a.buf = grown
	}
	s := a.buf[a.len : a.len+n : a.len+n]
	a.len += n
	for i := range s {
		s[i] = 0
	}
	return s
}

// ReleaseBuffers unconditionally resets the bump pointer. spec.md §3
// calls this the "unconditional" reset point, used on the handshake path
// between method exchanges.
func (a *Arena) ReleaseBuffers() {
	a.len = 0
}

// MaybeReleaseBuffers resets only when queueEmpty is true, reflecting
// spec.md §5's rule that the decoding pool may be reset only when no
// queued frame still references it. It reports whether it reset.
func (a *Arena) MaybeReleaseBuffers(queueEmpty bool) bool {
	if !queueEmpty {
		return false
	}
	a.ReleaseBuffers()
	return true
}

// InUse reports how many bytes have been handed out since the last
// reset — exposed for tests asserting reset behavior.
func (a *Arena) InUse() int { return a.len }

var _ api.BufferPool = (*Arena)(nil)
