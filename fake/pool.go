package fake

import "github.com/lattice-mq/amqpcore/api"

// BufferPool is an instrumented api.BufferPool double: every Alloc is
// tracked, and resets are counted rather than silently discarded.
// Grounded on fake/buffer.go's BufferPool (alloc/free counters), with
// NUMA accounting dropped — the core only ever allocates with "don't
// care" placement.
type BufferPool struct {
	AllocCount          int
	ReleaseCount        int
	MaybeReleaseSkipped int
}

// NewBufferPool constructs an empty instrumented pool.
func NewBufferPool() *BufferPool { return &BufferPool{} }

func (p *BufferPool) Alloc(n int) []byte {
	p.AllocCount++
	return make([]byte, n)
}

func (p *BufferPool) ReleaseBuffers() {
	p.ReleaseCount++
}

func (p *BufferPool) MaybeReleaseBuffers(queueEmpty bool) bool {
	if !queueEmpty {
		p.MaybeReleaseSkipped++
		return false
	}
	p.ReleaseCount++
	return true
}

var _ api.BufferPool = (*BufferPool)(nil)
