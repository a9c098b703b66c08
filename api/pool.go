package api

// Releaser decouples an allocated byte region from the arena that owns
// it, mirroring the teacher's api.Buffer/api.Releaser pairing.
type Releaser interface {
	Release()
}

// BufferPool is the abstract contract spec.md §1 asks for: "allocate a
// region whose lifetime ends at a declared reset point". FramePool
// (package pool) is the concrete arena satisfying it.
type BufferPool interface {
	// Alloc returns a byte slice of length n, valid until the next
	// reset of the pool's current epoch.
	Alloc(n int) []byte

	// ReleaseBuffers unconditionally resets the pool, invalidating every
	// slice allocated since the last reset.
	ReleaseBuffers()

	// MaybeReleaseBuffers resets only if the caller attests there is no
	// outstanding borrow (queueEmpty); it reports whether it reset.
	MaybeReleaseBuffers(queueEmpty bool) bool
}
