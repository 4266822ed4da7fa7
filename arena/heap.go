package arena

import "unsafe"

// Heap is a plain pass-through allocator: every Alloc call gets its own
// freshly made byte slice from the Go heap. It implements the same
// Allocator interface as Bump so the parser, generator and VM can be handed
// either one without caring which.
type Heap struct {
	live [][]byte
}

// NewHeap creates a Heap allocator.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc returns n freshly allocated, zeroed bytes.
func (h *Heap) Alloc(n uintptr) (unsafe.Pointer, error) {
	buf := make([]byte, n)
	h.live = append(h.live, buf)
	if n == 0 {
		return unsafe.Pointer(&struct{}{}), nil
	}
	return unsafe.Pointer(&buf[0]), nil
}

// Reset drops the allocator's bookkeeping of live allocations. Unlike Bump,
// outstanding pointers remain individually valid Go heap pointers — they are
// simply no longer tracked — since Heap has no pages to reclaim in bulk.
func (h *Heap) Reset() {
	h.live = nil
}

// Free drops the allocator's bookkeeping entirely.
func (h *Heap) Free() {
	h.live = nil
}
