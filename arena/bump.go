package arena

import "unsafe"

// page is a fixed-capacity byte buffer with a running fill counter. Because
// its backing array is allocated once and never grown via append, the Go
// runtime's non-moving collector guarantees that any pointer handed out of
// buf stays valid for the page's lifetime — that is what makes Bump's
// allocations pointer-stable without any manual memory management.
type page struct {
	buf  []byte
	fill int
}

func newPage(size int) *page {
	return &page{buf: make([]byte, size)}
}

func (p *page) remaining() int {
	return len(p.buf) - p.fill
}

func (p *page) alloc(n uintptr) unsafe.Pointer {
	off := p.fill
	p.fill += int(n)
	return unsafe.Pointer(&p.buf[off])
}

// Bump is a paged bump allocator: allocation is an O(1) pointer bump within
// the current page; when the current page lacks room, exactly one new page
// is appended and the allocation starts over there. An object is never split
// across two pages.
type Bump struct {
	pageSize        int
	initialNumPages int
	pages           []*page
	current         int
}

// NewBump creates a bump allocator with initialNumPages pages pre-allocated,
// each pageSize bytes.
func NewBump(pageSize, initialNumPages int) *Bump {
	if initialNumPages < 1 {
		initialNumPages = 1
	}
	b := &Bump{
		pageSize:        pageSize,
		initialNumPages: initialNumPages,
	}
	for i := 0; i < initialNumPages; i++ {
		b.pages = append(b.pages, newPage(pageSize))
	}
	return b
}

// Alloc returns n contiguous bytes from the current page, growing the
// pageset by exactly one page if the current page cannot fit the request.
// It fails if n exceeds the page size — no allocation is ever split across
// pages.
func (b *Bump) Alloc(n uintptr) (unsafe.Pointer, error) {
	if int(n) > b.pageSize {
		return nil, ErrTooLarge{Requested: n, PageSize: b.pageSize}
	}

	cur := b.pages[b.current]
	if cur.remaining() < int(n) {
		b.pages = append(b.pages, newPage(b.pageSize))
		b.current = len(b.pages) - 1
		cur = b.pages[b.current]
	}
	return cur.alloc(n), nil
}

// Reset drops every page beyond the initial page count, zeroes the fill
// counter and contents of each surviving page, and rewinds the current page
// index to 0. Every pointer returned by a prior Alloc call is invalidated.
// Zeroing buf keeps Alloc's "zeroed bytes" contract honest for a page that
// gets reused, and drops any stale pointers a surviving page's bytes may
// have held for the objects it used to back.
func (b *Bump) Reset() {
	if len(b.pages) > b.initialNumPages {
		b.pages = b.pages[:b.initialNumPages]
	}
	for _, p := range b.pages {
		for i := range p.buf {
			p.buf[i] = 0
		}
		p.fill = 0
	}
	b.current = 0
}

// Free releases every page. The allocator must not be used afterward.
func (b *Bump) Free() {
	b.pages = nil
	b.current = 0
}

// PageCount reports the number of pages currently held, for tests that
// exercise the page-spill contiguity guarantee.
func (b *Bump) PageCount() int {
	return len(b.pages)
}
