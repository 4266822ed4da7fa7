package arena

import (
	"testing"
	"unsafe"
)

func TestBumpOneByteAllocsAreContiguous(t *testing.T) {
	b := NewBump(10, 1)
	p1, err := b.Alloc(1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	p2, err := b.Alloc(1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if uintptr(p2)-uintptr(p1) != 1 {
		t.Fatalf("expected allocations to differ by 1 byte, got %d", uintptr(p2)-uintptr(p1))
	}
}

type pair struct {
	a, b int64
}

func TestBumpStructAllocsDifferBySizeof(t *testing.T) {
	b := NewBump(256, 1)
	p1 := New[pair](b)
	p2 := New[pair](b)
	if uintptr(unsafe.Pointer(p2))-uintptr(unsafe.Pointer(p1)) != unsafe.Sizeof(pair{}) {
		t.Fatalf("expected allocations to differ by sizeof(pair)")
	}
}

func TestBumpPageSpillPreservesPriorData(t *testing.T) {
	b := NewBump(4, 1)
	p1, _ := b.Alloc(3)
	*(*byte)(p1) = 0xAB

	// 3 bytes used of 4; the next 3-byte alloc cannot fit the remainder and
	// must land in a fresh page, leaving the first allocation untouched.
	p2, err := b.Alloc(3)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if b.PageCount() != 2 {
		t.Fatalf("expected a new page to have been appended, got %d pages", b.PageCount())
	}
	if *(*byte)(p1) != 0xAB {
		t.Fatalf("prior allocation was corrupted by the page spill")
	}
	_ = p2
}

func TestBumpOverPageSizeAllocFails(t *testing.T) {
	b := NewBump(8, 1)
	_, err := b.Alloc(9)
	if err == nil {
		t.Fatalf("expected an error for an allocation larger than the page size")
	}
	if _, ok := err.(ErrTooLarge); !ok {
		t.Fatalf("expected ErrTooLarge, got %T", err)
	}
}

func TestBumpResetReusesAddresses(t *testing.T) {
	b := NewBump(64, 1)
	p1, _ := b.Alloc(8)
	p2, _ := b.Alloc(8)

	b.Reset()

	p3, _ := b.Alloc(8)
	p4, _ := b.Alloc(8)

	if p1 != p3 || p2 != p4 {
		t.Fatalf("expected reset to reuse the same two addresses")
	}
}

func TestBumpResetDropsGrownPages(t *testing.T) {
	b := NewBump(4, 1)
	b.Alloc(4)
	b.Alloc(4) // forces a second page
	if b.PageCount() != 2 {
		t.Fatalf("expected 2 pages before reset, got %d", b.PageCount())
	}
	b.Reset()
	if b.PageCount() != 1 {
		t.Fatalf("expected reset to shrink back to the initial page count, got %d", b.PageCount())
	}
}
