package alloc_test

import (
	"testing"

	"github.com/lunatix-kernel/lunatix/internal/alloc"
)

func TestArenaAllocFreeRoundTrip(t *testing.T) {
	a := alloc.NewArena(8, 16)

	idx, ok := a.AllocOne()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}

	before := a.Available()
	a.FreeOne(idx)

	if got := a.Available(); got != before+1 {
		t.Errorf("Available() = %d, want %d", got, before+1)
	}
}

func TestArenaExhaustion(t *testing.T) {
	a := alloc.NewArena(2, 16)

	if _, ok := a.AllocOne(); !ok {
		t.Fatal("first alloc should succeed")
	}

	if _, ok := a.AllocOne(); !ok {
		t.Fatal("second alloc should succeed")
	}

	if _, ok := a.AllocOne(); ok {
		t.Fatal("third alloc should fail: arena is exhausted")
	}
}

func TestArenaAllocManyContiguous(t *testing.T) {
	a := alloc.NewArena(8, 16)

	// Allocate block 0 individually, leaving blocks 1..7 free and contiguous.
	idx0, ok := a.AllocOne()
	if !ok || idx0 != 0 {
		t.Fatalf("expected first alloc to return block 0, got %d ok=%v", idx0, ok)
	}

	start, ok := a.AllocMany(3)
	if !ok {
		t.Fatal("expected a contiguous run of 3 blocks")
	}

	if start != 1 {
		t.Errorf("AllocMany start = %d, want 1", start)
	}

	if got := a.Available(); got != 4 {
		t.Errorf("Available() = %d, want 4 (8 - 1 - 3)", got)
	}
}

func TestArenaAllocManyFailsWhenFragmented(t *testing.T) {
	a := alloc.NewArena(4, 8)

	var idx [4]int
	for i := range idx {
		got, ok := a.AllocOne()
		if !ok {
			t.Fatalf("alloc %d: expected success", i)
		}
		idx[i] = got
	}

	// All four blocks are now allocated in index order 0..3. Free 1 and 3,
	// leaving two free blocks that are not adjacent.
	a.FreeOne(idx[1])
	a.FreeOne(idx[3])

	if _, ok := a.AllocMany(2); ok {
		t.Fatal("expected AllocMany(2) to fail: no contiguous run of 2 exists")
	}

	if _, ok := a.AllocMany(1); !ok {
		t.Fatal("expected AllocMany(1) to still succeed")
	}
}

func TestArenaFreeManyPreservesContiguity(t *testing.T) {
	a := alloc.NewArena(4, 8)

	start, ok := a.AllocMany(4)
	if !ok || start != 0 {
		t.Fatalf("expected to allocate all 4 blocks from 0, got %d ok=%v", start, ok)
	}

	a.FreeMany(0, 4)

	if got := a.Available(); got != 4 {
		t.Errorf("Available() = %d, want 4", got)
	}

	if _, ok := a.AllocMany(4); !ok {
		t.Fatal("expected the freed run to still be contiguous")
	}
}

func TestArenaBlockBounds(t *testing.T) {
	a := alloc.NewArena(2, 4)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Block to panic on out-of-range index")
		}
	}()

	a.Block(5)
}
