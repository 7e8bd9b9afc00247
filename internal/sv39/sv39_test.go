package sv39_test

import (
	"testing"

	"github.com/lunatix-kernel/lunatix/internal/alloc"
	"github.com/lunatix-kernel/lunatix/internal/log"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
)

func newStore(t *testing.T, numFrames int) (*sv39.TableStore, sv39.PAddr) {
	t.Helper()

	arena := alloc.NewArena(numFrames, int(sv39.Page4KiB.Size()))
	base := sv39.PAddr(0x8000_0000)
	store := sv39.NewTableStore(arena, base, sv39.OffsetPhysMap(0xffff_ffc0_0000_0000))

	root, _, ok := store.Alloc()
	if !ok {
		t.Fatal("failed to allocate root table")
	}

	return store, root
}

// TestPageTableWalk reproduces spec.md scenario S5: map a 4 KiB page,
// translate addresses inside and outside it.
func TestPageTableWalk(t *testing.T) {
	store, root := newStore(t, 8)

	const (
		vaddr = sv39.VAddr(0x10_0000_0000)
		paddr = sv39.PAddr(0x8100_0000)
	)

	if err := sv39.Map(store, root, vaddr, paddr, sv39.Read|sv39.Write|sv39.User, sv39.Page4KiB); err != nil {
		t.Fatalf("Map: %v", err)
	}

	if got := sv39.Translate(store, root, vaddr); got != paddr {
		t.Errorf("Translate(va) = %#x, want %#x", got, paddr)
	}

	if got := sv39.Translate(store, root, vaddr+0x123); got != paddr+0x123 {
		t.Errorf("Translate(va+0x123) = %#x, want %#x", got, paddr+0x123)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected Translate of an unmapped page to panic")
			}
		}()

		sv39.Translate(store, root, vaddr+0x1000)
	}()
}

func TestMapRejectsUnalignedAddresses(t *testing.T) {
	store, root := newStore(t, 8)

	err := sv39.Map(store, root, sv39.VAddr(0x1001), sv39.PAddr(0x8100_0000), sv39.Read, sv39.Page4KiB)
	if err != sv39.ErrNotAligned {
		t.Errorf("Map with unaligned vaddr: got %v, want ErrNotAligned", err)
	}
}

func TestMapRejectsNoAccessFlags(t *testing.T) {
	store, root := newStore(t, 8)

	err := sv39.Map(store, root, sv39.VAddr(0x1000), sv39.PAddr(0x8100_0000), sv39.Global, sv39.Page4KiB)
	if err != sv39.ErrNoAccess {
		t.Errorf("Map with no R/W/X: got %v, want ErrNoAccess", err)
	}
}

func TestMapRefusesToOverwriteExistingLeaf(t *testing.T) {
	store, root := newStore(t, 8)

	vaddr := sv39.VAddr(0x2000)

	if err := sv39.Map(store, root, vaddr, sv39.PAddr(0x8100_0000), sv39.Read, sv39.Page4KiB); err != nil {
		t.Fatalf("first Map: %v", err)
	}

	err := sv39.Map(store, root, vaddr, sv39.PAddr(0x8200_0000), sv39.Read, sv39.Page4KiB)
	if err != sv39.ErrAlreadyMapped {
		t.Errorf("second Map: got %v, want ErrAlreadyMapped", err)
	}
}

func TestMegaAndGigaPages(t *testing.T) {
	store, root := newStore(t, 8)

	giga := sv39.VAddr(1 << 30)
	if err := sv39.Map(store, root, giga, sv39.PAddr(2<<30), sv39.Read|sv39.Write, sv39.Page1GiB); err != nil {
		t.Fatalf("Map 1GiB: %v", err)
	}

	if got := sv39.Translate(store, root, giga+0x42); got != sv39.PAddr(2<<30)+0x42 {
		t.Errorf("Translate giga+0x42 = %#x", got)
	}

	mega := sv39.VAddr(4 << 30)
	if err := sv39.Map(store, root, mega, sv39.PAddr(5<<30), sv39.Read|sv39.Write, sv39.Page2MiB); err != nil {
		t.Fatalf("Map 2MiB: %v", err)
	}

	if got := sv39.Translate(store, root, mega+0x1234); got != sv39.PAddr(5<<30)+0x1234 {
		t.Errorf("Translate mega+0x1234 = %#x", got)
	}
}

func TestUnmapClearsMatchingLeaf(t *testing.T) {
	store, root := newStore(t, 8)
	logger := log.DefaultLogger()

	vaddr := sv39.VAddr(0x3000)
	paddr := sv39.PAddr(0x8100_0000)

	if err := sv39.Map(store, root, vaddr, paddr, sv39.Read|sv39.Write, sv39.Page4KiB); err != nil {
		t.Fatalf("Map: %v", err)
	}

	sv39.Unmap(store, logger, root, vaddr, paddr)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected Translate after Unmap to panic: mapping is gone")
			}
		}()

		sv39.Translate(store, root, vaddr)
	}()
}

func TestUnmapNoopsOnMismatch(t *testing.T) {
	store, root := newStore(t, 8)
	logger := log.DefaultLogger()

	vaddr := sv39.VAddr(0x4000)
	paddr := sv39.PAddr(0x8100_0000)

	if err := sv39.Map(store, root, vaddr, paddr, sv39.Read, sv39.Page4KiB); err != nil {
		t.Fatalf("Map: %v", err)
	}

	// Unmap with the wrong physical address must not touch the real mapping.
	sv39.Unmap(store, logger, root, vaddr, sv39.PAddr(0x9999_0000))

	if got := sv39.Translate(store, root, vaddr); got != paddr {
		t.Errorf("mapping was disturbed by a mismatched Unmap: got %#x, want %#x", got, paddr)
	}
}

func TestPTEPacksPPNAndFlags(t *testing.T) {
	pte := sv39.NewPTE(0x1_2345, sv39.Valid|sv39.Read|sv39.Write)

	if pte.PPN() != 0x1_2345 {
		t.Errorf("PPN() = %#x, want %#x", pte.PPN(), 0x1_2345)
	}

	if pte.Flags() != sv39.Valid|sv39.Read|sv39.Write {
		t.Errorf("Flags() = %v", pte.Flags())
	}

	if !pte.IsLeaf() {
		t.Error("expected R|W entry to be a leaf")
	}
}
