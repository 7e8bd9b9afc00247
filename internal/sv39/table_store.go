package sv39

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/alloc"
)

// PhysMap is the per-address-space translation between physical addresses
// (what a page-table entry stores) and mapped addresses (what the kernel can
// dereference while paging is on). The kernel's own tables use a direct-map
// offset; a transient userspace mapping can use the identity map.
type PhysMap interface {
	ToMapped(PAddr) MappedAddr
}

// OffsetPhysMap implements PhysMap as a constant offset, the kernel's direct
// physical map.
type OffsetPhysMap uint64

func (o OffsetPhysMap) ToMapped(p PAddr) MappedAddr {
	return MappedAddr(uint64(p) + uint64(o))
}

// IdentityPhysMap implements PhysMap where physical and mapped addresses
// coincide.
type IdentityPhysMap struct{}

func (IdentityPhysMap) ToMapped(p PAddr) MappedAddr { return MappedAddr(p) }

// TableStore is the collaborator map and translate walk page tables through:
// it owns the arena of page-sized frames backing every intermediate table
// and root, and the registry that lets the (simulated) hardware walk
// dereference a PAddr to the PageTable living there.
//
// In real Sv39 the MMU dereferences physical addresses directly; here there
// is no physical address space to dereference, only Go heap objects, so the
// registry stands in for it, the same kind of substitution a simulated
// memory bus makes for real silicon.
type TableStore struct {
	arena   *alloc.Arena
	base    PAddr
	physMap PhysMap
	tables  map[PAddr]*PageTable
}

// NewTableStore creates a store whose frames come from arena, an arena
// allocator whose block size must equal a 4 KiB page. base is the physical
// address of the arena's first block.
func NewTableStore(arena *alloc.Arena, base PAddr, physMap PhysMap) *TableStore {
	if uint64(arena.BlockSize()) != Page4KiB.Size() {
		panic(fmt.Sprintf("sv39: table arena block size %d != page size %d", arena.BlockSize(), Page4KiB.Size()))
	}

	return &TableStore{
		arena:   arena,
		base:    base,
		physMap: physMap,
		tables:  make(map[PAddr]*PageTable),
	}
}

// PhysMap returns the store's physical-to-mapped translation.
func (s *TableStore) PhysMap() PhysMap { return s.physMap }

// Alloc reserves one page frame for a new root or intermediate table,
// zeroed, and returns its physical address and its (simulated) mapped
// contents. It reports false if the backing arena is exhausted.
func (s *TableStore) Alloc() (PAddr, *PageTable, bool) {
	idx, ok := s.arena.AllocOne()
	if !ok {
		return 0, nil, false
	}

	paddr := s.base + PAddr(idx)*PAddr(Page4KiB.Size())
	table := &PageTable{}
	s.tables[paddr] = table

	return paddr, table, true
}

// Adopt registers a page table at a physical address the caller already
// owns (typically a frame carved out of a Memory capability's own backing
// allocator, not this store's arena) so that Table/Map/Translate can
// dereference it. It is the store-side half of VSpace derivation: the
// Memory capability supplies the frame, the store supplies the
// in-memory object that frame "contains".
func (s *TableStore) Adopt(paddr PAddr) *PageTable {
	table := &PageTable{}
	s.tables[paddr] = table

	return table
}

// Free returns a table's frame to the arena. The caller must have already
// cleared any entries pointing at it.
func (s *TableStore) Free(paddr PAddr) {
	delete(s.tables, paddr)

	idx := int((paddr - s.base) / PAddr(Page4KiB.Size()))
	s.arena.FreeOne(idx)
}

// Table dereferences paddr to the PageTable living there. It panics if
// nothing was ever allocated at that address, which can only happen on a
// corrupted tree -- the same invariant-violation panic spec.md calls for
// on an invalid walk.
func (s *TableStore) Table(paddr PAddr) *PageTable {
	t, ok := s.tables[paddr]
	if !ok {
		panic(fmt.Sprintf("sv39: no page table backing physical address %#x", paddr))
	}

	return t
}
