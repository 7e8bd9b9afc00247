package sv39

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/log"
)

func pageTypeForLevel(level int) PageType {
	switch level {
	case 0:
		return Page4KiB
	case 1:
		return Page2MiB
	case 2:
		return Page1GiB
	default:
		panic(fmt.Sprintf("sv39: invalid page-table level %d", level))
	}
}

// Map installs a leaf translation vaddr -> paddr with the given flags and
// page size, walking from root and allocating intermediate tables out of
// store as needed. It refuses to overwrite an existing valid leaf.
func Map(store *TableStore, root PAddr, vaddr VAddr, paddr PAddr, flags EntryFlags, pageType PageType) error {
	if flags&(Read|Write|Execute) == 0 {
		return ErrNoAccess
	}

	size := pageType.Size()
	if uint64(vaddr)%size != 0 || uint64(paddr)%size != 0 {
		return ErrNotAligned
	}

	idx := vpn(vaddr)
	table := store.Table(root)

	for level := 2; level > pageType.Level(); level-- {
		pte := table[idx[level]]

		switch {
		case !pte.IsValid():
			childPAddr, childTable, ok := store.Alloc()
			if !ok {
				return ErrOutOfMemory
			}

			table[idx[level]] = NewPTE(uint64(childPAddr)>>pageShift, Valid)
			table = childTable

		case pte.IsLeaf():
			return ErrIntermediateIsLeaf

		default:
			table = store.Table(pte.PAddr())
		}
	}

	leafIdx := idx[pageType.Level()]
	if table[leafIdx].IsValid() {
		return ErrAlreadyMapped
	}

	table[leafIdx] = NewPTE(uint64(paddr)>>pageShift, flags|Valid)

	return nil
}

// Translate walks from root to find the physical address vaddr maps to,
// mirroring Map's descent. An invalid walk -- a page table missing an entry
// that should be there -- is a kernel invariant violation and panics rather
// than returning an error, per the page-table engine's contract.
func Translate(store *TableStore, root PAddr, vaddr VAddr) PAddr {
	idx := vpn(vaddr)
	table := store.Table(root)

	for level := 2; ; level-- {
		pte := table[idx[level]]

		if !pte.IsValid() {
			panic(fmt.Sprintf("sv39: translate: invalid walk at level %d for vaddr %#x", level, vaddr))
		}

		if pte.IsLeaf() {
			pt := pageTypeForLevel(level)
			return pte.PAddr() + PAddr(pageOffset(vaddr, pt))
		}

		if level == 0 {
			panic(fmt.Sprintf("sv39: translate: level-0 entry is not a leaf for vaddr %#x", vaddr))
		}

		table = store.Table(pte.PAddr())
	}
}

// Unmap walks to the leaf mapping vaddr and clears it if it still points at
// paddr. A mismatch -- the mapping was already changed or removed -- is
// logged and otherwise ignored rather than corrupting an unrelated mapping.
func Unmap(store *TableStore, logger *log.Logger, root PAddr, vaddr VAddr, paddr PAddr) {
	idx := vpn(vaddr)
	table := store.Table(root)

	for level := 2; ; level-- {
		pte := table[idx[level]]

		if !pte.IsValid() {
			logger.Warn("unmap: no mapping present", "vaddr", vaddr, "paddr", paddr)
			return
		}

		if pte.IsLeaf() {
			if pte.PAddr() != paddr {
				logger.Warn("unmap: mapping does not match expected physical address",
					"vaddr", vaddr, "want", paddr, "got", pte.PAddr())

				return
			}

			table[idx[level]] = 0

			return
		}

		if level == 0 {
			logger.Warn("unmap: level-0 entry is not a leaf", "vaddr", vaddr)
			return
		}

		table = store.Table(pte.PAddr())
	}
}
