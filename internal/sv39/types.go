// Package sv39 implements the three-level Sv39 page-table engine: building,
// mapping, unmapping and translating virtual addresses, and the physical-to-
// mapped address indirection the kernel needs to dereference page tables
// while paging is enabled.
//
// Sv39 has no analogue to an MMU in this repository -- the kernel never
// actually runs code behind one of these translations, it only ever walks
// the tables it built. So this package models exactly the data structures
// (PageTable, PTE, PhysMap) and the pure functions that operate on them,
// the same way the rest of this kernel models registers and memory cells
// as plain structs instead of real silicon.
package sv39

import "fmt"

// PAddr is a physical address: what a page-table entry stores, and what the
// (simulated) hardware MMU would dereference.
type PAddr uint64

// VAddr is a virtual address as seen by a task.
type VAddr uint64

// MappedAddr is the address the kernel itself can dereference to read or
// write the bytes at a given PAddr while paging is enabled. For the kernel's
// own page tables this is PAddr plus the direct-map offset; for an identity
// PhysMap it equals the PAddr.
type MappedAddr uint64

// PageType selects the leaf level -- and therefore the page size -- a
// mapping uses.
type PageType int

const (
	Page4KiB PageType = iota
	Page2MiB
	Page1GiB
)

// Size returns the number of bytes a page of this type covers.
func (t PageType) Size() uint64 {
	switch t {
	case Page4KiB:
		return 1 << 12
	case Page2MiB:
		return 1 << 21
	case Page1GiB:
		return 1 << 30
	default:
		panic(fmt.Sprintf("sv39: invalid page type %d", t))
	}
}

// Level returns the page-table level whose entries are leaves for this page
// type: 0 for 4 KiB, 1 for 2 MiB, 2 for 1 GiB.
func (t PageType) Level() int {
	switch t {
	case Page4KiB:
		return 0
	case Page2MiB:
		return 1
	case Page1GiB:
		return 2
	default:
		panic(fmt.Sprintf("sv39: invalid page type %d", t))
	}
}

func (t PageType) String() string {
	switch t {
	case Page4KiB:
		return "4KiB"
	case Page2MiB:
		return "2MiB"
	case Page1GiB:
		return "1GiB"
	default:
		return "invalid"
	}
}

// EntryFlags is the bit-flags portion of a page-table entry, bits 0-9 of the
// Sv39 wire format.
type EntryFlags uint16

const (
	Valid EntryFlags = 1 << iota
	Read
	Write
	Execute
	User
	Global
	Accessed
	Dirty
)

// IsLeaf reports whether a set of flags describes a leaf entry: any of
// Read, Write or Execute set, per spec.md's definition.
func (f EntryFlags) IsLeaf() bool {
	return f&(Read|Write|Execute) != 0
}

const (
	ppnShift = 10 // PTE bits 10-53 hold the PPN.
	ppnBits  = 44
	ppnMask  = (uint64(1) << ppnBits) - 1

	pageShift = 12 // physical/virtual addresses are shifted by 12 to form a PPN/VPN.

	vpnBitsPerLevel = 9
	vpnMask         = (uint64(1) << vpnBitsPerLevel) - 1

	entriesPerTable = 512
)

// PTE is one Sv39 page-table entry: a 44-bit physical page number and the
// flags byte, packed into the wire-format layout spec.md describes (bits
// 0-9 flags, bits 10-53 PPN, bits 54+ reserved).
type PTE uint64

// NewPTE packs a physical page number and flags into a page-table entry.
func NewPTE(ppn uint64, flags EntryFlags) PTE {
	return PTE((ppn&ppnMask)<<ppnShift | uint64(flags))
}

// Flags extracts the flag bits of the entry.
func (e PTE) Flags() EntryFlags { return EntryFlags(e & 0x3ff) }

// PPN extracts the physical page number the entry points at.
func (e PTE) PPN() uint64 { return (uint64(e) >> ppnShift) & ppnMask }

// PAddr returns the physical address a leaf entry points to.
func (e PTE) PAddr() PAddr { return PAddr(e.PPN() << pageShift) }

// IsValid reports whether the entry's Valid bit is set.
func (e PTE) IsValid() bool { return e.Flags()&Valid != 0 }

// IsLeaf reports whether the entry is a leaf (maps to a page) as opposed to
// a pointer to the next-level table.
func (e PTE) IsLeaf() bool { return e.IsValid() && e.Flags().IsLeaf() }

// PageTable is one level of the three-level Sv39 radix tree: 512 entries of
// 8 bytes each, same as the hardware format.
type PageTable [entriesPerTable]PTE

// vpn splits a virtual address into its three 9-bit virtual page numbers,
// vpn[2] being the top-level index.
func vpn(va VAddr) [3]uint64 {
	v := uint64(va) >> pageShift
	return [3]uint64{
		v & vpnMask,
		(v >> vpnBitsPerLevel) & vpnMask,
		(v >> (2 * vpnBitsPerLevel)) & vpnMask,
	}
}

// pageOffset returns the low bits of va below the page boundary for pages of
// the given type.
func pageOffset(va VAddr, t PageType) uint64 {
	return uint64(va) & (t.Size() - 1)
}
