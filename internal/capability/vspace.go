package capability

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/log"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
)

// noASID marks a VSpace that has not yet been assigned an address-space
// identifier by an AsidControl capability.
const noASID = -1

type mapping struct {
	page     *Page
	pageType sv39.PageType
}

// vspaceState is a VSpace capability's shared identity: its root page
// table and the set of mappings installed in it. Copies of a VSpace share
// (and can both extend) the same address space.
type vspaceState struct {
	memory   *memoryState
	offset   int
	root     sv39.PAddr
	store    *sv39.TableStore
	mappings map[sv39.VAddr]mapping
	asid     int
}

// VSpace is the root of a Sv39 page-table hierarchy; it encapsulates an
// address-space identifier (spec.md §3.1).
type VSpace struct {
	state *vspaceState
}

func (v *VSpace) Kind() Kind { return KindVSpace }

func (v *VSpace) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*VSpace)
	return ok && o.state == v.state
}

// Root returns the physical address of this address space's root page
// table.
func (v *VSpace) Root() sv39.PAddr { return v.state.root }

// ASID returns the assigned address-space identifier, or -1 if none has
// been assigned yet.
func (v *VSpace) ASID() int { return v.state.asid }

// MapPage translates page_cap into a page-table entry at vaddr with the
// given flags, tracking the mapping so UnmapPage can find it later
// (spec.md §4.6).
func (v *VSpace) MapPage(page *Page, vaddr sv39.VAddr, flags sv39.EntryFlags, pageType sv39.PageType) error {
	if _, exists := v.state.mappings[vaddr]; exists {
		return ErrMappingExists
	}

	if err := sv39.Map(v.state.store, v.state.root, vaddr, page.PAddr(), flags, pageType); err != nil {
		return fmt.Errorf("capability: map_page: %w", err)
	}

	v.state.mappings[vaddr] = mapping{page: page, pageType: pageType}

	return nil
}

// UnmapPage clears the mapping at vaddr if one exists.
func (v *VSpace) UnmapPage(logger *log.Logger, vaddr sv39.VAddr) error {
	m, ok := v.state.mappings[vaddr]
	if !ok {
		return ErrNotMapped
	}

	sv39.Unmap(v.state.store, logger, v.state.root, vaddr, m.page.PAddr())
	delete(v.state.mappings, vaddr)

	return nil
}

// Translate resolves vaddr through this address space's page tables.
func (v *VSpace) Translate(vaddr sv39.VAddr) sv39.PAddr {
	return sv39.Translate(v.state.store, v.state.root, vaddr)
}

// assignASID is called by AsidControl.Assign.
func (v *VSpace) assignASID(asid int) {
	v.state.asid = asid
}
