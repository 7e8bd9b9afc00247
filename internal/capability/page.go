package capability

import (
	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
)

// pageState is a Page capability's shared identity: the physical frame it
// names. Copies of a Page track the same frame; each mapping site is
// recorded separately in the owning VSpace, per spec.md §4.6.
type pageState struct {
	memory *memoryState
	offset int
	paddr  sv39.PAddr
}

// Page is one 4 KiB page frame that may be mapped into one or more
// VSpaces (spec.md §3.1).
type Page struct {
	state *pageState
}

func (p *Page) Kind() Kind { return KindPage }

func (p *Page) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*Page)
	return ok && o.state == p.state
}

// PAddr returns the physical address of the frame this Page names.
func (p *Page) PAddr() sv39.PAddr { return p.state.paddr }
