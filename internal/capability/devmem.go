package capability

import (
	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
)

// devmemState is a Devmem capability's shared identity: the physical MMIO
// range it grants the right to map.
type devmemState struct {
	base sv39.PAddr
	size uint64
}

// Devmem is the right to map a specific physical MMIO range into a VSpace
// (spec.md §3.1).
type Devmem struct {
	state *devmemState
}

// NewDevmem initializes a Devmem capability over [base, base+size), a
// construction point the kernel uses at boot to hand out platform MMIO
// ranges (e.g. the PLIC, the UART) the same way it hands out the initial
// Memory and IrqControl.
func NewDevmem(base sv39.PAddr, size uint64) *Devmem {
	return &Devmem{state: &devmemState{base: base, size: size}}
}

func (d *Devmem) Kind() Kind { return KindDevmem }

func (d *Devmem) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*Devmem)
	return ok && o.state == d.state
}

// MapInto maps the whole MMIO range into vspace starting at vaddr, one 4
// KiB page at a time.
func (d *Devmem) MapInto(vspace *VSpace, vaddr sv39.VAddr, flags sv39.EntryFlags) error {
	const pageSize = uint64(4096)

	for off := uint64(0); off < d.state.size; off += pageSize {
		page := &Page{state: &pageState{paddr: d.state.base + sv39.PAddr(off)}}
		if err := vspace.MapPage(page, vaddr+sv39.VAddr(off), flags, sv39.Page4KiB); err != nil {
			return err
		}
	}

	return nil
}
