package capability

import (
	"github.com/lunatix-kernel/lunatix/internal/dtree"
)

// asidControlState is AsidControl's shared identity: the next ASID to
// hand out. Sv39/Sv48 ASIDs are 16 bits wide on RISC-V; this kernel has no
// need to recycle them within the scope of the scenarios it runs.
type asidControlState struct {
	next int
	max  int
}

// AsidControl is the right to assign an ASID to a VSpace (spec.md §3.1).
type AsidControl struct {
	state *asidControlState
}

// NewAsidControl initializes the AsidControl singleton, handing out ASIDs
// in [0, max).
func NewAsidControl(max int) *AsidControl {
	return &AsidControl{state: &asidControlState{max: max}}
}

func (a *AsidControl) Kind() Kind { return KindAsidControl }

func (a *AsidControl) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*AsidControl)
	return ok && o.state == a.state
}

// Assign hands the next available ASID to vspace.
func (a *AsidControl) Assign(vspace *VSpace) error {
	if a.state.next >= a.state.max {
		return ErrNoMem
	}

	vspace.assignASID(a.state.next)
	a.state.next++

	return nil
}
