package capability

import "github.com/lunatix-kernel/lunatix/internal/dtree"

// Destroy implements spec.md §4.6's destroy(cap) operation. It unlinks
// slot's occurrence from the tree -- cascading through the whole
// derivation subtree if slot held the last copy -- and runs each removed
// payload's per-kind teardown: returning bookkeeping bytes to the owning
// Memory, releasing a claimed interrupt line, and so on.
//
// slot is cleared on return. The full cascade is also returned so the
// caller can do the bookkeeping this package cannot: clearing any other
// CSlot elsewhere in the system that still names one of the destroyed
// nodes, and unblocking any task parked on a destroyed Endpoint or
// Notification (spec.md §5: "destroying a capability a task is blocked on
// unblocks the task with an error return").
//
// Only nodes the cascade marks Last get torn down: a copy's own node can
// appear in the cascade without being the resource's last reference, in
// which case the occurrence is just unlinked. Copy aliases the same
// capability value into two tree nodes (see copy.go), so a wholesale
// subtree wipe can also name the identical payload twice; teardown is
// deduplicated by payload identity so the same bytes are never reclaimed
// twice.
func Destroy(tree *dtree.Tree, slot *CSlot) []dtree.Destroyed {
	if slot.IsUninit() {
		return nil
	}

	cascade := tree.Destroy(slot.Node)

	seen := make(map[dtree.Payload]bool, len(cascade))

	for _, d := range cascade {
		if !d.Last || seen[d.Payload] {
			continue
		}

		seen[d.Payload] = true

		teardown(d.Payload)
	}

	slot.Cap = nil
	slot.Node = dtree.NoNode

	return cascade
}

// teardown runs the per-kind bookkeeping a destroyed payload requires.
// Memory, IrqControl, Devmem and AsidControl are valid construction points
// rather than derived kinds, so destroying one of them (were the kernel to
// ever do so) returns nothing to reclaim.
func teardown(payload dtree.Payload) {
	switch cap := payload.(type) {
	case *Page:
		reclaim(cap.state.memory, cap.state.offset)
	case *CSpace:
		reclaim(cap.state.memory, cap.state.offset)
	case *VSpace:
		reclaim(cap.state.memory, cap.state.offset)
	case *Task:
		reclaim(cap.state.memory, cap.state.offset)
	case *Endpoint:
		reclaim(cap.state.memory, cap.state.offset)
	case *Notification:
		reclaim(cap.state.memory, cap.state.offset)
	case *Irq:
		cap.release()
	}
}
