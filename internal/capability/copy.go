package capability

import "github.com/lunatix-kernel/lunatix/internal/dtree"

// Copy implements spec.md §4.6's copy(src, dst) operation: dst must be
// Uninit. The new occurrence aliases src's capability -- Cap is the same
// interface value, sharing the same underlying state -- and is inserted
// into the tree as a copy of srcNode. On success dst is populated with the
// aliased capability and its new node id; on failure dst is left
// untouched.
func Copy(tree *dtree.Tree, srcNode dtree.NodeID, src Capability, dst *CSlot) error {
	if !dst.IsUninit() {
		return ErrOccupiedSlot
	}

	node := tree.InsertCopy(srcNode, src)

	dst.Cap = src
	dst.Node = node

	return nil
}
