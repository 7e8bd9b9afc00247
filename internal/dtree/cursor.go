package dtree

import "fmt"

// CursorState is the state of one cursor slot, mirroring spec.md §4.5.
type CursorState int

const (
	// Free is an unallocated cursor slot.
	Free CursorState = iota
	// Allocated is a slot reserved by GetFreeCursor but not yet pointed at
	// a node.
	Allocated
	// Inactive is a slot selected onto a node but not currently holding a
	// live reference to it.
	Inactive
	// Shared is a slot holding a live shared reference to its node.
	Shared
	// Exclusive is a slot holding a live exclusive reference to its node.
	Exclusive
)

// CursorHandle addresses one slot in a CursorSet.
type CursorHandle int

type cursor struct {
	state CursorState
	node  NodeID
}

// CursorSet is the fixed-size array of cursors guarding access to a Tree.
// Its discipline gives the tree the effective semantics of a
// reader-writer lock without any runtime locking: because the kernel is
// single-threaded, invariants are simply checked at acquisition time
// instead of blocking.
type CursorSet struct {
	tree    *Tree
	cursors []cursor
}

// NewCursorSet creates a cursor set of the given fixed capacity, all slots
// initially Free.
func NewCursorSet(tree *Tree, capacity int) *CursorSet {
	return &CursorSet{
		tree:    tree,
		cursors: make([]cursor, capacity),
	}
}

func (cs *CursorSet) checkHandle(h CursorHandle) {
	if h < 0 || int(h) >= len(cs.cursors) {
		panic(fmt.Sprintf("dtree: cursor handle %d out of range", h))
	}
}

// GetFreeCursor reserves the first Free slot, transitioning it to
// Allocated. It reports false if the cursor set is exhausted.
func (cs *CursorSet) GetFreeCursor() (CursorHandle, bool) {
	for i := range cs.cursors {
		if cs.cursors[i].state == Free {
			cs.cursors[i].state = Allocated
			cs.cursors[i].node = NoNode

			return CursorHandle(i), true
		}
	}

	return 0, false
}

// SelectNode moves an Allocated cursor to Inactive, pointed at node, after
// verifying that node belongs to this cursor set's tree.
func (cs *CursorSet) SelectNode(h CursorHandle, node NodeID) error {
	cs.checkHandle(h)

	if int(node) < 0 || int(node) >= len(cs.tree.nodes) || !cs.tree.nodes[node].inUse {
		return fmt.Errorf("dtree: select_node: node %d does not belong to this tree", node)
	}

	c := &cs.cursors[h]
	if c.state != Allocated {
		return fmt.Errorf("dtree: select_node: cursor %d is not Allocated", h)
	}

	c.state = Inactive
	c.node = node

	return nil
}

// GetShared returns true and transitions h to Shared iff no cursor in the
// set holds an Exclusive reference to the same node.
func (cs *CursorSet) GetShared(h CursorHandle) bool {
	cs.checkHandle(h)

	c := &cs.cursors[h]
	if c.state != Inactive {
		return false
	}

	for i := range cs.cursors {
		if CursorHandle(i) == h {
			continue
		}

		if cs.cursors[i].node == c.node && cs.cursors[i].state == Exclusive {
			return false
		}
	}

	c.state = Shared

	return true
}

// GetExclusive returns true and transitions h to Exclusive iff no other
// active (Shared or Exclusive) cursor in the set references the same node.
func (cs *CursorSet) GetExclusive(h CursorHandle) bool {
	cs.checkHandle(h)

	c := &cs.cursors[h]
	if c.state != Inactive {
		return false
	}

	for i := range cs.cursors {
		if CursorHandle(i) == h {
			continue
		}

		other := cs.cursors[i]
		if other.node == c.node && (other.state == Shared || other.state == Exclusive) {
			return false
		}
	}

	c.state = Exclusive

	return true
}

// Release returns a Shared or Exclusive cursor to Inactive.
func (cs *CursorSet) Release(h CursorHandle) {
	cs.checkHandle(h)

	c := &cs.cursors[h]
	if c.state != Shared && c.state != Exclusive {
		panic(fmt.Sprintf("dtree: release of cursor %d not holding a reference", h))
	}

	c.state = Inactive
}

// FreeCursor returns an Inactive cursor to Free. It panics if the handle's
// node still has a live Shared or Exclusive cursor anywhere in the set --
// a node's drop must first verify no cursor references it.
func (cs *CursorSet) FreeCursor(h CursorHandle) {
	cs.checkHandle(h)

	c := &cs.cursors[h]
	if c.state != Inactive && c.state != Allocated {
		panic(fmt.Sprintf("dtree: free of cursor %d still holding a reference", h))
	}

	c.state = Free
	c.node = NoNode
}

// Referenced reports whether any cursor holds a Shared or Exclusive
// reference to node. internal/dtree.Tree.Destroy uses this to enforce that
// destroying a referenced node is a kernel bug, per spec.md §8.
func (cs *CursorSet) Referenced(node NodeID) bool {
	for i := range cs.cursors {
		c := cs.cursors[i]
		if c.node == node && (c.state == Shared || c.state == Exclusive) {
			return true
		}
	}

	return false
}
