// Package dtree implements the capability derivation tree: an intrusive
// doubly-linked list of nodes carrying depth and a payload, plus the
// fixed-size cursor set that disciplines concurrent access to it.
//
// The tree has no pointers in the Go sense -- nodes live in a slice owned
// by the Tree and are addressed by NodeID, an index into that slice. This
// is the same trick the arena allocator uses for its free list
// (see internal/alloc) and for the same reason: a Go program has no way to
// thread an intrusive list through raw memory, but an index into a slice
// plays the same role without unsafe code or reference-counted pointers.
package dtree

// NodeID addresses a node in a Tree. The zero value addresses the root;
// use NoNode for "no node".
type NodeID int32

// NoNode is the sentinel for "no node", the tree's null pointer.
const NoNode NodeID = -1

// Payload is the capability-kind-specific data a tree node carries.
// CorrespondsTo defines what "being a copy" means for that kind: the same
// underlying Memory allocator, the same page frame, the same endpoint
// state, and so on. The tree itself has no notion of capability kinds; it
// only ever asks a payload whether it corresponds to another.
type Payload interface {
	CorrespondsTo(other Payload) bool
}

type node struct {
	inUse   bool
	prev    NodeID
	next    NodeID
	depth   int
	payload Payload
}

// Tree is a derivation tree: nodes addressed by NodeID, each aware of its
// siblings and its depth, plus the cursor set that guards access to them.
type Tree struct {
	nodes   []node
	free    []NodeID // free node slots, LIFO
	root    NodeID
	Cursors *CursorSet
}

// NewTree creates a tree with a single root node carrying rootPayload at
// depth 0, and a cursor set of the given capacity.
func NewTree(rootPayload Payload, cursorCapacity int) *Tree {
	t := &Tree{
		nodes: []node{{
			inUse:   true,
			prev:    NoNode,
			next:    NoNode,
			depth:   0,
			payload: rootPayload,
		}},
	}

	t.root = 0
	t.Cursors = NewCursorSet(t, cursorCapacity)

	return t
}

// Root returns the tree's root node.
func (t *Tree) Root() NodeID { return t.root }

// Payload returns the payload stored at id. It panics if id does not
// address a live node -- dereferencing a dangling NodeID is a kernel
// invariant violation, the same class of bug a dangling pointer would be.
func (t *Tree) Payload(id NodeID) Payload {
	t.checkLive(id)
	return t.nodes[id].payload
}

// Depth returns the depth of the node at id.
func (t *Tree) Depth(id NodeID) int {
	t.checkLive(id)
	return t.nodes[id].depth
}

// Next returns the node following id in list order, or NoNode.
func (t *Tree) Next(id NodeID) NodeID {
	t.checkLive(id)
	return t.nodes[id].next
}

// Prev returns the node preceding id in list order, or NoNode.
func (t *Tree) Prev(id NodeID) NodeID {
	t.checkLive(id)
	return t.nodes[id].prev
}

func (t *Tree) checkLive(id NodeID) {
	if id < 0 || int(id) >= len(t.nodes) || !t.nodes[id].inUse {
		panic("dtree: use of a node not linked into the tree")
	}
}

func (t *Tree) alloc(n node) NodeID {
	if len(t.free) > 0 {
		id := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.nodes[id] = n

		return id
	}

	t.nodes = append(t.nodes, n)

	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) release(id NodeID) {
	t.nodes[id] = node{inUse: false, prev: NoNode, next: NoNode}
	t.free = append(t.free, id)
}

// InsertCopy splices a new node immediately after src, at src's depth,
// sharing src's payload-defined identity (the payload is supplied by the
// caller, already aliased to the same underlying state as src's).
func (t *Tree) InsertCopy(src NodeID, payload Payload) NodeID {
	t.checkLive(src)

	newID := t.alloc(node{
		inUse:   true,
		depth:   t.nodes[src].depth,
		payload: payload,
	})

	t.spliceAfter(src, newID)

	return newID
}

// InsertDerivation splices a new node after the last copy of src, one
// depth deeper.
func (t *Tree) InsertDerivation(src NodeID, payload Payload) NodeID {
	t.checkLive(src)

	last := t.lastCopy(src)

	newID := t.alloc(node{
		inUse:   true,
		depth:   t.nodes[src].depth + 1,
		payload: payload,
	})

	t.spliceAfter(last, newID)

	return newID
}

func (t *Tree) spliceAfter(anchor, newID NodeID) {
	next := t.nodes[anchor].next

	t.nodes[newID].prev = anchor
	t.nodes[newID].next = next
	t.nodes[anchor].next = newID

	if next != NoNode {
		t.nodes[next].prev = newID
	}
}

// lastCopy walks forward from id while the following node's payload
// corresponds to id's, returning the last node in that run.
func (t *Tree) lastCopy(id NodeID) NodeID {
	cur := id

	for {
		next := t.nodes[cur].next
		if next == NoNode {
			return cur
		}

		if !t.nodes[next].payload.CorrespondsTo(t.nodes[id].payload) {
			return cur
		}

		cur = next
	}
}

// IsLastCopy reports whether id is the last node in its run of copies: no
// node following it corresponds to the same payload identity.
func (t *Tree) IsLastCopy(id NodeID) bool {
	t.checkLive(id)

	next := t.nodes[id].next
	if next == NoNode {
		return true
	}

	return !t.nodes[next].payload.CorrespondsTo(t.nodes[id].payload)
}

// HasDerivations reports whether id's run of copies is followed by at least
// one node one depth deeper.
func (t *Tree) HasDerivations(id NodeID) bool {
	t.checkLive(id)

	last := t.lastCopy(id)
	next := t.nodes[last].next

	return next != NoNode && t.nodes[next].depth == t.nodes[id].depth+1
}

// Destroy unlinks id from the tree. If id is the last copy of its payload
// identity, every node in the contiguous run following it whose depth is
// greater than id's -- its entire derivation subtree -- is destroyed too.
// It panics if any node about to be destroyed still has a cursor
// referencing it: per spec.md, cursors never outlive a syscall in this
// single-threaded kernel, so finding one here is a kernel bug.
//
// Destroyed pairs a removed node's id with its payload, so the caller can
// both run the payload's per-kind teardown and find any CSlot elsewhere in
// the system that still names the now-dead node.
//
// Last reports whether this removal is the one that actually ends the
// resource's life rather than just dropping one alias of it. It is false
// for id itself when another copy survives -- the caller must not reclaim
// anything in that case, since the surviving copy still names the same
// live resource. Every node beyond id in the slice belongs to a subtree
// being wiped out wholesale (id was the last copy), so Last is always true
// for them: the whole subtree's resources, including any copies within it,
// are gone together.
type Destroyed struct {
	Node    NodeID
	Payload Payload
	Last    bool
}

// Destroy returns the payloads of every node it removed, id first, so the
// caller (internal/capability) can run each payload's per-kind teardown.
func (t *Tree) Destroy(id NodeID) []Destroyed {
	t.checkLive(id)

	n := t.nodes[id]
	last := t.IsLastCopy(id)

	if t.Cursors.Referenced(id) {
		panic("dtree: destroy of a node with a live cursor reference")
	}

	destroyed := []Destroyed{{Node: id, Payload: n.payload, Last: last}}

	prev, next := n.prev, n.next

	if last {
		cur := next
		for cur != NoNode && t.nodes[cur].depth > n.depth {
			if t.Cursors.Referenced(cur) {
				panic("dtree: destroy of a derivation subtree with a live cursor reference")
			}

			destroyed = append(destroyed, Destroyed{Node: cur, Payload: t.nodes[cur].payload, Last: true})

			victim := cur
			cur = t.nodes[cur].next

			t.release(victim)
		}

		next = cur
	}

	if prev != NoNode {
		t.nodes[prev].next = next
	}

	if next != NoNode {
		t.nodes[next].prev = prev
	}

	t.release(id)

	return destroyed
}
