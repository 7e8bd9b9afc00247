package capability

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/alloc"
	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
	"github.com/lunatix-kernel/lunatix/internal/trapframe"
)

// memoryState is a Memory capability's shared, aliasable identity: the
// physical region it owns and the boundary-tag allocator bookkeeping what
// has been carved out of it. Copies of a Memory capability share this
// state; destroying the last copy frees the whole allocator.
type memoryState struct {
	base  sv39.PAddr
	alloc *alloc.Allocator
}

// Memory owns a contiguous physical region and an allocator over it; it is
// the root of all derivations (spec.md §3.1).
type Memory struct {
	state *memoryState
}

// NewMemory initializes a fresh Memory capability over a region of size
// bytes starting at base. Like NewIrqControl and NewAsidControl, it
// builds a capability that is not derived from another one.
func NewMemory(base sv39.PAddr, size int) *Memory {
	return &Memory{state: &memoryState{
		base:  base,
		alloc: alloc.NewAllocator(size),
	}}
}

func (m *Memory) Kind() Kind { return KindMemory }

func (m *Memory) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*Memory)
	return ok && o.state == m.state
}

// Base returns the physical address this Memory's region starts at.
func (m *Memory) Base() sv39.PAddr { return m.state.base }

// byte costs charged against a Memory's allocator for each derived kind's
// bookkeeping. These mirror the object sizes spec.md §4.6 names without
// this repository needing to reproduce Rust's sizeof for each struct.
const (
	pageFrameCost  = 4096
	vspaceRootCost = 4096
	taskStateCost  = 512
	endpointCost   = 64
	notifCost      = 16
)

func cspaceCost(nbits uint) int {
	const slotCost = 32
	return slotCost * (1 << nbits)
}

// DeriveResult bundles the newly constructed capability with the tree node
// it was inserted as, so the caller can thread the node id back through a
// CSlot.
type DeriveResult struct {
	Cap  Capability
	Node dtree.NodeID
}

// deriveCharge carves layout out of m's allocator and returns the content
// offset to later Deallocate, translating an allocator failure into the
// user-visible NoMem error.
func (m *Memory) deriveCharge(size int) (int, error) {
	off, err := m.state.alloc.Allocate(alloc.Layout{Size: size, Align: 8, Fill: alloc.Zeroed})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoMem, err)
	}

	return off, nil
}

// DerivePage carves out one page frame and inserts it as a derivation of
// memNode in tree.
func (m *Memory) DerivePage(tree *dtree.Tree, memNode dtree.NodeID) (*Page, dtree.NodeID, error) {
	// A page frame must start on a page boundary for sv39.Map to accept it.
	off, err := m.state.alloc.Allocate(alloc.Layout{Size: pageFrameCost, Align: pageFrameCost, Fill: alloc.Zeroed})
	if err != nil {
		return nil, dtree.NoNode, fmt.Errorf("%w: %v", ErrNoMem, err)
	}

	page := &Page{state: &pageState{
		memory: m.state,
		offset: off,
		paddr:  m.state.base + sv39.PAddr(off),
	}}

	node := tree.InsertDerivation(memNode, page)

	return page, node, nil
}

// DeriveCSpace carves out a slot array of size 2^nbits and inserts it as a
// derivation of memNode.
func (m *Memory) DeriveCSpace(tree *dtree.Tree, memNode dtree.NodeID, nbits uint) (*CSpace, dtree.NodeID, error) {
	off, err := m.deriveCharge(cspaceCost(nbits))
	if err != nil {
		return nil, dtree.NoNode, err
	}

	cs := &CSpace{state: &cspaceState{
		memory: m.state,
		slots:  make([]CSlot, 1<<nbits),
		nbits:  nbits,
		offset: off,
	}}

	node := tree.InsertDerivation(memNode, cs)

	return cs, node, nil
}

// DeriveVSpace carves out a root page-table frame, registers it with
// store, and inserts the new VSpace as a derivation of memNode.
func (m *Memory) DeriveVSpace(tree *dtree.Tree, memNode dtree.NodeID, store *sv39.TableStore) (*VSpace, dtree.NodeID, error) {
	off, err := m.deriveCharge(vspaceRootCost)
	if err != nil {
		return nil, dtree.NoNode, err
	}

	root := m.state.base + sv39.PAddr(off)
	store.Adopt(root)

	vs := &VSpace{state: &vspaceState{
		memory:   m.state,
		offset:   off,
		root:     root,
		store:    store,
		mappings: make(map[sv39.VAddr]mapping),
		asid:     noASID,
	}}

	node := tree.InsertDerivation(memNode, vs)

	return vs, node, nil
}

// DeriveTask carves out a task's state block and inserts the new Task as a
// derivation of memNode.
func (m *Memory) DeriveTask(tree *dtree.Tree, memNode dtree.NodeID) (*Task, dtree.NodeID, error) {
	off, err := m.deriveCharge(taskStateCost)
	if err != nil {
		return nil, dtree.NoNode, err
	}

	t := &Task{state: &taskState{
		memory: m.state,
		offset: off,
		frame:  trapframe.NewFrame(),
	}}

	node := tree.InsertDerivation(memNode, t)
	t.state.id = node

	return t, node, nil
}

// DeriveEndpoint carves out an endpoint's shared state and inserts it.
func (m *Memory) DeriveEndpoint(tree *dtree.Tree, memNode dtree.NodeID) (*Endpoint, dtree.NodeID, error) {
	off, err := m.deriveCharge(endpointCost)
	if err != nil {
		return nil, dtree.NoNode, err
	}

	ep := &Endpoint{state: &endpointState{memory: m.state, offset: off}}
	ep.state.sendSet = noTask
	ep.state.recvSet = noTask

	node := tree.InsertDerivation(memNode, ep)

	return ep, node, nil
}

// DeriveNotification carves out a notification's shared state and inserts
// it.
func (m *Memory) DeriveNotification(tree *dtree.Tree, memNode dtree.NodeID) (*Notification, dtree.NodeID, error) {
	off, err := m.deriveCharge(notifCost)
	if err != nil {
		return nil, dtree.NoNode, err
	}

	n := &Notification{state: &notificationState{memory: m.state, offset: off}}
	n.state.waiter = noTask

	node := tree.InsertDerivation(memNode, n)

	return n, node, nil
}

// reclaim returns a derived kind's bookkeeping bytes to the owning
// Memory's allocator. Every per-kind teardown in destroy.go calls this.
func reclaim(mem *memoryState, offset int) {
	if err := mem.alloc.Deallocate(offset); err != nil {
		panic(fmt.Sprintf("capability: reclaim: %v", err))
	}
}
