package capability

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/dtree"
)

// irqControlState is IrqControl's shared identity: one claimed-or-not slot
// per interrupt line (SPEC_FULL.md §4 Supplemented Features): claiming an
// already-claimed line is rejected rather than silently handed out twice.
type irqControlState struct {
	claimed []bool
	bound   []*Irq
}

// IrqControl is a singleton holding one slot per interrupt line, each
// claimable to produce an Irq capability (spec.md §3.1).
type IrqControl struct {
	state *irqControlState
}

// NewIrqControl initializes the IrqControl singleton for a platform with
// numLines interrupt lines. Like Memory, this is a valid non-derived
// construction point (spec.md §4.6).
func NewIrqControl(numLines int) *IrqControl {
	return &IrqControl{state: &irqControlState{
		claimed: make([]bool, numLines),
		bound:   make([]*Irq, numLines),
	}}
}

// BoundIrq returns the Irq capability claimed for line, if any. The
// external-interrupt handler (spec.md §4.9: "looks up the Irq capability
// bound to it in IrqControl") uses this to find which Notification to
// signal when the platform interrupt controller reports line active.
func (c *IrqControl) BoundIrq(line int) (*Irq, bool) {
	if line < 0 || line >= len(c.state.bound) {
		return nil, false
	}

	irq := c.state.bound[line]

	return irq, irq != nil
}

func (c *IrqControl) Kind() Kind { return KindIrqControl }

func (c *IrqControl) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*IrqControl)
	return ok && o.state == c.state
}

// Claim atomically marks line's slot occupied and inserts an Irq
// capability bound to notification as a derivation of irqControlNode.
// Claiming an already-claimed line fails with ErrAlreadyClaimed and
// leaves state untouched.
func (c *IrqControl) Claim(tree *dtree.Tree, irqControlNode dtree.NodeID, line int, notification *Notification) (*Irq, dtree.NodeID, error) {
	if line < 0 || line >= len(c.state.claimed) {
		return nil, dtree.NoNode, fmt.Errorf("%w: interrupt line %d out of range", ErrInvalidCAddr, line)
	}

	if c.state.claimed[line] {
		return nil, dtree.NoNode, ErrAlreadyClaimed
	}

	c.state.claimed[line] = true

	irq := &Irq{state: &irqState{
		control:      c.state,
		line:         line,
		notification: notification,
	}}

	c.state.bound[line] = irq

	node := tree.InsertDerivation(irqControlNode, irq)

	return irq, node, nil
}

// irqState is an Irq capability's shared identity: the line it may
// acknowledge and the notification bound to it.
type irqState struct {
	control      *irqControlState
	line         int
	notification *Notification
}

// Irq is the right to acknowledge one interrupt line and the bound
// notification to fire on it (spec.md §3.1).
type Irq struct {
	state *irqState
}

func (i *Irq) Kind() Kind { return KindIrq }

func (i *Irq) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*Irq)
	return ok && o.state == i.state
}

// Line returns the interrupt line this Irq was claimed for.
func (i *Irq) Line() int { return i.state.line }

// Notification returns the notification signaled when this line fires.
func (i *Irq) Notification() *Notification { return i.state.notification }

// release frees the underlying line's claimed slot. Called by the per-kind
// teardown when the last copy of this Irq is destroyed.
func (i *Irq) release() {
	i.state.control.claimed[i.state.line] = false
	i.state.control.bound[i.state.line] = nil
}
