// Package irq models the platform interrupt controller spec.md §4.9
// calls an "external collaborator": on real hardware a PLIC, here an
// in-memory stub with the same shape -- lines can be raised, the kernel
// reads which one is pending, and irq_complete re-arms it. Without this
// stub, scenario S6 (claim, raise, unblock, complete, re-arm) has no way
// to exist without real hardware.
package irq

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/capability"
	"github.com/lunatix-kernel/lunatix/internal/log"
)

type lineState struct {
	armed   bool
	pending bool
}

// Controller is the PLIC model: one line state per interrupt source, plus
// the IrqControl singleton so a raised line can be traced to its bound
// Irq and Notification.
type Controller struct {
	lines   []lineState
	control *capability.IrqControl
	log     *log.Logger
}

// New creates a Controller for a platform with numLines interrupt
// sources, all initially armed, bound to control -- the same
// capability.IrqControl singleton irq_control_claim hands out Irq
// capabilities from.
func New(numLines int, control *capability.IrqControl, logger *log.Logger) *Controller {
	lines := make([]lineState, numLines)
	for i := range lines {
		lines[i].armed = true
	}

	return &Controller{lines: lines, control: control, log: logger}
}

// Raise simulates the platform hardware asserting line. A disarmed line
// (already pending, or mid-service awaiting irq_complete) is a no-op:
// real PLICs coalesce repeated assertions of a line already latched.
func (c *Controller) Raise(line int) error {
	if line < 0 || line >= len(c.lines) {
		return fmt.Errorf("irq: line %d out of range", line)
	}

	if !c.lines[line].armed {
		return nil
	}

	c.lines[line].pending = true
	c.lines[line].armed = false

	c.log.Debug("line raised", "line", line)

	return nil
}

// Delivery is what the kernel's interrupt handler needs to signal the
// right Notification: the claimed Irq bound to the line that fired.
type Delivery struct {
	Line int
	Irq  *capability.Irq
}

// ActiveLine reports the lowest-numbered pending line still claimed in
// IrqControl, per spec.md §4.9's "read the active line, look up the Irq
// capability bound to it." A pending line with no claim bound (claimed
// by nobody, or already destroyed) is dropped silently -- there is
// nothing left to signal.
func (c *Controller) ActiveLine() (Delivery, bool) {
	for line := range c.lines {
		if !c.lines[line].pending {
			continue
		}

		irqCap, ok := c.control.BoundIrq(line)
		if !ok {
			c.lines[line].pending = false
			c.lines[line].armed = true

			continue
		}

		return Delivery{Line: line, Irq: irqCap}, true
	}

	return Delivery{}, false
}

// Complete implements internal/syscall's IrqController interface: it
// clears the pending flag and re-arms the line, per spec.md §4.9's
// "irq_complete ... informs the controller that the line is done and
// re-arms it."
func (c *Controller) Complete(line int) {
	if line < 0 || line >= len(c.lines) {
		return
	}

	c.lines[line].pending = false
	c.lines[line].armed = true

	c.log.Debug("line completed", "line", line)
}
