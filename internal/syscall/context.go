package syscall

import (
	"github.com/lunatix-kernel/lunatix/internal/capability"
	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
)

// Scheduler is the subset of internal/sched's API the syscall handlers
// need: picking the next task to run, moving the calling task between
// runnable and blocked, and forgetting a task entirely on exit/destroy.
// Declared here rather than imported from internal/sched so this package
// does not depend on it; internal/kernel supplies the *sched.Scheduler
// and calls Dispatch.
type Scheduler interface {
	Current() capability.TaskID
	TaskByID(id capability.TaskID) (*capability.Task, bool)
	Yield()
	YieldTo(target capability.TaskID) error
	Block(id capability.TaskID)
	MakeRunnable(id capability.TaskID)
	Remove(id capability.TaskID)
}

// Console is the subset of internal/console's API debug_putc/debug_log
// need.
type Console interface {
	PutChar(b byte)
	Log(msg string)
}

// IrqController is the subset of internal/irq's PLIC stub irq_complete
// needs.
type IrqController interface {
	Complete(line int)
}

// Context bundles everything a syscall handler needs to resolve
// capability addresses and affect scheduler/console/IRQ-controller
// state. One Context is built per trap, scoped to the task that trapped
// in.
type Context struct {
	Tree *dtree.Tree

	// Task and TaskNode identify the task that issued the syscall;
	// TaskNode doubles as its capability.TaskID.
	Task     *capability.Task
	TaskNode capability.TaskID

	Sched         Scheduler
	Console       Console
	IrqController IrqController

	// Store backs every VSpace derived via DeriveFromMem; there is one
	// store for the whole machine; see spec.md §3.6.
	Store *sv39.TableStore

	// ResetRequested is set by the system_reset handler; internal/kernel
	// owns the bool and checks it after Dispatch returns, since
	// Schedule's three values (spec.md §4.7.1) have no slot for "reset
	// the machine."
	ResetRequested *bool
}

// resolve addresses raw, a CAddr in the calling task's CSpace, through
// capability.Resolve.
func (ctx *Context) resolve(raw uint64) (*capability.CSlot, Error) {
	root := ctx.Task.CSpace()
	if root == nil {
		return nil, InvalidOp
	}

	slot, err := capability.Resolve(root, capability.CAddr(raw))
	if err != nil {
		return nil, translate(err)
	}

	return slot, Success
}
