package capability

import (
	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/trapframe"
)

// TaskID identifies a Task capability by its derivation-tree node. Unlike
// most kinds, tasks are not meaningfully copied -- a TaskID names exactly
// one schedulable thread -- so the tree node id doubles as a stable
// identity the scheduler and endpoint/notification queues can reference
// without holding a *Task pointer directly.
type TaskID = dtree.NodeID

// noTask is the "no task" sentinel used by Endpoint's and Notification's
// queues.
const noTask = dtree.NoNode

// waitQueue is the minimal interface a capability the task is blocked on
// exposes to scrub the task's TaskID back out of its queue, without Task
// needing to know whether it parked in an Endpoint's send/recv set or a
// Notification's waiter slot.
type waitQueue interface {
	CancelWait(task TaskID)
}

type taskState struct {
	memory *memoryState
	offset int

	id TaskID

	frame      *trapframe.Frame
	vspace     *VSpace
	cspace     *CSpace
	ipcBuffer  *Page
	running    bool

	blockedOn waitQueue
}

// Task is a schedulable thread: trap frame, VSpace, CSpace and wait state
// (spec.md §3.1).
type Task struct {
	state *taskState
}

func (t *Task) Kind() Kind { return KindTask }

func (t *Task) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*Task)
	return ok && o.state == t.state
}

// Frame returns the task's trap frame.
func (t *Task) Frame() *trapframe.Frame { return t.state.frame }

// VSpace returns the task's assigned address space, or nil if none yet.
func (t *Task) VSpace() *VSpace { return t.state.vspace }

// CSpace returns the task's assigned capability space, or nil if none yet.
func (t *Task) CSpace() *CSpace { return t.state.cspace }

// SetRunning marks whether the task is the one currently executing,
// guarding AssignVSpace/AssignCSpace/AssignControlRegisters per spec.md
// §4.6 ("Refuses if the task is currently executing").
func (t *Task) SetRunning(running bool) { t.state.running = running }

// IsRunning reports whether the task is currently executing.
func (t *Task) IsRunning() bool { return t.state.running }

// Block records that the task has parked itself in q's wait queue,
// blocked until q's own rendezvous or signal unblocks it.
func (t *Task) Block(q waitQueue) {
	t.state.blockedOn = q
}

// Unblock forgets the queue the task was parked in, without touching
// it. Called once a wait has ended through the queue's own delivery
// path (a matching rendezvous, a signal), so CancelBlock has nothing
// left to scrub.
func (t *Task) Unblock() {
	t.state.blockedOn = nil
}

// CancelBlock scrubs the task out of whichever queue it is currently
// parked in, if any. Per spec.md §5, destroying a capability a task is
// blocked on must not leave that task's id dangling in the destroyed
// capability's wait queue; called on a task's own destruction, since
// the task itself is about to be freed regardless of what it was
// waiting on.
func (t *Task) CancelBlock() {
	if t.state.blockedOn == nil {
		return
	}

	t.state.blockedOn.CancelWait(t.state.id)
	t.state.blockedOn = nil
}

// AssignVSpace installs vspace as the task's address space.
func (t *Task) AssignVSpace(vspace *VSpace) error {
	if t.state.running {
		return ErrTaskRunning
	}

	t.state.vspace = vspace

	return nil
}

// AssignCSpace installs cspace as the task's capability space.
func (t *Task) AssignCSpace(cspace *CSpace) error {
	if t.state.running {
		return ErrTaskRunning
	}

	t.state.cspace = cspace

	return nil
}

// IPCBuffer returns the page assigned to carry message data beyond what
// fits in the trap frame's argument registers, or nil if none yet.
func (t *Task) IPCBuffer() *Page { return t.state.ipcBuffer }

// AssignIPCBuffer installs page as the task's IPC buffer (spec.md §6's
// assign_ipc_buffer): a per-task message buffer distinct from the trap
// frame's register file.
func (t *Task) AssignIPCBuffer(page *Page) error {
	if t.state.running {
		return ErrTaskRunning
	}

	t.state.ipcBuffer = page

	return nil
}

// AssignControlRegisters sets the task's initial pc, sp, gp and tp, the
// registers a fresh task needs populated before it can first run.
func (t *Task) AssignControlRegisters(pc, sp, gp, tp uint64) error {
	if t.state.running {
		return ErrTaskRunning
	}

	const (
		regSP = 2
		regGP = 3
		regTP = 4
	)

	t.state.frame.PC = pc
	t.state.frame.Regs[regSP] = sp
	t.state.frame.Regs[regGP] = gp
	t.state.frame.Regs[regTP] = tp

	return nil
}
