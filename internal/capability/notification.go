package capability

import "github.com/lunatix-kernel/lunatix/internal/dtree"

// notificationState is a Notification capability's shared identity: its
// signal word and the single task waiting on it.
type notificationState struct {
	memory *memoryState
	offset int

	word   uint64
	waiter TaskID
}

// Notification is a single-word set-if-not-set signal, the wakeup target
// for IRQs and async events (spec.md §3.1).
type Notification struct {
	state *notificationState
}

func (n *Notification) Kind() Kind { return KindNotification }

func (n *Notification) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*Notification)
	return ok && o.state == n.state
}

// WaitResult reports the outcome of WaitOn.
type WaitResult struct {
	Delivered bool
	Bits      uint64
}

// Signal sets bits in the notification's word. If a task is waiting, it
// is returned so the caller can unblock it with the signaled bits and
// clear the word; otherwise the bits accumulate for the next WaitOn.
func (n *Notification) Signal(bits uint64) (waiter TaskID, unblocked bool, delivered uint64) {
	n.state.word |= bits

	if n.state.waiter == noTask || n.state.word == 0 {
		return noTask, false, 0
	}

	waiter = n.state.waiter
	n.state.waiter = noTask
	delivered = n.state.word
	n.state.word = 0

	return waiter, true, delivered
}

// WaitOn returns the current word and clears it. If the word is zero, the
// caller must block -- WaitOn records it as the waiter and returns
// Delivered=false.
func (n *Notification) WaitOn(task TaskID) WaitResult {
	if n.state.word != 0 {
		bits := n.state.word
		n.state.word = 0

		return WaitResult{Delivered: true, Bits: bits}
	}

	n.state.waiter = task

	return WaitResult{Delivered: false}
}

// CancelWait clears task as the waiter, if it is one. Called via
// Task.CancelBlock when task itself is being destroyed, so its id does
// not linger as the waiter after it is gone.
func (n *Notification) CancelWait(task TaskID) {
	if n.state.waiter == task {
		n.state.waiter = noTask
	}
}

// Waiting reports the task currently parked on the notification, or
// noTask if none. Used when the notification itself is destroyed, to
// unblock whoever was waiting on it with an error return (spec.md §5).
func (n *Notification) Waiting() TaskID {
	return n.state.waiter
}
