// Package sched implements the kernel scheduler: a list of runnable
// tasks, round-robin Yield/YieldTo, and the blocked set a task enters
// while parked on an endpoint or a notification (spec.md §4.8).
//
// The scheduler holds no *capability.Task pointers of its own. A task's
// identity is its derivation-tree node id (capability.TaskID), and
// TaskByID resolves one by asking the tree for that node's payload --
// the tree, not the scheduler, is the single owner of a task's
// liveness.
package sched

import (
	"errors"

	"github.com/lunatix-kernel/lunatix/internal/capability"
	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/log"
)

// ErrNotRunnable is returned by YieldTo when the named task is not on the
// runnable list -- blocked, exited, or never registered.
var ErrNotRunnable = errors.New("sched: task is not runnable")

// Scheduler is a round-robin ready queue plus a blocked set, implementing
// internal/syscall's Scheduler interface.
type Scheduler struct {
	tree *dtree.Tree
	log  *log.Logger

	// runnable is the ready queue; index 0 is the current task. Yield
	// rotates it to the tail; YieldTo moves a specific task to the
	// front.
	runnable []capability.TaskID

	blocked map[capability.TaskID]struct{}
}

// New creates a Scheduler with no registered tasks. Add must be called
// once per task as it is derived (spec.md's scenarios derive a Task and
// immediately expect it schedulable).
func New(tree *dtree.Tree, logger *log.Logger) *Scheduler {
	return &Scheduler{
		tree:    tree,
		log:     logger,
		blocked: make(map[capability.TaskID]struct{}),
	}
}

// Add registers a newly derived task as runnable, at the tail of the
// queue.
func (s *Scheduler) Add(id capability.TaskID) {
	s.runnable = append(s.runnable, id)
	s.log.Debug("task added", "task", id)
}

// Current returns the task at the head of the runnable queue, or
// dtree.NoNode if nothing is runnable.
func (s *Scheduler) Current() capability.TaskID {
	if len(s.runnable) == 0 {
		return dtree.NoNode
	}

	return s.runnable[0]
}

// TaskByID resolves id to its *capability.Task via the derivation tree.
// It reports false for dtree.NoNode or a node whose payload is not a Task.
// An id whose node has been released makes the tree's Payload panic.
func (s *Scheduler) TaskByID(id capability.TaskID) (*capability.Task, bool) {
	if id == dtree.NoNode {
		return nil, false
	}

	payload := s.tree.Payload(id)
	if payload == nil {
		return nil, false
	}

	task, ok := payload.(*capability.Task)

	return task, ok
}

// Yield implements spec.md §4.8's Yield: the current task moves to the
// tail of the runnable queue.
func (s *Scheduler) Yield() {
	if len(s.runnable) < 2 {
		return
	}

	current := s.runnable[0]
	s.runnable = append(s.runnable[1:], current)

	s.log.Debug("yield", "from", current, "to", s.Current())
}

// YieldTo implements spec.md §4.8's YieldTo: target is moved to the head
// of the runnable queue and the current task to the tail, so target runs
// next. It returns ErrNotRunnable if target is not on the runnable
// queue (blocked or unknown).
func (s *Scheduler) YieldTo(target capability.TaskID) error {
	idx := s.indexOf(target)
	if idx < 0 {
		return ErrNotRunnable
	}

	current := s.runnable[0]
	if current == target {
		return nil
	}

	// Drop target from its current position; current is still at index
	// 0 of what remains, since idx != 0 here.
	rest := append(s.runnable[:idx:idx], s.runnable[idx+1:]...)

	s.runnable = append([]capability.TaskID{target}, append(rest[1:], current)...)

	s.log.Debug("yield_to", "from", current, "to", target)

	return nil
}

// Block removes id from the runnable queue and marks it blocked, per
// spec.md §4.8: "a task blocked on an endpoint or notification is
// removed from the runnable set."
func (s *Scheduler) Block(id capability.TaskID) {
	if idx := s.indexOf(id); idx >= 0 {
		s.runnable = append(s.runnable[:idx], s.runnable[idx+1:]...)
	}

	s.blocked[id] = struct{}{}

	s.log.Debug("task blocked", "task", id)
}

// MakeRunnable reinserts id at the tail of the runnable queue and clears
// its blocked state, per spec.md §4.8: "unblocking ... reinserts it."
func (s *Scheduler) MakeRunnable(id capability.TaskID) {
	delete(s.blocked, id)

	if s.indexOf(id) >= 0 {
		return
	}

	s.runnable = append(s.runnable, id)

	s.log.Debug("task made runnable", "task", id)
}

// Remove forgets id entirely: it is no longer runnable or blocked.
// Called on task exit and on a Task capability's destruction.
func (s *Scheduler) Remove(id capability.TaskID) {
	if idx := s.indexOf(id); idx >= 0 {
		s.runnable = append(s.runnable[:idx], s.runnable[idx+1:]...)
	}

	delete(s.blocked, id)

	s.log.Debug("task removed", "task", id)
}

// Blocked reports whether id is currently parked.
func (s *Scheduler) Blocked(id capability.TaskID) bool {
	_, ok := s.blocked[id]
	return ok
}

// Idle reports whether no task is runnable -- every task has exited,
// been destroyed, or is blocked.
func (s *Scheduler) Idle() bool {
	return len(s.runnable) == 0
}

func (s *Scheduler) indexOf(id capability.TaskID) int {
	for i, r := range s.runnable {
		if r == id {
			return i
		}
	}

	return -1
}
