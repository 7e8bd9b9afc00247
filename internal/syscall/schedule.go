package syscall

// Schedule is the outer trap-dispatch loop's instruction for which frame
// to load next, per spec.md §4.7.1 step 7. Blocking syscalls (send, recv,
// wait_on with nothing pending, yield) hand control to the scheduler
// internally and report Keep: the scheduler's own notion of "current
// task" has already moved on to whichever task is now runnable, so the
// outer loop always resumes "the current task" regardless of whether
// that is the same task that trapped in. Stop and RunInit are reserved
// for the two cases spec.md calls out by name: a task exiting, and the
// kernel's own boot handoff to the init task.
type Schedule int

const (
	Keep Schedule = iota
	RunInit
	Stop
)
