// Package kernel wires together the derivation tree, scheduler, syscall
// dispatcher, console and interrupt controller into the machine
// described by spec.md §2's "Flow" and booted per §6's boot contract.
// Construction plus a Run/Step instruction-cycle loop plays the same
// role here that it would for a simulated CPU -- except there is no
// user-code instruction interpreter: this kernel's "Step" dispatches one
// syscall already loaded into the current task's trap frame, the same
// way a test or a cmd/lunatix scenario drives it one canned syscall at a
// time instead of fetching and decoding real machine code.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/alloc"
	"github.com/lunatix-kernel/lunatix/internal/capability"
	"github.com/lunatix-kernel/lunatix/internal/dtree"
	"github.com/lunatix-kernel/lunatix/internal/irq"
	"github.com/lunatix-kernel/lunatix/internal/log"
	"github.com/lunatix-kernel/lunatix/internal/sched"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
	"github.com/lunatix-kernel/lunatix/internal/syscall"
)

// Well-known slots in the init task's root CSpace, populated by Boot. A
// real _start has no ELF loader to hand the init task anything else, so
// these are the fixed set of capabilities spec.md §6's boot contract
// implies the init task starts with: its own Memory, and the two other
// non-derived construction points (IrqControl, AsidControl).
const (
	SlotMemory      = 0
	SlotIrqControl  = 1
	SlotAsidControl = 2
	SlotSelf        = 3 // the init task's own Task capability, for yield_to/destroy targeting itself's children later.

	// InitCSpaceBits sizes the init CSpace generously: boot hands out a
	// handful of well-known slots, and every scenario derives more
	// underneath it.
	InitCSpaceBits = 6
)

// Config parameterizes Boot with the boot contract's physical memory
// range and platform shape (spec.md §6's phys_mem_start/phys_mem_end,
// plus how many interrupt lines and ASIDs the platform has).
type Config struct {
	PhysMemStart sv39.PAddr
	PhysMemEnd   sv39.PAddr

	NumIrqLines int
	MaxASID     int

	// PageTableFrames bounds how many Sv39 page-table nodes the
	// platform's table store can allocate; it is carved out of the same
	// physical range rather than a separate pool, mirroring how a real
	// kernel's direct-mapped page-table allocator draws from general
	// memory.
	PageTableFrames int

	Console syscall.Console
	Logger  *log.Logger
}

// Kernel is the fully wired machine: derivation tree, scheduler, syscall
// dispatch context, and the collaborators (console, interrupt
// controller) spec.md §4.9 and §6 name as external to the kernel proper.
type Kernel struct {
	Tree  *dtree.Tree
	Sched *sched.Scheduler
	Store *sv39.TableStore

	IrqControl *capability.IrqControl
	Irq        *irq.Controller
	Console    syscall.Console

	InitTask   *capability.Task
	InitCSpace *capability.CSpace

	resetRequested bool
	log            *log.Logger
}

// Boot constructs the machine per spec.md §6: a root Memory over
// [cfg.PhysMemStart, cfg.PhysMemEnd), an IrqControl and AsidControl
// singleton, and one init Task with a CSpace holding those three as
// spec.md calls "the only valid starting points." The init task has no
// VSpace or control registers yet -- assigning those is itself done via
// syscalls the init task issues against its own CSpace, per S1.
func Boot(cfg Config) (*Kernel, error) {
	if cfg.PhysMemEnd <= cfg.PhysMemStart {
		return nil, fmt.Errorf("kernel: empty physical memory range [%#x, %#x)", cfg.PhysMemStart, cfg.PhysMemEnd)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.DefaultLogger()
	}

	size := int(cfg.PhysMemEnd - cfg.PhysMemStart)
	mem := capability.NewMemory(cfg.PhysMemStart, size)
	tree := dtree.NewTree(mem, 256)
	root := tree.Root()

	irqControl := capability.NewIrqControl(cfg.NumIrqLines)
	irqControlNode := tree.InsertDerivation(root, irqControl)

	asidControl := capability.NewAsidControl(cfg.MaxASID)
	tree.InsertDerivation(root, asidControl)

	tableArena := alloc.NewArena(cfg.PageTableFrames, int(sv39.Page4KiB.Size()))
	store := sv39.NewTableStore(tableArena, cfg.PhysMemStart, sv39.IdentityPhysMap{})

	cspace, _, err := mem.DeriveCSpace(tree, root, InitCSpaceBits)
	if err != nil {
		return nil, fmt.Errorf("kernel: deriving init CSpace: %w", err)
	}

	task, taskNode, err := mem.DeriveTask(tree, root)
	if err != nil {
		return nil, fmt.Errorf("kernel: deriving init task: %w", err)
	}

	if err := task.AssignCSpace(cspace); err != nil {
		return nil, fmt.Errorf("kernel: assigning init CSpace: %w", err)
	}

	if err := capability.Copy(tree, root, mem, mustSlot(cspace, SlotMemory)); err != nil {
		return nil, fmt.Errorf("kernel: seeding Memory slot: %w", err)
	}

	if err := capability.Copy(tree, irqControlNode, irqControl, mustSlot(cspace, SlotIrqControl)); err != nil {
		return nil, fmt.Errorf("kernel: seeding IrqControl slot: %w", err)
	}

	asidSlot := mustSlot(cspace, SlotAsidControl)
	asidSlot.Cap, asidSlot.Node = asidControl, dtree.NoNode // AsidControl is a singleton; its tree node above is not recorded in the slot.

	selfSlot := mustSlot(cspace, SlotSelf)
	selfSlot.Cap, selfSlot.Node = task, taskNode

	sc := sched.New(tree, logger)
	sc.Add(taskNode)

	controller := irq.New(cfg.NumIrqLines, irqControl, logger)

	return &Kernel{
		Tree:       tree,
		Sched:      sc,
		Store:      store,
		IrqControl: irqControl,
		Irq:        controller,
		Console:    cfg.Console,
		InitTask:   task,
		InitCSpace: cspace,
		log:        logger,
	}, nil
}

func mustSlot(cspace *capability.CSpace, i uint64) *capability.CSlot {
	slot, err := cspace.Slot(i)
	if err != nil {
		panic(fmt.Sprintf("kernel: boot CSpace too small for well-known slot %d: %v", i, err))
	}

	return slot
}

// ErrIdle is returned by Step when no task is runnable: every task has
// exited, been destroyed, or is blocked with nothing to unblock it.
var ErrIdle = errors.New("kernel: no runnable task")

// Step dispatches exactly one syscall: whatever is already loaded into
// the current task's trap frame. It then drains one pending external
// interrupt, if any, per spec.md §4.9 -- serviced right after dispatch,
// the same ordering a hardware-interrupt check gets relative to an
// instruction cycle in a simulated CPU's run loop.
func (k *Kernel) Step(ctx context.Context) (syscall.Schedule, error) {
	current := k.Sched.Current()
	if current == dtree.NoNode {
		return syscall.Keep, ErrIdle
	}

	task, ok := k.Sched.TaskByID(current)
	if !ok {
		return syscall.Keep, fmt.Errorf("kernel: current task %v has no live Task capability", current)
	}

	sctx := &syscall.Context{
		Tree:           k.Tree,
		Task:           task,
		TaskNode:       current,
		Sched:          k.Sched,
		Console:        k.Console,
		IrqController:  k.Irq,
		Store:          k.Store,
		ResetRequested: &k.resetRequested,
	}

	result := syscall.Dispatch(sctx, task.Frame())

	k.log.Debug("dispatched", "task", current, "schedule", result)

	k.deliverInterrupt()

	return result, nil
}

// deliverInterrupt implements spec.md §4.9's handler: "reads the active
// line, looks up the Irq capability bound to it in IrqControl, and
// signals its bound Notification." If the signal unblocks a waiter, its
// frame is filled in exactly the way sendHandler fills in a parked
// receiver's frame -- this is the same "only the deliverer can write the
// unblocked frame" pattern, since the notification itself has no access
// to a trap frame.
func (k *Kernel) deliverInterrupt() {
	delivery, ok := k.Irq.ActiveLine()
	if !ok {
		return
	}

	notif := delivery.Irq.Notification()

	waiter, unblocked, bits := notif.Signal(1 << uint(delivery.Line))
	if !unblocked {
		return
	}

	task, ok := k.Sched.TaskByID(waiter)
	if ok {
		f := task.Frame()
		f.SetArg(0, uint64(syscall.Success))
		f.SetArg(1, bits)
		task.Unblock()
	}

	k.Sched.MakeRunnable(waiter)

	k.log.Debug("irq delivered", "line", delivery.Line, "waiter", waiter)
}

// Run drives Step until the context is cancelled, a reset is requested,
// or no task is runnable: check context, check the machine's run
// condition, Step, service interrupts, repeat.
func (k *Kernel) Run(ctx context.Context) error {
	k.log.Info("START")

	for {
		select {
		case <-ctx.Done():
			k.log.Warn("CANCELLED")
			return ctx.Err()
		default:
		}

		if k.resetRequested {
			k.log.Info("RESET requested")
			return nil
		}

		_, err := k.Step(ctx)
		if errors.Is(err, ErrIdle) {
			k.log.Info("IDLE")
			return nil
		} else if err != nil {
			k.log.Error("STEP ERROR", "err", err)
			return err
		}
	}
}
