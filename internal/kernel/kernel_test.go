package kernel_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/lunatix-kernel/lunatix/internal/kernel"
	"github.com/lunatix-kernel/lunatix/internal/log"
	"github.com/lunatix-kernel/lunatix/internal/syscall"
)

func bootFixture(t *testing.T) *kernel.Kernel {
	t.Helper()

	k, err := kernel.Boot(kernel.Config{
		PhysMemStart:    0x8000_0000,
		PhysMemEnd:      0x8100_0000,
		NumIrqLines:     32,
		MaxASID:         64,
		PageTableFrames: 64,
		Logger:          log.NewFormattedLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}

	return k
}

// TestBootSeedsWellKnownSlots exercises the boot contract: the init
// task's CSpace holds its own Memory, the platform's IrqControl and
// AsidControl, and a Task capability naming itself -- the only valid
// starting points spec.md §6 grants it.
func TestBootSeedsWellKnownSlots(t *testing.T) {
	k := bootFixture(t)

	cspace := k.InitTask.CSpace()
	if cspace == nil {
		t.Fatalf("expected init task to have a CSpace assigned")
	}

	for _, i := range []uint64{kernel.SlotMemory, kernel.SlotIrqControl, kernel.SlotAsidControl, kernel.SlotSelf} {
		slot, err := cspace.Slot(i)
		if err != nil {
			t.Fatalf("Slot(%d): %v", i, err)
		}

		if slot.IsUninit() {
			t.Fatalf("expected well-known slot %d to be populated", i)
		}
	}

	if k.Sched.Idle() {
		t.Fatalf("expected the init task to be runnable after boot")
	}
}

// TestStepDispatchesDebugPutc drives scenario S1's first step: the init
// task issues a debug_putc ecall, and Step both runs it to completion
// (advancing the resume PC past the ecall and writing a0=0) and forwards
// the byte to the console.
func TestStepDispatchesDebugPutc(t *testing.T) {
	k := bootFixture(t)

	var buf bytes.Buffer
	k.Console = newBufConsole(&buf)

	frame := k.InitTask.Frame()
	frame.SetArg(0, uint64('H'))
	frame.SetArg(7, uint64(syscall.DebugPutc))

	pcBefore := frame.PC

	result, err := k.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	if result != syscall.Keep {
		t.Fatalf("expected Keep after debug_putc, got %v", result)
	}

	if frame.PC != pcBefore+4 {
		t.Fatalf("expected resume pc advanced past the ecall, got %#x", frame.PC)
	}

	if frame.Arg(0) != uint64(syscall.Success) {
		t.Fatalf("expected success code in a0, got %d", frame.Arg(0))
	}

	if buf.String() != "H" {
		t.Fatalf("expected 'H' written to the console, got %q", buf.String())
	}
}

// TestStepExitStopsScheduling drives the Exit syscall through Step and
// confirms the task is forgotten by the scheduler, leaving the machine
// idle -- the only task there was has exited.
func TestStepExitStopsScheduling(t *testing.T) {
	k := bootFixture(t)

	frame := k.InitTask.Frame()
	frame.SetArg(7, uint64(syscall.Exit))

	result, err := k.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	if result != syscall.Stop {
		t.Fatalf("expected Stop after exit, got %v", result)
	}

	if !k.Sched.Idle() {
		t.Fatalf("expected the machine idle after the only task exits")
	}
}

// TestRunStopsWhenIdle steps a primed debug_putc syscall, then drives Run
// across an exit, confirming Run keeps stepping until the machine has
// nothing left to schedule.
func TestRunStopsWhenIdle(t *testing.T) {
	k := bootFixture(t)

	var buf bytes.Buffer
	k.Console = newBufConsole(&buf)

	frame := k.InitTask.Frame()
	frame.SetArg(0, uint64('A'))
	frame.SetArg(7, uint64(syscall.DebugPutc))

	// Run executes one step (the primed debug_putc) then finds the task
	// still runnable with a7 left at DebugPutc from the prior dispatch,
	// so it would loop forever printing 'A' -- prime an immediate exit
	// instead to keep the test deterministic, confirming Run returns
	// cleanly once nothing is runnable.
	if _, err := k.Step(context.Background()); err != nil {
		t.Fatalf("priming Step: %v", err)
	}

	frame.SetArg(7, uint64(syscall.Exit))

	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !k.Sched.Idle() {
		t.Fatalf("expected the machine idle after the init task exits")
	}

	if buf.String() != "A" {
		t.Fatalf("expected exactly one 'A' written, got %q", buf.String())
	}
}

// bufConsole adapts an io.Writer to internal/syscall's Console interface
// without pulling in a real terminal, for tests that only care what
// bytes land on the console.
type bufConsole struct {
	out io.Writer
}

func newBufConsole(out io.Writer) *bufConsole { return &bufConsole{out: out} }

func (c *bufConsole) PutChar(b byte) { _, _ = c.out.Write([]byte{b}) }
func (c *bufConsole) Log(msg string) { _, _ = io.WriteString(c.out, msg+"\n") }
