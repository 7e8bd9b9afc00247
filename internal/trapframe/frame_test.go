package trapframe_test

import (
	"testing"

	"github.com/lunatix-kernel/lunatix/internal/trapframe"
)

func TestArgAccessors(t *testing.T) {
	f := trapframe.NewFrame()

	f.SetArg(0, 111)
	f.SetArg(3, 222)

	if got := f.Arg(0); got != 111 {
		t.Fatalf("Arg(0): got %d, want 111", got)
	}

	if got := f.Arg(3); got != 222 {
		t.Fatalf("Arg(3): got %d, want 222", got)
	}
}

func TestArgAccessorsPanicOutOfRange(t *testing.T) {
	f := trapframe.NewFrame()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Arg(8) to panic")
		}
	}()

	f.Arg(8)
}

func TestSyscallNumber(t *testing.T) {
	f := trapframe.NewFrame()
	f.SetArg(7, 42)

	if got := f.SyscallNumber(); got != 42 {
		t.Fatalf("SyscallNumber: got %d, want 42", got)
	}
}

func TestAdvancePastECall(t *testing.T) {
	f := trapframe.NewFrame()
	f.PC = 0x8020_0000

	f.AdvancePastECall()

	if f.PC != 0x8020_0004 {
		t.Fatalf("AdvancePastECall: got %#x, want %#x", f.PC, uint64(0x8020_0004))
	}
}

func TestPrepareResume(t *testing.T) {
	f := trapframe.NewFrame()
	f.PrepareResume(0x9000_1000)

	if f.TrapHandlerStack != 0x9000_1000 {
		t.Fatalf("PrepareResume: got %#x", f.TrapHandlerStack)
	}
}

func TestLastTrapFields(t *testing.T) {
	f := trapframe.NewFrame()
	f.LastTrap = trapframe.LastTrap{Cause: 8, EPC: 0x8020_0100, Tval: 0, Status: 0x1800}

	if f.LastTrap.Cause != 8 || f.LastTrap.EPC != 0x8020_0100 {
		t.Fatalf("LastTrap fields not stored correctly: %+v", f.LastTrap)
	}
}
