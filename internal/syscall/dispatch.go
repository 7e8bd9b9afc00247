package syscall

import "github.com/lunatix-kernel/lunatix/internal/trapframe"

// handlerFunc implements one syscall number: it reads its arguments from
// f's a0..a6 and returns the error code to write into a0, the payload
// words to write into a1.., and how many of those words are valid.
type handlerFunc func(ctx *Context, f *trapframe.Frame) (code Error, payload [7]uint64, n int)

var handlers = map[Number]handlerFunc{
	DebugPutc:                  debugPutc,
	DebugLog:                   debugLog,
	Recv:                       recvHandler,
	Identify:                   identify,
	AllocPage:                  allocPage,
	MapPage:                    mapPage,
	AssignIPCBuffer:            assignIPCBuffer,
	DeriveFromMem:              deriveFromMem,
	TaskAssignCSpace:           taskAssignCSpace,
	TaskAssignVSpace:           taskAssignVSpace,
	TaskAssignControlRegisters: taskAssignControlRegisters,
	YieldTo:                    yieldTo,
	Yield:                      yieldHandler,
	IrqControlClaim:            irqControlClaim,
	WaitOn:                     waitOn,
	IrqComplete:                irqComplete,
	SystemReset:                systemReset,
	MapDevmem:                  mapDevmem,
	Send:                       sendHandler,
	Destroy:                    destroyHandler,
	Copy:                       copyHandler,
	GetPagePaddr:               getPagePaddr,
	Exit:                       exitHandler,
}

// Dispatch implements spec.md §4.7.1's syscall-handler steps 1-7: it
// advances the resume PC past the ecall, reads the syscall number,
// looks up and runs its handler, and writes the result back unless the
// handler reports WouldBlock (whose caller already parked the task and
// must not disturb its frame -- the next unblock will write a fresh
// result when delivery happens).
func Dispatch(ctx *Context, f *trapframe.Frame) Schedule {
	f.AdvancePastECall()

	num := Number(f.SyscallNumber())

	h, ok := handlers[num]
	if !ok {
		writeResult(f, UnknownSyscall, [7]uint64{}, 0)
		return Keep
	}

	code, payload, n := h(ctx, f)

	if code == WouldBlock {
		return Keep
	}

	writeResult(f, code, payload, n)

	if num == Exit {
		return Stop
	}

	return Keep
}

func writeResult(f *trapframe.Frame, code Error, payload [7]uint64, n int) {
	f.SetArg(0, uint64(code))

	for i := 0; i < n; i++ {
		f.SetArg(1+i, payload[i])
	}
}
