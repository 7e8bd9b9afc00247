package syscall

import (
	"errors"
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/capability"
)

// Error is the task-visible error enum written into a0, per spec.md §6's
// stable error-code table.
type Error uint64

const (
	Success Error = 0

	InvalidCAddr  Error = 1
	NoMem         Error = 2
	OccupiedSlot  Error = 3
	InvalidCap    Error = 4
	InvalidOp     Error = 5
	InvalidArg    Error = 6
	AliasingCSlot Error = 7
	InvalidReturn Error = 8

	// Unsupported, UnknownSyscall and WouldBlock are named as stable
	// error codes in spec.md §6 but given no fixed numeric value there;
	// this repository assigns them the values following InvalidReturn.
	Unsupported    Error = 9
	UnknownSyscall Error = 10
	WouldBlock     Error = 11
)

func (e Error) Error() string {
	switch e {
	case Success:
		return "success"
	case InvalidCAddr:
		return "invalid capability address"
	case NoMem:
		return "out of memory"
	case OccupiedSlot:
		return "destination slot occupied"
	case InvalidCap:
		return "wrong capability kind"
	case InvalidOp:
		return "invalid operation for this syscall"
	case InvalidArg:
		return "invalid argument"
	case AliasingCSlot:
		return "source and destination slot alias"
	case InvalidReturn:
		return "handler produced an invalid return"
	case Unsupported:
		return "unsupported"
	case UnknownSyscall:
		return "unknown syscall number"
	case WouldBlock:
		return "operation would block"
	default:
		return fmt.Sprintf("syscall: unknown error code %d", uint64(e))
	}
}

// translate maps a capability-package error into its syscall wire code.
// Errors this package does not recognize become InvalidOp rather than
// panicking: per spec.md §4.7.1 step 4, only an argument-decoding
// disagreement between kernel and userspace is a fatal bug; a capability
// operation failing in an expected way is always a task-visible error.
func translate(err error) Error {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, capability.ErrInvalidCAddr):
		return InvalidCAddr
	case errors.Is(err, capability.ErrNoMem):
		return NoMem
	case errors.Is(err, capability.ErrOccupiedSlot):
		return OccupiedSlot
	case errors.Is(err, capability.ErrWrongKind):
		return InvalidCap
	case errors.Is(err, capability.ErrTaskRunning):
		return InvalidOp
	case errors.Is(err, capability.ErrMappingExists):
		return InvalidOp
	case errors.Is(err, capability.ErrNotMapped):
		return InvalidArg
	case errors.Is(err, capability.ErrAlreadyClaimed):
		return InvalidOp
	case errors.Is(err, capability.ErrWouldBlock):
		return WouldBlock
	default:
		return InvalidOp
	}
}
