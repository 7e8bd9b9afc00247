// Package syscall implements the trap-entry syscall dispatch table: the
// numbers and argument wire format of spec.md §6, decoding raw trap-frame
// registers into capability operations and writing results back.
package syscall

// Number identifies a syscall by the value the calling task places in a7,
// per spec.md §6's stable numbering table.
type Number uint64

const (
	DebugPutc Number = 0
	DebugLog  Number = 1

	// Recv is not named in spec.md §6's numbering table, which jumps
	// from 1 (debug_log) to 3 (identify) leaving 2 unused. §4.8
	// describes send/recv as symmetric halves of the same rendezvous,
	// so recv is recovered here at the one gap the stable numbering
	// leaves for it (see DESIGN.md).
	Recv Number = 2

	Identify                   Number = 3
	AllocPage                  Number = 4
	MapPage                    Number = 5
	AssignIPCBuffer            Number = 6
	DeriveFromMem              Number = 7
	TaskAssignCSpace           Number = 8
	TaskAssignVSpace           Number = 9
	TaskAssignControlRegisters Number = 10
	YieldTo                    Number = 11
	Yield                      Number = 12
	IrqControlClaim            Number = 13
	WaitOn                     Number = 14
	IrqComplete                Number = 15
	SystemReset                Number = 16
	MapDevmem                  Number = 17
	Send                       Number = 18
	Destroy                    Number = 19
	Copy                       Number = 20
	GetPagePaddr               Number = 21
	Exit                       Number = 22
)
