package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lunatix-kernel/lunatix/internal/cli"
	"github.com/lunatix-kernel/lunatix/internal/console"
	"github.com/lunatix-kernel/lunatix/internal/kernel"
	"github.com/lunatix-kernel/lunatix/internal/log"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
	"github.com/lunatix-kernel/lunatix/internal/syscall"
	"github.com/lunatix-kernel/lunatix/internal/trapframe"
)

// boot is the "boot" sub-command: it constructs a machine the way
// spec.md §6's boot contract describes, then drives the init task
// through a small fixed syscall sequence standing in for a first user
// program. There is no RISC-V instruction interpreter here to load and
// run a real one, so each syscall is primed into the trap frame by hand
// between steps, the same way the kernel's own tests drive Step one
// canned syscall at a time.
type boot struct {
	flags *flag.FlagSet

	physMemMiB int
	irqLines   int
	maxASID    int
}

var _ cli.Command = (*boot)(nil)

// Boot constructs the boot sub-command.
func Boot() *boot {
	b := &boot{flags: flag.NewFlagSet("boot", flag.ExitOnError)}

	b.flags.IntVar(&b.physMemMiB, "mem", 16, "physical memory size in MiB")
	b.flags.IntVar(&b.irqLines, "irq-lines", 32, "number of platform interrupt lines")
	b.flags.IntVar(&b.maxASID, "max-asid", 64, "number of address-space identifiers")

	return b
}

func (b *boot) FlagSet() *flag.FlagSet { return b.flags }

func (boot) Description() string {
	return "boot a machine and run a fixed demonstration program"
}

func (b *boot) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `boot [option]...

Constructs a root Memory, IrqControl, and AsidControl, derives an init
task, and runs it through a short debug_putc/identify/yield/exit
sequence against the kernel's Step loop.`)

	return err
}

func (b *boot) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	c := console.New(os.Stdout)
	defer c.Restore()

	k, err := kernel.Boot(kernel.Config{
		PhysMemStart:    0x8000_0000,
		PhysMemEnd:      0x8000_0000 + sv39.PAddr(b.physMemMiB)<<20,
		NumIrqLines:     b.irqLines,
		MaxASID:         b.maxASID,
		PageTableFrames: 256,
		Console:         c,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("boot failed", "err", err)
		return 1
	}

	program := demoProgram()

	for _, prime := range program {
		if k.Sched.Idle() {
			break
		}

		prime(k.InitTask.Frame())

		if _, err := k.Step(ctx); err != nil {
			logger.Error("step failed", "err", err)
			return 1
		}
	}

	return 0
}

// demoProgram is the fixed sequence of syscalls Run primes into
// the init task's frame one at a time: print "hi", identify its own Task
// capability, yield once, then exit.
func demoProgram() []func(f *trapframe.Frame) {
	var program []func(f *trapframe.Frame)

	for _, ch := range []byte("hi\n") {
		b := ch

		program = append(program, func(f *trapframe.Frame) {
			f.SetArg(0, uint64(b))
			f.SetArg(7, uint64(syscall.DebugPutc))
		})
	}

	program = append(program, func(f *trapframe.Frame) {
		f.SetArg(0, uint64(kernel.SlotSelf))
		f.SetArg(7, uint64(syscall.Identify))
	})

	program = append(program, func(f *trapframe.Frame) {
		f.SetArg(7, uint64(syscall.Yield))
	})

	program = append(program, func(f *trapframe.Frame) {
		f.SetArg(7, uint64(syscall.Exit))
	})

	return program
}
