package main_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/lunatix-kernel/lunatix/internal/kernel"
	"github.com/lunatix-kernel/lunatix/internal/log"
	"github.com/lunatix-kernel/lunatix/internal/syscall"
)

var logBuffer bufio.Writer

func init() {
}

type testHarness struct {
	*testing.T
}

func (testHarness) Make(out *bytes.Buffer) *kernel.Kernel {
	k, err := kernel.Boot(kernel.Config{
		PhysMemStart:    0x8000_0000,
		PhysMemEnd:      0x8100_0000,
		NumIrqLines:     32,
		MaxASID:         64,
		PageTableFrames: 64,
		Console:         testConsole{out},
		Logger:          log.NewFormattedLogger(io.Discard),
	})
	if err != nil {
		panic(err)
	}

	return k
}

// testConsole adapts a bytes.Buffer to internal/syscall's Console
// interface, so the integration test can assert on what the demo
// program printed without opening a real terminal.
type testConsole struct{ out *bytes.Buffer }

func (c testConsole) PutChar(b byte) { c.out.WriteByte(b) }
func (c testConsole) Log(msg string) { c.out.WriteString(msg + "\n") }

var (
	// timeout is how long to wait for the machine to stop running. It is very likely to take
	// less than 200 ms.
	timeout    = 1 * time.Second
	statusTick = 25 * time.Millisecond
)

// Context creates a test context. The context is cancelled after a timeout.
func (testHarness) Context() (ctx context.Context,
	cause context.CancelCauseFunc,
	cancel context.CancelFunc,
) {
	ctx = context.Background()
	ctx, cause = context.WithCancelCause(ctx)
	ctx, cancel = context.WithTimeout(ctx, timeout)

	return ctx, func(err error) {
		logBuffer.Flush()
		cause(err)
	}, cancel
}

// demoSyscalls is a shortened form of cmd.Boot's demo program: print
// "hi", then exit, without its identify and yield steps. There is no RISC-V instruction stream
// here to fetch and decode, so each entry is primed into the trap frame
// by hand between steps.
func demoSyscalls(k *kernel.Kernel) {
	frame := k.InitTask.Frame()

	for _, b := range []byte("hi\n") {
		frame.SetArg(0, uint64(b))
		frame.SetArg(7, uint64(syscall.DebugPutc))

		if _, err := k.Step(context.Background()); err != nil {
			return
		}
	}

	frame.SetArg(7, uint64(syscall.Exit))
	_, _ = k.Step(context.Background())
}

func TestMain(tt *testing.T) {
	t := testHarness{tt}
	start := time.Now()

	var out bytes.Buffer
	machine := t.Make(&out)

	log.LogLevel.Set(log.Error)

	ctx, cause, cancel := t.Context()
	defer cancel()

	go func() {
		for {
			select {
			case <-time.After(statusTick):
				t.Log("in progress")
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		t.Logf("running")

		demoSyscalls(machine)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if !machine.Sched.Idle() {
			cause(errors.New("expected the init task to have exited"))
		}

		cancel()
	}()

	<-ctx.Done()

	elapsed := time.Since(start)
	err := context.Cause(ctx)

	switch {
	case err == nil:
		t.Logf("test: ok, elapsed: %s", elapsed)
	case errors.Is(err, context.Canceled):
		t.Logf("test: ok, err: %s, elapsed: %s", err, elapsed)
	default:
		err = context.Cause(ctx)
		t.Errorf("test: error: %s: elapsed: %s, %s", err, elapsed, timeout)
	}

	if out.String() != "hi\n" {
		t.Errorf("expected demo program to print %q, got %q", "hi\n", out.String())
	}
}
