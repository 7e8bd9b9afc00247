// Package console adapts the host terminal into the "attached serial
// console" spec.md §4.9/§6 names as debug_putc/debug_log's external
// collaborator. It is narrower than a full terminal driver: this kernel
// has no syscall that reads console input, so only the output half of
// the raw-mode dance -- entering and restoring raw mode, writing bytes
// -- is implemented here.
package console

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Console is a serial console backed by the host terminal. Bytes and
// log lines written to it land on the real terminal, raw-mode so a
// debug_putc stream of bare bytes (no implied \r\n translation from the
// tty driver) prints the way the simulated UART intends.
type Console struct {
	out   io.Writer
	fd    int
	state *term.State // nil if fd is not a terminal; Restore is then a no-op.
}

// New adapts out for console output. If out refers to a terminal, it is
// put into raw mode; otherwise (piped or redirected output) the terminal
// mode is left alone and Restore does nothing. Either way PutChar writes
// a bare \n as \r\n.
func New(out *os.File) *Console {
	fd := int(out.Fd())

	c := &Console{out: out, fd: fd}

	if term.IsTerminal(fd) {
		if saved, err := term.MakeRaw(fd); err == nil {
			c.state = saved
		}
	}

	return c
}

// Restore returns the terminal to its initial state. Safe to call on a
// Console that never entered raw mode.
func (c *Console) Restore() {
	if c.state != nil {
		_ = term.Restore(c.fd, c.state)
	}
}

// PutChar implements internal/syscall's Console interface for
// debug_putc: the raw byte is written as-is. Raw mode leaves \n without
// an automatic \r, so a bare \n is translated the way a real serial
// terminal driver would, to keep output readable on screen instead of
// stair-stepping.
func (c *Console) PutChar(b byte) {
	if b == '\n' {
		_, _ = c.out.Write([]byte{'\r', '\n'})
		return
	}

	_, _ = c.out.Write([]byte{b})
}

// Log implements internal/syscall's Console interface for debug_log: one
// line, newline-terminated the same way PutChar translates it.
func (c *Console) Log(msg string) {
	_, _ = fmt.Fprint(c.out, msg)
	c.PutChar('\n')
}
