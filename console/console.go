// Package console adapts the host terminal to the single-byte, explicitly
// flushed stream BDOS console functions expect, putting the terminal into
// raw (cbreak) mode so the guest sees every keystroke without host line
// editing getting in the way.
package console

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/term"
)

// Console is the host side of BDOS console I/O functions 1, 2, 5, 6, 9
// and 10.
type Console struct {
	in  *bufio.Reader
	out *bufio.Writer

	fd       int
	oldState *term.State
}

// Open puts stdin into raw mode, if it is a terminal, and returns a
// Console wrapping stdin/stdout. Non-terminal stdin (a pipe, a file used
// in tests) is left alone and read one byte at a time through a buffered
// reader.
func Open() (*Console, error) {
	c := &Console{
		in:  bufio.NewReader(os.Stdin),
		out: bufio.NewWriter(os.Stdout),
		fd:  int(os.Stdin.Fd()),
	}
	if term.IsTerminal(c.fd) {
		state, err := term.MakeRaw(c.fd)
		if err != nil {
			return nil, err
		}
		c.oldState = state
	}
	return c, nil
}

// New wraps an arbitrary reader/writer pair, bypassing raw-mode handling
// entirely. Used by tests that drive the console with in-memory buffers.
func New(r io.Reader, w io.Writer) *Console {
	return &Console{in: bufio.NewReader(r), out: bufio.NewWriter(w)}
}

// Close restores the terminal's original mode, if it was changed.
func (c *Console) Close() error {
	if c.oldState == nil {
		return nil
	}
	return term.Restore(c.fd, c.oldState)
}

// ReadByte blocks for one byte from the host input stream. EOF is
// reported via the returned error; callers map it to BDOS's 0x1A
// sentinel.
func (c *Console) ReadByte() (byte, error) {
	return c.in.ReadByte()
}

// WriteByte writes and immediately flushes a single byte, matching the
// explicit-flush-per-character contract BDOS function 2 requires.
func (c *Console) WriteByte(b byte) error {
	if err := c.out.WriteByte(b); err != nil {
		return err
	}
	return c.out.Flush()
}

// WriteString writes and flushes s in one call, used by READ CONSOLE
// BUFFER's backspace erase.
func (c *Console) WriteString(s string) error {
	if _, err := c.out.WriteString(s); err != nil {
		return err
	}
	return c.out.Flush()
}
