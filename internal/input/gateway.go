// Package input implements C7, the Input Gateway: a raw byte channel
// read from the process's standard input and forwarded unchanged to
// the active pane's PTY master. No local key interpretation happens
// here — hotkeys arrive over the control IPC channel, not this path.
package input

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Guard puts stdin into raw mode (no echo, no canonical processing,
// no signal generation, 8-bit clean, VMIN=0 VTIME=0) and restores the
// original termios on Release, a scoped guard around
// unix.IoctlGetTermios / IoctlSetTermios.
type Guard struct {
	fd       int
	oldState *term.State
}

// Enter switches stdin to raw mode.
func Enter() (*Guard, error) {
	fd := int(os.Stdin.Fd())

	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("input: enter raw mode: %w", err)
	}

	// term.MakeRaw does not guarantee VMIN=0/VTIME=0 (it leaves reads
	// blocking until at least one byte arrives); the event core needs
	// non-blocking semantics from poll, so patch the termios it left
	// behind.
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err == nil {
		termios.Cc[syscall.VMIN] = 0
		termios.Cc[syscall.VTIME] = 0
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, termios)
	}

	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, old)
		return nil, fmt.Errorf("input: set nonblocking: %w", err)
	}

	return &Guard{fd: fd, oldState: old}, nil
}

// Release restores the original termios, scoped the same way the VT
// mode and CRTC snapshot are.
func (g *Guard) Release() {
	_ = term.Restore(g.fd, g.oldState)
}

// Fd returns stdin's descriptor for the event core's pollset.
func (g *Guard) Fd() int { return g.fd }

// ReadOnce performs one non-blocking read of whatever is currently
// available on stdin.
func ReadOnce(buf []byte) (n int, err error) {
	n, err = os.Stdin.Read(buf)
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		return 0, nil
	}
	return n, err
}
