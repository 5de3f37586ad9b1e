// Package session implements the CORE session model: C3 Pane, C4 Tab,
// and C5 Session Store. Each pane runs an arbitrary login shell over a
// PTY; a synchronous Ingest call, driven by the single-threaded event
// core after a poll wakeup, replaces a goroutine-per-reader model (see
// internal/core).
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
	"unsafe"

	"github.com/creack/pty"
	"github.com/hinshun/vt10x"
	"golang.org/x/sys/unix"

	"github.com/opalaayan/vtdeck/internal/glyph"
)

const (
	// PMax is the per-tab pane capacity.
	PMax = 2
	// TMax is the session-wide tab capacity.
	TMax = 8

	maxWriteRetries = 50
	writeRetryWait  = 100 * time.Millisecond
)

// Pane is C3: one pseudo-terminal master, its child process, the
// vt10x terminal-state emulator consumed as a black box, and the
// pixel region the pane occupies inside its tab's row.
type Pane struct {
	log *slog.Logger

	master     *os.File
	cmd        *exec.Cmd
	vt         vt10x.Terminal
	cols       int
	startColPx int

	alive bool
}

// Spawn constructs an emulator sized (rows, cols), a forked login shell
// over a PTY, the master set non-blocking, and the pixel size
// communicated to the kernel via TIOCSWINSZ. The emulator keeps
// vt10x's default-color sentinels; the rasterizer's theme maps them to
// the configured default colors at render time.
func Spawn(log *slog.Logger, shellPath string, rows, cols, startColPx int, metrics glyph.Metrics) (*Pane, error) {
	if cols < 2 {
		return nil, fmt.Errorf("%w: cols=%d", ErrTooNarrow, cols)
	}

	cmd := exec.Command(shellPath)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
		X:    uint16(cols * metrics.CellW),
		Y:    uint16(rows * metrics.CellH),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaneSpawnFailed, err)
	}

	if err := setNonblocking(master); err != nil {
		_ = master.Close()
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("%w: set nonblocking: %v", ErrPaneSpawnFailed, err)
	}

	// vt10x writes terminal query responses (cursor position reports,
	// DA, etc.) back to whatever writer it's given; wire it to the
	// master so those reach the shell exactly as a real terminal would
	// deliver its own replies.
	vtTerm := vt10x.New(vt10x.WithSize(cols, rows), vt10x.WithWriter(master))

	p := &Pane{
		log:        log,
		master:     master,
		cmd:        cmd,
		vt:         vtTerm,
		cols:       cols,
		startColPx: startColPx,
		alive:      true,
	}
	return p, nil
}

func setNonblocking(f *os.File) error {
	return syscall.SetNonblock(int(f.Fd()), true)
}

// Fd returns the PTY master's file descriptor, for the event core's
// pollset.
func (p *Pane) Fd() int { return int(p.master.Fd()) }

// Cols reports the pane's column span.
func (p *Pane) Cols() int { return p.cols }

// StartColPx reports the pane's horizontal pixel offset.
func (p *Pane) StartColPx() int { return p.startColPx }

// Alive reports whether the child has not yet been reaped.
func (p *Pane) Alive() bool { return p.alive }

// Ingest feeds PTY bytes into the emulator.
// The caller is responsible for reading from the master; Ingest only
// updates emulator state.
func (p *Pane) Ingest(data []byte) {
	p.vt.Write(data)
}

// Read performs one non-blocking read from the master into buf,
// returning the byte count and whether the pane reached EOF/EIO and
// should be torn down.
func (p *Pane) Read(buf []byte) (n int, terminated bool, err error) {
	n, err = p.master.Read(buf)
	if err == nil {
		return n, false, nil
	}
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		return n, false, nil
	}
	// EOF or EIO (shell exited and closed the slave): expected
	// termination, drives the pane/tab lifecycle.
	return n, true, err
}

// Write sends user bytes to the master, retrying on EINTR and backing
// off on EAGAIN up to maxWriteRetries times before returning
// ErrWriteStalled. The bound is total across the whole call, not per
// poll iteration.
func (p *Pane) Write(data []byte) error {
	retries := 0
	for len(data) > 0 {
		n, err := p.master.Write(data)
		if n > 0 {
			data = data[n:]
		}
		if err == nil {
			continue
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			if ok := p.waitWritable(&retries); !ok {
				return fmt.Errorf("%w: pane exhausted %d retries", ErrWriteStalled, maxWriteRetries)
			}
			continue
		}
		return fmt.Errorf("session: write to pane: %w", err)
	}
	return nil
}

// waitWritable polls the master for POLLOUT, writeRetryWait per
// attempt, drawing attempts from the caller's retry count so that
// maxWriteRetries bounds the total Write call rather than any single
// stall or event-loop iteration.
func (p *Pane) waitWritable(retries *int) bool {
	fds := []unix.PollFd{{Fd: int32(p.Fd()), Events: unix.POLLOUT}}
	for *retries < maxWriteRetries {
		*retries++
		n, err := unix.Poll(fds, int(writeRetryWait/time.Millisecond))
		if err != nil {
			continue
		}
		if n > 0 && fds[0].Revents&unix.POLLOUT != 0 {
			return true
		}
	}
	return false
}

// Resize updates the emulator size and issues a new TIOCSWINSZ; the
// return value reports whether the grid's (cols, rows) changed, the
// case in which the kernel delivers SIGWINCH to the shell.
func (p *Pane) Resize(rows, cols, startColPx int, metrics glyph.Metrics) bool {
	beforeCols, beforeRows := p.vt.Size()
	p.vt.Resize(cols, rows)
	p.cols = cols
	p.startColPx = startColPx

	ws := winsize{
		Row:    uint16(rows),
		Col:    uint16(cols),
		Xpixel: uint16(cols * metrics.CellW),
		Ypixel: uint16(rows * metrics.CellH),
	}
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, p.master.Fd(), syscall.TIOCSWINSZ, uintptr(unsafe.Pointer(&ws)))
	if errno != 0 {
		p.log.Warn("TIOCSWINSZ failed", "error", errno)
	}

	return beforeCols != cols || beforeRows != rows
}

type winsize struct {
	Row    uint16
	Col    uint16
	Xpixel uint16
	Ypixel uint16
}

// Cell exposes one cell of the emulator's grid to the rasterizer.
func (p *Pane) Cell(x, y int) vt10x.Glyph {
	p.vt.Lock()
	defer p.vt.Unlock()
	return p.vt.Cell(x, y)
}

// CursorPos reports the emulator's cursor cell and whether it is
// currently visible.
func (p *Pane) CursorPos() (x, y int, visible bool) {
	p.vt.Lock()
	defer p.vt.Unlock()
	c := p.vt.Cursor()
	return c.X, c.Y, p.vt.CursorVisible()
}

// Size reports the emulator's current (cols, rows).
func (p *Pane) Size() (cols, rows int) {
	p.vt.Lock()
	defer p.vt.Unlock()
	return p.vt.Size()
}

// Terminate closes the master and reaps the child with a non-blocking
// wait (wait4 WNOHANG). It never blocks the event core: a child that
// hasn't yet become a zombie is not waited for, and nothing reaps it
// later; its SIGCHLD reaches internal/core's shutdown watcher, which
// only sets the shutdown flag.
func (p *Pane) Terminate() {
	if !p.alive {
		return
	}
	p.alive = false
	_ = p.master.Close()

	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	var status syscall.WaitStatus
	_, _ = syscall.Wait4(p.cmd.Process.Pid, &status, syscall.WNOHANG, nil)
}
