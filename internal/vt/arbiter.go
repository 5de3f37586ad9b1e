// Package vt implements C6, the VT Arbiter: the cooperative
// virtual-console release/acquire handshake with the kernel, modeled
// as a signal-driven state machine, in the style of a release/acquire
// handler pair keyed on SIGUSR1/SIGUSR2 and VT_SETMODE/VT_RELDISP.
package vt

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// State is the VT Arbiter's two-state machine.
type State int32

const (
	// Active: this process holds graphics master-ship; the Event Core
	// renders.
	Active State = iota
	// Suspended: the kernel holds graphics master-ship; the Event Core
	// keeps draining PTYs into emulators but skips presentation.
	Suspended
)

const (
	vtGetMode = 0x5601 // VT_GETMODE
	vtSetMode = 0x5602 // VT_SETMODE
	vtRelDisp = 0x5605 // VT_RELDISP
	vtProcess = 1      // VT_PROCESS
	vtAckAcq  = 2      // VT_ACKACQ, written back via VT_RELDISP on acquire
)

// vtMode mirrors struct vt_mode from <linux/vt.h>.
type vtMode struct {
	Mode   int8
	Waitv  int8
	Relsig int16
	Acqsig int16
	Frsig  int16
}

// masterSwitcher is the narrow slice of display.Surface the arbiter
// needs: handing DRM graphics master-ship to the kernel on release and
// reclaiming it on acquire, the other half of the VT_RELDISP handshake
// alongside the ioctl acknowledgements pump already sends.
type masterSwitcher interface {
	SetMaster() error
	DropMaster() error
}

// Arbiter owns the controlling terminal's VT mode for the process
// lifetime: it switches the VT into VT_PROCESS mode with SIGUSR1 as
// the release signal and SIGUSR2 as the acquire signal, and restores
// the original mode on Close.
type Arbiter struct {
	ttyFd    int
	origMode vtMode
	haveOrig bool
	surface  masterSwitcher

	state  atomic.Int32
	sigCh  chan os.Signal
	stopCh chan struct{}
	onFlip func(State)

	group *errgroup.Group
}

// Open acquires the controlling terminal at ttyPath (typically
// /dev/tty) and switches it into process-managed VT mode. surface is
// the display surface whose graphics master-ship the release/acquire
// handlers drop and reclaim in step with the VT switch.
func Open(ttyPath string, surface masterSwitcher) (*Arbiter, error) {
	fd, err := unix.Open(ttyPath, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("vt: open %s: %w", ttyPath, err)
	}

	a := &Arbiter{ttyFd: fd, surface: surface, sigCh: make(chan os.Signal, 4), stopCh: make(chan struct{})}
	a.state.Store(int32(Active))

	if err := ioctl(fd, vtGetMode, &a.origMode); err != nil {
		// Non-fatal: VT_GETMODE failure just means we can't restore the
		// mode later; continue best-effort.
		a.origMode = vtMode{}
	} else {
		a.haveOrig = true
	}

	newMode := vtMode{Mode: vtProcess, Relsig: int16(unix.SIGUSR1), Acqsig: int16(unix.SIGUSR2)}
	if err := ioctl(fd, vtSetMode, &newMode); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("vt: VT_SETMODE: %w", err)
	}

	signal.Notify(a.sigCh, unix.SIGUSR1, unix.SIGUSR2)
	a.group = &errgroup.Group{}
	a.group.Go(a.pump)

	return a, nil
}

// pump is supervised by an errgroup the way a background worker would
// be (internal/core runs its own shutdown-signal pump the same way): Go
// delivers OS signals to a dedicated runtime goroutine regardless of
// how many a process installs handlers for, so this just forwards them
// onto the atomic State — it performs no I/O of its own beyond the
// graphics master-ship ioctls and the VT_RELDISP acknowledgement.
func (a *Arbiter) pump() error {
	for {
		select {
		case sig := <-a.sigCh:
			switch sig {
			case unix.SIGUSR1: // release requested
				a.state.Store(int32(Suspended))
				_ = a.surface.DropMaster()
				_ = unix.IoctlSetInt(a.ttyFd, vtRelDisp, 1)
			case unix.SIGUSR2: // acquire granted
				a.state.Store(int32(Active))
				_ = unix.IoctlSetInt(a.ttyFd, vtRelDisp, vtAckAcq)
				_ = a.surface.SetMaster()
			}
			if a.onFlip != nil {
				a.onFlip(State(a.state.Load()))
			}
		case <-a.stopCh:
			return nil
		}
	}
}

// OnFlip registers a callback invoked (from the signal-pump goroutine)
// whenever the state transitions; the Event Core uses this only to
// know a render decision may have changed, never to touch the
// framebuffer directly from that goroutine.
func (a *Arbiter) OnFlip(f func(State)) { a.onFlip = f }

// Current reports the arbiter's present state.
func (a *Arbiter) Current() State { return State(a.state.Load()) }

// Close restores the original VT mode and closes the controlling
// terminal fd.
func (a *Arbiter) Close() {
	close(a.stopCh)
	signal.Stop(a.sigCh)
	_ = a.group.Wait()
	if a.haveOrig {
		_ = ioctl(a.ttyFd, vtSetMode, &a.origMode)
	}
	_ = unix.Close(a.ttyFd)
}

func ioctl(fd int, req uintptr, arg interface{}) error {
	var ptr unsafe.Pointer
	switch v := arg.(type) {
	case *vtMode:
		ptr = unsafe.Pointer(v)
	case *int8:
		ptr = unsafe.Pointer(v)
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

func int8ptr(v int8) *int8 { return &v }
