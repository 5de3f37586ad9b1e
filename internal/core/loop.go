// Package core implements C9, the Event Core: the single process's
// cooperative, poll-driven main loop tying together every other
// component. It is strictly single-threaded by design (aside from the
// VT Arbiter's and this package's own unavoidable signal-delivery
// goroutines) — no locks, no worker pools, one readiness-driven pass
// per wakeup.
package core

import (
	"errors"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/opalaayan/vtdeck/internal/input"
	"github.com/opalaayan/vtdeck/internal/ipc"
	"github.com/opalaayan/vtdeck/internal/raster"
	"github.com/opalaayan/vtdeck/internal/session"
	"github.com/opalaayan/vtdeck/internal/vt"
)

const readChunk = 4096

// Loop owns every component's lifetime for one process run: it polls
// pane masters, stdin, and the control socket, drives them, and
// renders when something visible changed.
type Loop struct {
	log *slog.Logger

	store    *session.Store
	arbiter  *vt.Arbiter
	gateway  *input.Guard
	ipcSrv   *ipc.Server
	renderer *raster.Renderer
	surface  raster.Surface
	signals  *signalWatcher

	cellPx int
	dirty  bool
}

// New assembles the event core from its already-opened dependencies.
// Nothing here performs I/O; Run does.
func New(log *slog.Logger, store *session.Store, arbiter *vt.Arbiter, gateway *input.Guard, ipcSrv *ipc.Server, renderer *raster.Renderer, surface raster.Surface, cellPx int) *Loop {
	l := &Loop{
		log: log, store: store, arbiter: arbiter, gateway: gateway,
		ipcSrv: ipcSrv, renderer: renderer, surface: surface, cellPx: cellPx,
		signals: watchShutdownSignals(),
		dirty:   true,
	}
	arbiter.OnFlip(func(vt.State) { l.dirty = true })
	return l
}

// Run executes the loop until the store reports no active tab (every
// tab's last pane has exited) or a shutdown signal arrives. Either way
// it returns rather than letting the process die under Go's default
// signal disposition, so the caller's deferred cleanup still runs.
func (l *Loop) Run() {
	defer l.signals.stop()

	buf := make([]byte, readChunk)

	for !l.store.ShouldShutdown() && !l.signals.requested() {
		fds, index := l.buildPollset()

		n, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue // a signal (VT release/acquire, shutdown) interrupted poll; recheck and retry
			}
			l.log.Error("poll failed", "error", err)
			return
		}
		if n == 0 {
			continue
		}

		l.drainPanes(fds, index, buf)
		l.drainStdin(fds, index, buf)
		l.drainIPC(fds, index)

		if l.dirty && l.arbiter.Current() == vt.Active {
			l.renderer.Render(l.surface, l.store, l.cellPx)
			l.dirty = false
		}
	}
}

type paneSlot struct {
	tabIdx, paneIdx int
}

type pollIndex struct {
	panes  []paneSlot
	stdin  int // index into fds, -1 if absent
	ipcIdx int
}

// buildPollset rebuilds the descriptor set from scratch every
// iteration: panes come and go as tabs split/close, so there is no
// stable slot to incrementally patch. TMax*PMax+2 is the ceiling; most
// iterations use far fewer.
func (l *Loop) buildPollset() ([]unix.PollFd, pollIndex) {
	var fds []unix.PollFd
	var idx pollIndex

	l.store.ForEachPane(func(tabIdx, paneIdx int, p *session.Pane) {
		fds = append(fds, unix.PollFd{Fd: int32(p.Fd()), Events: unix.POLLIN})
		idx.panes = append(idx.panes, paneSlot{tabIdx, paneIdx})
	})

	idx.stdin = len(fds)
	fds = append(fds, unix.PollFd{Fd: int32(l.gateway.Fd()), Events: unix.POLLIN})

	idx.ipcIdx = len(fds)
	fds = append(fds, unix.PollFd{Fd: int32(l.ipcSrv.Fd()), Events: unix.POLLIN})

	return fds, idx
}

// drainPanes reads each ready pane master until EAGAIN, EOF, or EIO,
// feeding bytes to its emulator and tearing down panes whose shells
// have exited.
func (l *Loop) drainPanes(fds []unix.PollFd, idx pollIndex, buf []byte) {
	for i, slot := range idx.panes {
		if fds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			continue
		}
		tab := l.store.Tab(slot.tabIdx)
		if tab == nil {
			continue
		}
		p := tab.Pane(slot.paneIdx)
		if p == nil {
			continue
		}

		for {
			n, terminated, err := p.Read(buf)
			if n > 0 {
				p.Ingest(buf[:n])
				l.dirty = true
			}
			if terminated {
				l.store.ClosePane(slot.tabIdx, slot.paneIdx)
				l.dirty = true
				break
			}
			if err != nil || n == 0 {
				break
			}
		}
	}
}

// drainStdin performs one non-blocking read of stdin and forwards it,
// unchanged, to the active tab's active pane.
func (l *Loop) drainStdin(fds []unix.PollFd, idx pollIndex, buf []byte) {
	if fds[idx.stdin].Revents&unix.POLLIN == 0 {
		return
	}
	n, err := input.ReadOnce(buf)
	if n == 0 || err != nil {
		return
	}
	tab := l.store.ActiveTab()
	if tab == nil {
		return
	}
	p := tab.ActivePane()
	if p == nil {
		return
	}
	if werr := p.Write(buf[:n]); werr != nil {
		l.log.Warn("write to active pane failed", "error", werr)
	}
}

// drainIPC accepts and handles at most one control-socket client per
// iteration, applying its command to the store.
func (l *Loop) drainIPC(fds []unix.PollFd, idx pollIndex) {
	if fds[idx.ipcIdx].Revents&unix.POLLIN == 0 {
		return
	}
	cmd, ok, err := l.ipcSrv.Accept()
	if err != nil {
		l.log.Warn("ipc accept failed", "error", err)
		return
	}
	if !ok {
		return
	}

	l.applyCommand(cmd)
	l.dirty = true
}

func (l *Loop) applyCommand(cmd ipc.Command) {
	var err error
	switch cmd {
	case ipc.NewTab:
		err = l.store.NewTab()
	case ipc.NextTab:
		l.store.Next()
	case ipc.PrevTab:
		l.store.Prev()
	case ipc.SplitV:
		err = l.store.Split()
	case ipc.FocusLeft:
		l.store.FocusLeft()
	case ipc.FocusRight:
		l.store.FocusRight()
	default:
		err = errors.New("core: unrecognized command reached the event loop")
	}
	if err != nil {
		l.log.Warn("command rejected", "command", string(cmd), "error", err)
	}
}
