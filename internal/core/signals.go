package core

import (
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// signalWatcher turns SIGINT/SIGTERM/SIGCHLD into the sig_atomic_t-style
// shutdown flag the loop polls between unix.Poll wakeups: shutdown_requested.
// The pump goroutine does only the flag-set, the same narrowness the VT
// Arbiter's own signal handling keeps to, and is supervised by an errgroup
// for the same reason: Go delivers OS signals to a dedicated runtime
// goroutine regardless of how many handlers a process installs, so stop
// can wait for that goroutine to actually exit instead of firing a bare
// go statement and hoping.
type signalWatcher struct {
	sigCh    chan os.Signal
	shutdown atomic.Bool
	group    *errgroup.Group
}

// watchShutdownSignals installs the handler and starts the pump.
func watchShutdownSignals() *signalWatcher {
	w := &signalWatcher{sigCh: make(chan os.Signal, 8)}
	signal.Notify(w.sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGCHLD)

	w.group = &errgroup.Group{}
	w.group.Go(w.pump)
	return w
}

func (w *signalWatcher) pump() error {
	for range w.sigCh {
		w.shutdown.Store(true)
	}
	return nil
}

// requested reports whether a shutdown signal has arrived since Run
// started; the loop checks this once per iteration, in addition to
// Store.ShouldShutdown, so a plain kill or Ctrl-C exits the poll loop and
// lets the caller's deferred cleanup run instead of the process dying
// under Go's default signal disposition mid-iteration.
func (w *signalWatcher) requested() bool { return w.shutdown.Load() }

// stop unregisters the handler and waits for the pump goroutine to exit.
func (w *signalWatcher) stop() {
	signal.Stop(w.sigCh)
	close(w.sigCh)
	_ = w.group.Wait()
}
