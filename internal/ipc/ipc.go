// Package ipc implements C8, Control IPC: a unix-domain-socket command
// channel used by a second invocation of the same binary to steer an
// already-running instance (new tab, next/prev tab, split, focus
// left/right) without that instance owning a TTY of its own.
package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Command is one point in the fixed command vocabulary the server
// accepts. The zero value is never sent over the wire.
type Command string

const (
	NewTab     Command = "new-tab"
	NextTab    Command = "next"
	PrevTab    Command = "prev"
	SplitV     Command = "split-v"
	FocusLeft  Command = "left"
	FocusRight Command = "right"
)

// aliases maps every accepted command-line token to its canonical
// Command, so the CLI's positional argument and the wire token share
// one table.
var aliases = map[string]Command{
	"--new-tab": NewTab, "new-tab": NewTab, "-t": NewTab,
	"--next": NextTab, "next": NextTab, "-n": NextTab,
	"--prev": PrevTab, "prev": PrevTab, "-p": PrevTab,
	"--split-v": SplitV, "split-v": SplitV, "-s": SplitV,
	"--left": FocusLeft, "left": FocusLeft,
	"--right": FocusRight, "right": FocusRight,
}

// Resolve maps a CLI token to its canonical Command, reporting ok=false
// for anything outside the vocabulary.
func Resolve(token string) (Command, bool) {
	c, ok := aliases[token]
	return c, ok
}

const maxTokenLen = 64
const clientDeadline = 200 * time.Millisecond

// SocketPath returns the per-user socket path, /tmp/vtdeck_<uid>.sock,
// so concurrent sessions for different users never collide.
func SocketPath() string {
	return filepath.Join(os.TempDir(), "vtdeck_"+strconv.Itoa(os.Getuid())+".sock")
}

// ErrUnknownCommand is returned by the server's decode step when a
// token isn't in the accepted vocabulary.
var ErrUnknownCommand = errors.New("ipc: unknown command")

// Server is the listening half, embedded in the running event core. Its
// Accept is driven from the poll loop: callers only invoke it once the
// event core's poll has already reported the listener's descriptor
// readable, so the net.Listener.Accept beneath it returns immediately.
type Server struct {
	log *slog.Logger
	ln  *net.UnixListener
	// file is a dup'd, still-open descriptor used purely so the event
	// core can add this listener to its unix.Poll pollset; net.Listener
	// exposes no raw fd of its own.
	file *os.File
}

// Listen binds the control socket, removing a stale one left behind by
// a prior crashed instance first.
func Listen(log *slog.Logger) (*Server, error) {
	path := SocketPath()
	_ = os.Remove(path)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: resolve %s: %w", path, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}

	file, err := ln.File()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("ipc: dup listener fd: %w", err)
	}

	return &Server{log: log, ln: ln, file: file}, nil
}

// Fd returns the listening socket's descriptor, for the event core's
// pollset.
func (s *Server) Fd() int { return int(s.file.Fd()) }

// Accept takes one waiting connection, reads its single command token
// (bounded at 64 bytes, with a 200ms read deadline so a stalled client
// can never wedge the event loop), and closes it.
func (s *Server) Accept() (cmd Command, ok bool, err error) {
	_ = s.ln.SetDeadline(time.Now().Add(clientDeadline))
	conn, err := s.ln.Accept()
	if err != nil {
		if ne, isNet := err.(net.Error); isNet && ne.Timeout() {
			return "", false, nil
		}
		return "", false, fmt.Errorf("ipc: accept: %w", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(clientDeadline))
	buf := make([]byte, maxTokenLen)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		s.log.Warn("ipc: client read failed", "error", err)
		return "", false, nil
	}

	token := string(buf[:n])
	c, known := aliases[token]
	if !known {
		s.log.Warn("ipc: unknown command token", "token", token)
		return "", false, nil
	}
	return c, true, nil
}

// Close unlinks and closes the listening socket.
func (s *Server) Close() {
	_ = s.file.Close()
	_ = s.ln.Close()
}

// Send is the client role: connect to a running instance's socket and
// deliver exactly one command token.
func Send(cmd Command) error {
	conn, err := net.DialTimeout("unix", SocketPath(), clientDeadline)
	if err != nil {
		return fmt.Errorf("ipc: connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("ipc: write: %w", err)
	}
	return nil
}

// Probe reports whether a running instance is currently listening,
// without sending it a command. Used by the CLI's no-argument path to
// decide server-vs-client role.
func Probe() bool {
	conn, err := net.DialTimeout("unix", SocketPath(), clientDeadline)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
