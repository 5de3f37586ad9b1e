// Package logging sets up vtdeck's slog output: a plain text handler
// writing to /tmp/vtdeck.log, truncated at the start of every run since
// no state persists across runs, plus an
// in-memory ring buffer handler in the style of cmd/vee's
// slogRingHandler for tests and any future on-screen log tail.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const logPath = "/tmp/vtdeck.log"

// Open truncates and opens the process log file, returning a
// *slog.Logger that writes both to it and to a bounded in-memory ring
// (for tests or a future on-screen tail), plus the file handle for the
// caller to close on shutdown.
func Open(debug bool) (*slog.Logger, *RingHandler, *os.File, error) {
	f, err := os.Create(logPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	text := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	ring := NewRingHandler(256, level)

	return slog.New(Combine(text, ring)), ring, f, nil
}

// ringBuffer stores the last N formatted log lines.
type ringBuffer struct {
	mu    sync.RWMutex
	lines []string
	cap   int
}

func newRingBuffer(cap int) *ringBuffer {
	return &ringBuffer{lines: make([]string, 0, cap), cap: cap}
}

func (b *ringBuffer) Write(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) < b.cap {
		b.lines = append(b.lines, line)
		return
	}
	b.lines = append(b.lines[1:], line)
}

func (b *ringBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// RingHandler is a slog.Handler that appends formatted entries to a
// bounded in-memory tail instead of (or in addition to) writing them
// out — handy for tests that assert "a warning was logged" without
// scraping a file.
type RingHandler struct {
	buf   *ringBuffer
	level slog.Level
}

// NewRingHandler returns a handler retaining the last capacity entries.
func NewRingHandler(capacity int, level slog.Level) *RingHandler {
	return &RingHandler{buf: newRingBuffer(capacity), level: level}
}

func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *RingHandler) Handle(_ context.Context, r slog.Record) error {
	line := fmt.Sprintf("%s %s %s", r.Time.Format(time.TimeOnly), r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	h.buf.Write(line)
	return nil
}

func (h *RingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *RingHandler) WithGroup(_ string) slog.Handler      { return h }

// Lines returns the current tail, oldest first.
func (h *RingHandler) Lines() []string { return h.buf.Lines() }

// multiHandler fans every record out to more than one slog.Handler, so
// the file-backed text handler and the in-memory ring tail can both
// observe the same stream of records.
type multiHandler struct {
	handlers []slog.Handler
}

// Combine returns a single Handler dispatching to all of handlers.
func Combine(handlers ...slog.Handler) slog.Handler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
