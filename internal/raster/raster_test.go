package raster

import (
	"io"
	"log/slog"
	"testing"

	"github.com/hinshun/vt10x"

	"github.com/opalaayan/vtdeck/internal/display"
	"github.com/opalaayan/vtdeck/internal/glyph"
	"github.com/opalaayan/vtdeck/internal/session"
)

// fakeSurface backs Surface with a plain byte slice so rendering can be
// exercised without a real DRM device.
type fakeSurface struct {
	back    []byte
	stats   display.Stats
	present int
}

func newFakeSurface(w, h int) *fakeSurface {
	stride := w * 4
	return &fakeSurface{
		back:  make([]byte, stride*h),
		stats: display.Stats{Width: w, Height: h, Stride: stride},
	}
}

func (f *fakeSurface) Back() []byte         { return f.back }
func (f *fakeSurface) Stats() display.Stats { return f.stats }
func (f *fakeSurface) Present()             { f.present++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRenderPresentsAndFillsBackground(t *testing.T) {
	face := glyph.NewBasicFace()
	metrics := face.Metrics(0)

	cols, rows := 10, 5
	surf := newFakeSurface(cols*metrics.CellW, (rows+1)*metrics.CellH)

	store := session.NewStore(testLogger(), "/bin/sh", cols, rows, metrics)
	if err := store.NewTab(); err != nil {
		t.Fatalf("NewTab: %v", err)
	}
	defer drainStoreForTest(store)

	r := New(face, DefaultTheme)
	r.Render(surf, store, 0)

	if surf.present != 1 {
		t.Fatalf("Present called %d times, want 1", surf.present)
	}

	// The top-left pixel of an empty, non-cursor pane cell should be the
	// theme's background color, not left zeroed. Cell (0,0) holds the
	// fresh emulator's cursor and is painted CursorBG, so cell (1,0) is
	// probed instead.
	got := getPixel(surf.back, surf.stats, metrics.CellW, 0)
	want := DefaultTheme.Background
	if got != want {
		t.Fatalf("top-left pixel of cell (1,0) = %#x, want %#x", uint32(got), uint32(want))
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	face := glyph.NewBasicFace()
	metrics := face.Metrics(0)

	cols, rows := 8, 4
	surf := newFakeSurface(cols*metrics.CellW, (rows+1)*metrics.CellH)

	store := session.NewStore(testLogger(), "/bin/sh", cols, rows, metrics)
	if err := store.NewTab(); err != nil {
		t.Fatalf("NewTab: %v", err)
	}
	defer drainStoreForTest(store)

	r := New(face, DefaultTheme)
	r.Render(surf, store, 0)
	first := append([]byte(nil), surf.back...)

	r.Render(surf, store, 0)
	second := surf.back

	if len(first) != len(second) {
		t.Fatalf("buffer length changed across renders")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("render not idempotent at byte %d: %d != %d", i, first[i], second[i])
		}
	}
}

// TestReverseCellUsesVt10xSwappedColors exercises a cell as vt10x leaves
// it after its own reverse-video swap in setChar(): the default-color
// sentinels land in the opposite channel from where they'd sit on a
// plain cell. The rasterizer must not swap them a second time, and must
// resolve each sentinel to its theme color regardless of which channel
// it ends up in.
func TestReverseCellUsesVt10xSwappedColors(t *testing.T) {
	r := New(glyph.NewBasicFace(), DefaultTheme)

	plain := vt10x.Glyph{FG: vt10x.DefaultFG, BG: vt10x.DefaultBG}
	if got := r.resolveFG(plain); got != DefaultTheme.Foreground {
		t.Fatalf("plain cell FG = %#x, want theme foreground %#x", uint32(got), uint32(DefaultTheme.Foreground))
	}
	if got := r.resolveBG(plain); got != DefaultTheme.Background {
		t.Fatalf("plain cell BG = %#x, want theme background %#x", uint32(got), uint32(DefaultTheme.Background))
	}

	// vt10x's setChar swaps FG/BG in place for a reverse cell, so a
	// default-colored reverse cell carries DefaultBG in the FG channel
	// and DefaultFG in the BG channel by the time the rasterizer sees it.
	reversed := vt10x.Glyph{FG: vt10x.DefaultBG, BG: vt10x.DefaultFG}
	if got := r.resolveFG(reversed); got != DefaultTheme.Background {
		t.Fatalf("reversed cell FG = %#x, want theme background %#x", uint32(got), uint32(DefaultTheme.Background))
	}
	if got := r.resolveBG(reversed); got != DefaultTheme.Foreground {
		t.Fatalf("reversed cell BG = %#x, want theme foreground %#x", uint32(got), uint32(DefaultTheme.Foreground))
	}
}

func drainStoreForTest(s *session.Store) {
	for i := s.NumTabs() - 1; i >= 0; i-- {
		if tab := s.Tab(i); tab != nil {
			for p := tab.NumPanes() - 1; p >= 0; p-- {
				s.ClosePane(i, p)
			}
		}
	}
}
