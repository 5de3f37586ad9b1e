package session

import (
	"io"
	"log/slog"
	"testing"

	"github.com/opalaayan/vtdeck/internal/glyph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testMetrics = glyph.Metrics{CellW: 10, CellH: 20, Ascender: 16}

func TestInitTabSingleSpan(t *testing.T) {
	tab, err := InitTab(testLogger(), "/bin/sh", 192, 53, testMetrics)
	if err != nil {
		t.Fatalf("InitTab: %v", err)
	}
	defer tab.ClosePane(0)

	if tab.NumPanes() != 1 {
		t.Fatalf("NumPanes = %d, want 1", tab.NumPanes())
	}
	if tab.ActivePaneIndex() != 0 {
		t.Fatalf("ActivePaneIndex = %d, want 0", tab.ActivePaneIndex())
	}
	if got := tab.Pane(0).StartColPx(); got != 0 {
		t.Fatalf("pane 0 StartColPx = %d, want 0", got)
	}
	if got := tab.TotalCols(); got != 192 {
		t.Fatalf("TotalCols = %d, want 192", got)
	}
}

func TestSplitVerticalLayout(t *testing.T) {
	tab, err := InitTab(testLogger(), "/bin/sh", 192, 53, testMetrics)
	if err != nil {
		t.Fatalf("InitTab: %v", err)
	}

	if err := tab.SplitVertical(); err != nil {
		t.Fatalf("SplitVertical: %v", err)
	}

	if tab.NumPanes() != 2 {
		t.Fatalf("NumPanes = %d, want 2", tab.NumPanes())
	}
	if tab.ActivePaneIndex() != 1 {
		t.Fatalf("ActivePaneIndex = %d, want 1", tab.ActivePaneIndex())
	}
	if got := tab.Pane(0).Cols(); got != 96 {
		t.Fatalf("pane 0 cols = %d, want 96", got)
	}
	if got := tab.Pane(1).Cols(); got != 96 {
		t.Fatalf("pane 1 cols = %d, want 96", got)
	}
	if got := tab.Pane(1).StartColPx(); got != 960 {
		t.Fatalf("pane 1 StartColPx = %d, want 960", got)
	}

	// A tab's panes always tile its full width.
	if got := tab.TotalCols(); got != 192 {
		t.Fatalf("TotalCols after split = %d, want 192", got)
	}
}

func TestSplitVerticalTooNarrow(t *testing.T) {
	tab, err := InitTab(testLogger(), "/bin/sh", 3, 53, testMetrics)
	if err != nil {
		t.Fatalf("InitTab: %v", err)
	}
	defer tab.ClosePane(0)

	beforeCols := tab.Pane(0).Cols()

	if err := tab.SplitVertical(); err == nil {
		t.Fatal("SplitVertical: expected ErrTooNarrow, got nil")
	}

	if tab.NumPanes() != 1 {
		t.Fatalf("NumPanes = %d, want 1 (refused split must not change state)", tab.NumPanes())
	}
	if got := tab.Pane(0).Cols(); got != beforeCols {
		t.Fatalf("pane 0 cols changed after refused split: %d != %d", got, beforeCols)
	}
}

func TestClosePaneCollapsesToSurvivor(t *testing.T) {
	tab, err := InitTab(testLogger(), "/bin/sh", 192, 53, testMetrics)
	if err != nil {
		t.Fatalf("InitTab: %v", err)
	}
	if err := tab.SplitVertical(); err != nil {
		t.Fatalf("SplitVertical: %v", err)
	}

	emptied := tab.ClosePane(1)
	if emptied {
		t.Fatal("ClosePane(1) reported the tab emptied, but pane 0 survives")
	}
	if tab.NumPanes() != 1 {
		t.Fatalf("NumPanes = %d, want 1", tab.NumPanes())
	}
	if got := tab.Pane(0).Cols(); got != 192 {
		t.Fatalf("surviving pane cols = %d, want 192 (full width reclaimed)", got)
	}

	emptied = tab.ClosePane(0)
	if !emptied {
		t.Fatal("ClosePane(0) on the last pane should report the tab emptied")
	}
	if tab.Active() {
		t.Fatal("tab should be inactive once its last pane is closed")
	}
}
