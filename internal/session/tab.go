package session

import (
	"fmt"
	"log/slog"

	"github.com/opalaayan/vtdeck/internal/glyph"
)

// Tab is C4: an ordered group of 1..PMax panes sharing a row count and
// horizontal span, tracking which pane is active. Modeled as a
// fixed-capacity array: the core never grows beyond TMax*PMax live
// panes, so no dynamic collection is needed.
type Tab struct {
	log *slog.Logger

	panes      [PMax]*Pane
	numPanes   int
	activePane int
	rows       int
	active     bool
	shellPath  string
	metrics    glyph.Metrics
}

// InitTab constructs a tab with a single pane spanning [0, totalCols)
// at startColPx=0.
func InitTab(log *slog.Logger, shellPath string, totalCols, rows int, metrics glyph.Metrics) (*Tab, error) {
	t := &Tab{log: log, rows: rows, shellPath: shellPath, metrics: metrics, active: true}

	p, err := Spawn(log, shellPath, rows, totalCols, 0, metrics)
	if err != nil {
		return nil, err
	}
	t.panes[0] = p
	t.numPanes = 1
	t.activePane = 0
	return t, nil
}

// NumPanes reports how many of the tab's pane slots are live.
func (t *Tab) NumPanes() int { return t.numPanes }

// ActivePaneIndex reports which pane currently receives input.
func (t *Tab) ActivePaneIndex() int { return t.activePane }

// Pane returns the pane at index i, or nil if out of range.
func (t *Tab) Pane(i int) *Pane {
	if i < 0 || i >= t.numPanes {
		return nil
	}
	return t.panes[i]
}

// ActivePane returns the pane currently receiving input.
func (t *Tab) ActivePane() *Pane {
	return t.Pane(t.activePane)
}

// Rows reports the tab's shared row count.
func (t *Tab) Rows() int { return t.rows }

// Active reports whether the tab still has a live pane.
func (t *Tab) Active() bool { return t.active }

// TotalCols returns the sum of pane widths, i.e. the tab's usable
// width in columns (a tab's panes always tile its full width).
func (t *Tab) TotalCols() int {
	total := 0
	for i := 0; i < t.numPanes; i++ {
		total += t.panes[i].Cols()
	}
	return total
}

// SplitVertical splits a single-pane tab in two, side by side.
// Precondition: numPanes==1. Splits pane 0's width in half (left gets the floor),
// refusing with ErrTooNarrow if either side would drop below 2
// columns, and rolling pane 0 back to its pre-split dimensions if
// pane 1 fails to spawn.
func (t *Tab) SplitVertical() error {
	if t.numPanes != 1 {
		return nil // idempotent: already split
	}

	old := t.panes[0].Cols()
	left := old / 2
	right := old - left
	if left < 2 || right < 2 {
		return ErrTooNarrow
	}

	t.panes[0].Resize(t.rows, left, 0, t.metrics)

	p1, err := Spawn(t.log, t.shellPath, t.rows, right, left*t.metrics.CellW, t.metrics)
	if err != nil {
		// Roll back pane 0 to its pre-split size so a refused split leaves
		// the tab's layout unchanged.
		t.panes[0].Resize(t.rows, old, 0, t.metrics)
		return fmt.Errorf("%w: %v", ErrPaneSpawnFailed, err)
	}

	t.panes[1] = p1
	t.numPanes = 2
	t.activePane = 1
	return nil
}

// Focus sets the active pane within the tab. No re-render by itself
// No re-render happens by itself.
func (t *Tab) Focus(index int) {
	if index < 0 || index >= t.numPanes {
		return
	}
	t.activePane = index
}

// ClosePane tears down pane i (its child has already exited) and
// compacts the pane array, adjusting activePane. Returns true if the
// tab has no surviving panes and should be marked inactive.
func (t *Tab) ClosePane(i int) bool {
	if i < 0 || i >= t.numPanes {
		return t.numPanes == 0
	}
	total := t.TotalCols()
	t.panes[i].Terminate()

	for j := i; j < t.numPanes-1; j++ {
		t.panes[j] = t.panes[j+1]
	}
	t.panes[t.numPanes-1] = nil
	t.numPanes--

	if t.numPanes == 0 {
		t.active = false
		return true
	}

	// The surviving pane(s) reclaim the freed width so the tab's
	// layout-closure invariant (sum of widths == total cols) keeps
	// holding; with PMax==2 there is exactly one survivor, which
	// simply expands to the whole row.
	t.relayout(total)

	if t.activePane >= t.numPanes {
		t.activePane = t.numPanes - 1
	}
	return false
}

// relayout re-derives each surviving pane's width and start offset so
// they tile [0, total) left to right with no gaps, then resizes each
// pane to match.
func (t *Tab) relayout(total int) {
	if t.numPanes == 1 {
		t.panes[0].Resize(t.rows, total, 0, t.metrics)
		return
	}
	startCol := 0
	for i := 0; i < t.numPanes; i++ {
		t.panes[i].Resize(t.rows, t.panes[i].Cols(), startCol*t.metrics.CellW, t.metrics)
		startCol += t.panes[i].Cols()
	}
}
