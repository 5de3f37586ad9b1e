package session

import (
	"log/slog"

	"github.com/opalaayan/vtdeck/internal/glyph"
)

// Store is C5: a fixed-capacity collection of up to TMax tabs with an
// active-tab index. Only the active tab is rendered. numTabs is a
// high-water mark, not a live count: a tab whose last pane dies stays
// in its slot with Active() false rather than being removed and
// compacted, so later tabs' indices (and the labels the tab bar paints
// for them) never shift.
type Store struct {
	log *slog.Logger

	tabs      [TMax]*Tab
	numTabs   int
	activeTab int

	shellPath string
	totalCols int
	rows      int
	metrics   glyph.Metrics
}

// NewStore constructs an empty store. totalCols/rows are the content
// area a new tab's single pane should span.
func NewStore(log *slog.Logger, shellPath string, totalCols, rows int, metrics glyph.Metrics) *Store {
	return &Store{log: log, shellPath: shellPath, totalCols: totalCols, rows: rows, metrics: metrics}
}

// NumTabs reports how many tab slots have been filled, including tabs
// whose last pane has since died (a high-water mark, see Store).
func (s *Store) NumTabs() int { return s.numTabs }

// ActiveTabIndex reports which tab is currently rendered.
func (s *Store) ActiveTabIndex() int { return s.activeTab }

// Tab returns the tab at index i, or nil if out of range.
func (s *Store) Tab(i int) *Tab {
	if i < 0 || i >= s.numTabs {
		return nil
	}
	return s.tabs[i]
}

// ActiveTab returns the tab currently rendered.
func (s *Store) ActiveTab() *Tab {
	return s.Tab(s.activeTab)
}

// NewTab appends an initialized tab if numTabs < TMax, becoming the
// new active tab; otherwise it's a logged no-op refusal (ErrFull),
// idempotent on failure.
func (s *Store) NewTab() error {
	if s.numTabs >= TMax {
		s.log.Warn("session store at capacity", "num_tabs", s.numTabs)
		return ErrFull
	}

	t, err := InitTab(s.log, s.shellPath, s.totalCols, s.rows, s.metrics)
	if err != nil {
		return err
	}
	s.tabs[s.numTabs] = t
	s.activeTab = s.numTabs
	s.numTabs++
	return nil
}

// Next rotates the active tab forward modulo numTabs.
func (s *Store) Next() {
	if s.numTabs == 0 {
		return
	}
	s.activeTab = (s.activeTab + 1) % s.numTabs
}

// Prev rotates the active tab backward modulo numTabs.
func (s *Store) Prev() {
	if s.numTabs == 0 {
		return
	}
	s.activeTab = (s.activeTab - 1 + s.numTabs) % s.numTabs
}

// Split delegates SplitVertical to the active tab.
func (s *Store) Split() error {
	t := s.ActiveTab()
	if t == nil {
		return ErrNoActiveTab
	}
	return t.SplitVertical()
}

// FocusLeft delegates focusing pane 0 to the active tab, if split.
func (s *Store) FocusLeft() {
	if t := s.ActiveTab(); t != nil {
		t.Focus(0)
	}
}

// FocusRight delegates focusing pane 1 to the active tab, if split.
func (s *Store) FocusRight() {
	if t := s.ActiveTab(); t != nil && t.NumPanes() > 1 {
		t.Focus(1)
	}
}

// ClosePane tears down pane paneIdx of tab tabIdx. If that empties the
// tab, the tab's slot stays put (numTabs is a high-water mark, never
// decremented or compacted — tab labels painted by the tab bar never
// get renumbered) with Active() now false, and, if the active tab is no
// longer active, a new active tab is elected deterministically
// (lowest-index still-active tab).
func (s *Store) ClosePane(tabIdx, paneIdx int) {
	t := s.Tab(tabIdx)
	if t == nil {
		return
	}
	emptied := t.ClosePane(paneIdx)
	if emptied {
		s.reelectActiveTab()
	}
}

// reelectActiveTab keeps the current active tab if it is still active;
// otherwise it chooses the lowest-index still-active tab, or index 0
// if none remain active.
func (s *Store) reelectActiveTab() {
	if s.activeTab < s.numTabs && s.tabs[s.activeTab] != nil && s.tabs[s.activeTab].Active() {
		return
	}
	for i := 0; i < s.numTabs; i++ {
		if s.tabs[i] != nil && s.tabs[i].Active() {
			s.activeTab = i
			return
		}
	}
	s.activeTab = 0
}

// ForEachPane visits every live pane across every tab, active or not:
// background tabs keep their shells running and still need their PTY
// masters drained even while nothing is rendering them.
func (s *Store) ForEachPane(fn func(tabIdx, paneIdx int, p *Pane)) {
	for ti := 0; ti < s.numTabs; ti++ {
		t := s.tabs[ti]
		if t == nil {
			continue
		}
		for pi := 0; pi < t.NumPanes(); pi++ {
			if p := t.Pane(pi); p != nil {
				fn(ti, pi, p)
			}
		}
	}
}

// ShouldShutdown reports whether no tab remains active.
func (s *Store) ShouldShutdown() bool {
	if s.numTabs == 0 {
		return true
	}
	for i := 0; i < s.numTabs; i++ {
		if s.tabs[i] != nil && s.tabs[i].Active() {
			return false
		}
	}
	return true
}
