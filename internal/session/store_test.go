package session

import "testing"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testLogger(), "/bin/sh", 192, 53, testMetrics)
}

// TestNewTabRoundTrip checks that new-tab, new-tab, prev, next returns
// active_tab to the value it had after the first new-tab.
func TestNewTabRoundTrip(t *testing.T) {
	s := newTestStore(t)
	defer drainStore(s)

	if err := s.NewTab(); err != nil {
		t.Fatalf("NewTab 1: %v", err)
	}
	afterFirst := s.ActiveTabIndex()

	if err := s.NewTab(); err != nil {
		t.Fatalf("NewTab 2: %v", err)
	}

	s.Prev()
	s.Next()

	if got := s.ActiveTabIndex(); got != afterFirst {
		t.Fatalf("ActiveTabIndex after round trip = %d, want %d", got, afterFirst)
	}
}

func TestStoreFullRefusal(t *testing.T) {
	s := newTestStore(t)
	defer drainStore(s)

	for i := 0; i < TMax; i++ {
		if err := s.NewTab(); err != nil {
			t.Fatalf("NewTab %d: %v", i, err)
		}
	}
	if err := s.NewTab(); err != ErrFull {
		t.Fatalf("NewTab beyond capacity: err = %v, want ErrFull", err)
	}
	if s.NumTabs() != TMax {
		t.Fatalf("NumTabs = %d, want %d", s.NumTabs(), TMax)
	}
}

func TestSessionBoundsInvariant(t *testing.T) {
	s := newTestStore(t)
	defer drainStore(s)

	for i := 0; i < 3; i++ {
		if err := s.NewTab(); err != nil {
			t.Fatalf("NewTab: %v", err)
		}
	}

	if s.ActiveTabIndex() < 0 || s.ActiveTabIndex() >= s.NumTabs() || s.NumTabs() > TMax {
		t.Fatalf("session bounds violated: active=%d numTabs=%d", s.ActiveTabIndex(), s.NumTabs())
	}

	active := s.ActiveTab()
	if active.ActivePaneIndex() < 0 || active.ActivePaneIndex() >= active.NumPanes() || active.NumPanes() > PMax {
		t.Fatalf("pane bounds violated: active=%d numPanes=%d", active.ActivePaneIndex(), active.NumPanes())
	}
}

func TestClosePaneReelectsLowestActiveTab(t *testing.T) {
	s := newTestStore(t)
	defer drainStore(s)

	for i := 0; i < 3; i++ {
		if err := s.NewTab(); err != nil {
			t.Fatalf("NewTab: %v", err)
		}
	}
	s.activeTab = 1 // simulate tab 1 being active when its only pane dies

	s.ClosePane(1, 0)

	// numTabs is a high-water mark: closing a tab's last pane never
	// shrinks it or renumbers the tabs after it.
	if s.NumTabs() != 3 {
		t.Fatalf("NumTabs after close = %d, want 3", s.NumTabs())
	}
	if s.Tab(1).Active() {
		t.Fatal("tab 1 should be inactive after its last pane closed")
	}
	if s.ActiveTabIndex() != 0 {
		t.Fatalf("ActiveTabIndex = %d, want 0 (lowest-index still-active tab)", s.ActiveTabIndex())
	}
}

func TestShouldShutdownWhenLastTabEmpties(t *testing.T) {
	s := newTestStore(t)
	defer drainStore(s)

	if err := s.NewTab(); err != nil {
		t.Fatalf("NewTab: %v", err)
	}
	if s.ShouldShutdown() {
		t.Fatal("ShouldShutdown true with one active tab")
	}

	s.ClosePane(0, 0)

	if !s.ShouldShutdown() {
		t.Fatal("ShouldShutdown false after last tab's last pane closed")
	}
}

func drainStore(s *Store) {
	for i := s.NumTabs() - 1; i >= 0; i-- {
		if tab := s.Tab(i); tab != nil {
			for p := tab.NumPanes() - 1; p >= 0; p-- {
				s.ClosePane(i, p)
			}
		}
	}
}
