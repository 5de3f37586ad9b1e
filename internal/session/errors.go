package session

import "errors"

// Operational refusal/error kinds. Constructors
// propagate these; steady-state operations log and continue.
var (
	ErrTooNarrow       = errors.New("session: pane would be narrower than 2 columns")
	ErrFull            = errors.New("session: store is at capacity")
	ErrPaneSpawnFailed = errors.New("session: pane spawn failed")
	ErrWriteStalled    = errors.New("session: write to pty stalled")
	ErrNoActiveTab     = errors.New("session: no active tab")
	ErrNoSuchPane      = errors.New("session: pane index out of range")
)
