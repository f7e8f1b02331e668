package run

import "errors"

// PlayPause is the operator's live run state.
type PlayPause int

const (
	Play PlayPause = iota
	Pause
)

// Control is the narrow surface the worker polls between batches. The
// operator side writes it, the worker only reads it; no other mutable
// state crosses that boundary.
type Control interface {
	State() PlayPause
	StopRequested() bool
}

// ProgressSink receives progress updates after every committed batch.
type ProgressSink interface {
	OnProgress(total, completed int)
	OnProcessedCount(n int)
}

// ErrStopped is the benign outcome of an operator-requested stop. It is
// not a failure and callers must message it as "stopped", not as an error.
var ErrStopped = errors.New("stopped by operator")
