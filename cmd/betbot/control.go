package main

import (
	"sync/atomic"
	"time"

	"toto-gobet/internal/run"
)

// signalControl is the CLI's control surface: signals flip the pause and
// stop flags, the worker polls them between batches.
type signalControl struct {
	paused atomic.Bool
	stop   atomic.Bool

	minDelay time.Duration
	maxDelay time.Duration
}

func newSignalControl(minDelay, maxDelay time.Duration) *signalControl {
	return &signalControl{minDelay: minDelay, maxDelay: maxDelay}
}

func (c *signalControl) State() run.PlayPause {
	if c.paused.Load() {
		return run.Pause
	}
	return run.Play
}

func (c *signalControl) StopRequested() bool {
	return c.stop.Load()
}

// TogglePause flips the pause flag and returns the new state.
func (c *signalControl) TogglePause() run.PlayPause {
	if c.paused.CompareAndSwap(false, true) {
		return run.Pause
	}
	c.paused.Store(false)
	return run.Play
}

// RequestStop sets the stop flag. The first call returns true; later calls
// return false so the caller can escalate to a hard abort.
func (c *signalControl) RequestStop() bool {
	return c.stop.CompareAndSwap(false, true)
}

func (c *signalControl) DelayRange() (time.Duration, time.Duration) {
	return c.minDelay, c.maxDelay
}
