// Package lifecycle provides a strict start/stop-once guard for
// long-running components (currently the reaper) so each can only be
// started and stopped a single time.
package lifecycle

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/charq/charq/internal/concurrency"
)

const (
	stopped = iota
	started
)

var (
	// ErrDoubleStarted is returned when Start is called on a component
	// that has already been started.
	ErrDoubleStarted = errors.New("double start")

	// ErrDoubleStopped is returned when Stop is called on a component
	// that is not currently running.
	ErrDoubleStopped = errors.New("double stop")

	// ErrStopTimeout is returned when a component fails to shut down
	// within the provided timeout. The component may still be
	// terminating in the background.
	ErrStopTimeout = errors.New("stop timeout")
)

// Base is embedded by components that have a single-shot start/stop
// lifecycle (the reaper).
type Base struct {
	state atomic.Int32
}

// TryStart transitions stopped -> started, failing if already started.
func (b *Base) TryStart() error {
	if !b.state.CompareAndSwap(stopped, started) {
		return ErrDoubleStarted
	}
	return nil
}

// TryStop transitions started -> stopped, invoking df to begin shutdown
// and waiting up to timeout for it to complete.
func (b *Base) TryStop(timeout time.Duration, df concurrency.DoneFunc) error {
	if !b.state.CompareAndSwap(started, stopped) {
		return ErrDoubleStopped
	}
	done := df()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}
