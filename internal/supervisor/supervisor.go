// Package supervisor launches the worker pool and reaper as managed
// goroutines, restarts any that terminate abnormally, and drives
// graceful shutdown, per spec §4.5.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner is anything the supervisor can launch and restart: both
// workerpool.Worker and reaper.Reaper satisfy this with their Run
// method, so the supervisor treats them uniformly.
type Runner interface {
	Run(ctx context.Context) error
}

// Config controls restart behavior and shutdown timing.
type Config struct {
	RestartBackoff time.Duration
	ShutdownGrace  time.Duration
}

// Supervisor owns a fixed set of named, restartable tasks.
type Supervisor struct {
	cfg Config
	log *slog.Logger

	mu     sync.Mutex
	tasks  map[string]Runner
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Supervisor. Add tasks with Add before calling Start.
func New(cfg Config, log *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		log:   log.With("component", "supervisor"),
		tasks: make(map[string]Runner),
	}
}

// Add registers a task under name. Must be called before Start.
func (s *Supervisor) Add(name string, r Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = r
}

// Start launches every registered task under its own supervised
// goroutine. Start returns immediately; tasks run until Stop is called
// or ctx is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, task := range s.tasks {
		s.wg.Add(1)
		go s.superviseLoop(ctx, name, task)
	}
}

// superviseLoop restarts task after RestartBackoff whenever it exits
// abnormally (returns a non-nil error, or panics), and returns quietly
// once ctx is canceled — spec's distinction between graceful and
// abnormal termination.
func (s *Supervisor) superviseLoop(ctx context.Context, name string, task Runner) {
	defer s.wg.Done()
	for {
		err := s.runOnce(ctx, name, task)
		if ctx.Err() != nil {
			return // shutdown in progress: do not restart
		}
		if err == nil {
			return // the task chose to exit gracefully on its own
		}
		s.log.Error("task terminated abnormally, restarting", "task", name, "err", err)
		select {
		case <-time.After(s.cfg.RestartBackoff):
		case <-ctx.Done():
			return
		}
	}
}

// runOnce runs task to completion, converting a panic into an error so
// superviseLoop has one uniform signal for "abnormal termination".
func (s *Supervisor) runOnce(ctx context.Context, name string, task Runner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task %s: %v", name, r)
		}
	}()
	return task.Run(ctx)
}

// Stop signals every task to shut down and waits up to ShutdownGrace
// for them to drain in-flight work. Tasks that have already issued a
// store write finish that write before observing cancellation; Stop
// does not abort them mid-transaction.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.Warn("shutdown grace period exceeded; some tasks may still be draining")
	}
}
