// Package reaper implements the periodic recovery task of spec §4.4: it
// scans for jobs whose lease has expired and returns them to pending,
// re-enqueueing their ids. It is kept deliberately separate from the
// worker loop so that a bug in worker code can never suppress recovery.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/charq/charq/internal/concurrency"
	"github.com/charq/charq/internal/lifecycle"
	"github.com/charq/charq/internal/queue"
	"github.com/charq/charq/internal/store"
)

// Config controls scan cadence and batch size.
type Config struct {
	Interval time.Duration
	Batch    int
}

// Reaper periodically resets lease-expired jobs to pending.
type Reaper struct {
	lifecycle.Base
	store store.Store
	queue *queue.Queue
	cfg   Config
	log   *slog.Logger
	task  concurrency.TimerTask
}

// New creates a Reaper. It is not started automatically.
func New(st store.Store, q *queue.Queue, cfg Config, log *slog.Logger) *Reaper {
	return &Reaper{
		store: st,
		queue: q,
		cfg:   cfg,
		log:   log.With("component", "reaper"),
	}
}

func (r *Reaper) tick(ctx context.Context) {
	now := time.Now()
	ids, err := r.store.ScanExpiredLeases(ctx, now, r.cfg.Batch)
	if err != nil {
		r.log.Error("scan expired leases failed", "err", err)
		return
	}
	recovered := 0
	for _, id := range ids {
		applied, err := r.store.ResetExpired(ctx, id, time.Now())
		if err != nil {
			r.log.Error("reset expired failed", "id", id, "err", err)
			continue
		}
		if applied {
			r.queue.Offer(id)
			recovered++
		}
	}
	if recovered > 0 {
		r.log.Info("recovered expired leases", "count", recovered)
	}
}

// Run blocks, ticking every cfg.Interval, until ctx is canceled. It
// satisfies the same Run(ctx) error shape the supervisor uses for
// workers, so both can be supervised uniformly.
func (r *Reaper) Run(ctx context.Context) error {
	if err := r.TryStart(); err != nil {
		return err
	}
	r.task.Start(ctx, r.tick, r.cfg.Interval)
	<-ctx.Done()
	_ = r.TryStop(30*time.Second, func() concurrency.DoneChan { return r.task.Stop() })
	return nil
}
