// Package workerpool implements the worker loop of spec §4.3: take an
// id from the queue, claim it under a lease, run the transform, and
// resolve the job to done, pending (retry) or failed.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charq/charq/internal/backoff"
	"github.com/charq/charq/internal/queue"
	"github.com/charq/charq/internal/store"
	"github.com/charq/charq/internal/transform"
)

// Config controls a single worker's claim/lease/retry behavior.
type Config struct {
	LeaseSeconds int
	MaxRetries   int
	FaultRate    float64
	WorkDelay    time.Duration
	Backoff      backoff.Config
}

// Worker runs the claim/process/resolve loop described in spec §4.3
// under one stable label (w-1, w-2, ...). A Worker is a single unit of
// supervised work: Run blocks until ctx is canceled (a graceful exit,
// reported as a nil error) or it hits an unrecoverable bug (a panic,
// which the supervisor recovers and treats as an abnormal exit to
// restart).
type Worker struct {
	Label string

	store store.Store
	queue *queue.Queue
	cfg   Config
	log   *slog.Logger
	back  backoff.Counter
}

// New creates a Worker identified by label, pulling from q and
// mutating st.
func New(label string, st store.Store, q *queue.Queue, cfg Config, log *slog.Logger) *Worker {
	return &Worker{
		Label: label,
		store: st,
		queue: q,
		cfg:   cfg,
		log:   log.With("worker", label),
		back:  backoff.Counter{Config: cfg.Backoff},
	}
}

// Run blocks, processing ids from the queue until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		id, err := w.queue.Take(ctx)
		if err != nil {
			return nil // shutdown signal observed at the only blocking point
		}
		w.handle(ctx, id)
	}
}

func (w *Worker) handle(ctx context.Context, id string) {
	now := time.Now()
	leaseUntil := now.Add(time.Duration(w.cfg.LeaseSeconds) * time.Second)

	ok, err := w.store.Claim(ctx, id, w.Label, leaseUntil, now)
	if err != nil {
		w.log.Error("claim failed", "id", id, "err", err)
		return
	}
	if !ok {
		// Another worker owns it, it's terminal, or the reaper is
		// mid-cycle on it. Discard; never re-derive ownership outside
		// Claim.
		return
	}

	if err := w.store.MarkProcessing(ctx, id, time.Now()); err != nil {
		w.log.Error("mark processing failed", "id", id, "err", err)
		return
	}

	text, err := w.store.FetchText(ctx, id)
	if err != nil {
		w.log.Error("fetch text failed", "id", id, "err", err)
		w.onFailure(ctx, id, err)
		return
	}

	stopExtend := w.keepLeaseAlive(ctx, id, leaseUntil)
	defer stopExtend()

	if w.cfg.WorkDelay > 0 {
		select {
		case <-time.After(w.cfg.WorkDelay):
		case <-ctx.Done():
			// A write is not in flight here; it is safe to abandon and
			// let the lease expire for the reaper to recover.
			return
		}
	}

	chars, err := transform.CountChars(text, w.cfg.FaultRate)
	if err != nil {
		w.onFailure(ctx, id, err)
		return
	}

	if err := w.store.Complete(ctx, id, chars, time.Now()); err != nil {
		w.log.Error("complete failed", "id", id, "err", err)
	}
}

// keepLeaseAlive extends the lease at the halfway point of its
// remaining life, for transforms slow enough to risk losing it to the
// reaper mid-flight (spec §5, "Lease as a failure detector"). It
// returns a stop function that must be called once the job resolves.
func (w *Worker) keepLeaseAlive(ctx context.Context, id string, leaseUntil time.Time) func() {
	half := time.Duration(w.cfg.LeaseSeconds) * time.Second / 2
	if half <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(half)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				newLease := time.Now().Add(time.Duration(w.cfg.LeaseSeconds) * time.Second)
				if err := w.store.ExtendLease(ctx, id, newLease, time.Now()); err != nil {
					if !errors.Is(err, store.ErrConflict) {
						w.log.Error("extend lease failed", "id", id, "err", err)
					}
					return
				}
			}
		}
	}()
	return func() { close(stop) }
}

// onFailure implements the attempts/retry/fail accounting of spec §4.3
// and §9: both RecordRetry and RecordFailed increment attempts, since
// every attempt — whether it leads to a retry or exhausts the cap —
// counts. A job only reaches failed once newAttempts has reached
// MaxRetries, so a failed job always ends with attempts >= MaxRetries
// (invariant I4).
func (w *Worker) onFailure(ctx context.Context, id string, cause error) {
	current, err := w.store.GetView(ctx, id)
	if err != nil {
		w.log.Error("fetch attempts failed", "id", id, "err", err)
		return
	}
	newAttempts := current.Attempts + 1

	if int(newAttempts) < w.cfg.MaxRetries {
		if err := w.store.RecordRetry(ctx, id, cause.Error(), time.Now()); err != nil {
			w.log.Error("record retry failed", "id", id, "err", err)
			return
		}
		delay := w.back.Delay(newAttempts)
		time.AfterFunc(delay, func() { w.queue.Offer(id) })
		return
	}

	if err := w.store.RecordFailed(ctx, id, cause.Error(), time.Now()); err != nil {
		w.log.Error("record failed failed", "id", id, "err", err)
	}
}
