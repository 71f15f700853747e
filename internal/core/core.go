// Package core implements the three operations spec §6 exposes to the
// HTTP adapter: Submit, StatusOf and ResultOf. It wires the store and
// the queue together exactly as spec §2's data flow describes (Submit
// → store insert + queue push) without knowing anything about HTTP.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/charq/charq/internal/job"
	"github.com/charq/charq/internal/queue"
	"github.com/charq/charq/internal/store"
)

// ErrInvalidInput is returned by Submit when text is not well-formed
// UTF-8.
var ErrInvalidInput = errors.New("invalid input")

// ErrTextTooLarge is returned by Submit when text exceeds MaxTextBytes.
// Kept distinct from ErrInvalidInput so adapters can map it to a 413
// rather than a 400.
var ErrTextTooLarge = errors.New("text too large")

// ErrNotFound is re-exported from store so adapters need only import
// this package.
var ErrNotFound = store.ErrNotFound

// Core wires the store and queue together for the three client-facing
// operations.
type Core struct {
	store        store.Store
	queue        *queue.Queue
	maxTextBytes int64
	log          *slog.Logger
}

// New creates a Core. maxTextBytes enforces spec §6's MAX_TEXT_BYTES.
func New(st store.Store, q *queue.Queue, maxTextBytes int64, log *slog.Logger) *Core {
	return &Core{store: st, queue: q, maxTextBytes: maxTextBytes, log: log.With("component", "core")}
}

// Submit validates text, inserts a new pending job and offers it to
// the queue, returning the freshly generated id.
func (c *Core) Submit(ctx context.Context, text string) (string, error) {
	if int64(len(text)) > c.maxTextBytes {
		return "", fmt.Errorf("%w: text exceeds %d bytes", ErrTextTooLarge, c.maxTextBytes)
	}
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}

	id := newID()

	now := time.Now()
	if err := c.store.Insert(ctx, id, text, now); err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}

	if !c.queue.Offer(id) {
		// The row is already durable, but the id is not enqueued; the
		// reaper only re-offers expired leases, so it does not pick this
		// pending job up.
		c.log.Warn("queue full on submit, job not enqueued", "id", id)
	}

	return id, nil
}

// StatusOf returns the current view of a job, or ErrNotFound.
func (c *Core) StatusOf(ctx context.Context, id string) (*job.Job, error) {
	return c.store.GetView(ctx, id)
}

// ResultKind distinguishes the three shapes ResultOf can return.
type ResultKind int

const (
	ResultInProgress ResultKind = iota
	ResultDone
	ResultFailed
)

// Result is the tagged union described in spec §6 (`ResultOf(id) →
// {done, chars} | {in_progress, status} | {failed, attempts, error}`).
type Result struct {
	Kind       ResultKind
	Status     job.Status
	Characters *int
	Attempts   uint32
	Error      *string
}

// ResultOf returns the result view for id, or ErrNotFound.
func (c *Core) ResultOf(ctx context.Context, id string) (*Result, error) {
	j, err := c.store.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	switch j.Status {
	case job.Done:
		return &Result{Kind: ResultDone, Status: j.Status, Characters: j.ResultChars}, nil
	case job.Failed:
		return &Result{Kind: ResultFailed, Status: j.Status, Attempts: j.Attempts, Error: j.LastError}, nil
	default:
		return &Result{Kind: ResultInProgress, Status: j.Status}, nil
	}
}

// ListByStatus exposes the admin listing named in spec §9, grounded on
// the corpus's Observer.List pattern of paging a bounded read off the
// store without going through the queue.
func (c *Core) ListByStatus(ctx context.Context, status job.Status, limit int) ([]*job.Job, error) {
	return c.store.ListByStatus(ctx, status, limit)
}

// newID generates a fresh 128-bit id and renders it as 32 lowercase hex
// characters with no dashes, matching spec §3's "128-bit opaque
// identifier (hex text)" literally rather than as a dashed UUID string.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
