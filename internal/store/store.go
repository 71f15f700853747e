// Package store defines the durable Store contract: the only component
// that holds authoritative job state. Every lifecycle transition in the
// system goes through one of these methods, and each is a single short
// transaction so that readers are never blocked by the writer.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/charq/charq/internal/job"
)

var (
	// ErrAlreadyExists is returned by Insert on an id collision. Never
	// expected in practice since ids are random 128-bit values.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrNotFound is returned when an operation references an unknown id.
	ErrNotFound = errors.New("job not found")

	// ErrConflict is returned by a conditional update whose predicate did
	// not hold (the row was not in the expected status, or the lease was
	// still valid). Callers treat this as "someone else owns it" and move
	// on rather than retrying in a loop.
	ErrConflict = errors.New("job state conflict")
)

// Store is the durable, single-writer store of authoritative job state.
// Implementations must make every conditional transition atomic: the
// predicate and the write happen inside one transaction so that two
// callers racing on the same id can never both succeed.
type Store interface {
	// Insert creates a row with status=pending, attempts=0, and nulls
	// elsewhere. Returns ErrAlreadyExists on id collision.
	Insert(ctx context.Context, id, text string, now time.Time) error

	// Claim atomically transitions a row to started under a new lease,
	// but only if it is currently pending, or leased with an expired
	// lease. It reports whether the claim succeeded; a false return
	// (with a nil error) means another owner already holds the row, or
	// it has reached a terminal status.
	Claim(ctx context.Context, id, workerLabel string, leaseUntil, now time.Time) (bool, error)

	// MarkProcessing transitions a started row (held by the caller's
	// lease) to processing. Returns ErrConflict if the row is not
	// currently started.
	MarkProcessing(ctx context.Context, id string, now time.Time) error

	// ExtendLease pushes out the lease deadline without changing status.
	// Returns ErrConflict if the row is not in a leased status.
	ExtendLease(ctx context.Context, id string, newLeaseUntil, now time.Time) error

	// Complete transitions a leased row to done, recording the result.
	// Returns ErrConflict if the row is not currently started/processing.
	Complete(ctx context.Context, id string, resultChars int, now time.Time) error

	// RecordRetry increments attempts, records the error, and resets the
	// row to pending with its lease cleared. Returns ErrConflict if the
	// row has already reached a terminal status.
	RecordRetry(ctx context.Context, id, errMsg string, now time.Time) error

	// RecordFailed increments attempts, records the error, and
	// transitions a non-terminal row to failed. Incrementing here too
	// (same as RecordRetry) keeps the invariant that a failed job's
	// attempts counts the exhausting attempt, not just the ones before
	// it. Returns ErrConflict if the row has already reached a terminal
	// status.
	RecordFailed(ctx context.Context, id, errMsg string, now time.Time) error

	// FetchText returns the immutable text payload of a job.
	FetchText(ctx context.Context, id string) (string, error)

	// GetView returns a read-only snapshot of a job's user-visible
	// attributes. Returns ErrNotFound for an unknown id.
	GetView(ctx context.Context, id string) (*job.Job, error)

	// ListByStatus returns up to limit jobs in the given status, most
	// recently updated first. status == job.Unknown matches any status.
	// limit <= 0 means no limit.
	ListByStatus(ctx context.Context, status job.Status, limit int) ([]*job.Job, error)

	// ScanExpiredLeases returns ids of started/processing rows whose
	// lease has already expired, up to limit rows.
	ScanExpiredLeases(ctx context.Context, now time.Time, limit int) ([]string, error)

	// ResetExpired conditionally resets one row to pending if it is
	// still expired at the time of the call (re-checks the predicate
	// inside the transaction, since a worker may have completed it
	// between the scan and this call). Reports whether the reset
	// applied.
	ResetExpired(ctx context.Context, id string, now time.Time) (bool, error)
}
