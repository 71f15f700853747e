// Package sqlite implements store.Store on top of bun and
// modernc.org/sqlite.
//
// Every conditional transition is a single UPDATE ... WHERE <predicate>
// statement, never a read followed by a write: the predicate and the
// mutation are evaluated by the same statement inside the database
// engine, so two callers racing on the same id can never both succeed.
// SQLite's own single-writer serialization is the only synchronization
// this package relies on; callers are expected to have opened the
// database in WAL journal mode with a busy_timeout set.
package sqlite

import (
	"context"
	gosql "database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/charq/charq/internal/job"
	"github.com/charq/charq/internal/store"
)

// Store implements store.Store using a *bun.DB.
type Store struct {
	db *bun.DB
}

// New wraps an already-connected, already-migrated *bun.DB.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func isAffected(res gosql.Result) bool {
	n, err := res.RowsAffected()
	if err != nil {
		return true
	}
	return n != 0
}

func (s *Store) Insert(ctx context.Context, id, text string, now time.Time) error {
	m := &jobModel{
		ID:        id,
		Text:      text,
		Status:    job.Pending,
		Attempts:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Claim is the sole primitive granting exclusive execution rights. The
// predicate mirrors spec §4.1 exactly: eligible rows are pending, or
// started/processing with an expired lease.
func (s *Store) Claim(ctx context.Context, id, workerLabel string, leaseUntil, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Started).
		Set("processing_by = ?", workerLabel).
		Set("lease_until = ?", leaseUntil).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Where("status = ?", job.Pending).
				WhereOr("(status IN (?, ?) AND lease_until < ?)", job.Started, job.Processing, now)
		}).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Processing).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", job.Started).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) ExtendLease(ctx context.Context, id string, newLeaseUntil, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("lease_until = ?", newLeaseUntil).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?, ?)", job.Started, job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) Complete(ctx context.Context, id string, resultChars int, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Done).
		Set("result_chars = ?", resultChars).
		Set("processing_by = NULL").
		Set("lease_until = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?, ?)", job.Started, job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) RecordRetry(ctx context.Context, id, errMsg string, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Pending).
		Set("attempts = attempts + 1").
		Set("last_error = ?", errMsg).
		Set("processing_by = NULL").
		Set("lease_until = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?, ?, ?)", job.Pending, job.Started, job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) RecordFailed(ctx context.Context, id, errMsg string, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Failed).
		Set("attempts = attempts + 1").
		Set("last_error = ?", errMsg).
		Set("processing_by = NULL").
		Set("lease_until = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?, ?, ?)", job.Pending, job.Started, job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) FetchText(ctx context.Context, id string) (string, error) {
	var m jobModel
	err := s.db.NewSelect().
		Model(&m).
		Column("text").
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, gosql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return m.Text, nil
}

func (s *Store) GetView(ctx context.Context, id string) (*job.Job, error) {
	var m jobModel
	err := s.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, gosql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return m.toJob(), nil
}

func (s *Store) ListByStatus(ctx context.Context, status job.Status, limit int) ([]*job.Job, error) {
	var models []*jobModel
	q := s.db.NewSelect().Model(&models).Order("updated_at DESC")
	if status != job.Unknown {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	jobs := make([]*job.Job, 0, len(models))
	for _, m := range models {
		jobs = append(jobs, m.toJob())
	}
	return jobs, nil
}

func (s *Store) ScanExpiredLeases(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	q := s.db.NewSelect().
		Model((*jobModel)(nil)).
		Column("id").
		Where("status IN (?, ?)", job.Started, job.Processing).
		Where("lease_until < ?", now).
		Order("lease_until ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ResetExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Pending).
		Set("processing_by = NULL").
		Set("lease_until = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?, ?)", job.Started, job.Processing).
		Where("lease_until < ?", now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
