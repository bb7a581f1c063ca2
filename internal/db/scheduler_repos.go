package db

import (
	"context"
	"time"

	"garasiku/internal/types"
)

// Job history statuses.
const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)

// JobLockRepository keeps one row per lock ID in job_locks so two scheduled
// triggers for the same day (an EventBridge redelivery, the cron daemon and a
// manual job-runner call) cannot both send the digest.
type JobLockRepository struct {
	db  DBTX
	now func() time.Time
}

// NewJobLockRepository creates a JobLockRepository.
func NewJobLockRepository(db DBTX) *JobLockRepository {
	return &JobLockRepository{db: db, now: time.Now}
}

// Acquire takes lockID for ttl. An existing row is only taken over once it
// has expired; otherwise Acquire reports false. Timestamps are computed here
// because a Go duration string is not a Postgres interval.
func (r *JobLockRepository) Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error) {
	lockedAt := r.now().UTC()

	tag, err := r.db.Exec(ctx, `
		INSERT INTO job_locks (id, worker_id, locked_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET worker_id = EXCLUDED.worker_id, locked_at = EXCLUDED.locked_at, expires_at = EXCLUDED.expires_at
		WHERE job_locks.expires_at < EXCLUDED.locked_at`,
		lockID, workerID, lockedAt, lockedAt.Add(ttl),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire job lock", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release drops lockID if workerID still holds it.
func (r *JobLockRepository) Release(ctx context.Context, lockID string, workerID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM job_locks WHERE id = $1 AND worker_id = $2`, lockID, workerID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release job lock", err)
	}
	return nil
}

// JobHistoryRepository writes one job_history row per reminder run.
type JobHistoryRepository struct {
	db DBTX
}

// NewJobHistoryRepository creates a JobHistoryRepository.
func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// Start opens a running row for jobType and returns its ID.
func (r *JobHistoryRepository) Start(ctx context.Context, jobType string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO job_history (job_type, started_at, status)
		VALUES ($1, NOW(), $2)
		RETURNING id`,
		jobType, JobStatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start job history entry", err)
	}
	return id, nil
}

// Finish closes row id. items is the number of tasks the digests carried;
// a non-nil jobErr is stored as text.
func (r *JobHistoryRepository) Finish(ctx context.Context, id int64, status string, items int, jobErr error) error {
	var errText *string
	if jobErr != nil {
		msg := jobErr.Error()
		errText = &msg
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE job_history
		SET finished_at = NOW(), status = $2, items_count = $3, error = $4
		WHERE id = $1`,
		id, status, items, errText,
	)
	switch {
	case err != nil:
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish job history entry", err)
	case tag.RowsAffected() == 0:
		return types.NewAppError(types.ErrCodeInternalUnexpected, "job history entry not found", nil)
	}
	return nil
}
