package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"garasiku/internal/reminder"
	"garasiku/internal/types"
)

// DefaultLockTTL covers a run plus EventBridge's redelivery window.
const DefaultLockTTL = time.Hour

// ErrLockHeld is returned when another worker holds today's lock.
var ErrLockHeld = types.NewAppError(types.ErrCodeConflictJobRunning, "Reminder job already running", nil)

// ReminderJob runs one digest pass.
type ReminderJob interface {
	Run(ctx context.Context, opts reminder.RunOptions) (*reminder.Summary, error)
}

// JobLocker abstracts the distributed lock.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID string, workerID string) error
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// Runner wraps a ReminderJob with locking and history. JobLock and
// JobHistory are optional; the PostgREST backend has neither.
type Runner struct {
	Job        ReminderJob
	JobLock    JobLocker
	JobHistory JobHistorian
	WorkerID   string
	LockTTL    time.Duration
	// Location decides which calendar day a run belongs to.
	Location *time.Location
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run validates payload and executes the job once.
//
//  1. Determine the reference time.
//  2. Acquire the lock "send_reminders:<yyyy-mm-dd>".
//  3. Record job start in history.
//  4. Run the job.
//  5. Record completion; release the lock on failure so a retry can proceed.
func (r *Runner) Run(ctx context.Context, payload ReminderPayload) (*reminder.Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if payload.Task == "" {
		payload.Task = TaskSendReminders
	}
	if payload.Task != TaskSendReminders {
		return nil, fmt.Errorf("unknown task type: %q", payload.Task)
	}

	now := r.now()
	opts := reminder.RunOptions{}
	if payload.ReferenceTime != nil {
		now = *payload.ReferenceTime
		opts.ReferenceTime = now
	}

	taskStr := string(payload.Task)
	lockID := LockID(payload.Task, now, r.Location)
	logger.InfoContext(ctx, "reminder runner invoked",
		"task", taskStr,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", r.WorkerID,
	)

	if r.JobLock != nil {
		acquired, err := r.JobLock.Acquire(ctx, lockID, r.WorkerID, r.lockTTL())
		if err != nil {
			logger.ErrorContext(ctx, "failed to acquire job lock", "lock_id", lockID, "error", err)
			return nil, fmt.Errorf("acquiring job lock %s: %w", lockID, err)
		}
		if !acquired {
			logger.InfoContext(ctx, "job lock not acquired, another worker is processing", "lock_id", lockID)
			return nil, ErrLockHeld
		}
		logger.InfoContext(ctx, "job lock acquired", "lock_id", lockID)
	}

	var jobID int64
	if r.JobHistory != nil {
		id, err := r.JobHistory.Start(ctx, taskStr)
		if err != nil {
			// History is bookkeeping; the digest still goes out.
			logger.ErrorContext(ctx, "failed to start job history", "task", taskStr, "error", err)
		} else {
			jobID = id
		}
	}

	summary, runErr := r.Job.Run(ctx, opts)

	status := "success"
	if runErr != nil {
		status = "failed"
	}
	items := 0
	if summary != nil {
		items = summary.TotalTasks()
	}

	if jobID != 0 {
		if err := r.JobHistory.Finish(ctx, jobID, status, items, runErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history", "job_id", jobID, "error", err)
		}
	}

	if runErr != nil {
		if r.JobLock != nil {
			if err := r.JobLock.Release(ctx, lockID, r.WorkerID); err != nil {
				logger.ErrorContext(ctx, "failed to release job lock", "lock_id", lockID, "error", err)
			}
		}
		return summary, runErr
	}

	logger.InfoContext(ctx, "reminder runner complete", "task", taskStr, "items", items)
	return summary, nil
}

// LockID names the lock for task on the calendar day of t in loc.
func LockID(task TaskType, t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s:%s", task, t.In(loc).Format("2006-01-02"))
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) lockTTL() time.Duration {
	if r.LockTTL > 0 {
		return r.LockTTL
	}
	return DefaultLockTTL
}
