package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"garasiku/internal/types"
)

// DefaultSchedule fires every Monday at 08:00 in the cron location.
const DefaultSchedule = "0 0 8 * * MON"

// Cron runs the reminder on a six-field cron schedule inside a long-lived
// process.
type Cron struct {
	cron    *cron.Cron
	runner  *Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewCron registers runner under schedule. Runs are skipped, not queued, while a
// previous run is still going. timeout bounds each run; zero means none.
func NewCron(runner *Runner, schedule string, loc *time.Location, timeout time.Duration, logger *slog.Logger) (*Cron, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is required")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cron{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}

	if _, err := c.cron.AddFunc(schedule, func() { c.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return c, nil
}

// Start begins firing in the background.
func (c *Cron) Start() {
	c.logger.Info("starting reminder cron", "entries", len(c.cron.Entries()))
	c.cron.Start()
}

// Stop prevents new runs and returns a context done once the running one
// finishes.
func (c *Cron) Stop() context.Context {
	return c.cron.Stop()
}

// Next reports the next scheduled fire time.
func (c *Cron) Next() time.Time {
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce executes a single run and logs the outcome. Errors never escape;
// the next tick tries again.
func (c *Cron) RunOnce(ctx context.Context) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx = types.WithRunID(ctx, uuid.NewString())

	summary, err := c.runner.Run(ctx, ReminderPayload{Task: TaskSendReminders})
	switch {
	case errors.Is(err, ErrLockHeld):
		c.logger.InfoContext(ctx, "scheduled reminder skipped: lock held")
	case err != nil:
		c.logger.ErrorContext(ctx, "scheduled reminder failed", "error", err)
	default:
		c.logger.InfoContext(ctx, "scheduled reminder sent",
			"service_tasks", summary.ServiceTasks,
			"admin_tasks", summary.AdminTasks,
		)
	}
}
