package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"garasiku/internal/notifications/digest"
	"garasiku/internal/notifications/email"
	"garasiku/internal/types"
)

// DefaultCallTimeout bounds each backend query and each send.
const DefaultCallTimeout = 10 * time.Second

// Caller-visible failure messages. Causes stay in the logs.
const (
	MsgSuccess         = "Emails sent!"
	MsgFetchFailed     = "Failed to fetch tasks"
	MsgRenderFailed    = "Failed to render digest"
	MsgDispatchFailed  = "Failed to send emails"
	MsgInternalFailure = "Internal Server Error!"
)

// DispatchPolicy decides what happens after one group fails to send.
type DispatchPolicy string

const (
	// PolicyBestEffort attempts every group and fails the run if any failed.
	PolicyBestEffort DispatchPolicy = "best_effort"
	// PolicyAbort stops at the first failed group.
	PolicyAbort DispatchPolicy = "abort"
)

// TaskRepository lists pending tasks dated on or before horizon, earliest
// first. Errors are distinct from empty results.
type TaskRepository interface {
	ListDueMaintenanceTasks(ctx context.Context, horizon time.Time) ([]types.MaintenanceTask, error)
	ListDueAdministrativeTasks(ctx context.Context, horizon time.Time) ([]types.AdministrativeTask, error)
}

// Dispatcher sends one rendered digest.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg email.Message) (email.Receipt, error)
}

// Summary is the outcome of a run. On failure it still carries whatever was
// learned, but callers report only the error.
type Summary struct {
	Message      string          `json:"message"`
	ServiceTasks int             `json:"serviceTasks"`
	AdminTasks   int             `json:"adminTasks"`
	RunID        string          `json:"runId,omitempty"`
	Window       *Window         `json:"window,omitempty"`
	Deliveries   []email.Receipt `json:"deliveries,omitempty"`
}

// TotalTasks is the number of due tasks across both categories.
func (s *Summary) TotalTasks() int {
	return s.ServiceTasks + s.AdminTasks
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// ReferenceTime, when set, replaces "now" and bypasses the window cache.
	ReferenceTime time.Time
}

// JobConfig holds the dependencies of a Job.
type JobConfig struct {
	Tasks      TaskRepository
	Window     *WindowPolicy
	Renderer   *digest.Renderer
	Dispatcher Dispatcher
	Recipients RecipientConfig

	Policy      DispatchPolicy
	CallTimeout time.Duration
	Metrics     Metrics
	Logger      *slog.Logger
}

// Job is the reminder digest orchestrator. A Job is stateless between runs
// apart from its window cache and may be run repeatedly.
type Job struct {
	tasks       TaskRepository
	window      *WindowPolicy
	renderer    *digest.Renderer
	dispatcher  Dispatcher
	recipients  RecipientConfig
	policy      DispatchPolicy
	callTimeout time.Duration
	metrics     Metrics
	logger      *slog.Logger
}

// NewJob validates cfg and applies defaults.
func NewJob(cfg JobConfig) (*Job, error) {
	if cfg.Tasks == nil || cfg.Window == nil || cfg.Renderer == nil || cfg.Dispatcher == nil {
		return nil, errors.New("reminder: tasks, window, renderer and dispatcher are required")
	}

	j := &Job{
		tasks:       cfg.Tasks,
		window:      cfg.Window,
		renderer:    cfg.Renderer,
		dispatcher:  cfg.Dispatcher,
		recipients:  cfg.Recipients,
		policy:      cfg.Policy,
		callTimeout: cfg.CallTimeout,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
	switch j.policy {
	case PolicyBestEffort, PolicyAbort:
	case "":
		j.policy = PolicyBestEffort
	default:
		return nil, fmt.Errorf("reminder: unknown dispatch policy %q", cfg.Policy)
	}
	if j.callTimeout <= 0 {
		j.callTimeout = DefaultCallTimeout
	}
	if j.metrics == nil {
		j.metrics = NoopMetrics{}
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j, nil
}

// Window exposes the job's window policy to the dashboard endpoints.
func (j *Job) Window() *WindowPolicy {
	return j.window
}

// Run executes one pass: window, fetch, resolve recipients, render, dispatch.
// Any failure yields a non-nil *types.AppError; panics are recovered and
// reported as ErrCodeInternalUnexpected.
func (j *Job) Run(ctx context.Context, opts RunOptions) (summary *Summary, err error) {
	runID := types.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = types.WithRunID(ctx, runID)
	}
	logger := types.LoggerFromContext(ctx, j.logger).With("run_id", runID)
	ctx = types.WithLogger(ctx, logger)

	start := time.Now()
	summary = &Summary{RunID: runID}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "reminder job panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = types.NewAppError(types.ErrCodeInternalUnexpected, MsgInternalFailure, fmt.Errorf("panic: %v", r))
		}
		j.metrics.RecordJobLatency(ctx, time.Since(start), err == nil)
	}()

	// 1. Window.
	var w Window
	if opts.ReferenceTime.IsZero() {
		j.window.ClearCache()
		w = j.window.Get(ctx)
	} else {
		w = j.window.At(ctx, opts.ReferenceTime)
	}
	summary.Window = &w
	logger.InfoContext(ctx, "reminder job started",
		"reference_date", w.ReferenceDate.Format(time.RFC3339),
		"horizon", w.Horizon.Format(time.RFC3339),
		"interval_days", w.IntervalDays,
	)

	// 2. Fetch both categories; either failure aborts before any send.
	maintenance, administrative, err := j.fetch(ctx, w)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch tasks", "error", err)
		return summary, err
	}
	summary.ServiceTasks = len(maintenance)
	summary.AdminTasks = len(administrative)
	j.metrics.RecordTasksFound(ctx, types.TaskKindMaintenance, len(maintenance))
	j.metrics.RecordTasksFound(ctx, types.TaskKindAdministrative, len(administrative))

	// 3. Recipients.
	groups, err := ResolveGroups(j.recipients)
	if err != nil {
		logger.ErrorContext(ctx, "recipient configuration rejected", "error", err)
		return summary, err
	}

	// 4. Render every digest before sending any.
	messages := make([]email.Message, 0, len(groups))
	for _, g := range groups {
		body, renderErr := j.renderer.Render(digest.Digest{
			Layout:         g.Layout,
			IntervalDays:   w.IntervalDays,
			Maintenance:    types.MaintenanceAsDue(maintenance),
			Administrative: types.AdministrativeAsDue(administrative),
		})
		if renderErr != nil {
			logger.ErrorContext(ctx, "failed to render digest", "group", g.Name, "error", renderErr)
			return summary, types.NewAppError(types.ErrCodeReminderRender, MsgRenderFailed, renderErr)
		}
		messages = append(messages, email.Message{
			Group:       g.Name,
			To:          g.Addresses,
			Subject:     g.Subject,
			BodyHTML:    body,
			ReferenceID: runID,
		})
	}

	// 5. Dispatch in configuration order.
	if err := j.dispatch(ctx, summary, messages); err != nil {
		return summary, err
	}

	// 6. Report.
	summary.Message = MsgSuccess
	logger.InfoContext(ctx, "reminder job finished",
		"service_tasks", summary.ServiceTasks,
		"admin_tasks", summary.AdminTasks,
		"groups", len(messages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// fetch runs both queries concurrently. Rows the repository should have
// filtered out are dropped here too.
func (j *Job) fetch(ctx context.Context, w Window) ([]types.MaintenanceTask, []types.AdministrativeTask, error) {
	var maintenance []types.MaintenanceTask
	var administrative []types.AdministrativeTask

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(func() error {
		callCtx, cancel := context.WithTimeout(gctx, j.callTimeout)
		defer cancel()
		tasks, err := j.tasks.ListDueMaintenanceTasks(callCtx, w.Horizon)
		if err != nil {
			return fmt.Errorf("maintenance tasks: %w", err)
		}
		maintenance = filterDue(tasks, w, func(t types.MaintenanceTask) (types.TaskStatus, time.Time) {
			return t.Status, t.ScheduledDate
		})
		return nil
	}))
	g.Go(guard(func() error {
		callCtx, cancel := context.WithTimeout(gctx, j.callTimeout)
		defer cancel()
		tasks, err := j.tasks.ListDueAdministrativeTasks(callCtx, w.Horizon)
		if err != nil {
			return fmt.Errorf("administrative tasks: %w", err)
		}
		administrative = filterDue(tasks, w, func(t types.AdministrativeTask) (types.TaskStatus, time.Time) {
			return t.Status, t.DueDate
		})
		return nil
	}))

	if err := g.Wait(); err != nil {
		code := types.CodeOf(err)
		if code == "" {
			code = types.ErrCodeInternalDB
		}
		return nil, nil, types.NewAppError(code, MsgFetchFailed, err)
	}
	return maintenance, administrative, nil
}

// guard turns a panic in a fetch goroutine into an error; Run's recover only
// covers its own goroutine.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}

func filterDue[T any](tasks []T, w Window, key func(T) (types.TaskStatus, time.Time)) []T {
	out := make([]T, 0, len(tasks))
	for _, t := range tasks {
		if status, date := key(t); w.Includes(status, date) {
			out = append(out, t)
		}
	}
	return out
}

// dispatch sends each message under its own timeout and records receipts on
// summary. It returns one error describing every failed group.
func (j *Job) dispatch(ctx context.Context, summary *Summary, messages []email.Message) error {
	logger := types.LoggerFromContext(ctx, j.logger)

	var errs []error
	var failed []string
	var firstCode types.ErrorCode

	for _, msg := range messages {
		callCtx, cancel := context.WithTimeout(ctx, j.callTimeout)
		receipt, err := j.dispatcher.Dispatch(callCtx, msg)
		cancel()

		summary.Deliveries = append(summary.Deliveries, receipt)
		j.metrics.RecordDispatch(ctx, msg.Group, receipt.Status)

		if err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("group %s: %w", msg.Group, err))
		failed = append(failed, msg.Group)
		if firstCode == "" {
			if firstCode = types.CodeOf(err); firstCode == "" {
				firstCode = types.ErrCodeReminderDispatchFailed
			}
		}
		if j.policy == PolicyAbort {
			logger.WarnContext(ctx, "aborting remaining dispatches", "failed_group", msg.Group)
			break
		}
	}

	if len(errs) == 0 {
		return nil
	}
	logger.ErrorContext(ctx, "digest dispatch failed",
		"failed_groups", failed,
		"attempted", len(summary.Deliveries),
		"total", len(messages),
		"error", errors.Join(errs...),
	)
	return types.NewAppError(firstCode, MsgDispatchFailed, errors.Join(errs...)).
		WithDetails(map[string]any{"failed_groups": failed})
}
