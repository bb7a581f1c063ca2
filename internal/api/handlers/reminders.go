// Package handlers contains the HTTP handlers for the reminder trigger and
// the dashboard's reminder endpoints.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"garasiku/internal/core"
	"garasiku/internal/notifications/email"
	"garasiku/internal/reminder"
	"garasiku/internal/types"
)

// ReminderRunner runs one digest pass.
type ReminderRunner interface {
	Run(ctx context.Context, opts reminder.RunOptions) (*reminder.Summary, error)
}

// WindowSource is the cached reminder window.
type WindowSource interface {
	Get(ctx context.Context) reminder.Window
	ClearCache()
}

// DashboardSource provides the counts behind the dashboard cards.
type DashboardSource interface {
	CountDueTasks(ctx context.Context, horizon time.Time) (types.DueCounts, error)
	CountVehicles(ctx context.Context) (types.VehicleCounts, error)
}

// triggerRequest is the optional body of POST /api/reminder.
type triggerRequest struct {
	ReferenceTime *time.Time `json:"reference_time"`
}

// triggerResponse is the success body schedulers check.
type triggerResponse struct {
	Message      string          `json:"message"`
	ServiceTasks int             `json:"serviceTasks"`
	AdminTasks   int             `json:"adminTasks"`
	Deliveries   []email.Receipt `json:"deliveries,omitempty"`
}

// CountsResponse is the body of GET /v1/reminders/counts.
type CountsResponse struct {
	Horizon      time.Time           `json:"horizon"`
	IntervalDays int                 `json:"interval_days"`
	Tasks        types.DueCounts     `json:"tasks"`
	Vehicles     types.VehicleCounts `json:"vehicles"`
}

// ReminderHandler serves the trigger and the window/counts endpoints.
type ReminderHandler struct {
	job       ReminderRunner
	window    WindowSource
	dashboard DashboardSource
	logger    *slog.Logger
}

// NewReminderHandler creates a ReminderHandler. dashboard may be nil, in
// which case the counts endpoint is not mounted.
func NewReminderHandler(job ReminderRunner, window WindowSource, dashboard DashboardSource, logger *slog.Logger) *ReminderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderHandler{job: job, window: window, dashboard: dashboard, logger: logger}
}

// RegisterTrigger mounts the trigger under /api. GET is accepted because
// some platform schedulers can only issue GETs.
func (h *ReminderHandler) RegisterTrigger(r chi.Router) {
	r.Post("/reminder", h.Trigger)
	r.Get("/reminder", h.Trigger)
}

// RegisterV1 mounts the dashboard endpoints under /v1.
func (h *ReminderHandler) RegisterV1(r chi.Router) {
	r.Route("/reminders", func(r chi.Router) {
		r.Get("/window", h.GetWindow)
		r.Delete("/window", h.ClearWindow)
		if h.dashboard != nil {
			r.Get("/counts", h.GetCounts)
		}
	})
}

// Trigger runs the job and reports the outcome in the trigger contract:
// 200 with counts, or 500 with only a terse message.
func (h *ReminderHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.Method == http.MethodPost {
		if err := core.DecodeOptionalJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	opts := reminder.RunOptions{}
	if req.ReferenceTime != nil {
		opts.ReferenceTime = *req.ReferenceTime
	}

	ctx := r.Context()
	if reqID := types.GetRequestID(ctx); reqID != "" {
		ctx = types.WithRunID(ctx, reqID)
	}

	summary, err := h.job.Run(ctx, opts)
	if err != nil {
		h.writeTriggerError(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, triggerResponse{
		Message:      summary.Message,
		ServiceTasks: summary.ServiceTasks,
		AdminTasks:   summary.AdminTasks,
		Deliveries:   summary.Deliveries,
	})
}

// writeTriggerError renders known failures as {"message": ...} and anything
// unexpected as {"error": "Internal Server Error!"}, both with 500.
func (h *ReminderHandler) writeTriggerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "reminder trigger failed", "error", err)

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code == types.ErrCodeInternalUnexpected {
		core.JSON(w, r, http.StatusInternalServerError, map[string]string{"error": reminder.MsgInternalFailure})
		return
	}
	core.JSON(w, r, http.StatusInternalServerError, map[string]string{"message": appErr.Message})
}

// GetWindow returns the cached reminder window.
func (h *ReminderHandler) GetWindow(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.window.Get(r.Context())})
}

// ClearWindow drops the cached window so the next read picks up a changed
// interval parameter.
func (h *ReminderHandler) ClearWindow(w http.ResponseWriter, r *http.Request) {
	h.window.ClearCache()
	h.logger.InfoContext(r.Context(), "reminder window cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

// GetCounts returns due-task and vehicle counts for the cached window.
func (h *ReminderHandler) GetCounts(w http.ResponseWriter, r *http.Request) {
	win := h.window.Get(r.Context())

	var tasks types.DueCounts
	var vehicles types.VehicleCounts
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		tasks, err = h.dashboard.CountDueTasks(ctx, win.Horizon)
		return err
	})
	g.Go(func() error {
		var err error
		vehicles, err = h.dashboard.CountVehicles(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load reminder counts", "error", err)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CountsResponse{
		Horizon:      win.Horizon,
		IntervalDays: win.IntervalDays,
		Tasks:        tasks,
		Vehicles:     vehicles,
	}})
}
