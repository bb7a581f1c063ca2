package external

import (
	"context"
	"time"

	"garasiku/internal/types"
)

// ---------------------------------------------------------------------------
// Email Delivery
// ---------------------------------------------------------------------------

// EmailProvider abstracts the delivery service (Gmail SMTP, SendGrid, SES).
// Implementations transmit pre-rendered HTML to every recipient of the input
// in a single message.
type EmailProvider interface {
	// Send returns the provider's message ID for log correlation.
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// ---------------------------------------------------------------------------
// Task Backend
// ---------------------------------------------------------------------------

// TaskSource lists pending tasks whose date falls on or before horizon.
// Both the hosted REST backend and the direct Postgres repository satisfy it.
type TaskSource interface {
	ListDueMaintenanceTasks(ctx context.Context, horizon time.Time) ([]types.MaintenanceTask, error)
	ListDueAdministrativeTasks(ctx context.Context, horizon time.Time) ([]types.AdministrativeTask, error)
}

// DashboardSource serves the counts shown on the dashboard.
type DashboardSource interface {
	CountDueTasks(ctx context.Context, horizon time.Time) (types.DueCounts, error)
	CountVehicles(ctx context.Context) (types.VehicleCounts, error)
}

// ParameterSource reads one admin-maintained setting.
type ParameterSource interface {
	GetParameter(ctx context.Context, group, name string) (string, error)
}
