package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"garasiku/internal/types"
)

// Task queries join the vehicle so a row renders without a second lookup.
// Orphaned tasks keep an empty vehicle label instead of disappearing.
const (
	listDueMaintenanceSQL = `
		SELECT s.ticket_num, s.type, s.schedule_date, s.status,
		       COALESCE(v.name, ''), COALESCE(v.license_plate, '')
		FROM service s
		LEFT JOIN vehicles v ON v.id = s.vehicle_id
		WHERE s.status = $1 AND s.schedule_date <= $2
		ORDER BY s.schedule_date ASC, s.ticket_num ASC`

	listDueAdministrativeSQL = `
		SELECT a.ticket_num, a.type, a.due_date, a.status,
		       COALESCE(v.name, ''), COALESCE(v.license_plate, '')
		FROM administration a
		LEFT JOIN vehicles v ON v.id = a.vehicle_id
		WHERE a.status = $1 AND a.due_date <= $2
		ORDER BY a.due_date ASC, a.ticket_num ASC`

	countDueSQL = `
		SELECT
		  (SELECT COUNT(*) FROM service WHERE status = $1 AND schedule_date <= $2),
		  (SELECT COUNT(*) FROM administration WHERE status = $1 AND due_date <= $2)`

	countVehiclesSQL = `
		SELECT
		  COUNT(*) FILTER (WHERE NOT is_sold),
		  COUNT(*) FILTER (WHERE is_sold)
		FROM vehicles`
)

// TaskRepository reads pending maintenance and administrative tasks.
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a TaskRepository backed by db.
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListDueMaintenanceTasks returns pending services scheduled on or before
// horizon, earliest first. Overdue services are included.
func (r *TaskRepository) ListDueMaintenanceTasks(ctx context.Context, horizon time.Time) ([]types.MaintenanceTask, error) {
	rows, err := r.db.Query(ctx, listDueMaintenanceSQL, string(types.TaskStatusPending), horizon)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due maintenance tasks", err)
	}

	tasks := make([]types.MaintenanceTask, 0)
	err = scanTaskRows(rows, func(ticket, typ, status string, date time.Time, vehicle types.VehicleRef) {
		tasks = append(tasks, types.MaintenanceTask{
			TicketNumber:  ticket,
			Type:          types.TaskType(typ),
			ScheduledDate: date,
			Vehicle:       vehicle,
			Status:        types.TaskStatus(status),
		})
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan maintenance tasks", err)
	}
	return tasks, nil
}

// ListDueAdministrativeTasks returns pending renewals due on or before
// horizon, earliest first.
func (r *TaskRepository) ListDueAdministrativeTasks(ctx context.Context, horizon time.Time) ([]types.AdministrativeTask, error) {
	rows, err := r.db.Query(ctx, listDueAdministrativeSQL, string(types.TaskStatusPending), horizon)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due administrative tasks", err)
	}

	tasks := make([]types.AdministrativeTask, 0)
	err = scanTaskRows(rows, func(ticket, typ, status string, date time.Time, vehicle types.VehicleRef) {
		tasks = append(tasks, types.AdministrativeTask{
			TicketNumber: ticket,
			Type:         types.TaskType(typ),
			DueDate:      date,
			Vehicle:      vehicle,
			Status:       types.TaskStatus(status),
		})
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan administrative tasks", err)
	}
	return tasks, nil
}

// CountDueTasks returns the dashboard counters for the same window.
func (r *TaskRepository) CountDueTasks(ctx context.Context, horizon time.Time) (types.DueCounts, error) {
	var counts types.DueCounts
	err := r.db.QueryRow(ctx, countDueSQL, string(types.TaskStatusPending), horizon).
		Scan(&counts.Maintenance, &counts.Administrative)
	if err != nil {
		return types.DueCounts{}, types.NewAppError(types.ErrCodeInternalDB, "failed to count due tasks", err)
	}
	return counts, nil
}

// CountVehicles returns active and sold vehicle totals for the dashboard.
func (r *TaskRepository) CountVehicles(ctx context.Context) (types.VehicleCounts, error) {
	var counts types.VehicleCounts
	if err := r.db.QueryRow(ctx, countVehiclesSQL).Scan(&counts.Active, &counts.Sold); err != nil {
		return types.VehicleCounts{}, types.NewAppError(types.ErrCodeInternalDB, "failed to count vehicles", err)
	}
	return counts, nil
}

func scanTaskRows(rows pgx.Rows, emit func(ticket, typ, status string, date time.Time, vehicle types.VehicleRef)) error {
	defer rows.Close()

	for rows.Next() {
		var (
			ticket, typ, status string
			date                time.Time
			vehicle             types.VehicleRef
		)
		if err := rows.Scan(&ticket, &typ, &date, &status, &vehicle.Name, &vehicle.LicensePlate); err != nil {
			return err
		}
		emit(ticket, typ, status, date, vehicle)
	}
	return rows.Err()
}
