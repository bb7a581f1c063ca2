package types

import "time"

// TaskKind distinguishes the two task categories that feed the reminder digest.
type TaskKind string

const (
	TaskKindMaintenance    TaskKind = "maintenance"
	TaskKindAdministrative TaskKind = "administrative"
)

// TaskStatus is the lifecycle state shared by maintenance and administrative tasks.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusOngoing   TaskStatus = "ongoing"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskType is the stored type code of a task, e.g. "servis-berat".
type TaskType string

const (
	TaskTypeServiceRegular TaskType = "servis-regular"
	TaskTypeServiceHeavy   TaskType = "servis-berat"
	TaskTypeServiceOther   TaskType = "servis-lainnya"

	TaskTypeSTNKAnnual   TaskType = "administrasi-stnk-1"
	TaskTypeSTNKFiveYear TaskType = "administrasi-stnk-5"
	TaskTypeInsurance    TaskType = "administrasi-asuransi"
)

var taskTypeLabels = map[TaskType]string{
	TaskTypeServiceRegular: "Servis Regular",
	TaskTypeServiceHeavy:   "Servis Berat",
	TaskTypeServiceOther:   "Servis Lainnya",
	TaskTypeSTNKAnnual:     "STNK 1 Tahun",
	TaskTypeSTNKFiveYear:   "STNK 5 Tahun",
	TaskTypeInsurance:      "Asuransi",
}

// Label returns the human-readable label for the type. Codes outside the
// known set are returned verbatim so new types still render.
func (t TaskType) Label() string {
	if label, ok := taskTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// IsKnown reports whether the type code belongs to the closed label set.
func (t TaskType) IsKnown() bool {
	_, ok := taskTypeLabels[t]
	return ok
}

// VehicleRef is the denormalized vehicle data joined onto each task row.
type VehicleRef struct {
	Name         string `json:"name"`
	LicensePlate string `json:"license_plate"`
}

// Label renders the vehicle as "{name} - {plate}".
func (v VehicleRef) Label() string {
	return v.Name + " - " + v.LicensePlate
}

// DueTask is the contract the digest renderer consumes. Both task kinds
// implement it so one table layout serves either category.
type DueTask interface {
	Kind() TaskKind
	Ticket() string
	TaskType() TaskType
	DueAt() time.Time
	VehicleLabel() string
	TaskStatus() TaskStatus
}

// MaintenanceTask is a scheduled service ("servis") for a vehicle.
type MaintenanceTask struct {
	TicketNumber  string     `json:"ticket_num"`
	Type          TaskType   `json:"type"`
	ScheduledDate time.Time  `json:"schedule_date"`
	Vehicle       VehicleRef `json:"vehicle"`
	Status        TaskStatus `json:"status"`
}

func (t MaintenanceTask) Kind() TaskKind         { return TaskKindMaintenance }
func (t MaintenanceTask) Ticket() string         { return t.TicketNumber }
func (t MaintenanceTask) TaskType() TaskType     { return t.Type }
func (t MaintenanceTask) DueAt() time.Time       { return t.ScheduledDate }
func (t MaintenanceTask) VehicleLabel() string   { return t.Vehicle.Label() }
func (t MaintenanceTask) TaskStatus() TaskStatus { return t.Status }

// AdministrativeTask is a document renewal (STNK, insurance) with a due date.
type AdministrativeTask struct {
	TicketNumber string     `json:"ticket_num"`
	Type         TaskType   `json:"type"`
	DueDate      time.Time  `json:"due_date"`
	Vehicle      VehicleRef `json:"vehicle"`
	Status       TaskStatus `json:"status"`
}

func (t AdministrativeTask) Kind() TaskKind         { return TaskKindAdministrative }
func (t AdministrativeTask) Ticket() string         { return t.TicketNumber }
func (t AdministrativeTask) TaskType() TaskType     { return t.Type }
func (t AdministrativeTask) DueAt() time.Time       { return t.DueDate }
func (t AdministrativeTask) VehicleLabel() string   { return t.Vehicle.Label() }
func (t AdministrativeTask) TaskStatus() TaskStatus { return t.Status }

// IsDue reports whether a task with the given status and date belongs in a
// digest whose window ends at horizon. Repositories filter with the same rule.
func IsDue(status TaskStatus, date, horizon time.Time) bool {
	return status == TaskStatusPending && !date.After(horizon)
}

// DueCounts is the dashboard summary of pending tasks inside the window.
type DueCounts struct {
	Maintenance    int `json:"maintenance"`
	Administrative int `json:"administrative"`
}

// VehicleCounts is the dashboard summary of the fleet.
type VehicleCounts struct {
	Active int `json:"active"`
	Sold   int `json:"sold"`
}

// MaintenanceAsDue converts a typed slice for the renderer.
func MaintenanceAsDue(tasks []MaintenanceTask) []DueTask {
	out := make([]DueTask, len(tasks))
	for i, t := range tasks {
		out[i] = t
	}
	return out
}

// AdministrativeAsDue converts a typed slice for the renderer.
func AdministrativeAsDue(tasks []AdministrativeTask) []DueTask {
	out := make([]DueTask, len(tasks))
	for i, t := range tasks {
		out[i] = t
	}
	return out
}
