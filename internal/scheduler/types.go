// Package scheduler triggers the reminder job on a schedule. It owns what
// surrounds a scheduled run: the payload EventBridge sends, the per-day job
// lock, the job history row, and the in-process cron runner used outside
// Lambda.
package scheduler

import "time"

// TaskType identifies the scheduled task in a trigger payload.
type TaskType string

const (
	TaskSendReminders TaskType = "send_reminders"
)

// ReminderPayload is the JSON payload EventBridge sends to the reminder
// Lambda:
//
//	{
//	  "task": "send_reminders",
//	  "reference_time": "2025-01-15T01:00:00Z"  // optional
//	}
type ReminderPayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime replaces "now" for backfills and manual invocation.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
