package types

// CloudWatch metric names and dimensions for the reminder job.
const (
	MetricReminderTasksFound = "ReminderTasksFound"
	MetricReminderDispatch   = "ReminderDispatch"
	MetricReminderJobLatency = "ReminderJobLatency"

	DimKind   = "Kind"
	DimGroup  = "Group"
	DimResult = "Result"

	MetricNamespace = "Garasiku"
)
