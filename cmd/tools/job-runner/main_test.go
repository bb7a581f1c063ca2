package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garasiku/internal/reminder"
	"garasiku/internal/scheduler"
	"garasiku/internal/types"
)

func TestParseReferenceTime(t *testing.T) {
	got, err := parseReferenceTime("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseReferenceTime("2025-01-15T01:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 1, 15, 1, 0, 0, 0, time.UTC)))

	_, err = parseReferenceTime("15/01/2025")
	assert.ErrorContains(t, err, "expected RFC3339")
}

func TestPrintPayload(t *testing.T) {
	ref := time.Date(2025, 1, 15, 1, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, printPayload(&buf, scheduler.ReminderPayload{Task: scheduler.TaskSendReminders, ReferenceTime: &ref}))

	assert.JSONEq(t, `{"task":"send_reminders","reference_time":"2025-01-15T01:00:00Z"}`, buf.String())
}

func TestWriteDigests(t *testing.T) {
	summary := &reminder.Summary{
		ServiceTasks: 2,
		AdminTasks:   1,
		Window:       &reminder.Window{IntervalDays: 30},
	}

	t.Run("with digests", func(t *testing.T) {
		var buf bytes.Buffer
		err := writeDigests(&buf, summary, []types.SendInput{{
			To:       []string{"a@garasiku.id", "b@garasiku.id"},
			Subject:  "Weekly Service Task Reminder - Garasiku",
			BodyHTML: "<table>SRV-001</table>",
		}})
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "window: 30 days, service tasks: 2, admin tasks: 1")
		assert.Contains(t, out, "to: a@garasiku.id, b@garasiku.id | subject: Weekly Service Task Reminder - Garasiku")
		assert.Contains(t, out, "<table>SRV-001</table>")
	})

	t.Run("nothing sent", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeDigests(&buf, &reminder.Summary{}, nil))
		assert.Contains(t, buf.String(), "window: 0 days")
		assert.Contains(t, buf.String(), "no digests")
	})
}
