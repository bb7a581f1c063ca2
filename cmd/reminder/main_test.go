package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garasiku/internal/reminder"
	"garasiku/internal/scheduler"
	"garasiku/internal/types"
)

type fakeRunner struct {
	got     scheduler.ReminderPayload
	summary *reminder.Summary
	err     error
}

func (f *fakeRunner) Run(_ context.Context, payload scheduler.ReminderPayload) (*reminder.Summary, error) {
	f.got = payload
	return f.summary, f.err
}

func TestHandle_Success(t *testing.T) {
	runner := &fakeRunner{summary: &reminder.Summary{Message: reminder.MsgSuccess, ServiceTasks: 2, AdminTasks: 1}}
	h := &Handler{Runner: runner}

	res, err := h.Handle(context.Background(), scheduler.ReminderPayload{Task: scheduler.TaskSendReminders})
	require.NoError(t, err)
	assert.Equal(t, "sent", res.Status)
	assert.Equal(t, 3, res.Summary.TotalTasks())
}

func TestHandle_LockHeldIsSkipped(t *testing.T) {
	h := &Handler{Runner: &fakeRunner{err: scheduler.ErrLockHeld}}

	res, err := h.Handle(context.Background(), scheduler.ReminderPayload{})
	require.NoError(t, err)
	assert.Equal(t, "skipped", res.Status)
	assert.Nil(t, res.Summary)
}

func TestHandle_FailurePropagates(t *testing.T) {
	jobErr := types.NewAppError(types.ErrCodeUpstreamBackend, reminder.MsgFetchFailed, errors.New("503"))
	h := &Handler{Runner: &fakeRunner{err: jobErr}}

	_, err := h.Handle(context.Background(), scheduler.ReminderPayload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, jobErr)
}

func TestRunLocal(t *testing.T) {
	t.Run("payload from stdin", func(t *testing.T) {
		runner := &fakeRunner{summary: &reminder.Summary{Message: reminder.MsgSuccess, ServiceTasks: 1}}
		var out bytes.Buffer

		err := runLocal(context.Background(), &Handler{Runner: runner},
			strings.NewReader(`{"task":"send_reminders","reference_time":"2025-01-15T01:00:00Z"}`), &out)
		require.NoError(t, err)

		require.NotNil(t, runner.got.ReferenceTime)
		assert.True(t, runner.got.ReferenceTime.Equal(time.Date(2025, 1, 15, 1, 0, 0, 0, time.UTC)))
		assert.Contains(t, out.String(), `"status": "sent"`)
		assert.Contains(t, out.String(), `"serviceTasks": 1`)
	})

	t.Run("empty stdin runs default task", func(t *testing.T) {
		runner := &fakeRunner{summary: &reminder.Summary{Message: reminder.MsgSuccess}}
		var out bytes.Buffer

		require.NoError(t, runLocal(context.Background(), &Handler{Runner: runner}, strings.NewReader(""), &out))
		assert.Equal(t, scheduler.TaskType(""), runner.got.Task)
	})

	t.Run("malformed payload", func(t *testing.T) {
		var out bytes.Buffer
		err := runLocal(context.Background(), &Handler{Runner: &fakeRunner{}}, strings.NewReader(`{"task":`), &out)
		require.Error(t, err)
		assert.Empty(t, out.String())
	})
}
