package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garasiku/internal/types"
)

// mockEmailProvider implements external.EmailProvider for testing.
type mockEmailProvider struct {
	calls     int
	sendInput types.SendInput
	sendMsgID string
	sendErr   error
}

func (m *mockEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	m.calls++
	m.sendInput = input
	if m.sendErr != nil {
		return "", m.sendErr
	}
	return m.sendMsgID, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testSender = types.SenderIdentity{Name: "Garasiku Reminder", Address: "noreply@garasiku.id"}

func serviceMessage() Message {
	return Message{
		Group:       "service",
		To:          []string{"bengkel@garasiku.id", "ops@garasiku.id"},
		Subject:     "Weekly Service Task Reminder - Garasiku",
		BodyHTML:    "<p>digest</p>",
		ReferenceID: "run-1",
	}
}

func TestDispatch_Sends(t *testing.T) {
	provider := &mockEmailProvider{sendMsgID: "<abc@garasiku.id>"}
	ch := NewChannel(ChannelConfig{Provider: provider, Sender: testSender, Logger: newTestLogger()})

	receipt, err := ch.Dispatch(context.Background(), serviceMessage())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, testSender, provider.sendInput.From)
	assert.Equal(t, []string{"bengkel@garasiku.id", "ops@garasiku.id"}, provider.sendInput.To)
	assert.Equal(t, "Weekly Service Task Reminder - Garasiku", provider.sendInput.Subject)
	assert.Equal(t, "<p>digest</p>", provider.sendInput.BodyHTML)
	assert.Equal(t, "run-1", provider.sendInput.ReferenceID)

	assert.Equal(t, Receipt{
		Group:             "service",
		Status:            StatusSent,
		ProviderMessageID: "<abc@garasiku.id>",
		Recipients:        2,
	}, receipt)
}

func TestDispatch_TestModeSkipsProvider(t *testing.T) {
	provider := &mockEmailProvider{}
	ch := NewChannel(ChannelConfig{Provider: provider, Sender: testSender, TestMode: true})

	receipt, err := ch.Dispatch(context.Background(), serviceMessage())
	require.NoError(t, err)
	assert.Zero(t, provider.calls)
	assert.Equal(t, StatusSkipped, receipt.Status)
	assert.Equal(t, "test-simulated", receipt.ProviderMessageID)
}

func TestDispatch_NoRecipients(t *testing.T) {
	provider := &mockEmailProvider{}
	ch := NewChannel(ChannelConfig{Provider: provider, Sender: testSender})

	msg := serviceMessage()
	msg.To = nil
	receipt, err := ch.Dispatch(context.Background(), msg)
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Equal(t, StatusFailed, receipt.Status)
	assert.Zero(t, provider.calls)
}

func TestDispatch_ProviderFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status DeliveryStatus
	}{
		{"blocked", types.NewAppError(types.ErrCodeEmailBlocked, "suppressed", nil), StatusBlocked},
		{"unavailable", types.NewAppError(types.ErrCodeUpstreamEmailProvider, "smtp: send failed", errors.New("EOF")), StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewChannel(ChannelConfig{
				Provider: &mockEmailProvider{sendErr: tt.err},
				Sender:   testSender,
				Logger:   newTestLogger(),
			})

			receipt, err := ch.Dispatch(context.Background(), serviceMessage())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.status, receipt.Status)
			assert.Equal(t, tt.err.Error(), receipt.Error)
			assert.Empty(t, receipt.ProviderMessageID)
		})
	}
}
