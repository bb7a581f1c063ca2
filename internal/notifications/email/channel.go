package email

import (
	"context"
	"fmt"
	"log/slog"

	"garasiku/internal/external"
	"garasiku/internal/types"
)

// DeliveryStatus is the outcome of one digest send.
type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "sent"
	StatusSkipped DeliveryStatus = "skipped"
	StatusBlocked DeliveryStatus = "blocked"
	StatusFailed  DeliveryStatus = "failed"
)

// testModeMessageID is returned instead of a provider ID when sends are suppressed.
const testModeMessageID = "test-simulated"

// Message is one rendered digest addressed to one recipient group.
type Message struct {
	Group       string
	To          []string
	Subject     string
	BodyHTML    string
	ReferenceID string
}

// Receipt records what happened to a Message.
type Receipt struct {
	Group             string         `json:"group"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Recipients        int            `json:"recipients"`
	Error             string         `json:"error,omitempty"`
}

// Channel sends digests from a fixed sender identity.
type Channel struct {
	provider external.EmailProvider
	sender   types.SenderIdentity
	testMode bool
	logger   *slog.Logger
}

// ChannelConfig holds the dependencies needed to create a Channel.
type ChannelConfig struct {
	Provider external.EmailProvider
	Sender   types.SenderIdentity
	// TestMode suppresses provider calls; receipts report StatusSkipped.
	TestMode bool
	Logger   *slog.Logger
}

// NewChannel creates a Channel.
func NewChannel(cfg ChannelConfig) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		provider: cfg.Provider,
		sender:   cfg.Sender,
		testMode: cfg.TestMode,
		logger:   logger,
	}
}

// Dispatch sends msg as a single message to all of its recipients. The
// receipt is populated on failure too; the error carries the cause.
func (c *Channel) Dispatch(ctx context.Context, msg Message) (Receipt, error) {
	receipt := Receipt{Group: msg.Group, Recipients: len(msg.To)}
	logger := types.LoggerFromContext(ctx, c.logger).With("group", msg.Group)

	if len(msg.To) == 0 {
		receipt.Status = StatusFailed
		receipt.Error = ErrNoRecipients.Error()
		return receipt, fmt.Errorf("dispatch %s: %w", msg.Group, ErrNoRecipients)
	}

	logger.InfoContext(ctx, "attempting email delivery", "to", RedactList(msg.To))

	if c.testMode {
		logger.InfoContext(ctx, "test mode: suppressing email", "subject", msg.Subject)
		receipt.Status = StatusSkipped
		receipt.ProviderMessageID = testModeMessageID
		return receipt, nil
	}

	msgID, err := c.provider.Send(ctx, types.SendInput{
		To:          msg.To,
		From:        c.sender,
		Subject:     msg.Subject,
		BodyHTML:    msg.BodyHTML,
		ReferenceID: msg.ReferenceID,
	})

	receipt.Status = classify(err)
	if err != nil {
		receipt.Error = err.Error()
		if receipt.Status == StatusBlocked {
			logger.WarnContext(ctx, "recipient blocked by provider", "to", RedactList(msg.To))
		} else {
			logger.ErrorContext(ctx, "email delivery failed", "error", err)
		}
		return receipt, err
	}

	receipt.ProviderMessageID = msgID
	logger.InfoContext(ctx, "email sent", "message_id", msgID)
	return receipt, nil
}
