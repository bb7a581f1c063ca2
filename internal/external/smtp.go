package external

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"garasiku/internal/types"
)

// mailDialer is the part of *gomail.Dialer used by SMTPClient.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPClientConfig holds the relay settings. The defaults in config target
// Gmail with an app password on port 587 (STARTTLS).
type SMTPClientConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Logger   *slog.Logger
}

// SMTPClient implements EmailProvider over an authenticated SMTP relay.
type SMTPClient struct {
	dialer mailDialer
	logger *slog.Logger
}

// NewSMTPClient creates an SMTPClient that dials cfg.Host for every send.
func NewSMTPClient(cfg SMTPClientConfig) *SMTPClient {
	return NewSMTPClientWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.Logger)
}

// NewSMTPClientWithDialer creates an SMTPClient around an existing dialer.
func NewSMTPClientWithDialer(d mailDialer, logger *slog.Logger) *SMTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPClient{dialer: d, logger: logger}
}

// Send builds one multi-recipient HTML message and hands it to the relay.
// gomail has no context support, so a cancelled ctx returns immediately while
// the dial finishes in the background; the relay may still accept the mail.
func (c *SMTPClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	if len(input.To) == 0 {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "smtp: no recipients", nil)
	}

	msgID := newMessageID(input.From.Address)

	m := gomail.NewMessage()
	m.SetAddressHeader("From", input.From.Address, input.From.Name)
	m.SetHeader("To", input.To...)
	m.SetHeader("Subject", input.Subject)
	m.SetHeader("Message-ID", msgID)
	if input.ReferenceID != "" {
		m.SetHeader("X-Garasiku-Run", input.ReferenceID)
	}
	m.SetBody("text/html", input.BodyHTML)

	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable, "smtp: send timed out", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", types.NewAppError(
				types.ErrCodeUpstreamEmailProvider,
				fmt.Sprintf("smtp: send failed: %v", err),
				err,
			)
		}
	}

	c.logger.DebugContext(ctx, "smtp message accepted", "message_id", msgID, "recipients", len(input.To))
	return msgID, nil
}

// newMessageID returns an RFC 5322 Message-ID in the sender's domain.
func newMessageID(from string) string {
	domain := "garasiku.local"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

var _ EmailProvider = (*SMTPClient)(nil)
