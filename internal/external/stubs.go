package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"garasiku/internal/types"
)

// StubEmailProvider implements EmailProvider by logging and recording each
// send. Used when EMAIL_PROVIDER=stub or APP_ENV=local, and by the job-runner
// dry run to capture rendered digests.
type StubEmailProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []types.SendInput
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.mu.Lock()
	s.sent = append(s.sent, input)
	n := len(s.sent)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "stub: Send email called",
		"recipients", len(input.To),
		"subject", input.Subject,
		"body_bytes", len(input.BodyHTML),
	)
	return fmt.Sprintf("msg_stub_%d", n), nil
}

// Sent returns a copy of everything sent so far, in order.
func (s *StubEmailProvider) Sent() []types.SendInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.SendInput, len(s.sent))
	copy(out, s.sent)
	return out
}

var _ EmailProvider = (*StubEmailProvider)(nil)
