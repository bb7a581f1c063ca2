// Package main is the entrypoint for the reminder Lambda function.
//
// An EventBridge schedule invokes it with a ReminderPayload. The handler runs
// the digest through scheduler.Runner, which holds the per-day job lock and
// records job history when a database is configured.
//
// With APP_ENV=local the payload is read from stdin instead and the handler
// runs once:
//
//	echo '{"task":"send_reminders"}' | go run ./cmd/reminder
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"garasiku/internal/app"
	"garasiku/internal/config"
	"garasiku/internal/reminder"
	"garasiku/internal/scheduler"
)

// PayloadRunner is the subset of scheduler.Runner the handler calls.
type PayloadRunner interface {
	Run(ctx context.Context, payload scheduler.ReminderPayload) (*reminder.Summary, error)
}

// Handler adapts the runner to the Lambda invocation contract.
type Handler struct {
	Runner PayloadRunner
	Logger *slog.Logger
}

// Result is what the Lambda returns to its invoker.
type Result struct {
	Status  string            `json:"status"`
	Summary *reminder.Summary `json:"summary,omitempty"`
}

// Handle runs one digest pass. A held lock is not an error: EventBridge
// redeliveries and overlapping triggers are reported as skipped.
func (h *Handler) Handle(ctx context.Context, payload scheduler.ReminderPayload) (Result, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	summary, err := h.Runner.Run(ctx, payload)
	if errors.Is(err, scheduler.ErrLockHeld) {
		return Result{Status: "skipped"}, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "reminder run failed", "error", err)
		return Result{}, fmt.Errorf("reminder run failed: %w", err)
	}
	return Result{Status: "sent", Summary: summary}, nil
}

func main() {
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("reminder Lambda initializing (cold start)")

	if err := config.ResolveSecrets(config.NewSSMProvider(os.Getenv("AWS_REGION"))); err != nil {
		logger.Error("failed to resolve SSM secrets", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = app.NewLogger(cfg.LogLevel)

	a, err := app.Build(context.Background(), cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to build reminder job", "error", err)
		os.Exit(1)
	}

	handler := &Handler{Runner: a.Runner, Logger: logger}
	logger.Info("reminder Lambda initialized", "worker_id", a.Runner.WorkerID, "build", cfg.Build.String())

	if cfg.Environment == "local" {
		defer a.Close()
		if err := runLocal(context.Background(), handler, os.Stdin, os.Stdout); err != nil {
			logger.Error("local run failed", "error", err)
			a.Close()
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}

// runLocal decodes one payload from in and writes the result to out. An empty
// input runs the default task.
func runLocal(ctx context.Context, h *Handler, in io.Reader, out io.Writer) error {
	var payload scheduler.ReminderPayload
	if err := json.NewDecoder(in).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding payload: %w", err)
	}

	result, err := h.Handle(ctx, payload)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
