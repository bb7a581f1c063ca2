// Package main implements the job-runner CLI for invoking the reminder job
// directly, bypassing the Lambda shim.
//
// It is intended for local development, manual backfills, and checking what a
// digest would look like before it goes out.
//
// Usage:
//
//	go run ./cmd/tools/job-runner
//	go run ./cmd/tools/job-runner --reference-time=2025-01-15T01:00:00Z
//	go run ./cmd/tools/job-runner --dry-run > digests.html
//	go run ./cmd/tools/job-runner --print-payload --reference-time=2025-01-15T01:00:00Z
//
// Configuration is read the same way the deployed binaries read it (.env via
// godotenv, _SSM_PARAM pointers outside APP_ENV=local). --dry-run swaps the
// email provider for a recorder, skips the job lock, and writes each rendered
// digest to stdout instead of sending it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garasiku/internal/app"
	"garasiku/internal/config"
	"garasiku/internal/external"
	"garasiku/internal/reminder"
	"garasiku/internal/scheduler"
	"garasiku/internal/types"
)

func main() {
	refTimeFlag := flag.String("reference-time", "", "Override reference time (RFC3339, e.g., 2025-01-15T01:00:00Z)")
	dryRunFlag := flag.Bool("dry-run", false, "Render the digests to stdout without sending")
	printPayloadFlag := flag.Bool("print-payload", false, "Print the EventBridge JSON payload and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run the Garasiku reminder digest directly, bypassing Lambda.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	refTime, err := parseReferenceTime(*refTimeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	payload := scheduler.ReminderPayload{Task: scheduler.TaskSendReminders, ReferenceTime: refTime}

	if *printPayloadFlag {
		if err := printPayload(os.Stdout, payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, payload, *dryRunFlag); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func execute(ctx context.Context, payload scheduler.ReminderPayload, dryRun bool) error {
	if err := config.ResolveSecrets(config.NewSSMProvider(os.Getenv("AWS_REGION"))); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	fmt.Fprintf(os.Stderr, "job-runner %s, environment %s\n", cfg.Build, cfg.Environment)
	logger := app.NewLogger(cfg.LogLevel)
	if dryRun {
		// Stdout carries the rendered HTML.
		logger = app.NewLogger("error")
	}

	opts := app.Options{WorkerID: "job-runner-" + hostname()}
	var recorder *external.StubEmailProvider
	if dryRun {
		recorder = external.NewStubEmailProvider(logger)
		opts.EmailProvider = recorder
	}

	a, err := app.Build(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if dryRun {
		runOpts := reminder.RunOptions{}
		if payload.ReferenceTime != nil {
			runOpts.ReferenceTime = *payload.ReferenceTime
		}
		summary, err := a.Job.Run(ctx, runOpts)
		if err != nil {
			return err
		}
		return writeDigests(os.Stdout, summary, recorder.Sent())
	}

	summary, err := a.Runner.Run(ctx, payload)
	if err != nil {
		return err
	}
	logger.Info("reminder run succeeded",
		"service_tasks", summary.ServiceTasks,
		"admin_tasks", summary.AdminTasks,
		"deliveries", len(summary.Deliveries),
	)
	return nil
}

func parseReferenceTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --reference-time %q (expected RFC3339, e.g. 2025-01-15T01:00:00Z): %w", s, err)
	}
	return &t, nil
}

func printPayload(w io.Writer, payload scheduler.ReminderPayload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// writeDigests prints each captured digest as an HTML comment header followed
// by its body.
func writeDigests(w io.Writer, summary *reminder.Summary, sent []types.SendInput) error {
	days := 0
	if summary.Window != nil {
		days = summary.Window.IntervalDays
	}
	if _, err := fmt.Fprintf(w, "<!-- window: %d days, service tasks: %d, admin tasks: %d -->\n",
		days, summary.ServiceTasks, summary.AdminTasks); err != nil {
		return err
	}
	if len(sent) == 0 {
		_, err := fmt.Fprintln(w, "<!-- no digests: no recipients configured -->")
		return err
	}
	for _, in := range sent {
		if _, err := fmt.Fprintf(w, "<!-- to: %s | subject: %s -->\n%s\n", in.RecipientList(), in.Subject, in.BodyHTML); err != nil {
			return err
		}
	}
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return h
}
