// Package main runs the reminder on an in-process cron schedule, for hosts
// without EventBridge. REMINDER_SCHEDULE is a six-field expression (seconds
// first) evaluated in REMINDER_TIMEZONE.
//
//	go run ./cmd/reminder-cron            # wait for the schedule
//	go run ./cmd/reminder-cron --now      # also run once at startup
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garasiku/internal/app"
	"garasiku/internal/config"
	"garasiku/internal/scheduler"
)

// runTimeout bounds a single scheduled run.
const runTimeout = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	runNow := flag.Bool("now", false, "Run the reminder once at startup before waiting for the schedule")
	flag.Parse()

	if err := config.ResolveSecrets(config.NewSSMProvider(os.Getenv("AWS_REGION"))); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("building reminder job: %w", err)
	}
	defer a.Close()

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return err
	}
	c, err := scheduler.NewCron(a.Runner, cfg.Reminder.Schedule, loc, runTimeout, logger)
	if err != nil {
		return err
	}

	if *runNow {
		c.RunOnce(ctx)
	}

	c.Start()
	logger.Info("reminder cron waiting",
		"schedule", cfg.Reminder.Schedule,
		"timezone", loc.String(),
		"next_run", c.Next().Format(time.RFC3339),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received, waiting for a running reminder to finish")

	select {
	case <-c.Stop().Done():
	case <-time.After(runTimeout):
		logger.Warn("reminder still running at shutdown deadline")
	}
	logger.Info("reminder cron stopped")
	return nil
}
