// Package main is the entry point for the reminder HTTP API.
//
// It serves POST /api/reminder for external schedulers (Vercel cron, Cloud
// Scheduler, curl) next to the /v1 window and dashboard routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garasiku/internal/api/handlers"
	"garasiku/internal/app"
	"garasiku/internal/config"
	"garasiku/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.ResolveSecrets(config.NewSSMProvider(os.Getenv("AWS_REGION"))); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("garasiku reminder API starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.Build(ctx, cfg, logger, app.Options{})
	cancel()
	if err != nil {
		return fmt.Errorf("building reminder job: %w", err)
	}

	srv, err := newServer(a)
	if err != nil {
		a.Close()
		return err
	}
	return runHTTPServer(srv, cfg, logger)
}

// newServer mounts the reminder routes on the core chassis.
func newServer(a *app.App) (*core.Server, error) {
	srv, err := core.NewServer(a.Config, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	h := handlers.NewReminderHandler(a.Job, a.Window, a.Clients.Dashboard, a.Logger)
	srv.HealthProbes = a.HealthProbes()
	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars, h.RegisterTrigger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, h.RegisterV1)
	srv.Closers = append(srv.Closers, a.Close)
	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until SIGINT/SIGTERM or a listener failure, then
// drains in-flight requests and closes the app's resources.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// The trigger answers only after the run, so writes outlive the request timeout.
		WriteTimeout: cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", hs.Addr)
		listenErr <- hs.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("server shutdown: %w", err))
	}
	if serveErr == nil {
		logger.Info("server stopped cleanly")
	}
	return serveErr
}
