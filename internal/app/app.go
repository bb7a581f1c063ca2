// Package app assembles the reminder job and its triggers from configuration.
// Every binary builds through here so the Lambda, the HTTP API, the cron
// daemon and the CLI run exactly the same job.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"garasiku/internal/config"
	"garasiku/internal/core"
	"garasiku/internal/db"
	"garasiku/internal/external"
	"garasiku/internal/notifications/digest"
	"garasiku/internal/notifications/email"
	"garasiku/internal/reminder"
	"garasiku/internal/scheduler"
)

// App holds the wired reminder job and everything a trigger needs.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clients *external.ClientRegistry
	Window  *reminder.WindowPolicy
	Job     *reminder.Job
	Runner  *scheduler.Runner

	// Pool is nil unless DATABASE_URL is set.
	Pool *pgxpool.Pool
}

// Options adjusts Build for special callers.
type Options struct {
	// EmailProvider replaces the configured provider, e.g. to capture
	// rendered digests in a dry run.
	EmailProvider external.EmailProvider
	// WorkerID owns the job lock. Defaults to a random ID.
	WorkerID string
}

// Build wires the job from cfg. The caller must Close the App.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	var registryOpts []external.RegistryOption
	if cfg.Database.URL.IsSet() {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		registryOpts = append(registryOpts, external.WithDatabase(pool))
		logger.Info("database connection established")
	}

	var awsCfg *aws.Config
	if cfg.Email.Provider == config.EmailProviderSES || cfg.Observability.EnableMetrics {
		loaded, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			a.Close()
			return nil, err
		}
		awsCfg = &loaded
		registryOpts = append(registryOpts, external.WithAWSConfig(loaded))
	}

	clients, err := external.NewClientRegistry(cfg, logger, registryOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing external clients: %w", err)
	}
	if opts.EmailProvider != nil {
		clients.Email = opts.EmailProvider
	}
	a.Clients = clients

	renderer, err := digest.NewRenderer(loc)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading digest template: %w", err)
	}

	var metrics reminder.Metrics = reminder.NoopMetrics{}
	if cfg.Observability.EnableMetrics && awsCfg != nil {
		metrics = reminder.NewCloudWatchMetrics(cloudwatch.NewFromConfig(*awsCfg), cfg.Observability.MetricNamespace, logger)
	}

	a.Window = reminder.NewWindowPolicy(clients.Parameters,
		reminder.WithLookupTimeout(cfg.Reminder.CallTimeout),
		reminder.WithWindowLogger(logger),
	)

	a.Job, err = reminder.NewJob(reminder.JobConfig{
		Tasks:    clients.Tasks,
		Window:   a.Window,
		Renderer: renderer,
		Dispatcher: email.NewChannel(email.ChannelConfig{
			Provider: clients.Email,
			Sender:   cfg.Email.Sender(),
			TestMode: cfg.IsTestMode,
			Logger:   logger,
		}),
		Recipients:  RecipientConfig(cfg.Reminder),
		Policy:      reminder.DispatchPolicy(cfg.Reminder.DispatchPolicy),
		CallTimeout: cfg.Reminder.CallTimeout,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	workerID := opts.WorkerID
	if workerID == "" {
		workerID = uuid.NewString()
	}
	a.Runner = &scheduler.Runner{
		Job:      a.Job,
		WorkerID: workerID,
		Location: loc,
		Logger:   logger,
	}
	if a.Pool != nil {
		a.Runner.JobLock = db.NewJobLockRepository(a.Pool)
		a.Runner.JobHistory = db.NewJobHistoryRepository(a.Pool)
	}

	return a, nil
}

// RecipientConfig maps the environment settings onto the job's recipient
// configuration.
func RecipientConfig(c config.ReminderConfig) reminder.RecipientConfig {
	return reminder.RecipientConfig{
		Mode:            reminder.DigestMode(c.DigestMode),
		Service:         c.ServiceRecipients,
		Admin:           c.AdminRecipients,
		Combined:        c.CombinedRecipients,
		ServiceSubject:  c.ServiceSubject,
		AdminSubject:    c.AdminSubject,
		CombinedSubject: c.CombinedSubject,
	}
}

// HealthProbes returns one probe per backing dependency.
func (a *App) HealthProbes() []core.HealthProbe {
	probes := []core.HealthProbe{
		core.ProbeFunc{ProbeName: "backend", Fn: func(ctx context.Context) error {
			_, err := a.Clients.Dashboard.CountVehicles(ctx)
			return err
		}},
	}
	if a.Pool != nil {
		probes = append(probes, core.ProbeFunc{ProbeName: "database", Fn: a.Pool.Ping})
	}
	return probes
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func loadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	if c.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return cfg, nil
}

// NewLogger builds the JSON logger every binary uses.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
