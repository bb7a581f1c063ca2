package external

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"garasiku/internal/config"
	"garasiku/internal/db"
)

// ClientRegistry is the single point of access to the task backend and the
// email provider. Which implementation sits behind each field is decided
// once, from configuration.
type ClientRegistry struct {
	Email      EmailProvider
	Tasks      TaskSource
	Dashboard  DashboardSource
	Parameters ParameterSource
}

// RegistryOption injects dependencies that configuration alone cannot build.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	database   db.DBTX
	awsCfg     *aws.Config
	httpClient *http.Client
}

// WithDatabase provides the pool used by the postgres backend.
func WithDatabase(pool db.DBTX) RegistryOption {
	return func(rc *registryConfig) {
		rc.database = pool
	}
}

// WithAWSConfig provides the SDK config used by the SES provider.
func WithAWSConfig(cfg aws.Config) RegistryOption {
	return func(rc *registryConfig) {
		rc.awsCfg = &cfg
	}
}

// WithHTTPClient overrides the client shared by the REST backend and SendGrid.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(rc *registryConfig) {
		rc.httpClient = c
	}
}

// NewClientRegistry wires the configured backend and email provider. Local
// runs always get the stub email provider so nothing leaves the machine.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.httpClient == nil {
		rc.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	reg := &ClientRegistry{}
	if err := reg.initBackend(cfg, logger, rc); err != nil {
		return nil, err
	}

	email, err := newEmailProvider(cfg, logger, rc)
	if err != nil {
		return nil, err
	}
	reg.Email = email

	logger.Info("external clients initialized",
		"backend", cfg.Backend.Kind,
		"email_provider", fmt.Sprintf("%T", reg.Email),
		"environment", cfg.Environment,
	)
	return reg, nil
}

func (reg *ClientRegistry) initBackend(cfg *config.Config, logger *slog.Logger, rc *registryConfig) error {
	switch cfg.Backend.Kind {
	case config.BackendPostgres:
		if rc.database == nil {
			return fmt.Errorf("backend %q requires a database pool", cfg.Backend.Kind)
		}
		repo := db.NewTaskRepository(rc.database)
		reg.Tasks = repo
		reg.Dashboard = repo
		reg.Parameters = db.NewParameterRepository(rc.database)
	default:
		client, err := NewPostgRESTClient(rc.httpClient, PostgRESTClientConfig{
			BaseURL:    cfg.Backend.SupabaseURL,
			ServiceKey: cfg.Backend.ServiceRoleKey.Unmask(),
			Logger:     logger.With("client", "postgrest"),
		})
		if err != nil {
			return err
		}
		reg.Tasks = client
		reg.Dashboard = client
		reg.Parameters = client
	}
	return nil
}

func newEmailProvider(cfg *config.Config, logger *slog.Logger, rc *registryConfig) (EmailProvider, error) {
	if cfg.Environment == "local" || cfg.Email.Provider == config.EmailProviderStub {
		return NewStubEmailProvider(logger.With("mode", "stub")), nil
	}

	switch cfg.Email.Provider {
	case config.EmailProviderSendGrid:
		return NewSendGridClient(rc.httpClient, SendGridClientConfig{
			APIKey: cfg.Email.SendGridAPIKey.Unmask(),
			Logger: logger.With("client", "sendgrid"),
		}), nil
	case config.EmailProviderSES:
		if rc.awsCfg == nil {
			return nil, fmt.Errorf("email provider %q requires an AWS config", cfg.Email.Provider)
		}
		return NewSESClient(*rc.awsCfg, SESClientConfig{
			ConfigSetName: cfg.Email.SESConfigurationSet,
			Logger:        logger.With("client", "ses"),
		}), nil
	default:
		return NewSMTPClient(SMTPClientConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPassword.Unmask(),
			Logger:   logger.With("client", "smtp"),
		}), nil
	}
}
