// Package config defines the configuration structure for the Garasiku reminder
// services. Configuration is loaded once at process initialization (Lambda cold
// start, API boot, cron daemon boot) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // Lambda images ship without a zoneinfo database.

	"garasiku/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import the types package for credential fields.
type SecretString = types.SecretString

// Task backends.
const (
	BackendPostgres  = "postgres"
	BackendPostgREST = "postgrest"
)

// Email providers.
const (
	EmailProviderSMTP     = "smtp"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// Config is the top-level configuration struct.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"garasiku-reminder"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Backend       BackendConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Reminder      ReminderConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds the HTTP trigger settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// CronSecret, when set, must be presented as "Authorization: Bearer <secret>"
	// by whatever scheduler calls the HTTP trigger.
	CronSecret     SecretString  `envconfig:"CRON_SECRET"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig selects where tasks and parameters are read from.
type BackendConfig struct {
	Kind string `envconfig:"TASK_BACKEND" default:"postgrest" validate:"oneof=postgres postgrest"`

	SupabaseURL    string       `envconfig:"SUPABASE_URL" validate:"required_if=Kind postgrest"`
	ServiceRoleKey SecretString `envconfig:"SUPABASE_SERVICE_ROLE_KEY" validate:"required_if=Kind postgrest"`
}

// DatabaseConfig holds the direct Postgres connection. Required when the
// postgres backend is selected; optional otherwise, where it only enables the
// job lock and job history tables.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// AWSConfig holds regional configuration shared by SES, SSM and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"ap-southeast-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds the dispatch channel credentials.
type EmailConfig struct {
	Provider string `envconfig:"EMAIL_PROVIDER" default:"smtp" validate:"oneof=smtp sendgrid ses stub"`

	SMTPHost     string       `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int          `envconfig:"SMTP_PORT" default:"587" validate:"min=1,max=65535"`
	SMTPUser     string       `envconfig:"GMAIL_USER"`
	SMTPPassword SecretString `envconfig:"GMAIL_APP_PASS"`

	SendGridAPIKey      SecretString `envconfig:"SENDGRID_API_KEY"`
	SESConfigurationSet string       `envconfig:"SES_CONFIGURATION_SET"`

	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" validate:"omitempty,email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Garasiku Reminder"`
}

// SenderAddress returns the configured from address, falling back to the SMTP
// account the way the mail relay expects.
func (c EmailConfig) SenderAddress() string {
	if c.FromAddress != "" {
		return c.FromAddress
	}
	return c.SMTPUser
}

// Sender returns the display identity used on every digest.
func (c EmailConfig) Sender() types.SenderIdentity {
	return types.SenderIdentity{Name: c.FromName, Address: c.SenderAddress()}
}

// ReminderConfig holds the digest job settings. Recipient lists are raw
// comma-separated strings; parsing happens in the reminder package.
type ReminderConfig struct {
	ServiceRecipients  string `envconfig:"SERVICE_RECEIVER_EMAIL"`
	AdminRecipients    string `envconfig:"ADMIN_RECEIVER_EMAIL"`
	CombinedRecipients string `envconfig:"REMINDER_RECEIVER_EMAIL"`

	DigestMode     string        `envconfig:"REMINDER_DIGEST_MODE" default:"auto" validate:"oneof=auto split combined"`
	DispatchPolicy string        `envconfig:"REMINDER_DISPATCH_POLICY" default:"best_effort" validate:"oneof=best_effort abort"`
	CallTimeout    time.Duration `envconfig:"REMINDER_CALL_TIMEOUT" default:"10s"`
	Timezone       string        `envconfig:"REMINDER_TIMEZONE" default:"Asia/Jakarta"`
	Schedule       string        `envconfig:"REMINDER_SCHEDULE" default:"0 0 8 * * MON"`

	ServiceSubject  string `envconfig:"REMINDER_SERVICE_SUBJECT" default:"Weekly Service Task Reminder - Garasiku"`
	AdminSubject    string `envconfig:"REMINDER_ADMIN_SUBJECT" default:"Weekly Administration Task Reminder - Garasiku"`
	CombinedSubject string `envconfig:"REMINDER_COMBINED_SUBJECT" default:"Weekly Task Reminder - Garasiku"`
}

// Location resolves the digest timezone.
func (c ReminderConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading reminder timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Garasiku"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)

// checkDependencies enforces the cross-section requirements that struct tags
// cannot express.
func (c *Config) checkDependencies() error {
	if c.Backend.Kind == BackendPostgres && !c.Database.URL.IsSet() {
		return &ConfigError{Type: ErrMissingEnv, Message: "DATABASE_URL is required when TASK_BACKEND=postgres"}
	}

	switch c.Email.Provider {
	case EmailProviderSMTP:
		if c.Email.SMTPUser == "" || !c.Email.SMTPPassword.IsSet() {
			return &ConfigError{Type: ErrMissingEnv, Message: "GMAIL_USER and GMAIL_APP_PASS are required when EMAIL_PROVIDER=smtp"}
		}
	case EmailProviderSendGrid:
		if !c.Email.SendGridAPIKey.IsSet() {
			return &ConfigError{Type: ErrMissingEnv, Message: "SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid"}
		}
	}

	if c.Email.Provider != EmailProviderStub && c.Email.SenderAddress() == "" {
		return &ConfigError{Type: ErrMissingEnv, Message: "EMAIL_FROM_ADDRESS or GMAIL_USER must provide a sender address"}
	}

	if _, err := c.Reminder.Location(); err != nil {
		return &ConfigError{Type: ErrValidation, Message: "invalid REMINDER_TIMEZONE", Err: err}
	}
	return nil
}
