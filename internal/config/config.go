package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Sequences SequenceConfig  `yaml:"sequences"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// AuthConfig holds the credentials accepted by the HTTP API.
// ServiceRoleKey and CronSecret authorize the lifecycle trigger;
// JWTSecret verifies user access tokens.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	ServiceRoleKey string `yaml:"service_role_key"`
	CronSecret     string `yaml:"cron_secret"`
}

// LifecycleConfig contains account lifecycle thresholds
type LifecycleConfig struct {
	GracePeriodDays       int `yaml:"grace_period_days"`
	CardExpiryHorizonDays int `yaml:"card_expiry_horizon_days"`
	CardWarningDedupDays  int `yaml:"card_warning_dedup_days"`
}

const (
	ReplyLookupBuyerFirst  = "buyer_first"
	ReplyLookupSellerFirst = "seller_first"
)

// SequenceConfig contains email sequence enrollment settings
type SequenceConfig struct {
	// CumulativeDelays chains step delays instead of offsetting every step from enrollment.
	CumulativeDelays bool `yaml:"cumulative_delays"`
	// ReplyCancelStatus is the queue status cancelled on an inbound reply.
	// "active" matches no rows and is kept only to reproduce legacy behavior.
	ReplyCancelStatus string `yaml:"reply_cancel_status"`
	ReplyLookupOrder  string `yaml:"reply_lookup_order"`
}

// SendGridConfig contains dunning email delivery settings
type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	BatchSize int    `yaml:"batch_size"`
	// MaxAttempts is how many failed sends an email gets before dispatch gives up on it.
	MaxAttempts int `yaml:"max_attempts"`
}

// Enabled reports whether dunning emails should be delivered
func (c SendGridConfig) Enabled() bool {
	return c.APIKey != ""
}

// SchedulerConfig contains cron schedule settings (with seconds)
type SchedulerConfig struct {
	AccountLifecycle      string `yaml:"account_lifecycle"`
	DispatchDunningEmails string `yaml:"dispatch_dunning_emails"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies environment overrides and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Auth
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.Auth.JWTSecret = val
	}
	if val := os.Getenv("SERVICE_ROLE_KEY"); val != "" {
		c.Auth.ServiceRoleKey = val
	}
	if val := os.Getenv("CRON_SECRET"); val != "" {
		c.Auth.CronSecret = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}
	if val := os.Getenv("SENDGRID_FROM_EMAIL"); val != "" {
		c.SendGrid.FromEmail = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.Auth.ServiceRoleKey == "" && c.Auth.CronSecret == "" {
		return fmt.Errorf("either a service role key or a cron secret is required")
	}

	// Lifecycle defaults
	if c.Lifecycle.GracePeriodDays == 0 {
		c.Lifecycle.GracePeriodDays = 14
	}
	if c.Lifecycle.CardExpiryHorizonDays == 0 {
		c.Lifecycle.CardExpiryHorizonDays = 30
	}
	if c.Lifecycle.CardWarningDedupDays == 0 {
		c.Lifecycle.CardWarningDedupDays = 7
	}
	if c.Lifecycle.GracePeriodDays < 0 || c.Lifecycle.CardExpiryHorizonDays < 0 || c.Lifecycle.CardWarningDedupDays < 0 {
		return fmt.Errorf("lifecycle day counts must not be negative")
	}

	// Sequence defaults
	switch c.Sequences.ReplyCancelStatus {
	case "":
		c.Sequences.ReplyCancelStatus = "pending"
	case "pending", "active":
	default:
		return fmt.Errorf("invalid reply_cancel_status: %q", c.Sequences.ReplyCancelStatus)
	}
	switch c.Sequences.ReplyLookupOrder {
	case "":
		c.Sequences.ReplyLookupOrder = ReplyLookupBuyerFirst
	case ReplyLookupBuyerFirst, ReplyLookupSellerFirst:
	default:
		return fmt.Errorf("invalid reply_lookup_order: %q", c.Sequences.ReplyLookupOrder)
	}

	// SendGrid
	if c.SendGrid.Enabled() && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when an API key is set")
	}
	if c.SendGrid.BatchSize == 0 {
		c.SendGrid.BatchSize = 50
	}
	if c.SendGrid.MaxAttempts == 0 {
		c.SendGrid.MaxAttempts = 5
	}

	// Scheduler defaults
	if c.Scheduler.AccountLifecycle == "" {
		c.Scheduler.AccountLifecycle = "0 0 */6 * * *" // every 6 hours
	}
	if c.Scheduler.DispatchDunningEmails == "" {
		c.Scheduler.DispatchDunningEmails = "0 */15 * * * *" // every 15 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
