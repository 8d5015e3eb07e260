package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"library-circulation-backend/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig                     `yaml:"server"`
	Database      DatabaseConfig                   `yaml:"database"`
	Log           LogConfig                        `yaml:"log"`
	Loan          LoanConfig                       `yaml:"loan"`
	Policies      map[string]domain.PolicyMetadata `yaml:"policies"`
	Notifications NotificationConfig               `yaml:"notifications"`
	SendGrid      SendGridConfig                   `yaml:"sendgrid"`
	Scheduler     SchedulerConfig                  `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // "postgres" or "memory"
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"ssl_mode"`
	Isolation   string `yaml:"isolation"` // "read_committed" or "serializable"
	MaxRetries  int    `yaml:"max_retries"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// LoanConfig bounds borrow periods
type LoanConfig struct {
	MaxDays int `yaml:"max_days"`
}

// NotificationConfig sizes the async delivery queue
type NotificationConfig struct {
	Workers   int  `yaml:"workers"`
	QueueSize int  `yaml:"queue_size"`
	Email     bool `yaml:"email"`
}

// SendGridConfig contains email delivery settings
type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	SendDueReminders     string `yaml:"send_due_reminders"`
	SendOverdueReminders string `yaml:"send_overdue_reminders"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	IsolationReadCommitted = "read_committed"
	IsolationSerializable  = "serializable"
)

// DefaultPolicies is the violation catalog used when the config file has none.
func DefaultPolicies() map[string]domain.PolicyMetadata {
	return map[string]domain.PolicyMetadata{
		domain.PolicyLostBook:    {Points: 10, PenaltyPercent: 100},
		domain.PolicyDamagedBook: {Points: 5, PenaltyPercent: 50},
		domain.PolicyWornBook:    {Points: 2, PenaltyPercent: 20},
	}
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates the result.
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
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
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
	if val := os.Getenv("DB_ISOLATION"); val != "" {
		c.Database.Isolation = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
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

	// Loan
	if val := os.Getenv("LOAN_MAX_DAYS"); val != "" {
		fmt.Sscanf(val, "%d", &c.Loan.MaxDays)
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 15
	}

	// Database validation
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
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
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}
	c.Database.Isolation = strings.ToLower(c.Database.Isolation)
	switch c.Database.Isolation {
	case "":
		c.Database.Isolation = IsolationReadCommitted
	case IsolationReadCommitted, IsolationSerializable:
	default:
		return fmt.Errorf("unknown isolation level: %q", c.Database.Isolation)
	}
	if c.Database.MaxRetries <= 0 {
		c.Database.MaxRetries = 3
	}

	// Loan defaults
	if c.Loan.MaxDays == 0 {
		c.Loan.MaxDays = 30
	}
	if c.Loan.MaxDays < 0 {
		return fmt.Errorf("invalid loan max_days: %d", c.Loan.MaxDays)
	}

	// Policy catalog
	if len(c.Policies) == 0 {
		c.Policies = DefaultPolicies()
	}
	for id, meta := range c.Policies {
		if meta.Points < 0 {
			return fmt.Errorf("policy %s: points must not be negative", id)
		}
	}

	// Notification defaults
	if c.Notifications.Workers <= 0 {
		c.Notifications.Workers = 2
	}
	if c.Notifications.QueueSize <= 0 {
		c.Notifications.QueueSize = 100
	}

	// SendGrid validation
	if c.Notifications.Email {
		if c.SendGrid.APIKey == "" {
			return fmt.Errorf("sendgrid api key is required when email notifications are enabled")
		}
		if c.SendGrid.FromEmail == "" {
			return fmt.Errorf("sendgrid from email is required when email notifications are enabled")
		}
	}
	if c.SendGrid.FromName == "" {
		c.SendGrid.FromName = "Library Circulation"
	}

	// Scheduler defaults
	if c.Scheduler.SendDueReminders == "" {
		c.Scheduler.SendDueReminders = "0 0 8 * * *" // 8 AM UTC
	}
	if c.Scheduler.SendOverdueReminders == "" {
		c.Scheduler.SendOverdueReminders = "0 0 9 * * *" // 9 AM UTC
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
