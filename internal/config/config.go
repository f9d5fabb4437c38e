package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/LungheSam/FareFlow-Server/internal/logging"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fareflow/config.yaml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	BusState BusStateConfig `koanf:"busstate"`
	Fare     FareConfig     `koanf:"fare"`
	SMS      SMSConfig      `koanf:"sms"`
	Email    EmailConfig    `koanf:"email"`
	Outbox   OutboxConfig   `koanf:"outbox"`
	Logging  logging.Config `koanf:"logging"`
}

type ServerConfig struct {
	Port        string        `koanf:"port"`
	Environment string        `koanf:"environment"`
	Timeout     time.Duration `koanf:"timeout"`
}

type DatabaseConfig struct {
	Source string `koanf:"source"`
}

// BusStateConfig locates the embedded live-state store written by the
// telemetry ingest path.
type BusStateConfig struct {
	Path string `koanf:"path"`
}

// FareConfig carries the settlement policy knobs that the original server
// hardcoded inline.
type FareConfig struct {
	// DefaultFare applies when a fixed route carries no positive fareAmount.
	DefaultFare int64 `koanf:"default_fare"`
	// MinBalance is a reserve floor checked before fare sufficiency,
	// independent of the fare amount.
	MinBalance int64 `koanf:"min_balance"`
	// DefaultPlate is the terminal binding used when a tap request does not
	// name a bus.
	DefaultPlate string `koanf:"default_plate"`
	// Currency is the display label used in rider-facing messages.
	Currency string `koanf:"currency"`
}

type SMSConfig struct {
	BaseURL  string        `koanf:"base_url"`
	APIKey   string        `koanf:"api_key"`
	Username string        `koanf:"username"`
	Sender   string        `koanf:"sender"`
	Timeout  time.Duration `koanf:"timeout"`
}

type EmailConfig struct {
	BaseURL           string        `koanf:"base_url"`
	ServiceID         string        `koanf:"service_id"`
	TemplateID        string        `koanf:"template_id"`
	PaymentTemplateID string        `koanf:"payment_template_id"`
	PublicKey         string        `koanf:"public_key"`
	PrivateKey        string        `koanf:"private_key"`
	Timeout           time.Duration `koanf:"timeout"`
}

type OutboxConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	BatchSize    int           `koanf:"batch_size"`
	MaxAttempts  int           `koanf:"max_attempts"`
	BaseBackoff  time.Duration `koanf:"base_backoff"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "5000",
			Environment: "development",
			Timeout:     30 * time.Second,
		},
		Database: DatabaseConfig{
			Source: "",
		},
		BusState: BusStateConfig{
			Path: "/data/fareflow/busstate",
		},
		Fare: FareConfig{
			DefaultFare:  1500,
			MinBalance:   500,
			DefaultPlate: "UAZ-123",
			Currency:     "UGX",
		},
		SMS: SMSConfig{
			BaseURL: "https://api.africastalking.com/version1/messaging",
			Sender:  "FareFlow",
			Timeout: 10 * time.Second,
		},
		Email: EmailConfig{
			BaseURL: "https://api.emailjs.com/api/v1.0/email/send",
			Timeout: 10 * time.Second,
		},
		Outbox: OutboxConfig{
			PollInterval: 2 * time.Second,
			BatchSize:    20,
			MaxAttempts:  5,
			BaseBackoff:  5 * time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration in three layers: struct defaults, an
// optional YAML file, then environment variables (highest priority).
// SERVER_PORT -> server.port, FARE_MIN_BALANCE -> fare.min_balance.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Database.Source == "" {
		return fmt.Errorf("database.source (DATABASE_SOURCE) is required")
	}
	if c.Fare.DefaultFare <= 0 {
		return fmt.Errorf("fare.default_fare must be positive")
	}
	if c.Fare.MinBalance < 0 {
		return fmt.Errorf("fare.min_balance must not be negative")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be positive")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox.max_attempts must be positive")
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// knownPrefixes limits env scanning to this service's variables so unrelated
// process environment does not leak into the koanf tree.
var knownPrefixes = []string{
	"SERVER_", "DATABASE_", "BUSSTATE_", "FARE_", "SMS_", "EMAIL_", "OUTBOX_", "LOGGING_",
}

// envTransform maps SERVER_PORT to server.port. The first underscore splits
// the section; the remainder keeps its underscores (FARE_MIN_BALANCE ->
// fare.min_balance).
func envTransform(s string) string {
	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(s, prefix) {
			section := strings.ToLower(strings.TrimSuffix(prefix, "_"))
			rest := strings.ToLower(strings.TrimPrefix(s, prefix))
			return section + "." + rest
		}
	}
	return ""
}
