// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/chris/trustline/pkg/ledger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "TRUSTLINE"

const (
	ScoringModeSync  = "sync"
	ScoringModeQueue = "queue"
)

type Config struct {
	App      AppConfig
	DynamoDB DynamoDBConfig
	SQS      SQSConfig
	Redis    RedisConfig
	Scoring  ScoringConfig
	Policy   PolicyConfig
	OTP      OTPConfig
}

// Load reads an optional .env file, then the TRUSTLINE_* environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Port     string `envconfig:"TRUSTLINE_APP_PORT" default:"8080"`
	LogLevel string `envconfig:"TRUSTLINE_LOG_LEVEL" default:"info"`
	// LocalMode runs the API on the in-memory store with no AWS or Redis dependency.
	LocalMode  bool `envconfig:"TRUSTLINE_LOCAL_MODE" default:"false"`
	Websockets bool `envconfig:"TRUSTLINE_WEBSOCKETS" default:"true"`
}

// SlogLevel maps LogLevel onto a slog level. Unknown values fall back to info.
func (a AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(a.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type DynamoDBConfig struct {
	RelationsTable    string `envconfig:"TRUSTLINE_RELATIONS_TABLE" default:"relations"`
	CustomersTable    string `envconfig:"TRUSTLINE_CUSTOMERS_TABLE" default:"customers"`
	VendorsTable      string `envconfig:"TRUSTLINE_VENDORS_TABLE" default:"vendors"`
	TransactionsTable string `envconfig:"TRUSTLINE_TRANSACTIONS_TABLE" default:"transactions"`
	TokensTable       string `envconfig:"TRUSTLINE_QR_TOKENS_TABLE" default:"qr_tokens"`
}

type SQSConfig struct {
	QueueURL string `envconfig:"TRUSTLINE_SQS_QUEUE_URL"`
}

type RedisConfig struct {
	URL       string `envconfig:"TRUSTLINE_REDIS_URL"`
	KeyPrefix string `envconfig:"TRUSTLINE_REDIS_OTP_PREFIX" default:"otp:"`
}

type ScoringConfig struct {
	Mode string `envconfig:"TRUSTLINE_SCORING_MODE" default:"sync"`
}

type PolicyConfig struct {
	DefaultCreditLimit int64         `envconfig:"TRUSTLINE_DEFAULT_CREDIT_LIMIT" default:"50000"`
	SuspendThreshold   int64         `envconfig:"TRUSTLINE_SUSPEND_THRESHOLD" default:"2"`
	RepaymentTerm      time.Duration `envconfig:"TRUSTLINE_REPAYMENT_TERM" default:"720h"`
	DefaultGrace       time.Duration `envconfig:"TRUSTLINE_DEFAULT_GRACE" default:"720h"`
	ProximityKm        float64       `envconfig:"TRUSTLINE_PROXIMITY_KM" default:"0.5"`
	RepaymentRetries   int           `envconfig:"TRUSTLINE_REPAYMENT_RETRIES" default:"3"`
}

// Ledger converts the policy group into ledger rules.
func (p PolicyConfig) Ledger() ledger.Policy {
	return ledger.Policy{
		DefaultCreditLimit: p.DefaultCreditLimit,
		SuspendThreshold:   p.SuspendThreshold,
		RepaymentTerm:      p.RepaymentTerm,
		DefaultGrace:       p.DefaultGrace,
		ProximityKm:        p.ProximityKm,
		RepaymentRetries:   p.RepaymentRetries,
	}
}

type OTPConfig struct {
	TTL         time.Duration `envconfig:"TRUSTLINE_OTP_TTL" default:"5m"`
	MaxAttempts int           `envconfig:"TRUSTLINE_OTP_MAX_ATTEMPTS" default:"5"`
}

// Validate reports every invalid or missing field at once.
// Local mode does not need Redis or an SQS queue.
func (c *Config) Validate() error {
	var problems []error

	switch c.Scoring.Mode {
	case ScoringModeSync:
	case ScoringModeQueue:
		if c.SQS.QueueURL == "" && !c.App.LocalMode {
			problems = append(problems, errors.New("TRUSTLINE_SQS_QUEUE_URL is required when scoring mode is queue"))
		}
	default:
		problems = append(problems, fmt.Errorf("TRUSTLINE_SCORING_MODE must be %q or %q, got %q", ScoringModeSync, ScoringModeQueue, c.Scoring.Mode))
	}

	if c.Policy.DefaultCreditLimit <= 0 {
		problems = append(problems, errors.New("TRUSTLINE_DEFAULT_CREDIT_LIMIT must be greater than zero"))
	}
	if c.Policy.SuspendThreshold < 0 {
		problems = append(problems, errors.New("TRUSTLINE_SUSPEND_THRESHOLD must not be negative"))
	}
	if c.Policy.RepaymentTerm <= 0 {
		problems = append(problems, errors.New("TRUSTLINE_REPAYMENT_TERM must be positive"))
	}
	if c.Policy.DefaultGrace < 0 {
		problems = append(problems, errors.New("TRUSTLINE_DEFAULT_GRACE must not be negative"))
	}
	if c.Policy.ProximityKm <= 0 {
		problems = append(problems, errors.New("TRUSTLINE_PROXIMITY_KM must be positive"))
	}
	if c.OTP.TTL <= 0 {
		problems = append(problems, errors.New("TRUSTLINE_OTP_TTL must be positive"))
	}

	return errors.Join(problems...)
}

// ValidateServer additionally checks what the HTTP server needs outside local mode.
func (c *Config) ValidateServer() error {
	err := c.Validate()
	if !c.App.LocalMode && c.Redis.URL == "" {
		err = errors.Join(err, errors.New("TRUSTLINE_REDIS_URL is required outside local mode"))
	}
	return err
}
