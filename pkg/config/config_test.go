package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRUSTLINE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, ScoringModeSync, cfg.Scoring.Mode)
	assert.Equal(t, "relations", cfg.DynamoDB.RelationsTable)
	assert.Equal(t, "qr_tokens", cfg.DynamoDB.TokensTable)
	assert.Equal(t, "otp:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.True(t, cfg.App.Websockets)

	policy := cfg.Policy.Ledger()
	assert.Equal(t, int64(50000), policy.DefaultCreditLimit)
	assert.Equal(t, int64(2), policy.SuspendThreshold)
	assert.Equal(t, 30*24*time.Hour, policy.RepaymentTerm)
	assert.Equal(t, 30*24*time.Hour, policy.DefaultGrace)
	assert.InDelta(t, 0.5, policy.ProximityKm, 1e-9)
	assert.Equal(t, 3, policy.RepaymentRetries)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRUSTLINE_APP_PORT", "9090")
	t.Setenv("TRUSTLINE_RELATIONS_TABLE", "prod-relations")
	t.Setenv("TRUSTLINE_SCORING_MODE", "queue")
	t.Setenv("TRUSTLINE_SQS_QUEUE_URL", "https://sqs.local/queue")
	t.Setenv("TRUSTLINE_DEFAULT_CREDIT_LIMIT", "120000")
	t.Setenv("TRUSTLINE_REPAYMENT_TERM", "168h")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "prod-relations", cfg.DynamoDB.RelationsTable)
	assert.Equal(t, ScoringModeQueue, cfg.Scoring.Mode)
	assert.Equal(t, int64(120000), cfg.Policy.DefaultCreditLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Policy.RepaymentTerm)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("TRUSTLINE_DEFAULT_CREDIT_LIMIT", "lots")

	_, err := Load()

	assert.ErrorContains(t, err, "parsing config")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Scoring: ScoringConfig{Mode: ScoringModeSync},
			Redis:   RedisConfig{URL: "redis://localhost:6379/0"},
			Policy: PolicyConfig{
				DefaultCreditLimit: 50000,
				SuspendThreshold:   2,
				RepaymentTerm:      720 * time.Hour,
				DefaultGrace:       720 * time.Hour,
				ProximityKm:        0.5,
			},
			OTP: OTPConfig{TTL: 5 * time.Minute, MaxAttempts: 5},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, valid().ValidateServer())
	})

	t.Run("Unknown Scoring Mode", func(t *testing.T) {
		cfg := valid()
		cfg.Scoring.Mode = "batch"
		assert.ErrorContains(t, cfg.Validate(), "TRUSTLINE_SCORING_MODE")
	})

	t.Run("Queue Mode Needs A Queue", func(t *testing.T) {
		cfg := valid()
		cfg.Scoring.Mode = ScoringModeQueue
		assert.ErrorContains(t, cfg.Validate(), "TRUSTLINE_SQS_QUEUE_URL")

		cfg.App.LocalMode = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Aggregates Every Problem", func(t *testing.T) {
		cfg := valid()
		cfg.Policy.DefaultCreditLimit = 0
		cfg.Policy.ProximityKm = -1
		cfg.OTP.TTL = 0

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRUSTLINE_DEFAULT_CREDIT_LIMIT")
		assert.Contains(t, err.Error(), "TRUSTLINE_PROXIMITY_KM")
		assert.Contains(t, err.Error(), "TRUSTLINE_OTP_TTL")
	})

	t.Run("Server Needs Redis Outside Local Mode", func(t *testing.T) {
		cfg := valid()
		cfg.Redis.URL = ""
		assert.ErrorContains(t, cfg.ValidateServer(), "TRUSTLINE_REDIS_URL")

		cfg.App.LocalMode = true
		assert.NoError(t, cfg.ValidateServer())
	})
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, AppConfig{LogLevel: in}.SlogLevel())
		})
	}
}
