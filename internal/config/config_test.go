package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fr", cfg.Mail.DefaultLocale)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MAIL_OPERATOR_EMAIL", "ops@example.com")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("AUTH_TOKEN_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Len(t, cfg.KafkaBrokers, 2)
	assert.Equal(t, "ops@example.com", cfg.Mail.OperatorEmail)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}
