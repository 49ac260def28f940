package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsPublicKeyAliases(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_STOREFRONT_PUBLIC_KEY", "")
	t.Setenv("STOREFRONT_PUBLIC_KEY", "pk_live")
	t.Setenv("API_BASE_URL", "https://api.example.com/v1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SDK_TIMEOUT_SECONDS", "5")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "prod-secret")

	cfg := Load()
	assert.Equal(t, "pk_live", cfg.PublicKey)
	assert.Equal(t, "https://api.example.com/v1", cfg.APIBaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.SDKTimeout)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_PrefersNextPublicNames(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_STOREFRONT_PUBLIC_KEY", "pk_next")
	t.Setenv("STOREFRONT_PUBLIC_KEY", "pk_plain")
	t.Setenv("APP_ENV", "development")

	assert.Equal(t, "pk_next", Load().PublicKey)
}

func TestGetEnvDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "soon")
	assert.Equal(t, time.Duration(24), getEnvDuration("SESSION_TTL_HOURS", 24))
}

func TestSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := sessionSecret("production")
	require.ErrorIs(t, err, errMissingSessionSecret)

	secret, err := sessionSecret("development")
	require.NoError(t, err)
	assert.Equal(t, devSessionSecret, secret)

	t.Setenv("SESSION_SECRET", " s3cret ")
	secret, err = sessionSecret("production")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
}
