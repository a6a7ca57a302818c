package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_SESSION_TTL_MINUTES", "")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*24*time.Hour, cfg.Auth.SessionTTL())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 5, cfg.RateLimit.LoginBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_SESSION_TTL_MINUTES", "90")
	t.Setenv("RATE_LIMIT_LOGIN_PER_SECOND", "0.5")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, cfg.Auth.SessionTTL())
	assert.InDelta(t, 0.5, cfg.RateLimit.LoginPerSecond, 0.0001)
	assert.Equal(t, "127.0.0.1:9000", cfg.App.Addr())
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadBcryptCost(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_BCRYPT_COST", "2")

	_, err := Load()
	require.Error(t, err)
}
