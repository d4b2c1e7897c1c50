package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("ADMIN_EMAILS", " Boss@Example.com , ,ops@example.com")
	t.Setenv("AUTOLOGIN_TTL_MINUTES", "15")
	t.Setenv("APP_BASE_URL", "https://launchpad.test/")
	t.Setenv("JWT_SECRET", "session-secret")
	t.Setenv("AUTOLOGIN_SECRET", "")
	t.Setenv("FAILED_LOGIN_WINDOW_MINUTES", "5")
	t.Setenv("FAILED_LOGIN_BLOCK_MINUTES", "30")
	t.Setenv("PASSWORD_RESET_TTL_MINUTES", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"boss@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 15*time.Minute, cfg.AutoLoginTTL)
	assert.Equal(t, "https://launchpad.test", cfg.AppBaseURL)
	assert.Equal(t, "session-secret", cfg.AutoLoginSecret)
	assert.Equal(t, 5, cfg.FailedLoginWindowMinutes)
	assert.Equal(t, 30, cfg.FailedLoginBlockMinutes)
	assert.Equal(t, time.Hour, cfg.PasswordResetTTL)

	assert.True(t, cfg.IsAdminEmail("BOSS@example.com "))
	assert.False(t, cfg.IsAdminEmail("client@example.com"))
}

func TestGetEnvIntFallback(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "not-a-number")
	assert.Equal(t, 60, getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60))
}
