package config_test

import (
	"os"
	"testing"

	"github.com/mkerhoas/outlook-relay/internal/config"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TENANT_ID", "tenant-1")
	t.Setenv("CLIENT_ID", "client-id-123")
	t.Setenv("CLIENT_SECRET", "client-secret")
	t.Setenv("REDIRECT_URI", "https://relay.example.com/auth/callback")
	t.Setenv("APP_JWT_SECRET", "app-secret")
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := config.New()
		require.NoError(t, err)

		require.Equal(t, ":8080", cfg.GetPort())
		require.Equal(t, "DEV", cfg.GetEnv())
		require.Equal(t, config.FlowModePopup, cfg.GetFlowMode())
		require.Equal(t, []string{"openid", "profile", "email", "User.Read"}, cfg.GetLoginScopes())
	})

	t.Run("missing required variable", func(t *testing.T) {
		setRequiredEnv(t)
		// t.Setenv registered the restore; unsetting here simulates absence
		require.NoError(t, os.Unsetenv("CLIENT_SECRET"))

		_, err := config.New()
		require.Error(t, err)
	})

	t.Run("rejects unknown flow mode", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("AUTH_FLOW_MODE", "smoke-signals")

		_, err := config.New()
		require.Error(t, err)
		require.Contains(t, err.Error(), "AUTH_FLOW_MODE")
	})

	t.Run("origins are parsed into a set", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

		cfg, err := config.New()
		require.NoError(t, err)

		origins := cfg.GetAllowedOrigins()
		require.True(t, origins.IsAllowedOrigin("https://a.example.com"))
		require.True(t, origins.IsAllowedOrigin("https://b.example.com"))
		require.False(t, origins.IsAllowedOrigin("https://evil.example.com"))
	})
}
