package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("TRUSTLOCK_JWT_SECRET", "s3cret")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8089", cfg.ListenAddress)
	require.Equal(t, "s3cret", cfg.JWTSecret)
	require.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("TRUSTLOCK_JWT_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt secret")
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustlock.toml")
	body := `
listen_address = ":9000"
environment = "staging"
jwt_secret = "file-secret"
grader_url = "http://grader:8080"
grader_timeout = "45s"
sweep_interval = "30s"
rate_limit_per_minute = 240.0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	// Environment wins over the file.
	t.Setenv("TRUSTLOCK_LISTEN", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.ListenAddress)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, "file-secret", cfg.JWTSecret)
	require.Equal(t, 45*time.Second, cfg.GraderTimeout)
	require.Equal(t, 30*time.Second, cfg.SweepInterval)
	require.Equal(t, 240.0, cfg.RateLimitPerMinute)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustlock.toml")
	require.NoError(t, os.WriteFile(path, []byte("jwt_secret = \"x\"\ngrader_timeout = \"soon\"\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("TRUSTLOCK_JWT_SECRET", "s3cret")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Environment)
}
