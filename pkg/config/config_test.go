package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, int64(10*1024*1024), cfg.Media.MaxSize)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.False(t, cfg.Storage.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("BACKEND_BASE_URL", "https://api.bibo.id/api")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://localhost:3000,app://bibo")
	t.Setenv("POLL_INTERVAL", "45s")
	t.Setenv("SESSION_STORE", "firestore")
	t.Setenv("FIRESTORE_PROJECT_ID", "bibo-local")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "https://api.bibo.id/api", cfg.Backend.BaseURL)
	assert.Equal(t, []string{"http://localhost:3000", "app://bibo"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 45*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "firestore", cfg.Session.Store)
	assert.Equal(t, "bibo-local", cfg.Firestore.ProjectID)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")

	_, err := Load()

	assert.Error(t, err)
}

func TestEnsureSecret(t *testing.T) {
	t.Run("configured secret is kept", func(t *testing.T) {
		s := ServerConfig{Secret: "fixed", SecretFile: filepath.Join(t.TempDir(), "secret")}

		generated, err := s.EnsureSecret()

		require.NoError(t, err)
		assert.False(t, generated)
		assert.Equal(t, "fixed", s.Secret)
		assert.NoFileExists(t, s.SecretFile)
	})

	t.Run("generated secret is written owner-only", func(t *testing.T) {
		s := ServerConfig{SecretFile: filepath.Join(t.TempDir(), "secret")}

		generated, err := s.EnsureSecret()

		require.NoError(t, err)
		assert.True(t, generated)
		assert.Len(t, s.Secret, 64)

		data, err := os.ReadFile(s.SecretFile)
		require.NoError(t, err)
		assert.Equal(t, s.Secret+"\n", string(data))
		info, err := os.Stat(s.SecretFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("every run gets a new secret", func(t *testing.T) {
		a, b := ServerConfig{}, ServerConfig{}
		_, err := a.EnsureSecret()
		require.NoError(t, err)
		_, err = b.EnsureSecret()
		require.NoError(t, err)
		assert.NotEqual(t, a.Secret, b.Secret)
	})
}
