package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ALGORITHM", "")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "")
	t.Setenv("BCRYPT_COST", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, "text", cfg.Server.LogFormat)
}

func TestFromEnvValidation(t *testing.T) {
	t.Run("rejects asymmetric algorithm", func(t *testing.T) {
		t.Setenv("ALGORITHM", "RS256")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ALGORITHM")
	})

	t.Run("accepts lowercase hmac algorithm", func(t *testing.T) {
		t.Setenv("ALGORITHM", "hs512")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	})

	t.Run("rejects weak bcrypt cost", func(t *testing.T) {
		t.Setenv("BCRYPT_COST", "4")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "0")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("production requires a real secret and database", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvProduction)
		t.Setenv("SECRET_KEY", "")
		t.Setenv("DATABASE_URL", "")
		_, err := FromEnv()
		require.Error(t, err)
	})
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CORS_ALLOWED_ORIGINS=http://a.test, http://b.test\n"), 0o600))
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	require.NoError(t, os.Unsetenv("CORS_ALLOWED_ORIGINS"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
