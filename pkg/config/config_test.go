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
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.Jwt.Expiry)
	assert.Equal(t, "transactions", cfg.Broker.Topic)
	assert.Equal(t, 6*time.Second, cfg.Broker.PublishTimeout)
	assert.True(t, cfg.Broker.DLQEnabled)
	assert.Zero(t, cfg.Broker.DLQReplayInterval)
	assert.Equal(t, 2020, cfg.Query.MinYear)
	assert.Equal(t, 2030, cfg.Query.MaxYear)
	assert.Equal(t, "https://v6.exchangerate-api.com/v6", cfg.ExchangeRateAPIProviders.ExchangeRateApi.ApiUrl)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_RequiresJwtSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("AUTH_JWT_SECRET"))
	t.Chdir(t.TempDir())

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FromEnvFileInParentDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.test"), []byte(
		"AUTH_JWT_SECRET=from-file\nBROKER_DRIVER=memory\nBROKER_WORKERS=7\nQUERY_MAX_YEAR=2040\n",
	), 0o600))
	t.Chdir(nested)

	// godotenv does not override variables that are already set
	t.Setenv("AUTH_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("AUTH_JWT_SECRET"))
	t.Setenv("BROKER_DRIVER", "")
	require.NoError(t, os.Unsetenv("BROKER_DRIVER"))
	t.Setenv("BROKER_WORKERS", "")
	require.NoError(t, os.Unsetenv("BROKER_WORKERS"))
	t.Setenv("QUERY_MAX_YEAR", "")
	require.NoError(t, os.Unsetenv("QUERY_MAX_YEAR"))

	cfg, err := Load(".env.missing", ".env.test")
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.Jwt.Secret)
	assert.Equal(t, "memory", cfg.Broker.Driver)
	assert.Equal(t, 7, cfg.Broker.Workers)
	assert.Equal(t, 2040, cfg.Query.MaxYear)
}

func TestFindEnvFile_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := findEnvFile(".env.does-not-exist-anywhere")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindUp_WalksToParent(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "cmd", "server")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("APP_ENV=test\n"), 0o600))

	got, err := findUp(nested, ".env")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".env"), got)
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "****", maskValue(""))
	assert.Equal(t, "****", maskValue("abcdef"))
	assert.Equal(t, "su****cret", maskValue("supersecret"))
}
