package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  aster:
    enabled: true
    api_key: key
    api_secret: secret
  hyperliquid:
    enabled: true
    private_key: abc123
features:
  spot_trading: true
  futures_trading: false
  websocket: true
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Exchanges.Aster.Enabled)
	assert.Equal(t, "key", cfg.Exchanges.Aster.APIKey)
	assert.Equal(t, "abc123", cfg.Exchanges.Hyperliquid.PrivateKey)
	assert.False(t, cfg.Features.FuturesTrading)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  aster:
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Features.SpotTrading)
	assert.True(t, cfg.Features.FuturesTrading)
	assert.True(t, cfg.Features.Websocket)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsEnabledVenueWithoutCredentials(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  aster:
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: shouting
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateDisabledVenuesNeedNoCredentials(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, Validate(cfg))
}
