package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "storefront", cfg.Service)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 1, cfg.Checkout.OversoldRetries)
	require.NoError(t, cfg.Validate())
}

func TestCheckoutRetriesFromEnv(t *testing.T) {
	t.Setenv("CHECKOUT_OVERSOLD_RETRIES", "3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Checkout.OversoldRetries)

	t.Setenv("CHECKOUT_OVERSOLD_RETRIES", "0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.Checkout.OversoldRetries)

	t.Setenv("CHECKOUT_OVERSOLD_RETRIES", "-1")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service: shopfront
http:
  addr: ":9090"
store:
  backend: mongo
  mongo:
    uri: mongodb://db:27017
    database: shopfront
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "shopfront", cfg.Service)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, StoreMongo, cfg.Store.Backend)
	assert.Equal(t, "mongodb://db:27017", cfg.Store.Mongo.URI)
	// File left shutdown_timeout unset; defaults survive a partial file.
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("SERVICE_NAME", "storefront-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "storefront-test", cfg.Service)
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "dynamo"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.Backend = StoreMongo
	cfg.Store.Mongo.URI = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.HTTP.Addr = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.HTTP.ShutdownTimeout = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
}
