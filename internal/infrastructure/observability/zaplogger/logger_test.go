package zaplogger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/orderstack/storefront/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFileDuplication(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	t.Setenv("LOG_FILE", path)

	logger := New(observability.F("service", "storefront-test"))
	logger.Info("startup_check", observability.F("k", "v"))
	if s, ok := logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "startup_check")
	assert.Contains(t, string(data), "storefront-test")
}

func TestLogLevelFiltersDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	logger := New()
	logger.Debug("too_quiet")
	logger.Warn("loud_enough")
	if s, ok := logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "too_quiet")
	assert.Contains(t, string(data), "loud_enough")
}
