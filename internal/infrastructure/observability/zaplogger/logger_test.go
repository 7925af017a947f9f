package zaplogger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namprobe/NekoViBE-sub001/internal/observability"
)

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_LEVEL", "debug")

	log := New(observability.F("service", "storefront"))
	log.Debug("startup_check", observability.F("attempt", 1))
	_ = log.(interface{ Sync() error }).Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "startup_check")
	require.Contains(t, string(data), `"service":"storefront"`)
}

func TestNewHonorsLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	log := New()
	log.Info("quiet_entry")
	log.Warn("loud_entry")
	_ = log.(interface{ Sync() error }).Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "quiet_entry")
	require.Contains(t, string(data), "loud_entry")
}
