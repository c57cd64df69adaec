package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("nwa-cli", pflag.ContinueOnError)
	bindFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(missingEnvFile(t), newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 0xBEEF, cfg.Port)
	assert.True(t, cfg.ShowTraffic)
	assert.Equal(t, 2*time.Second, cfg.ReconnectInterval)
	assert.Equal(t, "localhost:48879", cfg.addr())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("NWA_HOST", "10.0.0.2")
	t.Setenv("NWA_PORT", "5000")
	t.Setenv("NWA_SHOW_TRAFFIC", "false")
	t.Setenv("NWA_RECONNECT_INTERVAL", "500ms")

	cfg, err := loadConfig(missingEnvFile(t), newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2:5000", cfg.addr())
	assert.False(t, cfg.ShowTraffic)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectInterval)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("NWA_HOST", "10.0.0.2")
	t.Setenv("NWA_PORT", "5000")

	cfg, err := loadConfig(missingEnvFile(t), newFlags(t, "--port", "6000", "--log-level", "debug"))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2:6000", cfg.addr())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NWA_HISTORY_FILE=/tmp/nwa_history_test\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("NWA_HISTORY_FILE") })

	cfg, err := loadConfig(path, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/nwa_history_test", cfg.HistoryFile)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	_, err := loadConfig(missingEnvFile(t), newFlags(t, "--port", "70000"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = newLogger("warn")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("loud")
	require.Error(t, err)
}
