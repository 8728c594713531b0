package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-buildbuddy/internal/logger"
)

func newConfigCommand(t *testing.T, envFile string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "analyze"}
	cmd.Flags().String("env-file", "", "")
	cmd.Flags().String("log-level", "", "")
	require.NoError(t, cmd.Flags().Set("env-file", envFile))
	return cmd
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesLogLevelFromEnvFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	defer logger.SetLevel("info")

	cmd := newConfigCommand(t, writeEnvFile(t, "LOG_LEVEL=debug\n"))
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
}

func TestLoadConfigKeepsLogLevelFlag(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	defer logger.SetLevel("info")

	cmd := newConfigCommand(t, writeEnvFile(t, "LOG_LEVEL=debug\n"))
	require.NoError(t, cmd.Flags().Set("log-level", "warn"))
	logger.SetLevel("warn")

	_, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.Logger.GetLevel())
}

func TestLoadConfigReportsInvalidEnvFile(t *testing.T) {
	t.Setenv("PORT", "")

	cmd := newConfigCommand(t, writeEnvFile(t, "PORT=not-a-port\n"))
	_, err := loadConfig(cmd)
	assert.ErrorContains(t, err, "invalid PORT")
}
