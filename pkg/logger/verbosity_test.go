// Copyright (c) Microsoft Corporation. All rights reserved.

package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wiltonlazary/jdwpcore/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	valid := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"INFO":  zapcore.InfoLevel,
		"error": zapcore.ErrorLevel,
		"1":     zapcore.DebugLevel,
		"4":     zapcore.Level(-4),
	}
	for value, expected := range valid {
		level, err := logger.ParseLevel(value)
		require.NoError(t, err, "value %q", value)
		require.Equal(t, expected, level, "value %q", value)
	}

	for _, value := range []string{"0", "-2", "200", "loud", ""} {
		_, err := logger.ParseLevel(value)
		require.Error(t, err, "value %q", value)
	}
}

func TestVerbosityFlagSetsConsoleLevel(t *testing.T) {
	log := logger.New("verbosity-test")
	require.Equal(t, zapcore.InfoLevel, log.Level())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	log.AddLevelFlag(fs)

	require.NoError(t, fs.Parse([]string{"-v=debug"}))
	require.Equal(t, zapcore.DebugLevel, log.Level())
	require.Equal(t, "debug", fs.Lookup("verbosity").Value.String())

	require.NoError(t, fs.Parse([]string{"--verbosity=3"}))
	require.Equal(t, zapcore.Level(-3), log.Level())

	require.Error(t, fs.Parse([]string{"--verbosity=chatty"}))
}

func TestDiagnosticsLogFile(t *testing.T) {
	folder := t.TempDir()
	t.Setenv(logger.JDWP_DIAGNOSTICS_LOG_FOLDER, folder)
	t.Setenv(logger.JDWP_DIAGNOSTICS_LOG_LEVEL, "info")
	t.Setenv(logger.JDWP_LOG_SESSION_ID, "session")

	log := logger.New("diag")
	log.Info("hello from the test")
	log.Flush()

	matches, err := filepath.Glob(filepath.Join(folder, "session-diag-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	contents, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Contains(t, string(contents), "hello from the test")
}
