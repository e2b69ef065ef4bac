/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package logger creates the zap-backed logr loggers used by jdwpcore programs.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wiltonlazary/jdwpcore/pkg/resiliency"
)

const (
	// Log level of the diagnostics log file. The file is not written unless this is set.
	JDWP_DIAGNOSTICS_LOG_LEVEL = "JDWP_DIAGNOSTICS_LOG_LEVEL"
	// Folder for diagnostics log files (defaults to a folder under the temp directory).
	JDWP_DIAGNOSTICS_LOG_FOLDER = "JDWP_DIAGNOSTICS_LOG_FOLDER"
	// Prefix of diagnostics log file names, so that logs of cooperating processes can be grouped.
	JDWP_LOG_SESSION_ID = "JDWP_LOG_SESSION_ID"

	logFolderPermissions fs.FileMode = 0700
	logFilePermissions   fs.FileMode = 0600
)

var errDiagnosticsLogDisabled = errors.New("diagnostics log is disabled")

// Logger is a logr.Logger that writes human readable output to stderr and, optionally,
// JSON output to a diagnostics log file.
type Logger struct {
	logr.Logger
	consoleLevel zap.AtomicLevel
	sync         func() error
}

func New(name string) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), consoleLevel),
	}

	fileCore, fileErr := newDiagnosticsCore(name, encoderConfig)
	if fileErr == nil {
		cores = append(cores, fileCore)
	}

	zapLogger := zap.New(zapcore.NewTee(cores...))
	log := zapr.NewLogger(zapLogger).WithName(name)
	if fileErr != nil && !errors.Is(fileErr, errDiagnosticsLogDisabled) {
		log.Error(fileErr, "Diagnostics log is not available")
	}

	return &Logger{
		Logger:       log,
		consoleLevel: consoleLevel,
		sync:         zapLogger.Sync,
	}
}

// SetLevel changes the level of console output.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.consoleLevel.SetLevel(level)
}

func (l *Logger) Level() zapcore.Level {
	return l.consoleLevel.Level()
}

// Flush writes out buffered log entries.
func (l *Logger) Flush() {
	_ = l.sync()
}

func newDiagnosticsCore(name string, encoderConfig zapcore.EncoderConfig) (zapcore.Core, error) {
	levelValue, enabled := os.LookupEnv(JDWP_DIAGNOSTICS_LOG_LEVEL)
	if !enabled {
		return nil, errDiagnosticsLogDisabled
	}
	level, err := ParseLevel(levelValue)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", JDWP_DIAGNOSTICS_LOG_LEVEL, err)
	}

	folder, err := diagnosticsFolder()
	if err != nil {
		return nil, err
	}

	// Processes of one session started in the same millisecond would pick the same name.
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxElapsedTime(time.Second),
	)
	file, err := resiliency.RetryGet(context.Background(), b, func() (*os.File, error) {
		fileName := fmt.Sprintf("%s-%s-%d.log", sessionID(), name, time.Now().UnixMilli())
		return os.OpenFile(filepath.Join(folder, fileName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, logFilePermissions)
	})
	if err != nil {
		return nil, fmt.Errorf("could not create diagnostics log file in '%s': %w", folder, err)
	}

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), zap.NewAtomicLevelAt(level)), nil
}

func diagnosticsFolder() (string, error) {
	folder, found := os.LookupEnv(JDWP_DIAGNOSTICS_LOG_FOLDER)
	if !found || folder == "" {
		folder = filepath.Join(os.TempDir(), "jdwpcore", "logs")
	}
	if err := os.MkdirAll(folder, logFolderPermissions); err != nil {
		return "", fmt.Errorf("could not create diagnostics log folder '%s': %w", folder, err)
	}
	return folder, nil
}

func sessionID() string {
	if id := os.Getenv(JDWP_LOG_SESSION_ID); id != "" {
		return id
	}
	return fmt.Sprintf("pid%d", os.Getpid())
}
