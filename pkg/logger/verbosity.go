/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

const (
	verbosityFlagName      = "verbosity"
	verbosityFlagShortName = "v"
)

// ParseLevel accepts "debug", "info", "error", or a positive debug verbosity (1 is the same as "debug").
// logr V(n) output is enabled by verbosity n.
func ParseLevel(value string) (zapcore.Level, error) {
	switch strings.ToLower(value) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}

	verbosity, err := strconv.Atoi(value)
	if err != nil || verbosity < 1 || verbosity > 127 {
		return zapcore.InvalidLevel, fmt.Errorf("invalid log level '%s'", value)
	}
	return zapcore.Level(-verbosity), nil
}

type verbosityFlag struct {
	log   *Logger
	value string
}

func (f *verbosityFlag) Set(value string) error {
	level, err := ParseLevel(value)
	if err != nil {
		return err
	}
	f.log.SetLevel(level)
	f.value = value
	return nil
}

func (f *verbosityFlag) String() string {
	return f.value
}

func (*verbosityFlag) Type() string {
	return "level"
}

// AddLevelFlag adds the -v/--verbosity flag, which sets the console log level.
func (l *Logger) AddLevelFlag(fs *pflag.FlagSet) {
	fs.VarP(&verbosityFlag{log: l}, verbosityFlagName, verbosityFlagShortName,
		"Logging verbosity: 'debug', 'info', 'error', or a positive number for increasingly detailed debug output")
}

var _ pflag.Value = (*verbosityFlag)(nil)
