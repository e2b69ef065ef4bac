// Copyright (c) Microsoft Corporation. All rights reserved.

package testutil

import (
	"testing"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"

	"github.com/wiltonlazary/jdwpcore/pkg/logger"
)

// NewLogForTesting returns a logger that only prints errors, unless tests run with -v.
func NewLogForTesting(name string) logr.Logger {
	log := logger.New(name)
	if testing.Verbose() {
		log.SetLevel(zapcore.Level(-2))
	} else {
		log.SetLevel(zapcore.ErrorLevel)
	}
	return log.WithValues("Test", name)
}
