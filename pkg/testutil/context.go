// Copyright (c) Microsoft Corporation. All rights reserved.

package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// JDWP_TEST_TIMEOUT overrides the timeout of every test context (e.g. "10m" while debugging a test).
const JDWP_TEST_TIMEOUT = "JDWP_TEST_TIMEOUT"

// GetTestContext returns a context that ends after the timeout, or when the test binary deadline
// is reached, whichever comes first. A zero timeout means only the test binary deadline applies.
func GetTestContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	if override, found := os.LookupEnv(JDWP_TEST_TIMEOUT); found {
		overrideTimeout, err := time.ParseDuration(override)
		if err != nil {
			panic(fmt.Sprintf("%s value '%s' is not a duration: %v", JDWP_TEST_TIMEOUT, override, err))
		}
		return context.WithTimeout(context.Background(), overrideTimeout)
	}

	deadline, hasDeadline := t.Deadline()
	if timeout > 0 {
		if timeoutDeadline := time.Now().Add(timeout); !hasDeadline || timeoutDeadline.Before(deadline) {
			deadline, hasDeadline = timeoutDeadline, true
		}
	}

	if !hasDeadline {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), deadline)
}
