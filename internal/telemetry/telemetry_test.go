// Copyright (c) Microsoft Corporation. All rights reserved.

package telemetry_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wiltonlazary/jdwpcore/internal/telemetry"
)

func TestMetricsSystemExportsCounters(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ms, err := telemetry.NewMetricsSystem(&out, time.Hour)
	require.NoError(t, err)

	counter := telemetry.NewInt64Counter(ms.Meter(), "jdwp.test.counter", "Counter used by the test")
	counter.Add(context.Background(), 3)

	// Shutdown flushes the periodic reader regardless of the interval.
	require.NoError(t, ms.Shutdown(context.Background()))
	require.Contains(t, out.String(), "jdwp.test.counter")
}

func TestMeterOrNoopAcceptsNil(t *testing.T) {
	t.Parallel()

	meter := telemetry.MeterOrNoop(nil)
	require.NotNil(t, meter)

	upDown := telemetry.NewInt64UpDownCounter(meter, "jdwp.test.updown", "Up-down counter used by the test")
	upDown.Add(context.Background(), 1)
	upDown.Add(context.Background(), -1)
}

func TestRejectedInstrumentRecordsNothing(t *testing.T) {
	t.Parallel()

	ms, err := telemetry.NewMetricsSystem(nil, time.Hour)
	require.NoError(t, err)
	defer func() { _ = ms.Shutdown(context.Background()) }()

	require.NotPanics(t, func() {
		// Instrument names must start with a letter.
		counter := telemetry.NewInt64Counter(ms.Meter(), "0-invalid", "Counter with an invalid name")
		counter.Add(context.Background(), 1)
		upDown := telemetry.NewInt64UpDownCounter(ms.Meter(), "0-invalid-updown", "Up-down counter with an invalid name")
		upDown.Add(context.Background(), 1)
	})
}
