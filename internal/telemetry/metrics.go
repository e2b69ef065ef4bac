// Copyright (c) Microsoft Corporation. All rights reserved.

package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterOrNoop returns the meter, or a meter that records nothing if the meter is nil.
func MeterOrNoop(meter metric.Meter) metric.Meter {
	if meter == nil {
		return noop.NewMeterProvider().Meter(MeterName)
	}
	return meter
}

// NewInt64Counter creates a counter. If the meter rejects the instrument, the counter records nothing.
func NewInt64Counter(meter metric.Meter, name string, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"), // dimensionless
	)
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return counter
}

// NewInt64UpDownCounter creates an up-down counter. If the meter rejects the instrument, the counter records nothing.
func NewInt64UpDownCounter(meter metric.Meter, name string, description string) metric.Int64UpDownCounter {
	counter, err := meter.Int64UpDownCounter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"), // dimensionless
	)
	if err != nil {
		otel.Handle(err)
		return noop.Int64UpDownCounter{}
	}
	return counter
}
