// Copyright (c) Microsoft Corporation. All rights reserved.

package telemetry

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const MeterName = "github.com/wiltonlazary/jdwpcore"

type MetricsSystem struct {
	MeterProvider  *sdkmetric.MeterProvider
	metricExporter sdkmetric.Exporter
}

// NewMetricsSystem creates a meter provider that periodically exports metrics.
// If out is nil, metrics are collected but discarded.
func NewMetricsSystem(out io.Writer, interval time.Duration) (MetricsSystem, error) {
	exporter, err := newMetricExporter(out)
	if err != nil {
		return MetricsSystem{}, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		),
	)

	return MetricsSystem{
		MeterProvider:  mp,
		metricExporter: exporter,
	}, nil
}

func (ms MetricsSystem) Meter() metric.Meter {
	return ms.MeterProvider.Meter(MeterName)
}

// Shutdown flushes pending metrics and stops the exporter.
func (ms MetricsSystem) Shutdown(ctx context.Context) error {
	return errors.Join(
		ms.MeterProvider.Shutdown(ctx),
		ms.metricExporter.Shutdown(ctx),
	)
}

func newMetricExporter(out io.Writer) (sdkmetric.Exporter, error) {
	if out == nil {
		return discardExporter{}, nil
	}
	return stdoutmetric.New(stdoutmetric.WithWriter(out), stdoutmetric.WithPrettyPrint())
}

type discardExporter struct{}

func (discardExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(kind)
}

func (discardExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

func (discardExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	return nil
}

func (discardExporter) ForceFlush(context.Context) error {
	return nil
}

func (discardExporter) Shutdown(context.Context) error {
	return nil
}

var _ sdkmetric.Exporter = discardExporter{}
