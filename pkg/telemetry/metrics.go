package telemetry

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsFile is the node exporter textfile written into a data version folder
const MetricsFile = "metrics.prom"

// Metrics counts runs and calibration iterations, a nil *Metrics records nothing
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	runs         metric.Int64Counter
	runSeconds   metric.Float64Histogram
	iterations   metric.Int64Counter
	calibrations metric.Int64Counter
}

// NewMetrics returns counters exported through a private prometheus registry
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create prometheus exporter")
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(TracerName)

	m := &Metrics{registry: registry, provider: provider}
	if m.runs, err = meter.Int64Counter("magicwand_runs", metric.WithDescription("Runs by run type and outcome")); err != nil {
		return nil, err
	}
	if m.runSeconds, err = meter.Float64Histogram("magicwand_run_duration", metric.WithDescription("Wall time of a run"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.iterations, err = meter.Int64Counter("magicwand_calibration_iterations", metric.WithDescription("Calibration iterations by attack and verdict")); err != nil {
		return nil, err
	}
	if m.calibrations, err = meter.Int64Counter("magicwand_calibrations", metric.WithDescription("Finished calibrations by attack and final state")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun counts a finished run
func (m *Metrics) RecordRun(ctx context.Context, runType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("run_type", runType), attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.runSeconds.Record(ctx, seconds, metric.WithAttributes(attribute.String("run_type", runType)))
}

// RecordIteration counts an evaluated calibration iteration
func (m *Metrics) RecordIteration(ctx context.Context, attack, verdict string) {
	if m == nil {
		return
	}
	m.iterations.Add(ctx, 1, metric.WithAttributes(attribute.String("attack", attack), attribute.String("verdict", verdict)))
}

// RecordCalibration counts a finished calibration
func (m *Metrics) RecordCalibration(ctx context.Context, attack, state string) {
	if m == nil {
		return
	}
	m.calibrations.Add(ctx, 1, metric.WithAttributes(attribute.String("attack", attack), attribute.String("state", state)))
}

// Gatherer exposes the registry holding the exported counters
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current counters to path in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	return nil
}

// Shutdown stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
