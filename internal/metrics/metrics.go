// Package metrics holds the OpenTelemetry instruments recorded by the
// simulator and its telemetry pipeline.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScopeName is the instrumentation scope used for the global meter.
const ScopeName = "drone-spoof-sim"

// Instruments is the set of counters and histograms the simulator records.
// A nil *Instruments is valid and records nothing.
type Instruments struct {
	ticks        metric.Int64Counter
	dropped      metric.Int64Counter
	faults       metric.Int64Counter
	remediations metric.Int64Counter
	resets       metric.Int64Counter
	records      metric.Int64Counter
	targetError  metric.Float64Histogram
}

// New creates all instruments on meter.
func New(meter metric.Meter) (*Instruments, error) {
	var (
		i   Instruments
		err error
	)

	if i.ticks, err = meter.Int64Counter("sim.ticks",
		metric.WithDescription("Simulation frames processed"),
		metric.WithUnit("{tick}")); err != nil {
		return nil, fmt.Errorf("sim.ticks: %w", err)
	}
	if i.dropped, err = meter.Int64Counter("sim.updates.dropped",
		metric.WithDescription("Frames skipped by simulated packet loss"),
		metric.WithUnit("{tick}")); err != nil {
		return nil, fmt.Errorf("sim.updates.dropped: %w", err)
	}
	if i.faults, err = meter.Int64Counter("sim.faults.injected",
		metric.WithDescription("Faults injected, by label"),
		metric.WithUnit("{fault}")); err != nil {
		return nil, fmt.Errorf("sim.faults.injected: %w", err)
	}
	if i.remediations, err = meter.Int64Counter("sim.remediations",
		metric.WithDescription("Ground truth injections"),
		metric.WithUnit("{remediation}")); err != nil {
		return nil, fmt.Errorf("sim.remediations: %w", err)
	}
	if i.resets, err = meter.Int64Counter("sim.resets",
		metric.WithDescription("Full drone resets"),
		metric.WithUnit("{reset}")); err != nil {
		return nil, fmt.Errorf("sim.resets: %w", err)
	}
	if i.records, err = meter.Int64Counter("telemetry.records",
		metric.WithDescription("Telemetry records written, by backend"),
		metric.WithUnit("{record}")); err != nil {
		return nil, fmt.Errorf("telemetry.records: %w", err)
	}
	if i.targetError, err = meter.Float64Histogram("sim.target.distance",
		metric.WithDescription("Real distance between the drone and the real target"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("sim.target.distance: %w", err)
	}

	return &i, nil
}

// NewGlobal creates instruments on the global meter provider.
func NewGlobal() (*Instruments, error) {
	return New(otel.GetMeterProvider().Meter(ScopeName))
}

// Tick records one processed frame.
func (i *Instruments) Tick(ctx context.Context, skipped bool, distance float64) {
	if i == nil {
		return
	}
	i.ticks.Add(ctx, 1)
	if skipped {
		i.dropped.Add(ctx, 1)
	}
	i.targetError.Record(ctx, distance)
}

// FaultInjected records a fault injection.
func (i *Instruments) FaultInjected(ctx context.Context, label string) {
	if i == nil {
		return
	}
	i.faults.Add(ctx, 1, metric.WithAttributes(attribute.String("fault", label)))
}

func (i *Instruments) Remediated(ctx context.Context) {
	if i == nil {
		return
	}
	i.remediations.Add(ctx, 1)
}

func (i *Instruments) Reset(ctx context.Context) {
	if i == nil {
		return
	}
	i.resets.Add(ctx, 1)
}

// TelemetryRecorded records a telemetry write to backend.
func (i *Instruments) TelemetryRecorded(ctx context.Context, backend string) {
	if i == nil {
		return
	}
	i.records.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}
