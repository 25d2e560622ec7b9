// Package influx streams telemetry to InfluxDB as time-series points. It is
// write-only.
package influx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drone-spoof-sim/internal/config"
	"drone-spoof-sim/internal/storage"
	"drone-spoof-sim/internal/telemetry"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

const (
	MeasurementTelemetry = "drone_telemetry"
	MeasurementFault     = "fault_event"
)

var ErrNotConnected = errors.New("influxdb client not initialized")

type Backend struct {
	cfg    config.InfluxConfig
	log    zerolog.Logger
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
}

func New(cfg config.InfluxConfig, log zerolog.Logger) *Backend {
	return &Backend{cfg: cfg, log: log}
}

// Init connects and checks the server is healthy.
func (b *Backend) Init() error {
	b.client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	running, err := b.client.Ping(ctx)
	if err != nil || !running {
		b.client.Close()
		b.client = nil
		if err == nil {
			err = errors.New("server not running")
		}
		return fmt.Errorf("ping influxdb at %s: %w", b.cfg.URL(), err)
	}

	b.writer = b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			b.log.Error().Err(writeErr).Str("bucket", b.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(b.writer.Errors())

	b.log.Info().Str("url", b.cfg.URL()).Str("bucket", b.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	b.writer.Flush()
	b.client.Close()
	b.client = nil
	return nil
}

func (b *Backend) RecordTelemetry(r *telemetry.Record) error {
	if b.writer == nil || b.client == nil {
		return ErrNotConnected
	}
	b.writer.WritePoint(TelemetryPoint(r))
	return nil
}

func (b *Backend) RecordFaultEvent(e *storage.FaultEvent) error {
	if b.writer == nil || b.client == nil {
		return ErrNotConnected
	}
	b.writer.WritePoint(FaultPoint(e))
	return nil
}

// Telemetry is not served from InfluxDB; query the bucket with Flux instead.
func (b *Backend) Telemetry(int) ([]telemetry.Record, error) {
	return nil, storage.ErrNotSupported
}

// TelemetryPoint converts a record to a point tagged by integrity status.
func TelemetryPoint(r *telemetry.Record) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementTelemetry,
		map[string]string{
			"status_code": r.Integrity.StatusCode,
			"faults":      faultsTag(r.Integrity.ActiveFaults),
		},
		map[string]interface{}{
			"tick":           int64(r.Tick),
			"x":              r.FlightData.X,
			"y":              r.FlightData.Y,
			"vx":             r.FlightData.VelocityVector[0],
			"vy":             r.FlightData.VelocityVector[1],
			"heading_deg":    r.FlightData.HeadingDeg,
			"bank_angle":     r.FlightData.BankAngle,
			"g_sensor":       r.Environment.GSensor,
			"air_rho":        r.Environment.AirRho,
			"motor_gain":     r.Diagnostics.MotorGain,
			"mass_sensor":    r.Diagnostics.MassSensor,
			"voltage":        r.Diagnostics.Voltage,
			"frame_hz":       r.Diagnostics.FrameHz,
			"packet_dropped": r.Integrity.PacketDropped,
		},
		r.Time(),
	)
}

func FaultPoint(e *storage.FaultEvent) *influxdb2_write.Point {
	tags := map[string]string{"kind": e.Kind}
	if e.Fault != "" {
		tags["fault"] = e.Fault
	}
	return influxdb2_write.NewPoint(
		MeasurementFault,
		tags,
		map[string]interface{}{
			"tick":   int64(e.Tick),
			"active": faultsTag(e.ActiveFaults),
		},
		e.Time,
	)
}

func faultsTag(faults []string) string {
	if len(faults) == 0 {
		return "none"
	}
	return strings.Join(faults, "+")
}
