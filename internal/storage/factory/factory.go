// Package factory picks and wires a storage backend from configuration.
package factory

import (
	"context"
	"fmt"

	"drone-spoof-sim/internal/config"
	"drone-spoof-sim/internal/metrics"
	"drone-spoof-sim/internal/storage"
	"drone-spoof-sim/internal/storage/gormstore"
	"drone-spoof-sim/internal/storage/influx"
	"drone-spoof-sim/internal/storage/memory"
	"drone-spoof-sim/internal/telemetry"

	"github.com/rs/zerolog"
)

// NewBackend creates and initializes a storage backend based on configuration.
// Every recorded telemetry record is counted on m, which may be nil.
func NewBackend(cfg config.StorageConfig, influxCfg config.InfluxConfig, m *metrics.Instruments, log zerolog.Logger) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Type {
	case "memory", "":
		b = memory.New(cfg.MemoryCapacity)
	case "sqlite":
		b, err = gormstore.OpenSQLite(cfg.SQLitePath, log)
	case "postgres":
		b, err = gormstore.OpenPostgres(cfg.Postgres, log)
	case "influx":
		b = influx.New(influxCfg, log)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Type, err)
	}

	name := cfg.Type
	if name == "" {
		name = "memory"
	}
	log.Info().Str("backend", name).Msg("Storage backend ready")
	return Instrument(b, name, m), nil
}

// Instrument counts every successfully recorded telemetry record on m.
func Instrument(b storage.Backend, name string, m *metrics.Instruments) storage.Backend {
	if m == nil {
		return b
	}
	return &instrumented{Backend: b, name: name, m: m}
}

type instrumented struct {
	storage.Backend
	name string
	m    *metrics.Instruments
}

func (i *instrumented) RecordTelemetry(r *telemetry.Record) error {
	if err := i.Backend.RecordTelemetry(r); err != nil {
		return err
	}
	i.m.TelemetryRecorded(context.Background(), i.name)
	return nil
}
