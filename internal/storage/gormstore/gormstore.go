// Package gormstore records telemetry to a relational database through gorm,
// on SQLite by default or Postgres when configured.
package gormstore

import (
	"encoding/json"
	"fmt"
	"slices"

	"drone-spoof-sim/internal/config"
	"drone-spoof-sim/internal/storage"
	"drone-spoof-sim/internal/telemetry"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backend tags every row with a run ID so several runs can share one
// database; reads only see the current run.
type Backend struct {
	db    *gorm.DB
	log   zerolog.Logger
	runID string
}

// New wraps an open connection under a fresh run ID.
func New(db *gorm.DB, log zerolog.Logger) *Backend {
	runID := uuid.NewString()
	return &Backend{db: db, log: log.With().Str("run", runID).Logger(), runID: runID}
}

func (b *Backend) RunID() string { return b.runID }

// OpenSQLite opens (or creates) a SQLite file. An empty path uses a shared
// in-memory database held on a single connection.
func OpenSQLite(path string, log zerolog.Logger) (*Backend, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if path == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		// every connection to :memory: would otherwise see its own database
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info().Str("path", path).Msg("Using local SQLite DB")
	return New(db, log), nil
}

// OpenPostgres connects to the configured Postgres server.
func OpenPostgres(cfg config.PostgresConfig, log zerolog.Logger) (*Backend, error) {
	log.Debug().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connecting to Postgres DB")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	log.Info().Msg("Connected to database")
	return New(db, log), nil
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.log.Debug().Str("dialect", b.db.Dialector.Name()).Msg("Database setup complete")
	return nil
}

func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) RecordTelemetry(r *telemetry.Record) error {
	full, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	faults, err := json.Marshal(r.Integrity.ActiveFaults)
	if err != nil {
		return fmt.Errorf("marshal active faults: %w", err)
	}

	row := TelemetryRow{
		RunID:          b.runID,
		Time:           r.Time(),
		Tick:           r.Tick,
		X:              r.FlightData.X,
		Y:              r.FlightData.Y,
		VX:             r.FlightData.VelocityVector[0],
		VY:             r.FlightData.VelocityVector[1],
		GSensor:        r.Environment.GSensor,
		AirRho:         r.Environment.AirRho,
		MotorGain:      r.Diagnostics.MotorGain,
		Mass:           r.Diagnostics.MassSensor,
		Voltage:        r.Diagnostics.Voltage,
		FrameHz:        r.Diagnostics.FrameHz,
		BreachDetected: r.Integrity.BreachDetected,
		StatusCode:     r.Integrity.StatusCode,
		PacketDropped:  r.Integrity.PacketDropped,
		ActiveFaults:   datatypes.JSON(faults),
		Record:         datatypes.JSON(full),
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

func (b *Backend) RecordFaultEvent(e *storage.FaultEvent) error {
	faults, err := json.Marshal(e.ActiveFaults)
	if err != nil {
		return fmt.Errorf("marshal active faults: %w", err)
	}
	row := FaultEventRow{
		RunID:        b.runID,
		Time:         e.Time,
		Tick:         e.Tick,
		Kind:         e.Kind,
		Fault:        e.Fault,
		ActiveFaults: datatypes.JSON(faults),
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert fault event: %w", err)
	}
	return nil
}

func (b *Backend) Telemetry(limit int) ([]telemetry.Record, error) {
	var rows []TelemetryRow
	q := b.db.Where("run_id = ?", b.runID).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query telemetry: %w", err)
	}
	slices.Reverse(rows)

	out := make([]telemetry.Record, 0, len(rows))
	for _, row := range rows {
		var r telemetry.Record
		if err := json.Unmarshal(row.Record, &r); err != nil {
			return nil, fmt.Errorf("decode telemetry row %d: %w", row.ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// FaultEvents returns every recorded event in insertion order.
func (b *Backend) FaultEvents() ([]storage.FaultEvent, error) {
	var rows []FaultEventRow
	if err := b.db.Where("run_id = ?", b.runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query fault events: %w", err)
	}
	out := make([]storage.FaultEvent, 0, len(rows))
	for _, row := range rows {
		e := storage.FaultEvent{Time: row.Time, Tick: row.Tick, Kind: row.Kind, Fault: row.Fault}
		if err := json.Unmarshal(row.ActiveFaults, &e.ActiveFaults); err != nil {
			return nil, fmt.Errorf("decode fault event %d: %w", row.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
