package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// TelemetryRow is one emitted telemetry record. The columns that are queried
// or charted are broken out; the full record is kept as JSON.
type TelemetryRow struct {
	ID        uint      `gorm:"primarykey"`
	RunID     string    `gorm:"size:36;index"`
	Time      time.Time `gorm:"index"`
	Tick      uint64    `gorm:"index"`
	X         float64
	Y         float64
	VX        float64
	VY        float64
	GSensor   float64
	AirRho    float64
	MotorGain float64
	Mass      float64
	Voltage   float64
	FrameHz   float64

	BreachDetected bool
	StatusCode     string `gorm:"size:32"`
	PacketDropped  bool
	ActiveFaults   datatypes.JSON
	Record         datatypes.JSON
}

func (TelemetryRow) TableName() string { return "telemetry" }

type FaultEventRow struct {
	ID           uint      `gorm:"primarykey"`
	RunID        string    `gorm:"size:36;index"`
	Time         time.Time `gorm:"index"`
	Tick         uint64
	Kind         string `gorm:"size:16"`
	Fault        string `gorm:"size:32"`
	ActiveFaults datatypes.JSON
}

func (FaultEventRow) TableName() string { return "fault_events" }

var models = []any{&TelemetryRow{}, &FaultEventRow{}}
