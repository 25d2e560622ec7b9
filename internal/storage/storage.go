// Package storage defines the recording backends telemetry and fault events
// are persisted to.
package storage

import (
	"errors"
	"time"

	"drone-spoof-sim/internal/sim"
	"drone-spoof-sim/internal/telemetry"
)

// ErrNotSupported is returned by write-only backends asked to read.
var ErrNotSupported = errors.New("operation not supported by backend")

// Fault event kinds.
const (
	EventInject    = sim.EventInject
	EventRemediate = sim.EventRemediate
	EventReset     = sim.EventReset
)

// FaultEvent records a change to the drone's integrity.
type FaultEvent struct {
	Time         time.Time `json:"time"`
	Tick         uint64    `json:"tick"`
	Kind         string    `json:"kind"`
	Fault        string    `json:"fault,omitempty"`
	ActiveFaults []string  `json:"active_faults"`
}

// FromEngineEvent converts an engine event for recording.
func FromEngineEvent(ev sim.Event) *FaultEvent {
	active := ev.Active
	if active == nil {
		active = []string{}
	}
	return &FaultEvent{
		Time:         ev.Time,
		Tick:         ev.Tick,
		Kind:         ev.Kind,
		Fault:        ev.Fault,
		ActiveFaults: active,
	}
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	RecordTelemetry(r *telemetry.Record) error
	RecordFaultEvent(e *FaultEvent) error

	// Telemetry returns up to limit of the most recent records, oldest first.
	// limit <= 0 returns everything.
	Telemetry(limit int) ([]telemetry.Record, error)
}
