package sim

import (
	"time"
)

// DroneState is a published snapshot of the simulation.
type DroneState struct {
	Drone

	Tick    uint64    `json:"tick"`
	TS      time.Time `json:"ts"`
	FrameHz float64   `json:"frameHz"`

	// Skipped is set when the last update was dropped by packet loss
	Skipped bool   `json:"skipped,omitempty"`
	Warning string `json:"warning,omitempty"`
}
