package env

import (
	"math"

	"drone-spoof-sim/internal/geometry/vector"
)

// Wind represents a constant wind vector in arena units per frame.
type Wind struct {
	// Wx is the horizontal drift (positive = right)
	Wx float64
	// Wy is the vertical drift (positive = down)
	Wy float64
}

// Apply applies wind as a constant ground drift.
// We modify position directly (ground track), without changing the drone's own velocity.
func (w Wind) Apply(pos vector.Vec2, vel vector.Vec2) (vector.Vec2, vector.Vec2, string) {
	drift := vector.Vec2{X: w.Wx, Y: w.Wy}
	return pos.Add(drift), vel, ""
}

// Calm returns a Wind with zero velocity (no wind).
func Calm() Wind {
	return Wind{Wx: 0, Wy: 0}
}

// FromSpeedAndDir creates a Wind from a speed and a direction in degrees,
// clockwise from "up" on screen (0 = up, 90 = right).
func FromSpeedAndDir(speed, directionDeg float64) Wind {
	rad := directionDeg * math.Pi / 180
	return Wind{
		Wx: speed * math.Sin(rad),
		Wy: -speed * math.Cos(rad),
	}
}
