package env

import (
	"drone-spoof-sim/internal/geometry/vector"
)

// Bounds keeps the drone inside a rectangular arena.
type Bounds struct {
	Width  float64
	Height float64
	// MarginPx is the minimum distance kept from every wall
	MarginPx float64
}

// Min returns the top-left corner of the allowed region.
func (b Bounds) Min() vector.Vec2 { return vector.Vec2{X: b.MarginPx, Y: b.MarginPx} }

// Max returns the bottom-right corner of the allowed region.
func (b Bounds) Max() vector.Vec2 {
	return vector.Vec2{X: b.Width - b.MarginPx, Y: b.Height - b.MarginPx}
}

// Contains reports whether pos lies inside the allowed region.
func (b Bounds) Contains(pos vector.Vec2) bool {
	lo, hi := b.Min(), b.Max()
	return pos.X >= lo.X && pos.X <= hi.X && pos.Y >= lo.Y && pos.Y <= hi.Y
}

// Apply clamps the position to the arena. Velocity is left untouched.
func (b Bounds) Apply(pos vector.Vec2, vel vector.Vec2) (vector.Vec2, vector.Vec2, string) {
	if b.Contains(pos) {
		return pos, vel, ""
	}
	return pos.Clamp(b.Min(), b.Max()), vel, "bounds: position clamped to arena"
}

// DefaultBounds returns the 1200x750 arena with a 50 unit margin.
func DefaultBounds() Bounds {
	return Bounds{
		Width:    1200,
		Height:   750,
		MarginPx: 50,
	}
}
