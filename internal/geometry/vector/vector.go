// Package vector provides 2D vector operations
package vector

import "math"

// NewVec2 creates a new 2D vector with the given components
func NewVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Vec2 represents a 2D vector in arena coordinates
// with X to the right and Y pointing down (screen convention)
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the sum of two vectors
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns the difference between two vectors
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Mul scales a vector by a scalar
func (v Vec2) Mul(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

// Dot returns the dot product of two vectors
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Length returns the vector's magnitude (Euclidean norm)
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Distance returns the Euclidean distance between two points
func (v Vec2) Distance(o Vec2) float64 { return v.Sub(o).Length() }

// Normalize returns a unit vector in the same direction
func (v Vec2) Normalize() Vec2 {
	n := v.Length()
	if n == 0 {
		return Vec2{}
	}
	return v.Mul(1 / n)
}

// Clamp limits each component to the given inclusive range
func (v Vec2) Clamp(min, max Vec2) Vec2 {
	return Vec2{
		X: math.Max(min.X, math.Min(max.X, v.X)),
		Y: math.Max(min.Y, math.Min(max.Y, v.Y)),
	}
}

// Array returns the components as a two-element array, handy for JSON
func (v Vec2) Array() [2]float64 { return [2]float64{v.X, v.Y} }
