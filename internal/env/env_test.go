package env

import (
	"testing"

	"drone-spoof-sim/internal/geometry/vector"

	"github.com/stretchr/testify/assert"
)

func TestBoundsClamp(t *testing.T) {
	b := DefaultBounds()

	pos, vel, warn := b.Apply(vector.Vec2{X: 10, Y: 900}, vector.Vec2{X: -1, Y: 2})
	assert.Equal(t, vector.Vec2{X: 50, Y: 700}, pos)
	assert.Equal(t, vector.Vec2{X: -1, Y: 2}, vel)
	assert.NotEmpty(t, warn)

	pos, _, warn = b.Apply(vector.Vec2{X: 600, Y: 300}, vector.Vec2{})
	assert.Equal(t, vector.Vec2{X: 600, Y: 300}, pos)
	assert.Empty(t, warn)
}

func TestWindDrift(t *testing.T) {
	w := Wind{Wx: 0.5, Wy: -0.25}
	pos, vel, warn := w.Apply(vector.Vec2{X: 100, Y: 100}, vector.Vec2{X: 1, Y: 1})
	assert.Equal(t, vector.Vec2{X: 100.5, Y: 99.75}, pos)
	assert.Equal(t, vector.Vec2{X: 1, Y: 1}, vel)
	assert.Empty(t, warn)

	right := FromSpeedAndDir(2, 90)
	assert.InDelta(t, 2.0, right.Wx, 1e-12)
	assert.InDelta(t, 0.0, right.Wy, 1e-12)

	up := FromSpeedAndDir(2, 0)
	assert.InDelta(t, -2.0, up.Wy, 1e-12)
}

func TestChainOrderAndWarning(t *testing.T) {
	c := &Chain{Effects: []Environment{Wind{Wx: 100}, DefaultBounds(), NoOp}}

	pos, _, warn := c.Apply(vector.Vec2{X: 1100, Y: 300}, vector.Vec2{})
	assert.Equal(t, vector.Vec2{X: 1150, Y: 300}, pos, "wind pushes past the wall, bounds pulls back")
	assert.Equal(t, "bounds: position clamped to arena", warn)

	pos, _, warn = NoOp.Apply(vector.Vec2{X: 1, Y: 2}, vector.Vec2{})
	assert.Equal(t, vector.Vec2{X: 1, Y: 2}, pos)
	assert.Empty(t, warn)
}
