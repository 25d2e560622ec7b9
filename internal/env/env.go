package env

import (
	"drone-spoof-sim/internal/geometry/vector"
)

// Environment is an interface for applying environmental effects to the drone
// after each integration step. Implementations may modify the drone's
// position or velocity based on factors like the arena walls or wind.
type Environment interface {
	// Apply takes the integrated position and velocity of the drone and returns
	// the modified position, velocity, and an optional warning message.
	Apply(pos vector.Vec2, vel vector.Vec2) (vector.Vec2, vector.Vec2, string)
}

// Chain is a composite environment that applies multiple environment effects in sequence.
type Chain struct {
	Effects []Environment
}

// Apply applies all environment effects in the chain, in order.
// The output of one effect becomes the input to the next.
// The last non-empty warning message is returned.
func (c *Chain) Apply(pos vector.Vec2, vel vector.Vec2) (vector.Vec2, vector.Vec2, string) {
	var warning string
	for _, effect := range c.Effects {
		newPos, newVel, w := effect.Apply(pos, vel)
		if w != "" {
			warning = w
		}
		pos, vel = newPos, newVel
	}
	return pos, vel, warning
}

// NoOp is an environment that does nothing.
var NoOp Environment = noOpEnv{}

type noOpEnv struct{}

func (noOpEnv) Apply(pos, vel vector.Vec2) (vector.Vec2, vector.Vec2, string) {
	return pos, vel, ""
}
