package sim

import (
	"drone-spoof-sim/internal/env"
	"drone-spoof-sim/internal/geometry/vector"
)

// Rand is the source of randomness for thrust noise and packet loss.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// StepResult describes what happened during one Step.
type StepResult struct {
	// Skipped is true when a dropped control packet swallowed the whole update
	Skipped bool
	Thrust  vector.Vec2
	Warning string
}

// Steering is the control law's correction for the perceived target error.
// Outside the damping radius it blends toward cruise speed along the error
// direction; inside, it only damps velocity.
func Steering(d Drone) vector.Vec2 {
	e := d.TargetError()
	if e.Length() > DampingRadius {
		desired := e.Normalize().Mul(CruiseSpeed)
		return desired.Sub(d.Velocity).Mul(d.Gain)
	}
	return d.Velocity.Mul(-DampingFactor)
}

// LiftRequirement is the upward force the controller believes it needs.
func LiftRequirement(d Drone) float64 {
	return d.SensedMass * d.SensedGravity
}

// Thrust is the commanded thrust before any fault noise.
func Thrust(d Drone) vector.Vec2 {
	return Steering(d).Add(vector.Vec2{Y: -LiftRequirement(d)}).Mul(d.PowerLevel)
}

// Acceleration applies real physics to a thrust command. The controller's
// sensed air density scales drag, but the mass and gravity terms are the
// true constants.
func Acceleration(d Drone, thrust vector.Vec2) vector.Vec2 {
	drag := DragCoefficient * d.SensedAirDensity
	return vector.Vec2{
		X: (thrust.X - d.Velocity.X*drag) / TrueMass,
		Y: (thrust.Y - d.Velocity.Y*drag + TrueGravity*TrueMass) / TrueMass,
	}
}

// Step advances d by one frame and returns the new state. It never fails.
// rng may be nil, in which case fault effects that need randomness are
// ignored. environment may be nil.
func Step(d Drone, rng Rand, environment env.Environment) (Drone, StepResult) {
	fx := d.Faults.Effects()

	if rng != nil && fx.DropRate > 0 && rng.Float64() < fx.DropRate {
		return d, StepResult{Skipped: true}
	}

	thrust := Thrust(d)
	if rng != nil && fx.ThrustNoise > 0 {
		thrust = thrust.Add(vector.Vec2{
			X: uniform(rng, fx.ThrustNoise),
			Y: uniform(rng, fx.ThrustNoise),
		})
	}

	d.Velocity = d.Velocity.Add(Acceleration(d, thrust))
	d.Position = d.Position.Add(d.Velocity)

	var warning string
	if environment != nil {
		d.Position, d.Velocity, warning = environment.Apply(d.Position, d.Velocity)
	}

	d.Angle += (-d.Velocity.X*BankGain - d.Angle) * BankEase

	return d, StepResult{Thrust: thrust, Warning: warning}
}

// uniform returns a value in [-amp, amp).
func uniform(rng Rand, amp float64) float64 {
	return (rng.Float64()*2 - 1) * amp
}
