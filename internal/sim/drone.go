package sim

import (
	"drone-spoof-sim/internal/geometry/vector"
)

// True physical constants. These are what the world actually does and are
// never falsified; only the sensed copies on Drone are.
const (
	TrueGravity     = 0.08
	TrueMass        = 2.0
	TrueAirDensity  = 1.225
	DragCoefficient = 0.01

	CruiseSpeed   = 0.35
	DampingRadius = 5.0
	DampingFactor = 0.1
	NominalGain   = 0.05

	// banking is cosmetic: angle eases toward -vx*BankGain
	BankGain = 25.0
	BankEase = 0.05

	NominalVoltage = 12.0
	NominalFrameHz = 60.0
)

var (
	DefaultSpawn  = vector.Vec2{X: 100, Y: 500}
	DefaultTarget = vector.Vec2{X: 1000, Y: 350}
)

// Drone is the whole simulation state of one airframe. Position and Velocity
// are real; everything prefixed Sensed, plus Gain, PowerLevel, IMUBias and
// ReportedTarget, is what the flight controller believes.
type Drone struct {
	Position vector.Vec2 `json:"position"`
	Velocity vector.Vec2 `json:"velocity"`
	Angle    float64     `json:"angle"`

	ReportedTarget vector.Vec2 `json:"reportedTarget"`
	RealTarget     vector.Vec2 `json:"realTarget"`

	SensedGravity    float64     `json:"sensedGravity"`
	SensedAirDensity float64     `json:"sensedAirDensity"`
	SensedMass       float64     `json:"sensedMass"`
	Gain             float64     `json:"gain"`
	PowerLevel       float64     `json:"powerLevel"`
	IMUBias          vector.Vec2 `json:"imuBias"`

	Faults FaultSet `json:"faults"`
}

// NewDrone returns a clean drone at rest at spawn, flying toward target,
// with every sensed value equal to its true counterpart.
func NewDrone(spawn, target vector.Vec2) Drone {
	return Drone{
		Position:         spawn,
		ReportedTarget:   target,
		RealTarget:       target,
		SensedGravity:    TrueGravity,
		SensedAirDensity: TrueAirDensity,
		SensedMass:       TrueMass,
		Gain:             NominalGain,
		PowerLevel:       1.0,
	}
}

// Voltage is the battery voltage implied by the power level.
func (d Drone) Voltage() float64 { return d.PowerLevel * NominalVoltage }

// Compromised reports whether any fault is active.
func (d Drone) Compromised() bool { return !d.Faults.Empty() }

// TargetError is the error vector the controller acts on.
func (d Drone) TargetError() vector.Vec2 {
	return d.ReportedTarget.Add(d.IMUBias).Sub(d.Position)
}

// DistanceToTarget is the real distance to the real target.
func (d Drone) DistanceToTarget() float64 {
	return d.Position.Distance(d.RealTarget)
}
