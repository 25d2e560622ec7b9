// Package remediation decodes ground-truth payloads and turns them into a
// sim.GroundTruth that can be injected into a compromised drone.
//
// Two payload shapes are accepted. The audit shape carries the truth under
// simulation_reset_parameters.injected_truth, with an optional spawn point.
// The intercept shape carries it under calculated_truth and also asks for the
// drone's velocity to be damped to a tenth on injection.
package remediation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"drone-spoof-sim/internal/geometry/vector"
	"drone-spoof-sim/internal/sim"
)

var (
	ErrEmptyPayload   = errors.New("payload carries no ground truth")
	ErrInvalidPayload = errors.New("invalid ground truth")
)

// InterceptVelocityScale is applied when a calculated_truth payload does not
// say otherwise.
const InterceptVelocityScale = 0.1

type Payload struct {
	Verdict         string           `json:"verdict,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	FailureIndex    *int             `json:"failure_index,omitempty"`
	TrustRevocation *TrustRevocation `json:"trust_revocation,omitempty"`
	ResetParameters *ResetParameters `json:"simulation_reset_parameters,omitempty"`
	CalculatedTruth *Truth           `json:"calculated_truth,omitempty"`
}

type TrustRevocation struct {
	CompromisedSensors []string `json:"compromised_sensors"`
	Action             string   `json:"action"`
}

type ResetParameters struct {
	SpawnAtPos    *[2]float64 `json:"spawn_at_pos,omitempty"`
	InjectedTruth Truth       `json:"injected_truth"`
}

// Truth holds the known-good values. Nil fields fall back to the true
// constants. Drag is accepted for compatibility but never applied: drag is
// physics, not a sensor.
type Truth struct {
	G             *float64    `json:"g,omitempty"`
	Rho           *float64    `json:"rho,omitempty"`
	Mass          *float64    `json:"mass,omitempty"`
	Gain          *float64    `json:"gain,omitempty"`
	Target        *[2]float64 `json:"target,omitempty"`
	PowerLevel    *float64    `json:"power_level,omitempty"`
	ClockScale    *float64    `json:"clock_scale,omitempty"`
	VelocityScale *float64    `json:"velocity_scale,omitempty"`
	Drag          *float64    `json:"drag,omitempty"`
}

// Parse decodes a payload and checks that it carries usable truth.
func Parse(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if p.ResetParameters == nil && p.CalculatedTruth == nil {
		return Payload{}, ErrEmptyPayload
	}
	if _, err := p.GroundTruth(sim.DefaultTarget); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// LoadFile reads and parses a payload file.
func LoadFile(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("read payload: %w", err)
	}
	return Parse(data)
}

// GroundTruth resolves the payload against the true constants. fallbackTarget
// is used when the payload names no target.
func (p Payload) GroundTruth(fallbackTarget vector.Vec2) (sim.GroundTruth, error) {
	gt := sim.DefaultGroundTruth()
	gt.Target = fallbackTarget

	var t Truth
	switch {
	case p.ResetParameters != nil:
		t = p.ResetParameters.InjectedTruth
		if sp := p.ResetParameters.SpawnAtPos; sp != nil {
			spawn := vector.Vec2{X: sp[0], Y: sp[1]}
			gt.Spawn = &spawn
		}
	case p.CalculatedTruth != nil:
		t = *p.CalculatedTruth
		gt.VelocityScale = InterceptVelocityScale
	default:
		return gt, ErrEmptyPayload
	}

	set(&gt.Gravity, t.G)
	set(&gt.AirDensity, t.Rho)
	set(&gt.Mass, t.Mass)
	set(&gt.Gain, t.Gain)
	set(&gt.PowerLevel, t.PowerLevel)
	set(&gt.ClockScale, t.ClockScale)
	set(&gt.VelocityScale, t.VelocityScale)
	if t.Target != nil {
		gt.Target = vector.Vec2{X: t.Target[0], Y: t.Target[1]}
	}

	if err := Validate(gt); err != nil {
		return gt, err
	}
	return gt, nil
}

// Validate rejects truth that no real airframe could have.
func Validate(gt sim.GroundTruth) error {
	switch {
	case gt.Gravity <= 0:
		return fmt.Errorf("%w: gravity must be positive, got %v", ErrInvalidPayload, gt.Gravity)
	case gt.Mass <= 0:
		return fmt.Errorf("%w: mass must be positive, got %v", ErrInvalidPayload, gt.Mass)
	case gt.AirDensity < 0:
		return fmt.Errorf("%w: air density must not be negative, got %v", ErrInvalidPayload, gt.AirDensity)
	case gt.PowerLevel <= 0:
		return fmt.Errorf("%w: power level must be positive, got %v", ErrInvalidPayload, gt.PowerLevel)
	case gt.ClockScale <= 0:
		return fmt.Errorf("%w: clock scale must be positive, got %v", ErrInvalidPayload, gt.ClockScale)
	case gt.VelocityScale < 0 || gt.VelocityScale > 1:
		return fmt.Errorf("%w: velocity scale must be within [0,1], got %v", ErrInvalidPayload, gt.VelocityScale)
	}
	return nil
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// FromGroundTruth builds an audit-shaped payload for gt.
func FromGroundTruth(gt sim.GroundTruth, verdict string, failureIndex int) Payload {
	target := gt.Target.Array()
	t := Truth{
		G:      &gt.Gravity,
		Rho:    &gt.AirDensity,
		Mass:   &gt.Mass,
		Gain:   &gt.Gain,
		Target: &target,
	}
	rp := &ResetParameters{InjectedTruth: t}
	if gt.Spawn != nil {
		sp := gt.Spawn.Array()
		rp.SpawnAtPos = &sp
	}
	return Payload{
		Verdict:         verdict,
		FailureIndex:    &failureIndex,
		ResetParameters: rp,
	}
}
