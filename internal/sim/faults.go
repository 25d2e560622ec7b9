package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"drone-spoof-sim/internal/geometry/vector"
)

var ErrUnknownFault = errors.New("unknown fault")

// Fault identifies one kind of sensor or control tampering.
type Fault uint8

const (
	FaultGPSSpoof Fault = iota
	FaultIMUDrift
	FaultGravityInject
	FaultAirDensityNull
	FaultTimeSkew
	FaultGainAttack
	FaultVoltDrop
	FaultNetJam
	FaultMassSpoof
	FaultCoordinatedExploit
	FaultHardcodedCorruption

	numFaults
)

// Spoofed values written by the faults.
var (
	SpoofedTarget  = vector.Vec2{X: 200, Y: 100}
	SpoofedIMUBias = vector.Vec2{X: 500, Y: -300}
)

const (
	SpoofedGravity    = 0.5
	SpoofedGain       = 0.8
	BrownoutPower     = 0.3
	SpoofedMass       = 50.0
	SkewedFrameHz     = 10.0
	GainAttackNoise   = 2.0
	JammedPacketLoss  = 0.3
	CorruptGain       = -0.06
	CorruptGravity    = 0.15
	CorruptPowerLevel = 1.4
)

// FaultEffect is everything a fault does. Apply rewrites state once at
// injection time; the remaining fields are read by Step and by the engine
// on every frame while the fault is active.
type FaultEffect struct {
	Label       string
	Key         rune // 0 when not bound to a key
	Description string
	Apply       func(Drone) Drone

	ThrustNoise float64 // amplitude of uniform noise added to thrust
	DropRate    float64 // probability of skipping an update
	FrameHz     float64 // frame rate override, 0 for none
}

var faultTable = [numFaults]FaultEffect{
	FaultGPSSpoof: {
		Label: "GPS_SPOOF", Key: '1',
		Description: "reported target moved to a decoy waypoint",
		Apply: func(d Drone) Drone {
			d.ReportedTarget = SpoofedTarget
			return d
		},
	},
	FaultIMUDrift: {
		Label: "IMU_DRIFT", Key: '2',
		Description: "constant bias added to the perceived target error",
		Apply: func(d Drone) Drone {
			d.IMUBias = SpoofedIMUBias
			return d
		},
	},
	FaultGravityInject: {
		Label: "G_INJECT", Key: '3',
		Description: "gravity sensor reads far above true gravity",
		Apply: func(d Drone) Drone {
			d.SensedGravity = SpoofedGravity
			return d
		},
	},
	FaultAirDensityNull: {
		Label: "RHO_NULL", Key: '4',
		Description: "air density sensor reads zero",
		Apply: func(d Drone) Drone {
			d.SensedAirDensity = 0
			return d
		},
	},
	FaultTimeSkew: {
		Label: "TIME_SKEW", Key: '5',
		Description: "control clock desynchronized to a slow frame rate",
		Apply:       func(d Drone) Drone { return d },
		FrameHz:     SkewedFrameHz,
	},
	FaultGainAttack: {
		Label: "GAIN_ATTACK", Key: '6',
		Description: "controller gain escalated, motors over-react",
		Apply: func(d Drone) Drone {
			d.Gain = SpoofedGain
			return d
		},
		ThrustNoise: GainAttackNoise,
	},
	FaultVoltDrop: {
		Label: "VOLT_DROP", Key: '7',
		Description: "power brownout",
		Apply: func(d Drone) Drone {
			d.PowerLevel = BrownoutPower
			return d
		},
	},
	FaultNetJam: {
		Label: "NET_JAM", Key: '8',
		Description: "control packets dropped",
		Apply:       func(d Drone) Drone { return d },
		DropRate:    JammedPacketLoss,
	},
	FaultMassSpoof: {
		Label: "MASS_SPOOF", Key: '9',
		Description: "load cell reports a much heavier airframe",
		Apply: func(d Drone) Drone {
			d.SensedMass = SpoofedMass
			return d
		},
	},
	FaultCoordinatedExploit: {
		Label: "COORDINATED_EXPLOIT", Key: 'a',
		Description: "GPS spoof, gain escalation and mass spoof at once",
		Apply: func(d Drone) Drone {
			d.ReportedTarget = SpoofedTarget
			d.Gain = SpoofedGain
			d.SensedMass = SpoofedMass
			return d
		},
	},
	FaultHardcodedCorruption: {
		Label:       "HARDCODED_CORRUPTION",
		Description: "firmware ships with an inverted gain, a bad gravity constant and overvoltage",
		Apply: func(d Drone) Drone {
			d.Gain = CorruptGain
			d.SensedGravity = CorruptGravity
			d.PowerLevel = CorruptPowerLevel
			return d
		},
	},
}

// Faults returns every known fault in declaration order.
func Faults() []Fault {
	out := make([]Fault, 0, numFaults)
	for f := Fault(0); f < numFaults; f++ {
		out = append(out, f)
	}
	return out
}

// Effect returns the table entry for f.
func (f Fault) Effect() (FaultEffect, bool) {
	if f >= numFaults {
		return FaultEffect{}, false
	}
	return faultTable[f], true
}

func (f Fault) String() string {
	if fx, ok := f.Effect(); ok {
		return fx.Label
	}
	return fmt.Sprintf("Fault(%d)", uint8(f))
}

// ParseFault looks a fault up by its label, case-insensitively.
func ParseFault(label string) (Fault, error) {
	for f := Fault(0); f < numFaults; f++ {
		if strings.EqualFold(faultTable[f].Label, strings.TrimSpace(label)) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFault, label)
}

func (f Fault) MarshalText() ([]byte, error) {
	if f >= numFaults {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFault, uint8(f))
	}
	return []byte(f.String()), nil
}

func (f *Fault) UnmarshalText(b []byte) error {
	parsed, err := ParseFault(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FaultSet is a small bit set of active faults.
type FaultSet uint32

func (s FaultSet) Has(f Fault) bool          { return s&(1<<f) != 0 }
func (s FaultSet) With(f Fault) FaultSet     { return s | 1<<f }
func (s FaultSet) Without(f Fault) FaultSet  { return s &^ (1 << f) }
func (s FaultSet) Empty() bool               { return s == 0 }
func (s FaultSet) Union(o FaultSet) FaultSet { return s | o }

// List returns the active faults in declaration order.
func (s FaultSet) List() []Fault {
	var out []Fault
	for f := Fault(0); f < numFaults; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Labels returns the display labels of the active faults.
func (s FaultSet) Labels() []string {
	out := make([]string, 0, numFaults)
	for _, f := range s.List() {
		out = append(out, f.String())
	}
	return out
}

// Effects folds the per-frame behaviour of every active fault into one
// effect: the strongest noise, the highest drop rate, the slowest clock.
func (s FaultSet) Effects() FaultEffect {
	var out FaultEffect
	for _, f := range s.List() {
		fx := faultTable[f]
		out.ThrustNoise = max(out.ThrustNoise, fx.ThrustNoise)
		out.DropRate = max(out.DropRate, fx.DropRate)
		if fx.FrameHz > 0 && (out.FrameHz == 0 || fx.FrameHz < out.FrameHz) {
			out.FrameHz = fx.FrameHz
		}
	}
	return out
}

func (s FaultSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Labels())
}

func (s *FaultSet) UnmarshalJSON(b []byte) error {
	var labels []string
	if err := json.Unmarshal(b, &labels); err != nil {
		return err
	}
	var out FaultSet
	for _, l := range labels {
		f, err := ParseFault(l)
		if err != nil {
			return err
		}
		out = out.With(f)
	}
	*s = out
	return nil
}

// Inject applies f to d and marks it active.
func Inject(d Drone, f Fault) (Drone, error) {
	fx, ok := f.Effect()
	if !ok {
		return d, fmt.Errorf("%w: %d", ErrUnknownFault, uint8(f))
	}
	d = fx.Apply(d)
	d.Faults = d.Faults.With(f)
	return d, nil
}

// Reset re-initializes every field to its default, keeping only where the
// drone currently is and where it is really going.
func Reset(d Drone) Drone {
	return NewDrone(d.Position, d.RealTarget)
}

// GroundTruth is a known-good parameter set used to remediate a drone.
type GroundTruth struct {
	Gravity    float64     `json:"g"`
	AirDensity float64     `json:"rho"`
	Mass       float64     `json:"mass"`
	Gain       float64     `json:"gain"`
	PowerLevel float64     `json:"powerLevel"`
	Target     vector.Vec2 `json:"target"`
	ClockScale float64     `json:"clockScale"`

	// Spawn, when set, teleports the drone there at rest.
	Spawn *vector.Vec2 `json:"spawn,omitempty"`
	// VelocityScale multiplies the current velocity; 1 leaves it alone.
	VelocityScale float64 `json:"velocityScale"`
}

// DefaultGroundTruth returns the true constants.
func DefaultGroundTruth() GroundTruth {
	return GroundTruth{
		Gravity:       TrueGravity,
		AirDensity:    TrueAirDensity,
		Mass:          TrueMass,
		Gain:          NominalGain,
		PowerLevel:    1.0,
		Target:        DefaultTarget,
		ClockScale:    1.0,
		VelocityScale: 1.0,
	}
}

// Remediate overwrites every falsifiable field from gt and clears all faults.
func Remediate(d Drone, gt GroundTruth) Drone {
	d.SensedGravity = gt.Gravity
	d.SensedAirDensity = gt.AirDensity
	d.SensedMass = gt.Mass
	d.Gain = gt.Gain
	d.PowerLevel = gt.PowerLevel
	d.ReportedTarget = gt.Target
	d.IMUBias = vector.Vec2{}
	d.Faults = 0

	if gt.Spawn != nil {
		d.Position = *gt.Spawn
		d.Velocity = vector.Vec2{}
	}
	d.Velocity = d.Velocity.Mul(gt.VelocityScale)
	return d
}
