package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"drone-spoof-sim/internal/env"
	"drone-spoof-sim/internal/geometry/vector"
)

var ErrUnboundKey = errors.New("key is not bound")

// Options configure a Simulation.
type Options struct {
	Spawn   vector.Vec2
	Target  vector.Vec2
	FrameHz float64
	// Seed drives thrust noise and packet loss; 0 picks one from the clock
	Seed uint64

	Environment env.Environment

	// InitialFaults are injected before the first frame.
	InitialFaults []Fault
	// Remediation is the payload the remediate key applies.
	Remediation *GroundTruth
	// Guard, when set, is re-applied before every frame.
	Guard *GroundTruth
}

func (o Options) withDefaults() Options {
	if o.Spawn == (vector.Vec2{}) {
		o.Spawn = DefaultSpawn
	}
	if o.Target == (vector.Vec2{}) {
		o.Target = DefaultTarget
	}
	if o.FrameHz <= 0 {
		o.FrameHz = NominalFrameHz
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	if o.Remediation == nil {
		gt := DefaultGroundTruth()
		gt.Target = o.Target
		o.Remediation = &gt
	}
	return o
}

// Simulation is the single-threaded core: one drone, its random source and
// its environment. It is not safe for concurrent use; Engine serializes
// access to it.
type Simulation struct {
	opts  Options
	drone Drone
	rng   *rand.Rand

	tick       uint64
	clockScale float64
	last       StepResult
}

// NewSimulation builds a simulation with the initial faults applied.
func NewSimulation(opts Options) *Simulation {
	opts = opts.withDefaults()
	s := &Simulation{
		opts:       opts,
		drone:      NewDrone(opts.Spawn, opts.Target),
		rng:        rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		clockScale: 1,
	}
	for _, f := range opts.InitialFaults {
		s.drone, _ = Inject(s.drone, f)
	}
	return s
}

// Drone returns a copy of the current state.
func (s *Simulation) Drone() Drone { return s.drone }

// TickCount is the number of frames processed so far.
func (s *Simulation) TickCount() uint64 { return s.tick }

// FrameHz is the current frame rate, slowed by TIME_SKEW.
func (s *Simulation) FrameHz() float64 {
	if hz := s.drone.Faults.Effects().FrameHz; hz > 0 {
		return hz
	}
	return s.opts.FrameHz * s.clockScale
}

// FrameInterval is the wall-clock time between frames.
func (s *Simulation) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.FrameHz())
}

// Advance runs one frame.
func (s *Simulation) Advance() StepResult {
	if s.opts.Guard != nil {
		s.remediate(*s.opts.Guard)
	}
	s.drone, s.last = Step(s.drone, s.rng, s.opts.Environment)
	s.tick++
	return s.last
}

// Inject applies a fault.
func (s *Simulation) Inject(f Fault) error {
	d, err := Inject(s.drone, f)
	if err != nil {
		return err
	}
	s.drone = d
	return nil
}

// Remediate applies gt, or the configured payload when gt is nil.
func (s *Simulation) Remediate(gt *GroundTruth) {
	if gt == nil {
		gt = s.opts.Remediation
	}
	s.remediate(*gt)
}

func (s *Simulation) remediate(gt GroundTruth) {
	s.drone = Remediate(s.drone, gt)
	if gt.ClockScale > 0 {
		s.clockScale = gt.ClockScale
	}
}

// Reset re-initializes the drone where it is.
func (s *Simulation) Reset() {
	s.drone = Reset(s.drone)
	s.clockScale = 1
}

// Press handles a key press and reports what it did.
func (s *Simulation) Press(key rune) (Action, error) {
	a, ok := KeyAction(key)
	if !ok {
		return a, fmt.Errorf("%w: %q", ErrUnboundKey, key)
	}
	switch a.Kind {
	case ActionFault:
		if err := s.Inject(a.Fault); err != nil {
			return a, err
		}
	case ActionReset:
		s.Reset()
	case ActionRemediate:
		s.Remediate(nil)
	}
	return a, nil
}

// Snapshot captures the current state.
func (s *Simulation) Snapshot(ts time.Time) DroneState {
	return DroneState{
		Drone:   s.drone,
		Tick:    s.tick,
		TS:      ts,
		FrameHz: s.FrameHz(),
		Skipped: s.last.Skipped,
		Warning: s.last.Warning,
	}
}
