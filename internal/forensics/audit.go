// Package forensics audits black-box telemetry against the true constants
// and produces a verdict plus the ground truth needed to recover.
package forensics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"drone-spoof-sim/internal/geometry/vector"
	"drone-spoof-sim/internal/remediation"
	"drone-spoof-sim/internal/sim"

	geom "github.com/peterstace/simplefeatures/geom"
)

const (
	VerdictAnomaly = "ANOMALY_DETECTED"
	VerdictNominal = "NOMINAL_TRUTH"
)

// Hardware names reported for each breached variable.
const (
	HardwareGravitySensor = "Gravity Sensor"
	HardwareAirData       = "Air Data Sensor"
	HardwareLoadCell      = "Load Cell"
	HardwarePIDController = "PID Gain Controller"
	HardwareLogicBoard    = "Logic Board (gain inversion)"
	HardwarePower         = "Power Regulator"
	HardwareGPS           = "GPS Receiver"
	HardwareIMU           = "IMU"
	HardwareRadio         = "Network Packet Radio"
	HardwareNavigation    = "Navigation Unit"
	HardwareClock         = "Flight Clock"
	HardwareIntegrity     = "Integrity Monitor"
)

// Universe is the set of constants every sample is held against.
type Universe struct {
	Gravity    float64
	AirDensity float64
	Mass       float64
	Gain       float64
	Voltage    float64
	Target     vector.Vec2
	IMUBias    vector.Vec2
	// FrameHz is the expected control rate, 0 to skip the check
	FrameHz float64

	// MaxDisplacement is the largest plausible jump between consecutive samples
	MaxDisplacement float64
}

func DefaultUniverse() Universe {
	return Universe{
		Gravity:         sim.TrueGravity,
		AirDensity:      sim.TrueAirDensity,
		Mass:            sim.TrueMass,
		Gain:            sim.NominalGain,
		Voltage:         sim.NominalVoltage,
		Target:          sim.DefaultTarget,
		FrameHz:         sim.NominalFrameHz,
		MaxDisplacement: 4000,
	}
}

// UniverseFor is DefaultUniverse flown toward target at frameHz. Zero values
// keep the defaults.
func UniverseFor(target vector.Vec2, frameHz float64) Universe {
	u := DefaultUniverse()
	if target != (vector.Vec2{}) {
		u.Target = target
	}
	if frameHz > 0 {
		u.FrameHz = frameHz
	}
	return u
}

// Breach is one variable found off its true value.
type Breach struct {
	Index    int     `json:"index"`
	Variable string  `json:"variable"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
	Hardware string  `json:"hardware"`
}

type Findings struct {
	// FailureIndex is the first breached sample, -1 when none
	FailureIndex         int      `json:"failure_index"`
	CompromisedHardware  []string `json:"compromised_hardware"`
	PhysicsBreachSummary string   `json:"physics_breach_summary"`
	Breaches             []Breach `json:"breaches"`
}

type Track struct {
	Points int     `json:"points"`
	Length float64 `json:"length"`
	WKT    string  `json:"wkt"`
}

type Report struct {
	Verdict                   string                      `json:"verdict"`
	ForensicReport            Findings                    `json:"forensic_report"`
	SimulationResetParameters remediation.ResetParameters `json:"simulation_reset_parameters"`
	Track                     Track                       `json:"track"`
	DiagnosticLog             []string                    `json:"diagnostic_log"`
}

// Audit checks every sample against u.
func Audit(samples []Sample, u Universe) (Report, error) {
	if len(samples) == 0 {
		return Report{}, ErrNoSamples
	}

	var (
		breaches []Breach
		logs     []string
	)
	logf := func(format string, args ...any) {
		logs = append(logs, fmt.Sprintf(format, args...))
	}
	logf("auditing %d samples", len(samples))

	for i, s := range samples {
		found := checkSample(s, u)
		if i > 0 {
			prev := samples[i-1]
			jump := math.Hypot(s.Pos[0]-prev.Pos[0], s.Pos[1]-prev.Pos[1])
			if jump > u.MaxDisplacement {
				found = append(found, Breach{
					Index: s.Index, Variable: "displacement",
					Observed: jump, Expected: u.MaxDisplacement,
					Hardware: HardwareNavigation,
				})
			}
		}
		for _, b := range found {
			logf("sample %d: %s=%g expected %g (%s)", b.Index, b.Variable, b.Observed, b.Expected, b.Hardware)
		}
		breaches = append(breaches, found...)
	}

	report := Report{
		Verdict:        VerdictNominal,
		ForensicReport: Findings{FailureIndex: -1, Breaches: breaches},
		Track:          buildTrack(samples),
	}

	spawnAt := len(samples) - 1
	if len(breaches) > 0 {
		report.Verdict = VerdictAnomaly
		first := firstBreachPosition(samples, breaches[0].Index)
		report.ForensicReport.FailureIndex = breaches[0].Index
		report.ForensicReport.CompromisedHardware = hardware(breaches)
		report.ForensicReport.PhysicsBreachSummary = summarize(breaches)
		spawnAt = max(first-1, 0)
	} else {
		report.ForensicReport.CompromisedHardware = []string{}
		report.ForensicReport.PhysicsBreachSummary = "all samples consistent with the true constants"
	}

	gt := sim.GroundTruth{
		Gravity:    u.Gravity,
		AirDensity: u.AirDensity,
		Mass:       u.Mass,
		Gain:       u.Gain,
		Target:     u.Target,
	}
	spawn := vector.Vec2{X: samples[spawnAt].Pos[0], Y: samples[spawnAt].Pos[1]}
	gt.Spawn = &spawn
	report.SimulationResetParameters = *remediation.FromGroundTruth(gt, report.Verdict, report.ForensicReport.FailureIndex).ResetParameters

	logf("verdict %s", report.Verdict)
	report.DiagnosticLog = logs
	return report, nil
}

func checkSample(s Sample, u Universe) []Breach {
	var out []Breach
	scalar := func(name string, v *float64, want, tol float64, hw string) {
		if v == nil || within(*v, want, tol) {
			return
		}
		out = append(out, Breach{Index: s.Index, Variable: name, Observed: *v, Expected: want, Hardware: hw})
	}

	scalar("sensed_g", s.SensedG, u.Gravity, 1e-6, HardwareGravitySensor)
	scalar("rho", s.Rho, u.AirDensity, 1e-6, HardwareAirData)
	scalar("mass", s.Mass, u.Mass, 1e-6, HardwareLoadCell)

	gainHW := HardwarePIDController
	if s.Gain != nil && math.Signbit(*s.Gain) != math.Signbit(u.Gain) {
		gainHW = HardwareLogicBoard
	}
	// telemetry rounds gain to three places
	scalar("gain", s.Gain, u.Gain, 5e-4, gainHW)
	// and voltage to one
	scalar("voltage", s.Voltage, u.Voltage, 0.05, HardwarePower)
	if u.FrameHz > 0 {
		scalar("frame_hz", s.FrameHz, u.FrameHz, 1e-6, HardwareClock)
	}

	if s.Target != nil {
		got := vector.Vec2{X: s.Target[0], Y: s.Target[1]}
		if d := got.Distance(u.Target); d > 1e-6 {
			out = append(out, Breach{Index: s.Index, Variable: "target", Observed: d, Expected: 0, Hardware: HardwareGPS})
		}
	}
	if s.IMUBias != nil {
		got := vector.Vec2{X: s.IMUBias[0], Y: s.IMUBias[1]}
		if d := got.Distance(u.IMUBias); d > 1e-6 {
			out = append(out, Breach{Index: s.Index, Variable: "imu_bias", Observed: d, Expected: 0, Hardware: HardwareIMU})
		}
	}
	if s.Dropped {
		out = append(out, Breach{Index: s.Index, Variable: "packet_loss", Observed: 1, Expected: 0, Hardware: HardwareRadio})
	}
	// the flight computer saw a breach that no logged variable explains
	if s.BreachDetected && len(out) == 0 {
		out = append(out, Breach{Index: s.Index, Variable: "breach_detected", Observed: 1, Expected: 0, Hardware: HardwareIntegrity})
	}
	return out
}

func within(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(b))
}

// firstBreachPosition returns the position in samples of the sample with
// the given index.
func firstBreachPosition(samples []Sample, index int) int {
	for i, s := range samples {
		if s.Index == index {
			return i
		}
	}
	return 0
}

func hardware(breaches []Breach) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, b := range breaches {
		if _, ok := seen[b.Hardware]; ok {
			continue
		}
		seen[b.Hardware] = struct{}{}
		out = append(out, b.Hardware)
	}
	return out
}

func summarize(breaches []Breach) string {
	vars := map[string]int{}
	for _, b := range breaches {
		vars[b.Variable]++
	}
	names := make([]string, 0, len(vars))
	for v := range vars {
		names = append(names, v)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s (%d samples)", n, vars[n])
	}
	first := breaches[0]
	return fmt.Sprintf("physics breach at sample %d: %s read %g, truth is %g; breached variables: %s",
		first.Index, first.Variable, first.Observed, first.Expected, strings.Join(parts, ", "))
}

func buildTrack(samples []Sample) Track {
	t := Track{Points: len(samples), WKT: "LINESTRING EMPTY"}
	if len(samples) < 2 {
		return t
	}
	flat := make([]float64, 0, len(samples)*2)
	for _, s := range samples {
		flat = append(flat, s.Pos[0], s.Pos[1])
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return t
	}
	t.Length = ls.Length()
	t.WKT = ls.AsText()
	return t
}
