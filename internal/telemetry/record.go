// Package telemetry turns simulation snapshots into the black-box telemetry
// records the drone streams to its console.
package telemetry

import (
	"fmt"
	"math"
	"time"

	"drone-spoof-sim/internal/sim"
)

const (
	StatusStable      = "STABLE"
	StatusCompromised = "COMPROMISED"
	StatusNominal     = "NOMINAL"
)

type Record struct {
	Timestamp float64 `json:"timestamp"`
	Tick      uint64  `json:"tick"`

	FlightData  FlightData  `json:"flight_data"`
	NavUnit     NavUnit     `json:"nav_unit"`
	Environment Environment `json:"environment"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Integrity   Integrity   `json:"integrity"`
}

type FlightData struct {
	X              float64    `json:"x"`
	Y              float64    `json:"y"`
	VelocityVector [2]float64 `json:"velocity_vector"`
	HeadingDeg     float64    `json:"heading_deg"`
	BankAngle      float64    `json:"bank_angle"`
	Geo            *GeoFix    `json:"geo,omitempty"`
}

type GeoFix struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type NavUnit struct {
	Target  [2]float64 `json:"target"`
	Pos     [2]float64 `json:"pos"`
	IMUBias [2]float64 `json:"imu_bias"`
}

type Environment struct {
	GSensor float64 `json:"g_sensor"`
	AirRho  float64 `json:"air_rho"`
}

type Diagnostics struct {
	MotorGain    float64 `json:"motor_gain"`
	MassSensor   float64 `json:"mass_sensor"`
	PowerLevel   float64 `json:"power_level"`
	Voltage      float64 `json:"voltage"`
	VoltageLabel string  `json:"voltage_label"`
	FrameHz      float64 `json:"frame_hz"`
	Status       string  `json:"status"`
}

type Integrity struct {
	BreachDetected bool     `json:"breach_detected"`
	StatusCode     string   `json:"status_code"`
	ActiveFaults   []string `json:"active_faults"`
	PacketDropped  bool     `json:"packet_dropped,omitempty"`
	Warning        string   `json:"warning,omitempty"`
}

// Build formats a snapshot. geo may be the zero GeoRef, in which case no
// geographic fix is attached.
func Build(st sim.DroneState, geo sim.GeoRef) Record {
	d := st.Drone
	breach := d.Compromised()

	r := Record{
		Timestamp: round(float64(st.TS.UnixMilli())/1000, 2),
		Tick:      st.Tick,
		FlightData: FlightData{
			X:              round(d.Position.X, 2),
			Y:              round(d.Position.Y, 2),
			VelocityVector: [2]float64{round(d.Velocity.X, 3), round(d.Velocity.Y, 3)},
			HeadingDeg:     round(sim.HeadingDegFromVec(d.Velocity), 1),
			BankAngle:      round(d.Angle, 2),
		},
		NavUnit: NavUnit{
			Target:  d.ReportedTarget.Array(),
			Pos:     [2]float64{round(d.Position.X, 1), round(d.Position.Y, 1)},
			IMUBias: d.IMUBias.Array(),
		},
		Environment: Environment{
			GSensor: d.SensedGravity,
			AirRho:  d.SensedAirDensity,
		},
		Diagnostics: Diagnostics{
			MotorGain:    round(d.Gain, 3),
			MassSensor:   d.SensedMass,
			PowerLevel:   d.PowerLevel,
			Voltage:      round(d.Voltage(), 1),
			VoltageLabel: fmt.Sprintf("%.1fV", d.Voltage()),
			FrameHz:      st.FrameHz,
			Status:       StatusNominal,
		},
		Integrity: Integrity{
			BreachDetected: breach,
			StatusCode:     StatusStable,
			ActiveFaults:   d.Faults.Labels(),
			PacketDropped:  st.Skipped,
			Warning:        st.Warning,
		},
	}
	if breach {
		r.Integrity.StatusCode = StatusCompromised
	}
	if geo.Enabled() {
		lat, lon := geo.LocalToGeo(d.Position)
		r.FlightData.Geo = &GeoFix{Lat: lat, Lon: lon}
	}
	return r
}

// Time returns the record's timestamp as a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(int64(math.Round(r.Timestamp * 1000)))
}

// Speed is the magnitude of the recorded velocity.
func (r Record) Speed() float64 {
	return math.Hypot(r.FlightData.VelocityVector[0], r.FlightData.VelocityVector[1])
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
