package forensics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"drone-spoof-sim/internal/telemetry"
)

var ErrNoSamples = errors.New("no telemetry samples")

// Sample is one black-box reading. Nil fields were not logged and are not
// audited.
type Sample struct {
	Index   int         `json:"index"`
	Tick    uint64      `json:"tick,omitempty"`
	Pos     [2]float64  `json:"pos"`
	SensedG *float64    `json:"sensed_g,omitempty"`
	Rho     *float64    `json:"rho,omitempty"`
	Mass    *float64    `json:"mass,omitempty"`
	Voltage *float64    `json:"voltage,omitempty"`
	Gain    *float64    `json:"gain,omitempty"`
	Vel     *float64    `json:"vel,omitempty"`
	Target  *[2]float64 `json:"target,omitempty"`
	IMUBias *[2]float64 `json:"imu_bias,omitempty"`
	FrameHz *float64    `json:"frame_hz,omitempty"`
	Dropped bool        `json:"dropped,omitempty"`
	// BreachDetected is the flight computer's own integrity flag
	BreachDetected bool `json:"breach_detected,omitempty"`
}

// FromRecord converts a full telemetry record.
func FromRecord(index int, r telemetry.Record) Sample {
	g := r.Environment.GSensor
	rho := r.Environment.AirRho
	mass := r.Diagnostics.MassSensor
	volt := r.Diagnostics.Voltage
	gain := r.Diagnostics.MotorGain
	speed := r.Speed()
	target := r.NavUnit.Target
	bias := r.NavUnit.IMUBias
	hz := r.Diagnostics.FrameHz
	return Sample{
		Index:   index,
		Tick:    r.Tick,
		Pos:     [2]float64{r.FlightData.X, r.FlightData.Y},
		SensedG: &g,
		Rho:     &rho,
		Mass:    &mass,
		Voltage: &volt,
		Gain:    &gain,
		Vel:     &speed,
		Target:  &target,
		IMUBias: &bias,
		FrameHz: &hz,
		Dropped: r.Integrity.PacketDropped,

		BreachDetected: r.Integrity.BreachDetected,
	}
}

// FromRecords converts a slice of telemetry records, indexing them in order.
func FromRecords(records []telemetry.Record) []Sample {
	out := make([]Sample, len(records))
	for i, r := range records {
		out[i] = FromRecord(i, r)
	}
	return out
}

// ParseSamples decodes a JSON array whose elements are either compact
// samples or full telemetry records. The two may be mixed.
func ParseSamples(data []byte) ([]Sample, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoSamples
	}

	out := make([]Sample, 0, len(raw))
	for i, item := range raw {
		if bytes.Contains(item, []byte(`"flight_data"`)) {
			var r telemetry.Record
			if err := json.Unmarshal(item, &r); err != nil {
				return nil, fmt.Errorf("decode record %d: %w", i, err)
			}
			out = append(out, FromRecord(i, r))
			continue
		}
		var s Sample
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
