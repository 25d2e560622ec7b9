package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"drone-spoof-sim/internal/geometry/vector"
	"drone-spoof-sim/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(ts time.Time, faults ...sim.Fault) sim.DroneState {
	d := sim.NewDrone(sim.DefaultSpawn, sim.DefaultTarget)
	d.Velocity = vector.Vec2{X: 0.1234, Y: -0.0456}
	for _, f := range faults {
		d, _ = sim.Inject(d, f)
	}
	return sim.DroneState{Drone: d, Tick: 42, TS: ts, FrameHz: 60}
}

func TestBuildStableRecord(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	r := Build(snapshot(ts), sim.GeoRef{})

	assert.Equal(t, 1700000000.12, r.Timestamp)
	assert.Equal(t, uint64(42), r.Tick)
	assert.Equal(t, 100.0, r.FlightData.X)
	assert.Equal(t, 500.0, r.FlightData.Y)
	assert.Equal(t, [2]float64{0.123, -0.046}, r.FlightData.VelocityVector)
	assert.Nil(t, r.FlightData.Geo)

	assert.Equal(t, [2]float64{1000, 350}, r.NavUnit.Target)
	assert.Equal(t, sim.TrueGravity, r.Environment.GSensor)
	assert.Equal(t, sim.TrueAirDensity, r.Environment.AirRho)
	assert.Equal(t, 12.0, r.Diagnostics.Voltage)
	assert.Equal(t, "12.0V", r.Diagnostics.VoltageLabel)

	assert.False(t, r.Integrity.BreachDetected)
	assert.Equal(t, StatusStable, r.Integrity.StatusCode)
	assert.Empty(t, r.Integrity.ActiveFaults)
}

func TestBuildCompromisedRecord(t *testing.T) {
	r := Build(snapshot(time.Now(), sim.FaultVoltDrop, sim.FaultGPSSpoof), sim.GeoRef{})

	assert.True(t, r.Integrity.BreachDetected)
	assert.Equal(t, StatusCompromised, r.Integrity.StatusCode)
	assert.Equal(t, []string{"GPS_SPOOF", "VOLT_DROP"}, r.Integrity.ActiveFaults)
	assert.Equal(t, "3.6V", r.Diagnostics.VoltageLabel)
	assert.Equal(t, [2]float64{200, 100}, r.NavUnit.Target)
}

func TestBuildWithGeo(t *testing.T) {
	geo := sim.GeoRef{OriginLat: 32.0853, OriginLon: 34.7818, MetersPerUnit: 1}
	r := Build(snapshot(time.Now()), geo)
	require.NotNil(t, r.FlightData.Geo)
	assert.Less(t, r.FlightData.Geo.Lat, geo.OriginLat)
}

func TestRecordJSONShape(t *testing.T) {
	b, err := json.Marshal(Build(snapshot(time.Now(), sim.FaultMassSpoof), sim.GeoRef{}))
	require.NoError(t, err)

	var raw map[string]map[string]any
	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &top))
	for _, key := range []string{"timestamp", "flight_data", "nav_unit", "environment", "diagnostics", "integrity"} {
		assert.Contains(t, top, key)
	}
	delete(top, "timestamp")
	delete(top, "tick")
	rest, _ := json.Marshal(top)
	require.NoError(t, json.Unmarshal(rest, &raw))
	assert.Equal(t, true, raw["integrity"]["breach_detected"])
	assert.Equal(t, "COMPROMISED", raw["integrity"]["status_code"])
	assert.Equal(t, 50.0, raw["diagnostics"]["mass_sensor"])
}

func TestEmitterIntervalGate(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, StyleJSONLines, time.Second, sim.GeoRef{})

	t0 := time.Unix(1700000000, 0)
	_, ok, err := e.Offer(snapshot(t0))
	require.NoError(t, err)
	assert.True(t, ok, "first snapshot is always emitted")

	_, ok, _ = e.Offer(snapshot(t0.Add(500 * time.Millisecond)))
	assert.False(t, ok)

	_, ok, _ = e.Offer(snapshot(t0.Add(time.Second)))
	assert.True(t, ok)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		var r Record
		require.NoError(t, json.Unmarshal([]byte(l), &r))
	}
}

func TestEmitterStreamStyle(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, StyleStream, time.Second, sim.GeoRef{})
	require.NoError(t, e.Write(Build(snapshot(time.Now()), sim.GeoRef{})))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\n"+StreamMarker+"\n"))
	body := strings.TrimPrefix(out, "\n"+StreamMarker+"\n")
	var r Record
	require.NoError(t, json.Unmarshal([]byte(body), &r))
	assert.Contains(t, body, "\n  \"flight_data\"")
}

type captureSink struct {
	records []Record
	err     error
}

func (c *captureSink) RecordTelemetry(r *Record) error {
	c.records = append(c.records, *r)
	return c.err
}

func TestPumpForwardsEmittedRecords(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, StyleJSONLines, time.Second, sim.GeoRef{})
	sink := &captureSink{err: errors.New("disk full")}

	ch := make(chan sim.DroneState, 8)
	t0 := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		ch <- snapshot(t0.Add(time.Duration(i) * 600 * time.Millisecond))
	}
	close(ch)

	var errs []error
	Pump(context.Background(), ch, e, sink, func(err error) { errs = append(errs, err) })

	// t0, t0+1.2s, t0+2.4s
	assert.Len(t, sink.records, 3)
	assert.Len(t, errs, 3)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestPumpReturnsOnCancel(t *testing.T) {
	e := NewEmitter(&bytes.Buffer{}, StyleJSONLines, time.Second, sim.GeoRef{})
	ch := make(chan sim.DroneState)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		Pump(ctx, ch, e, &captureSink{}, nil)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump kept running after cancel")
	}
}

func TestRecordHelpers(t *testing.T) {
	ts := time.UnixMilli(1700000000120)
	r := Build(snapshot(ts), sim.GeoRef{})
	assert.Equal(t, ts, r.Time())
	assert.InDelta(t, 0.1313, r.Speed(), 1e-3)
}
