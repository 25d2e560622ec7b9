package gormstore

import (
	"path/filepath"
	"testing"
	"time"

	"drone-spoof-sim/internal/sim"
	"drone-spoof-sim/internal/storage"
	"drone-spoof-sim/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "telemetry.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func record(t *testing.T, tick int, faults ...sim.Fault) telemetry.Record {
	t.Helper()
	d := sim.NewDrone(sim.DefaultSpawn, sim.DefaultTarget)
	for _, f := range faults {
		var err error
		d, err = sim.Inject(d, f)
		require.NoError(t, err)
	}
	st := sim.DroneState{
		Drone:   d,
		Tick:    uint64(tick),
		TS:      time.Unix(1_700_000_000+int64(tick), 0),
		FrameHz: 60,
	}
	return telemetry.Build(st, sim.GeoRef{})
}

func TestRecordAndReadTelemetry(t *testing.T) {
	b := setupBackend(t)

	for i := 1; i <= 4; i++ {
		r := record(t, i)
		require.NoError(t, b.RecordTelemetry(&r))
	}
	jammed := record(t, 5, sim.FaultNetJam, sim.FaultMassSpoof)
	require.NoError(t, b.RecordTelemetry(&jammed))

	all, err := b.Telemetry(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, uint64(1), all[0].Tick)
	assert.Equal(t, jammed, all[4])

	last, err := b.Telemetry(2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, uint64(4), last[0].Tick)
	assert.Equal(t, []string{"NET_JAM", "MASS_SPOOF"}, last[1].Integrity.ActiveFaults)

	var row TelemetryRow
	require.NoError(t, b.db.Where("tick = ?", 5).First(&row).Error)
	assert.True(t, row.BreachDetected)
	assert.Equal(t, telemetry.StatusCompromised, row.StatusCode)
	assert.Equal(t, sim.SpoofedMass, row.Mass)
	assert.JSONEq(t, `["NET_JAM","MASS_SPOOF"]`, string(row.ActiveFaults))
}

func TestRecordFaultEvents(t *testing.T) {
	b := setupBackend(t)

	events := []storage.FaultEvent{
		{Time: time.Unix(100, 0).UTC(), Tick: 10, Kind: storage.EventInject, Fault: "G_INJECT", ActiveFaults: []string{"G_INJECT"}},
		{Time: time.Unix(101, 0).UTC(), Tick: 70, Kind: storage.EventRemediate, ActiveFaults: []string{}},
	}
	for i := range events {
		require.NoError(t, b.RecordFaultEvent(&events[i]))
	}

	got, err := b.FaultEvents()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "G_INJECT", got[0].Fault)
	assert.Equal(t, storage.EventRemediate, got[1].Kind)
	assert.Equal(t, uint64(70), got[1].Tick)
	assert.Empty(t, got[1].ActiveFaults)
	assert.True(t, events[0].Time.Equal(got[0].Time))
}

func TestInMemorySQLite(t *testing.T) {
	b, err := OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	r := record(t, 1)
	require.NoError(t, b.RecordTelemetry(&r))
	all, err := b.Telemetry(10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	first, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Init())
	r := record(t, 1)
	require.NoError(t, first.RecordTelemetry(&r))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, second.Init())
	defer second.Close()
	assert.NotEqual(t, first.RunID(), second.RunID())

	got, err := second.Telemetry(0)
	require.NoError(t, err)
	assert.Empty(t, got)

	var total int64
	require.NoError(t, second.db.Model(&TelemetryRow{}).Count(&total).Error)
	assert.Equal(t, int64(1), total)
}
