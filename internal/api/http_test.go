package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drone-spoof-sim/internal/forensics"
	"drone-spoof-sim/internal/geometry/vector"
	"drone-spoof-sim/internal/sim"
	"drone-spoof-sim/internal/storage/memory"
	"drone-spoof-sim/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	eng   *sim.Engine
	store *memory.Backend
	srv   *httptest.Server
}

func setup(t *testing.T, withStore bool) *fixture {
	t.Helper()
	return setupWith(t, sim.Options{Seed: 3, FrameHz: 200}, withStore)
}

func setupWith(t *testing.T, simOpts sim.Options, withStore bool) *fixture {
	t.Helper()

	eng := sim.New(sim.Config{Options: simOpts, Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()

	f := &fixture{eng: eng}
	opts := Options{Target: simOpts.Target, FrameHz: simOpts.FrameHz, Logger: zerolog.Nop()}
	if withStore {
		f.store = memory.New(0)
		opts.Store = f.store
	}
	f.srv = httptest.NewServer(NewServer(eng, opts).Handler())

	t.Cleanup(func() {
		f.srv.Close()
		cancel()
		<-done
	})
	return f
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) state(t *testing.T) sim.DroneState {
	t.Helper()
	var st sim.DroneState
	require.NoError(t, json.NewDecoder(f.get(t, "/state").Body).Decode(&st))
	return st
}

func TestHealthAndFaults(t *testing.T) {
	f := setup(t, false)

	assert.Equal(t, http.StatusOK, f.get(t, "/health").StatusCode)

	var bindings []sim.KeyBinding
	require.NoError(t, json.NewDecoder(f.get(t, "/faults").Body).Decode(&bindings))
	assert.Len(t, bindings, len(sim.KeyBindings()))

	assert.Equal(t, http.StatusMethodNotAllowed, f.post(t, "/faults", "").StatusCode)
}

func TestStateFormats(t *testing.T) {
	f := setup(t, false)

	st := f.state(t)
	assert.Equal(t, sim.DefaultTarget, st.RealTarget)

	var rec telemetry.Record
	require.NoError(t, json.NewDecoder(f.get(t, "/state?format=telemetry").Body).Decode(&rec))
	assert.Equal(t, telemetry.StatusStable, rec.Integrity.StatusCode)
	assert.Equal(t, "12.0V", rec.Diagnostics.VoltageLabel)
}

func TestKeyAndFaultCommands(t *testing.T) {
	f := setup(t, false)

	assert.Equal(t, http.StatusOK, f.post(t, "/command/key", `{"key":"3"}`).StatusCode)
	assert.Equal(t, http.StatusOK, f.post(t, "/command/fault", `{"fault":"mass_spoof"}`).StatusCode)

	require.Eventually(t, func() bool {
		st := f.state(t)
		return st.Faults.Has(sim.FaultGravityInject) && st.Faults.Has(sim.FaultMassSpoof)
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusBadRequest, f.post(t, "/command/key", `{"key":"z"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/command/key", `{"key":"12"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/command/fault", `{"fault":"EMP"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/command/fault", `{`).StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, f.get(t, "/command/reset").StatusCode)

	assert.Equal(t, http.StatusOK, f.post(t, "/command/reset", "").StatusCode)
	require.Eventually(t, func() bool {
		return !f.state(t).Compromised()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemediateWithPayload(t *testing.T) {
	f := setup(t, false)

	f.post(t, "/command/fault", `{"fault":"GPS_SPOOF"}`)
	require.Eventually(t, func() bool { return f.state(t).Compromised() }, 2*time.Second, 10*time.Millisecond)

	payload := `{"simulation_reset_parameters":{"spawn_at_pos":[300,300],"injected_truth":{"g":0.08,"mass":2.0,"gain":0.05,"target":[900,400]}}}`
	assert.Equal(t, http.StatusOK, f.post(t, "/command/remediate", payload).StatusCode)

	require.Eventually(t, func() bool {
		st := f.state(t)
		return !st.Compromised() && st.ReportedTarget.X == 900
	}, 2*time.Second, 10*time.Millisecond)

	bad := `{"calculated_truth":{"mass":-1}}`
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/command/remediate", bad).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/command/remediate", `{}`).StatusCode)

	// empty body applies the configured payload
	assert.Equal(t, http.StatusOK, f.post(t, "/command/remediate", "").StatusCode)
}

func TestStreamSendsTelemetry(t *testing.T) {
	f := setup(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var rec telemetry.Record
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &rec))
		assert.Equal(t, [2]float64{1000, 350}, rec.NavUnit.Target)
		return
	}
	t.Fatal("no telemetry event received")
}

func TestTelemetryEndpoint(t *testing.T) {
	f := setup(t, true)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, f.store.RecordTelemetry(&telemetry.Record{Tick: i}))
	}

	var got []telemetry.Record
	require.NoError(t, json.NewDecoder(f.get(t, "/telemetry?limit=2").Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Tick)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/telemetry?limit=x").StatusCode)

	noStore := setup(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, noStore.get(t, "/telemetry").StatusCode)
}

func TestAuditPostedSamples(t *testing.T) {
	f := setup(t, false)

	f.post(t, "/command/fault", `{"fault":"GPS_SPOOF"}`)
	require.Eventually(t, func() bool { return f.state(t).Compromised() }, 2*time.Second, 10*time.Millisecond)

	body := `[
		{"index":0,"pos":[100,500],"sensed_g":0.08,"voltage":12.0,"gain":0.05,"vel":0.2},
		{"index":1,"pos":[110,495],"sensed_g":0.08,"voltage":12.0,"gain":0.05,"vel":0.3},
		{"index":2,"pos":[115,480],"sensed_g":0.5,"voltage":12.0,"gain":0.05,"vel":0.9}
	]`
	resp := f.post(t, "/audit?apply=true", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report forensics.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, forensics.VerdictAnomaly, report.Verdict)
	assert.Equal(t, 2, report.ForensicReport.FailureIndex)
	assert.Equal(t, []string{forensics.HardwareGravitySensor}, report.ForensicReport.CompromisedHardware)
	assert.Equal(t, [2]float64{110, 495}, *report.SimulationResetParameters.SpawnAtPos)

	// applied: the injected truth clears the spoof
	require.Eventually(t, func() bool {
		st := f.state(t)
		return !st.Compromised() && st.ReportedTarget == sim.DefaultTarget
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuditStoredTelemetry(t *testing.T) {
	f := setup(t, true)

	assert.Equal(t, http.StatusUnprocessableEntity, f.post(t, "/audit", "").StatusCode)

	st := f.state(t)
	for i := 0; i < 3; i++ {
		st.Tick = uint64(i)
		r := telemetry.Build(st, sim.GeoRef{})
		require.NoError(t, f.store.RecordTelemetry(&r))
	}

	var report forensics.Report
	require.NoError(t, json.NewDecoder(f.post(t, "/audit", "").Body).Decode(&report))
	assert.Equal(t, forensics.VerdictNominal, report.Verdict)
	assert.Equal(t, 3, report.Track.Points)

	assert.Equal(t, http.StatusBadRequest, f.post(t, "/audit", `nope`).StatusCode)
}

func TestAuditHoldsFlightToConfiguredTarget(t *testing.T) {
	target := vector.Vec2{X: 800, Y: 375}
	f := setupWith(t, sim.Options{Seed: 3, FrameHz: 200, Target: target}, true)

	st := f.state(t)
	require.Equal(t, target, st.ReportedTarget)
	for i := 0; i < 5; i++ {
		st.Tick = uint64(i)
		r := telemetry.Build(st, sim.GeoRef{})
		require.NoError(t, f.store.RecordTelemetry(&r))
	}

	resp := f.post(t, "/audit?apply=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report forensics.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))

	assert.Equal(t, forensics.VerdictNominal, report.Verdict)
	assert.Empty(t, report.ForensicReport.CompromisedHardware)
	require.NotNil(t, report.SimulationResetParameters.InjectedTruth.Target)
	assert.Equal(t, [2]float64{800, 375}, *report.SimulationResetParameters.InjectedTruth.Target)

	// applying the report keeps the drone on its real target
	assert.Never(t, func() bool { return f.state(t).ReportedTarget != target }, 100*time.Millisecond, 10*time.Millisecond)
}
