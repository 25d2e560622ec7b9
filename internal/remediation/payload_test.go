package remediation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"drone-spoof-sim/internal/geometry/vector"
	"drone-spoof-sim/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const auditPayload = `{
  "verdict": "CRITICAL_PHYSICS_BREACH",
  "failure_index": 0,
  "simulation_reset_parameters": {
    "injected_truth": {
      "g": 0.08,
      "gain": 0.05,
      "mass": 2,
      "rho": 1.225,
      "target": [800, 375]
    },
    "spawn_at_pos": [200, 375]
  }
}`

const interceptPayload = `{
  "verdict": "HACKED",
  "reason": "target coordinates modified coincident with a gain escalation",
  "trust_revocation": {
    "compromised_sensors": ["GPS Receiver", "PID Gain Controller"],
    "action": "BLOCK_HARDWARE_INPUTS"
  },
  "calculated_truth": {
    "g": 0.08,
    "rho": 1.225,
    "mass": 2.0,
    "target": [1000.0, 350.0],
    "gain": 0.05,
    "drag": 0.01,
    "clock_scale": 1.0
  }
}`

func TestParseAuditShape(t *testing.T) {
	p, err := Parse([]byte(auditPayload))
	require.NoError(t, err)
	assert.Equal(t, "CRITICAL_PHYSICS_BREACH", p.Verdict)
	require.NotNil(t, p.FailureIndex)
	assert.Equal(t, 0, *p.FailureIndex)

	gt, err := p.GroundTruth(sim.DefaultTarget)
	require.NoError(t, err)
	assert.Equal(t, vector.Vec2{X: 800, Y: 375}, gt.Target)
	require.NotNil(t, gt.Spawn)
	assert.Equal(t, vector.Vec2{X: 200, Y: 375}, *gt.Spawn)
	assert.Equal(t, sim.TrueGravity, gt.Gravity)
	assert.Equal(t, 1.0, gt.PowerLevel, "power level falls back to nominal")
	assert.Equal(t, 1.0, gt.VelocityScale)
}

func TestParseInterceptShape(t *testing.T) {
	p, err := Parse([]byte(interceptPayload))
	require.NoError(t, err)
	require.NotNil(t, p.TrustRevocation)
	assert.Equal(t, "BLOCK_HARDWARE_INPUTS", p.TrustRevocation.Action)

	gt, err := p.GroundTruth(sim.DefaultTarget)
	require.NoError(t, err)
	assert.Nil(t, gt.Spawn)
	assert.Equal(t, InterceptVelocityScale, gt.VelocityScale)
	assert.Equal(t, 1.0, gt.ClockScale)
	assert.Equal(t, sim.DefaultTarget, gt.Target)
}

func TestParseRestoresCompromisedDrone(t *testing.T) {
	p, err := Parse([]byte(interceptPayload))
	require.NoError(t, err)
	gt, err := p.GroundTruth(sim.DefaultTarget)
	require.NoError(t, err)

	d, _ := sim.Inject(sim.NewDrone(sim.DefaultSpawn, sim.DefaultTarget), sim.FaultCoordinatedExploit)
	d.Velocity = vector.Vec2{X: 2, Y: -10}
	d = sim.Remediate(d, gt)

	assert.False(t, d.Compromised())
	assert.Equal(t, sim.TrueMass, d.SensedMass)
	assert.Equal(t, sim.NominalGain, d.Gain)
	assert.InDelta(t, -1.0, d.Velocity.Y, 1e-12)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"verdict":"NOMINAL_TRUTH"}`))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"calculated_truth":{"mass":-1}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Parse([]byte(`{"calculated_truth":{"velocity_scale":3}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truth.json")
	require.NoError(t, os.WriteFile(path, []byte(auditPayload), 0644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.NotNil(t, p.ResetParameters)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFromGroundTruthRoundTrip(t *testing.T) {
	gt := sim.DefaultGroundTruth()
	spawn := vector.Vec2{X: 120, Y: 480}
	gt.Spawn = &spawn

	b, err := json.Marshal(FromGroundTruth(gt, "ANOMALY_DETECTED", 7))
	require.NoError(t, err)

	p, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, 7, *p.FailureIndex)

	back, err := p.GroundTruth(vector.Vec2{})
	require.NoError(t, err)
	assert.Equal(t, gt, back)
}
