package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewWithNoopMeter(t *testing.T) {
	inst, err := New(noop.Meter{})
	require.NoError(t, err)
	require.NotNil(t, inst)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		inst.Tick(ctx, true, 12.5)
		inst.FaultInjected(ctx, "GPS_SPOOF")
		inst.Remediated(ctx)
		inst.Reset(ctx)
		inst.TelemetryRecorded(ctx, "memory")
	})
}

func TestNilInstrumentsAreInert(t *testing.T) {
	var inst *Instruments
	ctx := context.Background()
	assert.NotPanics(t, func() {
		inst.Tick(ctx, false, 0)
		inst.FaultInjected(ctx, "NET_JAM")
		inst.Remediated(ctx)
		inst.Reset(ctx)
		inst.TelemetryRecorded(ctx, "sqlite")
	})
}

func TestNewGlobal(t *testing.T) {
	inst, err := NewGlobal()
	require.NoError(t, err)
	assert.NotNil(t, inst)
}
