package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binsense/coapnode-go/pkg/payload"
	"github.com/binsense/coapnode-go/pkg/sampling"
)

func TestClimateReadsPlausibleValues(t *testing.T) {
	climate := NewClimate()

	values, err := climate.Read(context.Background())
	require.NoError(t, err)

	temp, ok := values[sampling.KeyTemperature]
	require.True(t, ok)
	assert.InDelta(t, 21.0, temp, 6.0)

	hum, ok := values[sampling.KeyHumidity]
	require.True(t, ok)
	assert.GreaterOrEqual(t, hum, 30.0)
	assert.LessOrEqual(t, hum, 70.0)
}

func TestClimateFaultInjection(t *testing.T) {
	climate := NewClimate()
	climate.FaultRate = 1.0

	_, err := climate.Read(context.Background())
	assert.ErrorIs(t, err, ErrSensorFault)
}

func TestLightReadsNonNegative(t *testing.T) {
	light := NewLight()

	values, err := light.Read(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, values[sampling.KeyLightLevel], 0.0)
}

func TestFillLevelClimbs(t *testing.T) {
	fill := NewFill(10)

	first, err := fill.Read(context.Background())
	require.NoError(t, err)
	second, err := fill.Read(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, second[sampling.KeyBinLevel], first[sampling.KeyBinLevel])
	assert.LessOrEqual(t, second[sampling.KeyBinLevel], 100.0)
}

func TestReadHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClimate().Read(ctx)
	assert.Error(t, err)
	_, err = NewLight().Read(ctx)
	assert.Error(t, err)
	_, err = NewFill(0).Read(ctx)
	assert.Error(t, err)
}

func TestLEDBankApplyAndChangeCallback(t *testing.T) {
	bank := NewLEDBank()

	var observed []payload.LEDState
	bank.OnChange(func(s payload.LEDState) { observed = append(observed, s) })

	bank.Apply(payload.LEDState{Red: true})
	bank.Apply(payload.LEDState{Red: true}) // no change, no callback
	bank.Apply(payload.LEDState{Red: true, Yellow: true})

	assert.Equal(t, payload.LEDState{Red: true, Yellow: true}, bank.State())
	require.Len(t, observed, 2)
	assert.Equal(t, payload.LEDState{Red: true}, observed[0])
}

func TestButtonTogglesGreen(t *testing.T) {
	bank := NewLEDBank()
	button := NewButton(bank)

	state := button.Press()
	assert.True(t, state.Green)
	assert.True(t, bank.State().Green)

	state = button.Press()
	assert.False(t, state.Green)
}

// The simulated sensors must satisfy the sampling interface.
var (
	_ sampling.Sensor = (*Climate)(nil)
	_ sampling.Sensor = (*Light)(nil)
	_ sampling.Sensor = (*Fill)(nil)
)
