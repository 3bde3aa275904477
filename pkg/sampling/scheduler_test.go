package sampling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binsense/coapnode-go/pkg/payload"
)

type fakeSensor struct {
	name   string
	values map[string]float64
	err    error
	reads  int
}

func (f *fakeSensor) Name() string { return f.name }

func (f *fakeSensor) Read(ctx context.Context) (map[string]float64, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

type hangingSensor struct{}

func (hangingSensor) Name() string { return "hung" }

func (hangingSensor) Read(ctx context.Context) (map[string]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSampleMergesSensors(t *testing.T) {
	climate := &fakeSensor{name: "dht22", values: map[string]float64{
		KeyTemperature: 21.5,
		KeyHumidity:    48.0,
	}}
	light := &fakeSensor{name: "light", values: map[string]float64{KeyLightLevel: 310}}
	fill := &fakeSensor{name: "fill", values: map[string]float64{KeyBinLevel: 62.5}}

	sched := NewScheduler([]Sensor{climate, light, fill}, func() payload.LEDState {
		return payload.LEDState{Green: true}
	})

	data := sched.Sample(context.Background())

	require.NotNil(t, data.Temperature)
	assert.Equal(t, 21.5, *data.Temperature)
	require.NotNil(t, data.Humidity)
	assert.Equal(t, 48.0, *data.Humidity)
	require.NotNil(t, data.LightLevel)
	assert.Equal(t, 310.0, *data.LightLevel)
	require.NotNil(t, data.BinLevel)
	assert.Equal(t, 62.5, *data.BinLevel)
	assert.True(t, data.LEDStates.Green)
	assert.NotEmpty(t, data.Timestamp)

	_, err := time.Parse(time.RFC3339, data.Timestamp)
	assert.NoError(t, err)
}

func TestFaultKeepsPreviousValue(t *testing.T) {
	climate := &fakeSensor{name: "dht22", values: map[string]float64{KeyTemperature: 20.0}}
	sched := NewScheduler([]Sensor{climate}, nil)

	data := sched.Sample(context.Background())
	require.NotNil(t, data.Temperature)
	require.Equal(t, 20.0, *data.Temperature)

	climate.err = errors.New("checksum mismatch")
	data = sched.Sample(context.Background())
	require.NotNil(t, data.Temperature)
	assert.Equal(t, 20.0, *data.Temperature)
}

func TestFaultBeforeFirstValueStaysNull(t *testing.T) {
	climate := &fakeSensor{name: "dht22", err: errors.New("no response")}
	light := &fakeSensor{name: "light", values: map[string]float64{KeyLightLevel: 120}}
	sched := NewScheduler([]Sensor{climate, light}, nil)

	data := sched.Sample(context.Background())
	assert.Nil(t, data.Temperature)
	assert.Nil(t, data.Humidity)
	require.NotNil(t, data.LightLevel)
	assert.Equal(t, 120.0, *data.LightLevel)
}

func TestFaultDoesNotSkipRemainingSensors(t *testing.T) {
	broken := &fakeSensor{name: "broken", err: errors.New("bus error")}
	fill := &fakeSensor{name: "fill", values: map[string]float64{KeyBinLevel: 10}}
	sched := NewScheduler([]Sensor{broken, fill}, nil)

	sched.Sample(context.Background())
	assert.Equal(t, 1, broken.reads)
	assert.Equal(t, 1, fill.reads)
}

func TestHungSensorTimesOut(t *testing.T) {
	sched := NewScheduler([]Sensor{hangingSensor{}}, nil)
	sched.SetReadTimeout(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sched.Sample(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sampling cycle stalled on hung sensor")
	}
}

func TestUnknownKeysIgnored(t *testing.T) {
	odd := &fakeSensor{name: "odd", values: map[string]float64{"pressure": 1013}}
	sched := NewScheduler([]Sensor{odd}, nil)

	data := sched.Sample(context.Background())
	assert.Nil(t, data.Temperature)
	assert.Nil(t, data.Humidity)
	assert.Nil(t, data.LightLevel)
	assert.Nil(t, data.BinLevel)
}
