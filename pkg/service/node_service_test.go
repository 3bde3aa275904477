package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binsense/coapnode-go/pkg/client"
	"github.com/binsense/coapnode-go/pkg/driver"
	"github.com/binsense/coapnode-go/pkg/model"
	"github.com/binsense/coapnode-go/pkg/payload"
	"github.com/binsense/coapnode-go/pkg/sampling"
	"github.com/binsense/coapnode-go/pkg/wire"
)

type fixedSensor struct {
	name   string
	values map[string]float64
}

func (f fixedSensor) Name() string { return f.name }

func (f fixedSensor) Read(ctx context.Context) (map[string]float64, error) {
	return f.values, nil
}

func testConfig() NodeConfig {
	cfg := DefaultNodeConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.SamplingInterval = 1
	return cfg
}

func startNode(t *testing.T, leds *driver.LEDBank) *NodeService {
	t.Helper()

	sensors := []sampling.Sensor{
		fixedSensor{name: "dht22", values: map[string]float64{
			sampling.KeyTemperature: 22.5,
			sampling.KeyHumidity:    51.0,
		}},
		fixedSensor{name: "fill", values: map[string]float64{sampling.KeyBinLevel: 40.0}},
	}

	svc, err := NewNodeService(testConfig(), sensors, leds)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() {
		if svc.State() == StateRunning {
			svc.Stop()
		}
	})
	return svc
}

func dialNode(t *testing.T, svc *NodeService) *client.Client {
	t.Helper()
	c, err := client.Dial(svc.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLifecycle(t *testing.T) {
	svc, err := NewNodeService(testConfig(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, svc.State())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StateRunning, svc.State())
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, svc.Stop())
	assert.Equal(t, StateStopped, svc.State())
	assert.ErrorIs(t, svc.Stop(), ErrNotStarted)
}

func TestSensorsServedOverUDP(t *testing.T) {
	svc := startNode(t, nil)
	c := dialNode(t, svc)

	resp, err := c.Get(context.Background(), model.PathSensors)
	require.NoError(t, err)

	var data payload.SensorData
	require.NoError(t, payload.Unmarshal(resp.Payload, &data))
	require.NotNil(t, data.Temperature)
	assert.Equal(t, 22.5, *data.Temperature)
	require.NotNil(t, data.BinLevel)
	assert.Equal(t, 40.0, *data.BinLevel)
	assert.Nil(t, data.LightLevel)
}

func TestDiscoveryDocument(t *testing.T) {
	svc := startNode(t, nil)
	c := dialNode(t, svc)

	links, err := c.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 4)
	assert.Equal(t, model.PathSensors, links[0].Path)
	assert.Equal(t, model.RTCoreconf, links[1].ResourceType)
	assert.Equal(t, model.RTConfiguration, links[2].ResourceType)
	assert.Equal(t, model.IFActuator, links[3].Interface)
}

func TestConfigWriteChangesInterval(t *testing.T) {
	svc := startNode(t, nil)
	c := dialNode(t, svc)

	body, err := payload.Marshal(payload.Config{SamplingInterval: 120})
	require.NoError(t, err)
	resp, err := c.Put(context.Background(), model.PathConfig, wire.ContentFormatCBOR, body)
	require.NoError(t, err)
	assert.Equal(t, wire.CodeChanged, resp.Code)

	got, err := c.Get(context.Background(), model.PathConfig)
	require.NoError(t, err)
	var cfg payload.Config
	require.NoError(t, payload.Unmarshal(got.Payload, &cfg))
	assert.Equal(t, int64(120), cfg.SamplingInterval)
}

func TestConfigWriteOutOfRange(t *testing.T) {
	svc := startNode(t, nil)
	c := dialNode(t, svc)

	body, err := payload.Marshal(payload.Config{SamplingInterval: 0})
	require.NoError(t, err)
	resp, err := c.Put(context.Background(), model.PathConfig, wire.ContentFormatCBOR, body)
	require.ErrorIs(t, err, client.ErrErrorResponse)
	require.NotNil(t, resp)
	assert.Equal(t, wire.CodeBadRequest, resp.Code)

	got, err := c.Get(context.Background(), model.PathConfig)
	require.NoError(t, err)
	var cfg payload.Config
	require.NoError(t, payload.Unmarshal(got.Payload, &cfg))
	assert.Equal(t, int64(1), cfg.SamplingInterval)
}

func TestLEDWriteDrivesHardware(t *testing.T) {
	leds := driver.NewLEDBank()
	svc := startNode(t, leds)
	c := dialNode(t, svc)

	body, err := payload.Marshal(map[string]bool{"redLed": true})
	require.NoError(t, err)
	resp, err := c.Put(context.Background(), model.PathLEDs, wire.ContentFormatCBOR, body)
	require.NoError(t, err)
	assert.Equal(t, wire.CodeChanged, resp.Code)

	assert.True(t, leds.State().Red)
	assert.False(t, leds.State().Green)
}

func TestButtonPressNotifiesObservers(t *testing.T) {
	leds := driver.NewLEDBank()
	button := driver.NewButton(leds)
	svc := startNode(t, leds)
	c := dialNode(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var states []payload.LEDState
	done := make(chan error, 1)
	go func() {
		done <- c.Observe(ctx, model.PathLEDs, func(msg *wire.Message) {
			var state payload.LEDState
			if err := payload.Unmarshal(msg.Payload, &state); err == nil {
				mu.Lock()
				states = append(states, state)
				mu.Unlock()
			}
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 1
	}, 5*time.Second, 20*time.Millisecond)

	button.Press()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2 && states[len(states)-1].Green
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("observe loop did not stop")
	}
}

func TestSensorObserversGetPeriodicNotifications(t *testing.T) {
	svc := startNode(t, nil)
	c := dialNode(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	count := 0
	done := make(chan error, 1)
	go func() {
		done <- c.Observe(ctx, model.PathSensors, func(*wire.Message) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}()

	// Initial response plus at least one sampled notification at the
	// one second interval.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 2
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("observe loop did not stop")
	}
}
