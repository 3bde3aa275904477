package payload

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors for client-supplied payloads.
var (
	// ErrBadShape indicates a payload that does not decode to the
	// resource's expected structure.
	ErrBadShape = errors.New("payload: unexpected shape")

	// ErrOutOfRange indicates a decoded value outside its allowed range.
	ErrOutOfRange = errors.New("payload: value out of range")
)

// Sampling interval bounds for /config, in seconds.
const (
	MinSamplingInterval = 1
	MaxSamplingInterval = 3600

	// DefaultSamplingInterval matches the device default of sampling
	// every 10 seconds.
	DefaultSamplingInterval = 10
)

// LEDState is the /leds representation: one boolean per LED.
type LEDState struct {
	Red    bool `cbor:"redLed"`
	Yellow bool `cbor:"yellowLed"`
	Green  bool `cbor:"greenLed"`
}

// DecodeLEDState applies a client LED payload on top of the current
// state. Partial maps are allowed (absent LEDs keep their state); unknown
// keys and non-boolean values are rejected.
func DecodeLEDState(data []byte, current LEDState) (LEDState, error) {
	next := current
	if err := UnmarshalStrict(data, &next); err != nil {
		return current, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	return next, nil
}

// Config is the /config representation.
type Config struct {
	// SamplingInterval is the sensor sampling period in seconds.
	SamplingInterval int64 `cbor:"sampling_interval"`
}

// DefaultConfig returns the boot-time configuration.
func DefaultConfig() Config {
	return Config{SamplingInterval: DefaultSamplingInterval}
}

// Interval returns the sampling interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.SamplingInterval) * time.Second
}

// DecodeConfig applies a client config payload on top of the current
// configuration and bounds-checks the result. Absent keys keep their
// current values.
func DecodeConfig(data []byte, current Config) (Config, error) {
	next := current
	if err := UnmarshalStrict(data, &next); err != nil {
		return current, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	if next.SamplingInterval < MinSamplingInterval || next.SamplingInterval > MaxSamplingInterval {
		return current, fmt.Errorf("%w: sampling_interval %d not in [%d, %d]",
			ErrOutOfRange, next.SamplingInterval, MinSamplingInterval, MaxSamplingInterval)
	}
	return next, nil
}

// SensorData is the /sensors representation: the latest reading from
// each sensor plus the LED states. Nil fields encode as CBOR null,
// meaning the sensor has not produced a value yet.
type SensorData struct {
	Timestamp   string   `cbor:"timestamp"`
	Temperature *float64 `cbor:"temperature"`
	Humidity    *float64 `cbor:"humidity"`
	LightLevel  *float64 `cbor:"lightLevel"`
	BinLevel    *float64 `cbor:"binLevel"`
	LEDStates   LEDState `cbor:"ledStates"`
}

// Leaf is a node of the YANG-derived capability model: either a typed
// leaf or a nested container with its own leaves.
type Leaf struct {
	Type        string          `cbor:"type"`
	Description string          `cbor:"description,omitempty"`
	Leaves      map[string]Leaf `cbor:"leaves,omitempty"`
}

// CapabilityModel is the /capabilities representation: a minimal
// YANG-like description of the sensor-data module this device hosts.
type CapabilityModel struct {
	Module    string          `cbor:"module"`
	Namespace string          `cbor:"namespace"`
	Container string          `cbor:"container"`
	Leaves    map[string]Leaf `cbor:"leaves"`
}

// DefaultCapabilityModel returns the hosted sensor-data model.
func DefaultCapabilityModel() CapabilityModel {
	return CapabilityModel{
		Module:    "sensor-data",
		Namespace: "urn:example:sensor-data",
		Container: "sensor-data",
		Leaves: map[string]Leaf{
			"temperature": {Type: "decimal64", Description: "Temperature in Celsius"},
			"humidity":    {Type: "decimal64", Description: "Humidity in percentage"},
			"timestamp":   {Type: "string", Description: "Time of measurement"},
			"lightLevel":  {Type: "decimal64", Description: "Light level in lux"},
			"binLevel":    {Type: "decimal64", Description: "Bin fill percentage"},
			"ledStates": {
				Type:        "container",
				Description: "LED states",
				Leaves: map[string]Leaf{
					"redLed":    {Type: "boolean", Description: "Red LED state"},
					"yellowLed": {Type: "boolean", Description: "Yellow LED state"},
					"greenLed":  {Type: "boolean", Description: "Green LED state"},
				},
			},
		},
	}
}
