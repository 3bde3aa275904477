package log

import (
	"time"

	"github.com/binsense/coapnode-go/pkg/wire"
)

// Event is a diagnostic event captured at any layer. CBOR encoding uses
// integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the server run that produced the event (UUID).
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow, for datagram and message events.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port), when known.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these is set).
	Datagram    *DatagramEvent    `cbor:"7,keyasint,omitempty"`  // Transport layer
	Message     *MessageEvent     `cbor:"8,keyasint,omitempty"`  // Wire layer (decoded)
	Sensor      *SensorEvent      `cbor:"9,keyasint,omitempty"`  // Sampling scheduler
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Lifecycle
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an inbound datagram or message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outbound datagram or message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the UDP datagram layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the CoAP message layer (decoded).
	LayerWire Layer = 1
	// LayerService is the application layer (dispatcher, sampler).
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a CoAP message event.
	CategoryMessage Category = 0
	// CategorySensor indicates a sensor sampling event.
	CategorySensor Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategorySensor:
		return "SENSOR"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DatagramEvent captures a raw UDP datagram at the transport layer.
type DatagramEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated for large datagrams).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates whether Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded CoAP message at the wire layer.
type MessageEvent struct {
	// MsgType is the CoAP message type (CON/NON/ACK/RST).
	MsgType wire.Type `cbor:"1,keyasint"`

	// Code is the method or response code.
	Code wire.Code `cbor:"2,keyasint"`

	// MessageID correlates messages and acknowledgements.
	MessageID uint16 `cbor:"3,keyasint"`

	// Token is the request token, if any.
	Token []byte `cbor:"4,keyasint,omitempty"`

	// Path is the requested resource path (requests only).
	Path string `cbor:"5,keyasint,omitempty"`

	// Observe is the Observe option value, when present.
	Observe *uint32 `cbor:"6,keyasint,omitempty"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"7,keyasint,omitempty"`
}

// SensorEvent captures a sampling-cycle observation: a completed reading
// or a sensor fault.
type SensorEvent struct {
	// Name identifies the sensor.
	Name string `cbor:"1,keyasint"`

	// Fault is the error message when the read failed.
	Fault string `cbor:"2,keyasint,omitempty"`

	// Values holds the reading on success.
	Values map[string]float64 `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityServer indicates a server lifecycle change.
	StateEntityServer StateEntity = 0
	// StateEntitySubscription indicates an observe subscription change.
	StateEntitySubscription StateEntity = 1
	// StateEntityResource indicates a resource representation change.
	StateEntityResource StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityServer:
		return "SERVER"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	case StateEntityResource:
		return "RESOURCE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
