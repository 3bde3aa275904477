package model

import (
	"sync"
	"time"
)

// Kind enumerates the resource kinds this device hosts. The set is
// closed: the dispatcher switches over it exhaustively, so adding a
// resource means extending the enum and every switch.
type Kind uint8

const (
	KindSensors Kind = iota
	KindCapabilities
	KindConfig
	KindLEDs
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSensors:
		return "SENSORS"
	case KindCapabilities:
		return "CAPABILITIES"
	case KindConfig:
		return "CONFIG"
	case KindLEDs:
		return "LEDS"
	default:
		return "UNKNOWN"
	}
}

// Resource paths hosted by this device. Discovery is synthesized by the
// dispatcher and never registered.
const (
	PathSensors      = "/sensors"
	PathCapabilities = "/capabilities"
	PathConfig       = "/config"
	PathLEDs         = "/leds"
	PathDiscovery    = "/.well-known/core"
)

// OCF resource-type and interface tags reported in discovery.
const (
	RTSensor        = "oic.r.sensor"
	RTCoreconf      = "oic.r.coreconf"
	RTConfiguration = "oic.r.configuration"
	RTLED           = "oic.r.led"

	IFBaseline = "oic.if.baseline"
	IFActuator = "oic.if.a"
)

// Validator validates and applies a client write. It receives the
// current representation and the raw payload and returns the complete
// next representation. Validation failures leave the resource untouched.
type Validator func(current, data []byte) ([]byte, error)

// Descriptor describes a resource at registration time.
type Descriptor struct {
	Kind          Kind
	ResourceType  string
	Interface     string
	ContentFormat uint16

	// Observable marks the resource as accepting observe registrations.
	Observable bool

	// Validate handles PUT payloads. Nil means the resource rejects
	// writes from the network.
	Validate Validator

	// Initial is the boot-time representation.
	Initial []byte
}

// Resource is a registered resource with its cached representation.
// Resources live for the whole process lifetime.
type Resource struct {
	path string
	desc Descriptor

	mu             sync.RWMutex
	representation []byte
	updatedAt      time.Time
}

// Path returns the resource path.
func (r *Resource) Path() string { return r.path }

// Kind returns the resource kind.
func (r *Resource) Kind() Kind { return r.desc.Kind }

// ResourceType returns the rt discovery tag.
func (r *Resource) ResourceType() string { return r.desc.ResourceType }

// Interface returns the if discovery tag.
func (r *Resource) Interface() string { return r.desc.Interface }

// ContentFormat returns the representation's content format.
func (r *Resource) ContentFormat() uint16 { return r.desc.ContentFormat }

// Observable returns whether observe registrations are accepted.
func (r *Resource) Observable() bool { return r.desc.Observable }

// Writable returns whether the resource accepts PUT.
func (r *Resource) Writable() bool { return r.desc.Validate != nil }

// Read returns the current cached representation. The returned slice is
// never mutated after publication; callers must not modify it.
func (r *Resource) Read() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.representation
}

// UpdatedAt returns when the representation was last replaced.
func (r *Resource) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}
