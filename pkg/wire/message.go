package wire

import (
	"bytes"
	"strings"
)

// Type is the CoAP message type (the 2-bit T field).
type Type uint8

const (
	// Confirmable messages require an acknowledgement.
	Confirmable Type = 0

	// NonConfirmable messages are best-effort.
	NonConfirmable Type = 1

	// Acknowledgement acknowledges a confirmable message and may carry a
	// piggybacked response.
	Acknowledgement Type = 2

	// Reset indicates a received message could not be processed, or
	// cancels an observation.
	Reset Type = 3
)

// String returns the message type name.
func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return "UNKNOWN"
	}
}

// OptionID is a CoAP option number.
type OptionID uint16

// Option numbers used by this server (RFC 7252 and RFC 7641 registries).
const (
	OptionETag          OptionID = 4
	OptionObserve       OptionID = 6
	OptionURIPath       OptionID = 11
	OptionContentFormat OptionID = 12
	OptionAccept        OptionID = 17
)

// Observe option values (RFC 7641).
const (
	ObserveRegister   uint32 = 0
	ObserveDeregister uint32 = 1
)

// ObserveSequenceModulus bounds observe sequence numbers: the option value
// is at most 3 bytes on the wire, so counters wrap at 2^24.
const ObserveSequenceModulus uint32 = 1 << 24

// Content-Format registry values used by this server.
const (
	ContentFormatLinkFormat uint16 = 40 // application/link-format
	ContentFormatCBOR       uint16 = 60 // application/cbor
)

// Option is a single CoAP option instance. Repeatable options (Uri-Path)
// appear as multiple entries with the same ID.
type Option struct {
	ID    OptionID
	Value []byte
}

// Message is a decoded CoAP message. It is created by Decode for inbound
// datagrams and built directly for outbound responses and notifications;
// one Message corresponds to exactly one UDP datagram.
type Message struct {
	Type      Type
	Code      Code
	MessageID uint16
	Token     []byte
	Options   []Option
	Payload   []byte
}

// AddOption appends an option instance.
func (m *Message) AddOption(id OptionID, value []byte) {
	m.Options = append(m.Options, Option{ID: id, Value: value})
}

// Option returns the value of the first instance of id.
func (m *Message) Option(id OptionID) ([]byte, bool) {
	for _, o := range m.Options {
		if o.ID == id {
			return o.Value, true
		}
	}
	return nil, false
}

// SetUintOption sets id to the minimal big-endian encoding of v,
// replacing any existing instances. Zero encodes as the empty value.
func (m *Message) SetUintOption(id OptionID, v uint32) {
	m.removeOption(id)
	m.AddOption(id, encodeUint(v))
}

// UintOption decodes the first instance of id as a big-endian unsigned
// integer. The empty value decodes as zero.
func (m *Message) UintOption(id OptionID) (uint32, bool) {
	val, ok := m.Option(id)
	if !ok {
		return 0, false
	}
	var v uint32
	for _, b := range val {
		v = v<<8 | uint32(b)
	}
	return v, true
}

func (m *Message) removeOption(id OptionID) {
	kept := m.Options[:0]
	for _, o := range m.Options {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	m.Options = kept
}

// SetPath replaces the Uri-Path options with the segments of path.
func (m *Message) SetPath(path string) {
	m.removeOption(OptionURIPath)
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg != "" {
			m.AddOption(OptionURIPath, []byte(seg))
		}
	}
}

// Path joins the Uri-Path options into a "/"-prefixed path. A message
// without Uri-Path options yields "/".
func (m *Message) Path() string {
	var sb strings.Builder
	for _, o := range m.Options {
		if o.ID == OptionURIPath {
			sb.WriteByte('/')
			sb.Write(o.Value)
		}
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

// SetObserve sets the Observe option.
func (m *Message) SetObserve(v uint32) {
	m.SetUintOption(OptionObserve, v%ObserveSequenceModulus)
}

// Observe returns the Observe option value, if present.
func (m *Message) Observe() (uint32, bool) {
	return m.UintOption(OptionObserve)
}

// SetContentFormat sets the Content-Format option.
func (m *Message) SetContentFormat(cf uint16) {
	m.SetUintOption(OptionContentFormat, uint32(cf))
}

// ContentFormat returns the Content-Format option value, if present.
func (m *Message) ContentFormat() (uint16, bool) {
	v, ok := m.UintOption(OptionContentFormat)
	return uint16(v), ok
}

// Equal reports whether two messages are identical field for field.
// Option order is significant; canonical messages keep options sorted.
func (m *Message) Equal(other *Message) bool {
	if m.Type != other.Type || m.Code != other.Code || m.MessageID != other.MessageID {
		return false
	}
	if !bytes.Equal(m.Token, other.Token) || !bytes.Equal(m.Payload, other.Payload) {
		return false
	}
	if len(m.Options) != len(other.Options) {
		return false
	}
	for i, o := range m.Options {
		if o.ID != other.Options[i].ID || !bytes.Equal(o.Value, other.Options[i].Value) {
			return false
		}
	}
	return true
}

// encodeUint returns the minimal big-endian encoding of v. Zero encodes
// as zero bytes, per the CoAP uint option format.
func encodeUint(v uint32) []byte {
	if v == 0 {
		return nil
	}
	var buf [4]byte
	n := 0
	for shift := 24; shift >= 0; shift -= 8 {
		b := byte(v >> shift)
		if n == 0 && b == 0 {
			continue
		}
		buf[n] = b
		n++
	}
	return buf[:n]
}
