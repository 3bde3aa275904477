package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Version is the only CoAP protocol version this codec accepts.
const Version = 1

// MaxTokenLength is the maximum token length in bytes (RFC 7252 §3).
const MaxTokenLength = 8

// HeaderLength is the fixed CoAP header length in bytes.
const HeaderLength = 4

// payloadMarker separates the option list from the payload.
const payloadMarker = 0xFF

// Decode errors. Each malformed-input class has its own sentinel so
// callers can distinguish undecodable garbage from protocol violations.
var (
	// ErrBadVersion indicates a version field other than 1.
	ErrBadVersion = errors.New("wire: unsupported CoAP version")

	// ErrTruncatedHeader indicates the datagram ends before the fixed
	// header or the declared token is complete, or declares a reserved
	// token length.
	ErrTruncatedHeader = errors.New("wire: truncated header")

	// ErrInvalidOptionEncoding indicates an option delta/length nibble
	// violates the extended encoding rules, an option value runs past
	// the end of the datagram, or a payload marker is not followed by
	// at least one payload byte.
	ErrInvalidOptionEncoding = errors.New("wire: invalid option encoding")

	// ErrTrailingGarbage indicates bytes after the end of a message that
	// cannot carry them (an empty message with anything past the header).
	ErrTrailingGarbage = errors.New("wire: trailing garbage")
)

// ErrUnencodable is returned by Encode for messages that cannot be
// represented on the wire (oversized token, empty message with content).
// The codec fails loudly rather than truncating.
var ErrUnencodable = errors.New("wire: message not encodable")

// Decode parses a single CoAP datagram. The returned message owns copies
// of the token, option values and payload; data may be reused afterwards.
func Decode(data []byte) (*Message, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedHeader, len(data))
	}
	if ver := data[0] >> 6; ver != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, ver)
	}

	m := &Message{
		Type:      Type(data[0] >> 4 & 0x3),
		Code:      Code(data[1]),
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}

	tkl := int(data[0] & 0x0F)
	if tkl > MaxTokenLength {
		return nil, fmt.Errorf("%w: reserved token length %d", ErrTruncatedHeader, tkl)
	}

	// An empty message is exactly four bytes (RFC 7252 §4.1).
	if m.Code == CodeEmpty {
		if tkl != 0 || len(data) > HeaderLength {
			return nil, fmt.Errorf("%w: empty message with %d bytes", ErrTrailingGarbage, len(data))
		}
		return m, nil
	}

	pos := HeaderLength
	if len(data) < pos+tkl {
		return nil, fmt.Errorf("%w: token needs %d bytes, %d remain", ErrTruncatedHeader, tkl, len(data)-pos)
	}
	if tkl > 0 {
		m.Token = append([]byte(nil), data[pos:pos+tkl]...)
		pos += tkl
	}

	prev := uint32(0)
	for pos < len(data) {
		if data[pos] == payloadMarker {
			pos++
			if pos == len(data) {
				return nil, fmt.Errorf("%w: payload marker with empty payload", ErrInvalidOptionEncoding)
			}
			m.Payload = append([]byte(nil), data[pos:]...)
			return m, nil
		}

		delta, length := uint32(data[pos]>>4), uint32(data[pos]&0x0F)
		pos++

		var err error
		if delta, pos, err = extendNibble(delta, data, pos); err != nil {
			return nil, err
		}
		if length, pos, err = extendNibble(length, data, pos); err != nil {
			return nil, err
		}
		if pos+int(length) > len(data) {
			return nil, fmt.Errorf("%w: option value needs %d bytes, %d remain", ErrInvalidOptionEncoding, length, len(data)-pos)
		}

		prev += delta
		var val []byte
		if length > 0 {
			val = append([]byte(nil), data[pos:pos+int(length)]...)
		}
		m.Options = append(m.Options, Option{ID: OptionID(prev), Value: val})
		pos += int(length)
	}
	return m, nil
}

// extendNibble resolves the 13/14 extended forms of an option delta or
// length nibble. Nibble value 15 is reserved outside the payload marker.
func extendNibble(v uint32, data []byte, pos int) (uint32, int, error) {
	switch v {
	case 13:
		if pos >= len(data) {
			return 0, 0, fmt.Errorf("%w: missing 1-byte extension", ErrInvalidOptionEncoding)
		}
		return uint32(data[pos]) + 13, pos + 1, nil
	case 14:
		if pos+2 > len(data) {
			return 0, 0, fmt.Errorf("%w: missing 2-byte extension", ErrInvalidOptionEncoding)
		}
		return uint32(binary.BigEndian.Uint16(data[pos:pos+2])) + 269, pos + 2, nil
	case 15:
		return 0, 0, fmt.Errorf("%w: reserved nibble 15", ErrInvalidOptionEncoding)
	default:
		return v, pos, nil
	}
}

// Encode serializes a message to canonical wire form: options sorted
// ascending by number (stable for repeated options), minimal extended
// encodings.
func Encode(m *Message) ([]byte, error) {
	if len(m.Token) > MaxTokenLength {
		return nil, fmt.Errorf("%w: token length %d", ErrUnencodable, len(m.Token))
	}
	if m.Code == CodeEmpty && (len(m.Token) > 0 || len(m.Options) > 0 || len(m.Payload) > 0) {
		return nil, fmt.Errorf("%w: empty message with content", ErrUnencodable)
	}

	buf := make([]byte, 0, HeaderLength+len(m.Token)+4*len(m.Options)+len(m.Payload)+1)
	buf = append(buf,
		Version<<6|uint8(m.Type)<<4|uint8(len(m.Token)),
		uint8(m.Code),
		byte(m.MessageID>>8), byte(m.MessageID),
	)
	buf = append(buf, m.Token...)

	opts := append([]Option(nil), m.Options...)
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].ID < opts[j].ID })

	prev := uint32(0)
	for _, o := range opts {
		delta := uint32(o.ID) - prev
		length := uint32(len(o.Value))
		if length > 65535+269 {
			return nil, fmt.Errorf("%w: option %d value %d bytes", ErrUnencodable, o.ID, length)
		}

		dn, dext := splitNibble(delta)
		ln, lext := splitNibble(length)
		buf = append(buf, byte(dn<<4|ln))
		buf = append(buf, dext...)
		buf = append(buf, lext...)
		buf = append(buf, o.Value...)
		prev = uint32(o.ID)
	}

	if len(m.Payload) > 0 {
		buf = append(buf, payloadMarker)
		buf = append(buf, m.Payload...)
	}
	return buf, nil
}

// splitNibble returns the 4-bit field and extension bytes for an option
// delta or length value.
func splitNibble(v uint32) (uint32, []byte) {
	switch {
	case v < 13:
		return v, nil
	case v < 269:
		return 13, []byte{byte(v - 13)}
	default:
		return 14, []byte{byte((v - 269) >> 8), byte(v - 269)}
	}
}

// MessageIDFromHeader extracts the message ID from a datagram whose full
// decode failed, so the dispatcher can address a Reset at the sender.
// It succeeds whenever the fixed header is intact.
func MessageIDFromHeader(data []byte) (uint16, bool) {
	if len(data) < HeaderLength {
		return 0, false
	}
	return binary.BigEndian.Uint16(data[2:4]), true
}
