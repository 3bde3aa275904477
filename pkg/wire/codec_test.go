package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "GET with path",
			msg: Message{
				Type:      Confirmable,
				Code:      CodeGET,
				MessageID: 0x1234,
				Token:     []byte{0xDE, 0xAD},
				Options: []Option{
					{ID: OptionURIPath, Value: []byte("sensors")},
				},
			},
		},
		{
			name: "observe register",
			msg: Message{
				Type:      Confirmable,
				Code:      CodeGET,
				MessageID: 7,
				Token:     []byte{0x01},
				Options: []Option{
					{ID: OptionObserve, Value: nil},
					{ID: OptionURIPath, Value: []byte("leds")},
				},
			},
		},
		{
			name: "content response with payload",
			msg: Message{
				Type:      Acknowledgement,
				Code:      CodeContent,
				MessageID: 0xFFFF,
				Token:     []byte{1, 2, 3, 4, 5, 6, 7, 8},
				Options: []Option{
					{ID: OptionContentFormat, Value: []byte{60}},
				},
				Payload: []byte{0xA1, 0x61, 0x61, 0x01},
			},
		},
		{
			name: "multi-segment path",
			msg: Message{
				Type:      NonConfirmable,
				Code:      CodeGET,
				MessageID: 42,
				Options: []Option{
					{ID: OptionURIPath, Value: []byte(".well-known")},
					{ID: OptionURIPath, Value: []byte("core")},
				},
			},
		},
		{
			name: "extended option delta",
			msg: Message{
				Type:      Confirmable,
				Code:      CodePUT,
				MessageID: 1,
				Options: []Option{
					// Accept (17) forces a delta of 17 > 12 from zero.
					{ID: OptionAccept, Value: []byte{60}},
				},
				Payload: []byte{0x00},
			},
		},
		{
			name: "extended option length",
			msg: Message{
				Type:      Confirmable,
				Code:      CodePUT,
				MessageID: 2,
				Options: []Option{
					{ID: OptionURIPath, Value: bytes.Repeat([]byte{'x'}, 300)},
				},
			},
		},
		{
			name: "reset",
			msg: Message{
				Type:      Reset,
				Code:      CodeEmpty,
				MessageID: 99,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(&tt.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !decoded.Equal(&tt.msg) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, tt.msg)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			name: "short header",
			data: []byte{0x40, 0x01, 0x00},
			want: ErrTruncatedHeader,
		},
		{
			name: "empty input",
			data: nil,
			want: ErrTruncatedHeader,
		},
		{
			name: "bad version",
			data: []byte{0x80, 0x01, 0x00, 0x01},
			want: ErrBadVersion,
		},
		{
			name: "reserved token length",
			data: []byte{0x4D, 0x01, 0x00, 0x01},
			want: ErrTruncatedHeader,
		},
		{
			name: "truncated token",
			data: []byte{0x44, 0x01, 0x00, 0x01, 0xAA, 0xBB},
			want: ErrTruncatedHeader,
		},
		{
			name: "reserved option nibble",
			data: []byte{0x40, 0x01, 0x00, 0x01, 0xF0},
			want: ErrInvalidOptionEncoding,
		},
		{
			name: "missing option extension byte",
			data: []byte{0x40, 0x01, 0x00, 0x01, 0xD0},
			want: ErrInvalidOptionEncoding,
		},
		{
			name: "option value past end",
			data: []byte{0x40, 0x01, 0x00, 0x01, 0xB7, 's', 'e', 'n'},
			want: ErrInvalidOptionEncoding,
		},
		{
			name: "payload marker without payload",
			data: []byte{0x40, 0x01, 0x00, 0x01, 0xFF},
			want: ErrInvalidOptionEncoding,
		},
		{
			name: "empty message with token",
			data: []byte{0x42, 0x00, 0x00, 0x01, 0xAA, 0xBB},
			want: ErrTrailingGarbage,
		},
		{
			name: "empty message with extra bytes",
			data: []byte{0x40, 0x00, 0x00, 0x01, 0x00},
			want: ErrTrailingGarbage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeUnencodable(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "oversized token",
			msg: Message{
				Code:  CodeGET,
				Token: bytes.Repeat([]byte{0xAA}, 9),
			},
		},
		{
			name: "empty message with payload",
			msg: Message{
				Type:    Reset,
				Code:    CodeEmpty,
				Payload: []byte{1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(&tt.msg); !errors.Is(err, ErrUnencodable) {
				t.Errorf("Encode error = %v, want ErrUnencodable", err)
			}
		})
	}
}

func TestEncodeSortsOptions(t *testing.T) {
	msg := Message{
		Type:      Confirmable,
		Code:      CodeGET,
		MessageID: 1,
		Options: []Option{
			{ID: OptionContentFormat, Value: []byte{60}},
			{ID: OptionObserve, Value: nil},
			{ID: OptionURIPath, Value: []byte("leds")},
		},
	}
	data, err := Encode(&msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []OptionID{OptionObserve, OptionURIPath, OptionContentFormat}
	if len(decoded.Options) != len(want) {
		t.Fatalf("got %d options, want %d", len(decoded.Options), len(want))
	}
	for i, id := range want {
		if decoded.Options[i].ID != id {
			t.Errorf("option %d = %d, want %d", i, decoded.Options[i].ID, id)
		}
	}
}

func TestMessageIDFromHeader(t *testing.T) {
	mid, ok := MessageIDFromHeader([]byte{0x40, 0x01, 0x12, 0x34, 0xFF})
	if !ok || mid != 0x1234 {
		t.Errorf("MessageIDFromHeader = (%#x, %v), want (0x1234, true)", mid, ok)
	}
	if _, ok := MessageIDFromHeader([]byte{0x40, 0x01}); ok {
		t.Error("MessageIDFromHeader succeeded on short input")
	}
}
