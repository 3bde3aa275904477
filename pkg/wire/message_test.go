package wire

import (
	"bytes"
	"testing"
)

func TestPathRoundTrip(t *testing.T) {
	tests := []struct {
		path     string
		segments int
	}{
		{"/sensors", 1},
		{"/leds", 1},
		{"/.well-known/core", 2},
		{"/", 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var m Message
			m.SetPath(tt.path)
			n := 0
			for _, o := range m.Options {
				if o.ID == OptionURIPath {
					n++
				}
			}
			if n != tt.segments {
				t.Errorf("got %d Uri-Path options, want %d", n, tt.segments)
			}
			if got := m.Path(); got != tt.path {
				t.Errorf("Path() = %q, want %q", got, tt.path)
			}
		})
	}
}

func TestUintOptions(t *testing.T) {
	tests := []struct {
		value uint32
		bytes int
	}{
		{0, 0},
		{1, 1},
		{255, 1},
		{256, 2},
		{0xFFFFFF, 3},
	}

	for _, tt := range tests {
		var m Message
		m.SetUintOption(OptionObserve, tt.value)
		val, ok := m.Option(OptionObserve)
		if !ok {
			t.Fatalf("option %d missing after set", tt.value)
		}
		if len(val) != tt.bytes {
			t.Errorf("value %d encoded in %d bytes, want %d", tt.value, len(val), tt.bytes)
		}
		got, ok := m.UintOption(OptionObserve)
		if !ok || got != tt.value {
			t.Errorf("UintOption = (%d, %v), want (%d, true)", got, ok, tt.value)
		}
	}
}

func TestSetObserveWraps(t *testing.T) {
	var m Message
	m.SetObserve(ObserveSequenceModulus + 5)
	if v, _ := m.Observe(); v != 5 {
		t.Errorf("observe value = %d, want 5", v)
	}
}

func TestSetUintOptionReplaces(t *testing.T) {
	var m Message
	m.SetContentFormat(ContentFormatCBOR)
	m.SetContentFormat(ContentFormatLinkFormat)
	count := 0
	for _, o := range m.Options {
		if o.ID == OptionContentFormat {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d Content-Format options, want 1", count)
	}
	if cf, _ := m.ContentFormat(); cf != ContentFormatLinkFormat {
		t.Errorf("content format = %d, want %d", cf, ContentFormatLinkFormat)
	}
}

func TestCodeProperties(t *testing.T) {
	if !CodeGET.IsRequest() || CodeGET.IsResponse() {
		t.Error("GET should be a request code")
	}
	if !CodeContent.IsResponse() || !CodeContent.IsSuccess() {
		t.Error("2.05 should be a success response")
	}
	if CodeNotFound.IsSuccess() {
		t.Error("4.04 should not be a success")
	}
	if got := CodeContent.String(); got != "2.05 Content" {
		t.Errorf("CodeContent.String() = %q", got)
	}
	if got := CodeServiceUnavailable.String(); got != "5.03 Service Unavailable" {
		t.Errorf("CodeServiceUnavailable.String() = %q", got)
	}
}

func TestTokenPreserved(t *testing.T) {
	token := []byte{0xCA, 0xFE, 0xBA, 0xBE}
	msg := Message{Type: Confirmable, Code: CodeGET, MessageID: 1, Token: token}
	data, err := Encode(&msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded.Token, token) {
		t.Errorf("token = %x, want %x", decoded.Token, token)
	}
}
