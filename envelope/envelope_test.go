package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original := &Envelope{
		Part:    3,
		Total:   5,
		Name:    "report.pdf",
		Payload: []byte{0x00, 0x01, 0xFF, 0x7E, 0x00},
	}

	text, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Part != original.Part {
		t.Errorf("Part = %d, want %d", decoded.Part, original.Part)
	}
	if decoded.Total != original.Total {
		t.Errorf("Total = %d, want %d", decoded.Total, original.Total)
	}
	if decoded.Name != original.Name {
		t.Errorf("Name = %q, want %q", decoded.Name, original.Name)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("Payload = %v, want %v", decoded.Payload, original.Payload)
	}
}

func TestEncode_WireFieldNames(t *testing.T) {
	text, err := Encode(&Envelope{Part: 1, Total: 2, Name: "a.bin", Payload: []byte("hi")})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		t.Fatalf("encoded text is not JSON: %v", err)
	}

	for _, field := range []string{"p", "t", "f", "d"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("wire record missing field %q", field)
		}
	}
	if raw["d"] != base64.StdEncoding.EncodeToString([]byte("hi")) {
		t.Errorf("payload field = %v, want base64 of \"hi\"", raw["d"])
	}
}

func TestEncode_PartOutOfRange(t *testing.T) {
	cases := []struct {
		name        string
		part, total int
	}{
		{"zero part", 0, 5},
		{"zero total", 1, 0},
		{"part beyond total", 6, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(&Envelope{Part: tc.part, Total: tc.total, Name: "x"})
			ce, ok := err.(*CodecError)
			if !ok {
				t.Fatalf("expected *CodecError, got %v", err)
			}
			if ce.Kind != KindBadNumber {
				t.Errorf("Kind = %d, want KindBadNumber", ce.Kind)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode("this is not json {{{")
	ce, ok := err.(*CodecError)
	if !ok {
		t.Fatalf("expected *CodecError, got %v", err)
	}
	if ce.Kind != KindMalformed {
		t.Errorf("Kind = %d, want KindMalformed", ce.Kind)
	}
	if IsForeign(err) {
		t.Error("malformed record should not classify as foreign")
	}
}

func TestDecode_ForeignRecord(t *testing.T) {
	// A perfectly valid JSON payload from some unrelated producer.
	cases := []string{
		`{"url": "https://example.com/menu"}`,
		`{"wifi": {"ssid": "guest", "pass": "hunter2"}}`,
		`{"p": 1, "t": 2}`, // ours in part, but missing name and payload
		`{"p": "one", "t": "two", "f": 3, "d": 4}`,
	}

	for _, text := range cases {
		_, err := Decode(text)
		if err == nil {
			t.Fatalf("Decode(%q) succeeded, want error", text)
		}
		ce, ok := err.(*CodecError)
		if !ok {
			t.Fatalf("expected *CodecError, got %v", err)
		}
		if ce.Kind == KindMalformed {
			t.Errorf("Decode(%q) classified malformed, want foreign or bad-number", text)
		}
	}
}

func TestDecode_NonIntegerPart(t *testing.T) {
	_, err := Decode(`{"p": 1.5, "t": 4, "f": "a.bin", "d": "aGk="}`)
	ce, ok := err.(*CodecError)
	if !ok {
		t.Fatalf("expected *CodecError, got %v", err)
	}
	if ce.Kind != KindBadNumber {
		t.Errorf("Kind = %d, want KindBadNumber", ce.Kind)
	}
}

func TestDecode_NegativeCounters(t *testing.T) {
	_, err := Decode(`{"p": -1, "t": 4, "f": "a.bin", "d": "aGk="}`)
	ce, ok := err.(*CodecError)
	if !ok {
		t.Fatalf("expected *CodecError, got %v", err)
	}
	if ce.Kind != KindBadNumber {
		t.Errorf("Kind = %d, want KindBadNumber", ce.Kind)
	}
}

func TestDecode_BadPayloadAlphabet(t *testing.T) {
	_, err := Decode(`{"p": 1, "t": 1, "f": "a.bin", "d": "!!not base64!!"}`)
	ce, ok := err.(*CodecError)
	if !ok {
		t.Fatalf("expected *CodecError, got %v", err)
	}
	if ce.Kind != KindBadPayload {
		t.Errorf("Kind = %d, want KindBadPayload", ce.Kind)
	}
}

func TestIsForeign(t *testing.T) {
	_, foreignErr := Decode(`{"hello": "world"}`)
	if !IsForeign(foreignErr) {
		t.Error("IsForeign = false for foreign record")
	}
	_, malformedErr := Decode("not json")
	if IsForeign(malformedErr) {
		t.Error("IsForeign = true for malformed record")
	}
	if IsForeign(nil) {
		t.Error("IsForeign = true for nil")
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	text, err := Encode(&Envelope{Part: 1, Total: 1, Name: "empty.bin", Payload: nil})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Payload) != 0 {
		t.Errorf("Payload length = %d, want 0", len(decoded.Payload))
	}
}
