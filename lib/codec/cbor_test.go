// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

type sampleFrame struct {
	Caller  string `cbor:"caller"`
	Service string `cbor:"service,omitempty"`
	Count   int    `cbor:"count"`
}

// level has a text form and should travel as a CBOR text string.
type level int

func (l level) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("L%d", int(l))), nil
}

func (l *level) UnmarshalText(text []byte) error {
	_, err := fmt.Sscanf(string(text), "L%d", (*int)(l))
	return err
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleFrame{Caller: "admin", Service: "AccessControlService", Count: 3}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleFrame
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": 2, "mid": "x"}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestTextMarshalerTravelsAsString(t *testing.T) {
	data, err := Marshal(level(7))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if diagnostic != `"L7"` {
		t.Errorf("diagnostic = %s, want \"L7\"", diagnostic)
	}

	var decoded level
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != 7 {
		t.Errorf("decoded = %d, want 7", decoded)
	}
}

func TestDecodeAnyProducesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Errorf("nested type = %T, want map[string]any", outer["outer"])
	}
}

func TestStreamRoundtrip(t *testing.T) {
	frames := []sampleFrame{
		{Caller: "a", Count: 1},
		{Caller: "b", Service: "s", Count: 2},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, frame := range frames {
		if err := encoder.Encode(frame); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range frames {
		var got sampleFrame
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode[%d]: %v", i, err)
		}
		if got != want {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var decoded sampleFrame
	err := Unmarshal([]byte{0xff, 0x00}, &decoded)
	if err == nil {
		t.Fatal("expected error decoding garbage")
	}
	if strings.TrimSpace(err.Error()) == "" {
		t.Error("error message is empty")
	}
}
