// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleRecord mirrors the shape of a process record: a mandatory
// identifier plus optional attributes expressed as pointers.
type sampleRecord struct {
	PID     int32   `json:"pid"`
	Name    *string `json:"name,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

func stringPointer(value string) *string { return &value }

func boolPointer(value bool) *bool { return &value }

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{PID: 42, Name: stringPointer("com.example.app")}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.PID != 42 {
		t.Errorf("PID = %d, want 42", decoded.PID)
	}
	if decoded.Name == nil || *decoded.Name != "com.example.app" {
		t.Errorf("Name = %v, want com.example.app", decoded.Name)
	}
	if decoded.Enabled != nil {
		t.Errorf("Enabled = %v, want absent", *decoded.Enabled)
	}
}

func TestPresenceOfZeroValues(t *testing.T) {
	// A present-but-false attribute must survive the wire so that an
	// update can explicitly clear a flag.
	data, err := Marshal(sampleRecord{PID: 1, Enabled: boolPointer(false)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Enabled == nil {
		t.Fatal("Enabled = absent, want present false")
	}
	if *decoded.Enabled {
		t.Error("Enabled = true, want false")
	}
}

func TestMarshalDeterministic(t *testing.T) {
	record := sampleRecord{PID: 7, Name: stringPointer("a"), Enabled: boolPointer(true)}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	records := []sampleRecord{
		{PID: 1, Name: stringPointer("first")},
		{PID: 2},
		{PID: 3, Enabled: boolPointer(true)},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range records {
		var got sampleRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", i, err)
		}
		if got.PID != want.PID {
			t.Errorf("record %d: PID = %d, want %d", i, got.PID, want.PID)
		}
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(map[string]any{"pid": 9, "added_in_a_later_version": "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.PID != 9 {
		t.Errorf("PID = %d, want 9", decoded.PID)
	}
}

func TestDecodeTruncatedInput(t *testing.T) {
	data, err := Marshal(sampleRecord{PID: 5, Name: stringPointer("truncated")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleRecord
	if err := NewDecoder(bytes.NewReader(data[:len(data)-3])).Decode(&decoded); err == nil {
		t.Fatal("expected error decoding truncated input")
	}
}
