// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sampleRecord struct {
	SessionID string    `cbor:"session_id"`
	Argv      []string  `cbor:"argv"`
	Started   time.Time `cbor:"started"`
	ExitCode  int       `cbor:"exit_code"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	record := map[string]any{
		"zeta":  1,
		"alpha": "cat",
		"mid":   []string{"a", "b"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal produced different bytes for the same map")
		}
	}
}

func TestStreamRoundTripPreservesTime(t *testing.T) {
	started := time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.UTC)
	records := []sampleRecord{
		{SessionID: "one", Argv: []string{"cat"}, Started: started, ExitCode: 0},
		{SessionID: "two", Argv: []string{"sh", "-c", "exit 3"}, Started: started.Add(time.Second), ExitCode: 3},
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
		if got.SessionID != want.SessionID || got.ExitCode != want.ExitCode || !got.Started.Equal(want.Started) {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
		if strings.Join(got.Argv, " ") != strings.Join(want.Argv, " ") {
			t.Errorf("record %d argv = %v, want %v", i, got.Argv, want.Argv)
		}
	}
}

func TestUnmarshalIntoAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(sampleRecord{SessionID: "abc"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if asMap["session_id"] != "abc" {
		t.Errorf("session_id = %v, want abc", asMap["session_id"])
	}
}

func TestDiagnoseFirst(t *testing.T) {
	first, _ := Marshal(map[string]int{"a": 1})
	second, _ := Marshal(map[string]int{"b": 2})

	notation, rest, err := DiagnoseFirst(append(first, second...))
	if err != nil {
		t.Fatalf("DiagnoseFirst: %v", err)
	}
	if notation != `{"a": 1}` {
		t.Errorf("notation = %q, want %q", notation, `{"a": 1}`)
	}
	if !bytes.Equal(rest, second) {
		t.Errorf("rest = %x, want %x", rest, second)
	}
}
