// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleRecord(id string) Record {
	started := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	return Record{
		SessionID:   id,
		RemoteAddr:  "127.0.0.1:40000",
		Argv:        []string{"cat", "-u"},
		Pid:         4242,
		Started:     started,
		Ended:       started.Add(1500 * time.Millisecond),
		BytesIn:     12,
		BytesOut:    12,
		StdoutBytes: 12,
		EndReason:   "peer-closed",
		ExitCode:    -1,
		Signal:      "SIGTERM",
		Termination: "graceful",
	}
}

func TestAppendAndReadAll(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sessions.journal")
			writer, err := Open(path, compression)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			for _, id := range []string{"first", "second", "third"} {
				if err := writer.Append(sampleRecord(id)); err != nil {
					t.Fatalf("Append(%s): %v", id, err)
				}
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			records, err := ReadAll(path)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("got %d records, want 3", len(records))
			}
			for index, id := range []string{"first", "second", "third"} {
				got := records[index]
				want := sampleRecord(id)
				if got.SessionID != want.SessionID || got.Pid != want.Pid ||
					got.Signal != want.Signal || got.ExitCode != want.ExitCode {
					t.Errorf("record %d = %+v, want %+v", index, got, want)
				}
				if strings.Join(got.Argv, " ") != "cat -u" {
					t.Errorf("record %d argv = %q", index, got.Argv)
				}
				if !got.Started.Equal(want.Started) || got.Duration() != 1500*time.Millisecond {
					t.Errorf("record %d times = %v..%v", index, got.Started, got.Ended)
				}
			}
		})
	}
}

func TestAppendAcrossReopenWithMixedCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.journal")
	for _, compression := range []Compression{CompressionZstd, CompressionNone, CompressionLZ4} {
		writer, err := Open(path, compression)
		if err != nil {
			t.Fatalf("Open(%s): %v", compression, err)
		}
		if err := writer.Append(sampleRecord(compression.String())); err != nil {
			t.Fatalf("Append: %v", err)
		}
		writer.Close()
	}

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var ids []string
	for _, record := range records {
		ids = append(ids, record.SessionID)
	}
	if got := strings.Join(ids, ","); got != "zstd,none,lz4" {
		t.Errorf("session ids = %s, want zstd,none,lz4", got)
	}
}

func TestTruncatedJournalKeepsCompleteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.journal")
	writer, err := Open(path, CompressionNone)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	writer.Append(sampleRecord("kept"))
	writer.Append(sampleRecord("cut"))
	writer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading journal: %v", err)
	}
	records, err := Decode(bytes.NewReader(data[:len(data)-5]))
	if !IsTruncated(err) {
		t.Fatalf("Decode error = %v, want truncation", err)
	}
	if len(records) != 1 || records[0].SessionID != "kept" {
		t.Errorf("records = %+v, want only the first", records)
	}
}

func TestDecodeRejectsUnknownCompression(t *testing.T) {
	frame := appendFrame(nil, Compression(9), []byte{0xa0})
	if _, err := Decode(bytes.NewReader(frame)); err == nil {
		t.Fatal("Decode accepted an unknown compression tag")
	}
}

func TestAppendAfterClose(t *testing.T) {
	writer, err := Open(filepath.Join(t.TempDir(), "j"), CompressionNone)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	writer.Close()
	if err := writer.Append(sampleRecord("late")); err == nil {
		t.Error("Append after Close succeeded")
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name    string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"lz4", CompressionLZ4, false},
		{"zstd", CompressionZstd, false},
		{"gzip", 0, true},
	}
	for _, test := range tests {
		got, err := ParseCompression(test.name)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseCompression(%q) error = %v, wantErr %v", test.name, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseCompression(%q) = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestTranscriptDigestsIgnoreChunking(t *testing.T) {
	transcript := NewTranscript()
	transcript.FromClient([]byte("hel"))
	transcript.FromClient([]byte("lo\n"))
	transcript.FromChild("stdout", []byte("hello\n"))
	transcript.FromChild("stderr", []byte("warning\n"))

	var record Record
	transcript.Fill(&record)

	if !bytes.Equal(record.InboundDigest, InboundDigest([]byte("hello\n"))) {
		t.Error("inbound digest depends on how the bytes were chunked")
	}
	if !bytes.Equal(record.OutboundDigest, OutboundDigest([]byte("hello\nwarning\n"))) {
		t.Error("outbound digest does not cover both streams in order")
	}
	if record.StdoutBytes != 6 || record.StderrBytes != 8 {
		t.Errorf("stdout/stderr bytes = %d/%d, want 6/8", record.StdoutBytes, record.StderrBytes)
	}
	if bytes.Equal(InboundDigest([]byte("x")), OutboundDigest([]byte("x"))) {
		t.Error("inbound and outbound digests share a domain")
	}
}
