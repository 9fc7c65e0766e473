// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/piper/lib/config"
	"github.com/bureau-foundation/piper/lib/journal"
)

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"--version"}, &stdout); err != nil {
		t.Fatalf("run --version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "piper-server ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRunPrintConfigSchema(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"--print-config-schema"}, &stdout); err != nil {
		t.Fatalf("run --print-config-schema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &schema); err != nil {
		t.Fatalf("schema output is not JSON: %v", err)
	}
}

func TestRunDumpJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.journal")
	writer, err := journal.Open(path, journal.CompressionLZ4)
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	for _, id := range []string{"alpha", "beta"} {
		if err := writer.Append(journal.Record{SessionID: id, Argv: []string{"cat"}}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	writer.Close()

	var stdout bytes.Buffer
	if err := run([]string{"--dump-journal", path}, &stdout); err != nil {
		t.Fatalf("run --dump-journal: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), stdout.String())
	}
	if !strings.Contains(lines[0], `"alpha"`) || !strings.Contains(lines[1], `"beta"`) {
		t.Errorf("records out of order or missing:\n%s", stdout.String())
	}
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piper.yaml")
	if err := os.WriteFile(path, []byte("backlog: 0\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	err := run([]string{"--config", path}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "backlog") {
		t.Errorf("run with backlog 0 = %v, want a backlog validation error", err)
	}
}

func TestRunRejectsStrayArguments(t *testing.T) {
	if err := run([]string{"extra"}, &bytes.Buffer{}); err == nil {
		t.Error("run accepted a positional argument")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piper.toml")
	content := "listen = \"127.0.0.1:6000\"\nbacklog = 4\n[child]\ngrace = \"3s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("PIPER_DEBUG", "")

	parsed, err := parseFlags([]string{"--config", path, "--listen", "127.0.0.1:7000", "--grace", "250ms"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg, err := parsed.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != "127.0.0.1:7000" {
		t.Errorf("listen = %s, want the flag value", cfg.Listen)
	}
	if cfg.Child.Grace.Std() != 250*time.Millisecond {
		t.Errorf("grace = %s, want the flag value", cfg.Child.Grace)
	}
	if cfg.Backlog != 4 {
		t.Errorf("backlog = %d, want the file value when the flag is absent", cfg.Backlog)
	}
	if cfg.Log.Debug {
		t.Error("debug enabled without --debug or PIPER_DEBUG")
	}
}

func TestDebugFromEnvironment(t *testing.T) {
	t.Setenv("PIPER_DEBUG", "1")
	parsed, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg := config.Default()
	parsed.apply(cfg)
	if !cfg.Log.Debug {
		t.Error("PIPER_DEBUG did not enable debug logging")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for format, marker := range map[string]string{
		"json": `"msg":"hello"`,
		"text": "msg=hello",
	} {
		var output bytes.Buffer
		newLogger(&output, format, nil).Info("hello", "session_id", "x")
		if !strings.Contains(output.String(), marker) {
			t.Errorf("%s logger output %q lacks %s", format, output.String(), marker)
		}
	}
}
