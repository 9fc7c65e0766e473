// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/piper/lib/testutil"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen != "0.0.0.0:5000" {
		t.Errorf("expected listen=0.0.0.0:5000, got %s", cfg.Listen)
	}
	if cfg.Backlog != 10 {
		t.Errorf("expected backlog=10, got %d", cfg.Backlog)
	}
	if cfg.Session.ChunkSize != 16384 || cfg.Session.MaxCommandBytes != 16384 {
		t.Errorf("expected 16384-byte chunks and commands, got %d and %d",
			cfg.Session.ChunkSize, cfg.Session.MaxCommandBytes)
	}
	if cfg.Child.Grace.Std() != time.Second {
		t.Errorf("expected grace=1s, got %s", cfg.Child.Grace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile_Formats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "piper.yaml",
			content: `
listen: 127.0.0.1:6000
session:
  chunk_size: 4096
child:
  grace: 250ms
  env: [MODE=test]
journal:
  compression: zstd
`,
		},
		{
			name: "piper.toml",
			content: `
listen = "127.0.0.1:6000"

[session]
chunk_size = 4096

[child]
grace = "250ms"
env = ["MODE=test"]

[journal]
compression = "zstd"
`,
		},
		{
			name: "piper.jsonc",
			content: `{
  // comments and trailing commas are allowed
  "listen": "127.0.0.1:6000",
  "session": {"chunk_size": 4096},
  "child": {"grace": "250ms", "env": ["MODE=test"],},
  "journal": {"compression": "zstd"},
}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := LoadFile(writeConfig(t, test.name, test.content))
			if err != nil {
				t.Fatalf("LoadFile failed: %v", err)
			}
			if cfg.Listen != "127.0.0.1:6000" {
				t.Errorf("listen = %s", cfg.Listen)
			}
			if cfg.Session.ChunkSize != 4096 {
				t.Errorf("chunk_size = %d", cfg.Session.ChunkSize)
			}
			if cfg.Child.Grace.Std() != 250*time.Millisecond {
				t.Errorf("grace = %s", cfg.Child.Grace)
			}
			if len(cfg.Child.Env) != 1 || cfg.Child.Env[0] != "MODE=test" {
				t.Errorf("env = %q", cfg.Child.Env)
			}
			if cfg.Journal.Compression != "zstd" {
				t.Errorf("compression = %s", cfg.Journal.Compression)
			}
			// Unmentioned fields keep their defaults.
			if cfg.Backlog != 10 || !cfg.Child.InheritEnv {
				t.Errorf("defaults lost: backlog=%d inherit_env=%v", cfg.Backlog, cfg.Child.InheritEnv)
			}
		})
	}
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	for name, content := range map[string]string{
		"typo.yaml": "backlgo: 5\n",
		"typo.toml": "backlgo = 5\n",
		"typo.json": `{"backlgo": 5}`,
	} {
		if _, err := LoadFile(writeConfig(t, name, content)); err == nil {
			t.Errorf("%s: expected an error for an unknown key", name)
		}
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "piper.ini", "listen=x"))
	if err == nil || !strings.Contains(err.Error(), "unsupported configuration format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestLoad_UsesEnvironmentVariable(t *testing.T) {
	path := writeConfig(t, "piper.yaml", "backlog: 3\n")
	t.Setenv(EnvVar, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backlog != 3 {
		t.Errorf("backlog = %d, want 3", cfg.Backlog)
	}

	t.Setenv(EnvVar, "")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load without a file failed: %v", err)
	}
	if cfg.Backlog != 10 {
		t.Errorf("expected defaults without a file, got backlog=%d", cfg.Backlog)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("PIPER_TEST_DIR", "/srv/piper")

	tests := []struct {
		input string
		want  string
	}{
		{"${PIPER_TEST_DIR}/journal", "/srv/piper/journal"},
		{"${PIPER_TEST_UNSET:-/tmp}/journal", "/tmp/journal"},
		{"${PIPER_TEST_DIR:-/tmp}", "/srv/piper"},
		{"no variables", "no variables"},
		{"${PIPER_TEST_UNSET}", ""},
	}
	for _, test := range tests {
		if got := expandVars(test.input, nil); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestLoadFile_ExpandsVariables(t *testing.T) {
	t.Setenv("PIPER_TEST_PORT", "7000")
	cfg, err := LoadFile(writeConfig(t, "piper.yaml", `
listen: "127.0.0.1:${PIPER_TEST_PORT}"
journal:
  path: "${PIPER_TEST_STATE:-/var/lib/piper}/sessions.journal"
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:7000" {
		t.Errorf("listen = %s", cfg.Listen)
	}
	if cfg.Journal.Path != "/var/lib/piper/sessions.journal" {
		t.Errorf("journal.path = %s", cfg.Journal.Path)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Listen = "no-port"
	cfg.Backlog = 0
	cfg.Session.ChunkSize = 0
	cfg.Child.Grace = 0
	cfg.Child.Env = []string{"=bad"}
	cfg.Journal.Compression = "gzip"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, fragment := range []string{"listen", "backlog", "chunk_size", "grace", "child.env", "journal.compression", "log.format"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("validation error does not mention %s: %v", fragment, err)
		}
	}
}

func TestChildEnv(t *testing.T) {
	cfg := Default()
	cfg.Child.InheritEnv = false
	if env := cfg.ChildEnv(); env == nil || len(env) != 0 {
		t.Errorf("empty environment = %#v, want empty non-nil", env)
	}

	t.Setenv("PIPER_TEST_INHERITED", "yes")
	cfg.Child.InheritEnv = true
	cfg.Child.Env = []string{"EXTRA=1"}
	env := cfg.ChildEnv()
	if env[len(env)-1] != "EXTRA=1" {
		t.Errorf("configured entries must come last, got %q", env[len(env)-1])
	}
	found := false
	for _, entry := range env {
		found = found || entry == "PIPER_TEST_INHERITED=yes"
	}
	if !found {
		t.Error("inherited variable missing")
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", data)
	}
	for _, key := range []string{"listen", "backlog", "session", "child", "journal", "log"} {
		if _, ok := properties[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}
}

func TestStore(t *testing.T) {
	first := Default()
	store := NewStore(first)
	second := Default()
	second.Backlog = 99

	if previous := store.Swap(second); previous != first {
		t.Error("Swap did not return the previous revision")
	}
	if store.Load().Backlog != 99 {
		t.Errorf("Load().Backlog = %d, want 99", store.Load().Backlog)
	}
}

func TestWatch_AppliesValidRevisions(t *testing.T) {
	path := writeConfig(t, "piper.yaml", "backlog: 1\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan *Config, 8)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- Watch(ctx, path, logger, func(next *Config) {
			select {
			case applied <- next:
			default:
			}
		})
	}()

	// Write until the watcher is observed to be running; the first
	// writes may land before watcher.Add. A reload can also catch the
	// file truncated mid-write, which loads as defaults, so wait for the
	// revision carrying the new value.
	deadline := time.Now().Add(5 * time.Second)
	found := false
	for !found && time.Now().Before(deadline) {
		os.WriteFile(path, []byte("backlog: 42\n"), 0o644)
		timeout := time.After(100 * time.Millisecond)
	drain:
		for {
			select {
			case got := <-applied:
				if got.Backlog == 42 {
					found = true
				}
			case <-timeout:
				break drain
			}
		}
	}
	if !found {
		t.Fatal("revision with backlog 42 not applied within 5s")
	}

	os.WriteFile(path, []byte("backlog: 0\n"), 0o644)
	timeout := time.After(300 * time.Millisecond)
	for waiting := true; waiting; {
		select {
		case got := <-applied:
			if got.Backlog == 0 {
				t.Error("invalid revision with backlog 0 was applied")
			}
		case <-timeout:
			waiting = false
		}
	}

	cancel()
	if err := testutil.RequireReceive(t, watchDone, 5*time.Second, "Watch did not return"); err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
