// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantStdout string
		wantFile   string
	}{
		{
			name:       "stops at exit",
			input:      "hello\nworld\nexit now\nignored\n",
			wantStdout: "Tester: starting\nTester: received hello\nTester: received world\nTester: received exit now\nTester: done\n",
			wantFile:   "hello\nworld\nexit now\n",
		},
		{
			name:       "stops at EOF",
			input:      "one\ntwo",
			wantStdout: "Tester: starting\nTester: received one\nTester: received two\nTester: done\n",
			wantFile:   "one\ntwo\n",
		},
		{
			name:       "empty input",
			input:      "",
			wantStdout: "Tester: starting\nTester: done\n",
			wantFile:   "",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "received.txt")
			var stdout bytes.Buffer
			if err := run([]string{"--output", path}, strings.NewReader(test.input), &stdout); err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := stdout.String(); got != test.wantStdout {
				t.Errorf("stdout = %q, want %q", got, test.wantStdout)
			}
			content, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading output: %v", err)
			}
			if string(content) != test.wantFile {
				t.Errorf("file = %q, want %q", content, test.wantFile)
			}
		})
	}
}

func TestRunAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "received.txt")
	for _, input := range []string{"first\n", "second\n"} {
		if err := run([]string{"-o", path}, strings.NewReader(input), &bytes.Buffer{}); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(content) != "first\nsecond\n" {
		t.Errorf("file = %q", content)
	}
}

func TestRunUnwritableOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "received.txt")
	if err := run([]string{"--output", path}, strings.NewReader("x\n"), &bytes.Buffer{}); err == nil {
		t.Fatal("run succeeded with an unwritable output path")
	}
}
