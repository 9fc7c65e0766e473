// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"fmt"
	"os"
)

// ProcessState returns the single-letter state from /proc/<pid>/stat
// ('R', 'S', 'Z', ...). exists is false when the pid has no /proc entry,
// which for a child of the test process means it has been reaped.
func ProcessState(pid int) (state byte, exists bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, false
	}
	// The command name is parenthesized and may itself contain spaces or
	// parentheses; the state follows the last ')'.
	closing := bytes.LastIndexByte(data, ')')
	if closing < 0 || closing+2 >= len(data) {
		return 0, true
	}
	return data[closing+2], true
}

// RequireGone fails the test if pid still has a /proc entry, either
// because it is running or because it is an unreaped zombie.
func RequireGone(t TB, pid int) {
	t.Helper()
	if state, exists := ProcessState(pid); exists {
		t.Fatalf("process %d still present (state %q); expected it to be reaped", pid, state)
	}
}
