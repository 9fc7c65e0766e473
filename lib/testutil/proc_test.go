// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"os/exec"
	"testing"
)

func TestProcessStateSelf(t *testing.T) {
	state, exists := ProcessState(os.Getpid())
	if !exists {
		t.Fatal("own pid has no /proc entry")
	}
	if state == 0 {
		t.Fatal("own pid has no state")
	}
}

func TestProcessStateZombieThenGone(t *testing.T) {
	command := exec.Command("/bin/true")
	if err := command.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := command.Process.Pid
	if err := command.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	RequireGone(t, pid)
}

func TestUniqueIDIncreases(t *testing.T) {
	first := UniqueID("line")
	second := UniqueID("line")
	if first == second {
		t.Fatalf("UniqueID returned %q twice", first)
	}
}
