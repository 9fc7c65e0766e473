// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// exit is replaced in tests.
var exit = os.Exit

// Fatal writes "<binary>: error: <err>" to stderr and exits with status
// 1. main() uses it for errors returned from run(), where the logger may
// not exist yet (a bind failure, an unreadable config file).
func Fatal(binary string, err error) {
	report(os.Stderr, binary, err)
	exit(1)
}

func report(w io.Writer, binary string, err error) {
	fmt.Fprintf(w, "%s: error: %v\n", binary, err)
}
