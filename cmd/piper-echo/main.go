// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/piper/lib/process"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		process.Fatal("piper-echo", err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var outputPath string
	set := pflag.NewFlagSet("piper-echo", pflag.ContinueOnError)
	set.StringVarP(&outputPath, "output", "o", "tmp.txt", "file each received line is appended to")
	if err := set.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if set.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", set.Arg(0))
	}

	output, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer output.Close()

	// Unbuffered writes: the reader is a socket peer waiting on each
	// acknowledgement.
	fmt.Fprintln(stdout, "Tester: starting")
	reader := bufio.NewReader(stdin)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			if _, err := fmt.Fprintf(stdout, "Tester: received %s", line); err != nil {
				return err
			}
			if _, err := io.WriteString(output, line); err != nil {
				return fmt.Errorf("writing %s: %w", outputPath, err)
			}
			if strings.HasPrefix(line, "exit") {
				break
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	fmt.Fprintln(stdout, "Tester: done")
	return output.Close()
}
