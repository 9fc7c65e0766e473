// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/piper/lib/clock"
	"github.com/bureau-foundation/piper/lib/netutil"
	"github.com/bureau-foundation/piper/lib/process"
	"github.com/bureau-foundation/piper/lib/version"
)

// greetingSize is the server greeting: 24 ctime characters, '\n', NUL.
const greetingSize = 26

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		process.Fatal("piper", err)
	}
}

type options struct {
	address       string
	retries       int
	retryInterval time.Duration
	dialTimeout   time.Duration
	command       string
	raw           bool
	halfClose     bool
	showVersion   bool
}

func parseFlags(args []string) (*options, error) {
	parsed := &options{}
	set := pflag.NewFlagSet("piper", pflag.ContinueOnError)
	set.StringVarP(&parsed.address, "address", "a", "127.0.0.1:5000", "server address")
	set.IntVar(&parsed.retries, "retries", 20, "connection attempts after the first before giving up")
	set.DurationVar(&parsed.retryInterval, "retry-interval", time.Second, "wait between connection attempts")
	set.DurationVar(&parsed.dialTimeout, "dial-timeout", 5*time.Second, "timeout for each connection attempt")
	set.StringVarP(&parsed.command, "command", "e", "", "command line to send instead of reading it from the console")
	set.BoolVar(&parsed.raw, "raw", false, "put the terminal in raw mode while connected")
	set.BoolVar(&parsed.halfClose, "half-close", false, "shut down the sending side at console EOF")
	set.BoolVar(&parsed.showVersion, "version", false, "print version information and exit")

	if err := set.Parse(args); err != nil {
		return nil, err
	}
	if set.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", set.Arg(0))
	}
	if parsed.retries < 0 {
		return nil, fmt.Errorf("--retries must not be negative")
	}
	return parsed, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	parsed, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if parsed.showVersion {
		fmt.Fprintf(stdout, "piper %s\n", version.Info())
		return nil
	}

	connection, err := dial(parsed, clock.Real(), stderr)
	if err != nil {
		return err
	}
	defer connection.Close()

	connected, err := readGreeting(connection)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", connected)

	if parsed.command != "" {
		if _, err := io.WriteString(connection, parsed.command+"\n"); err != nil {
			return fmt.Errorf("sending command: %w", err)
		}
	}

	if parsed.raw {
		if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			state, err := term.MakeRaw(int(file.Fd()))
			if err != nil {
				return fmt.Errorf("set terminal raw mode: %w", err)
			}
			defer term.Restore(int(file.Fd()), state)
		}
	}

	_, _, err = netutil.Pump(connection, stdin, stdout, parsed.halfClose)
	return err
}

// dial connects to the server, retrying refused or timed out attempts.
// Progress goes to progress: "connecting", a dot per failed attempt, and
// " - connected" once through.
func dial(parsed *options, timeSource clock.Clock, progress io.Writer) (net.Conn, error) {
	fmt.Fprint(progress, "connecting")
	dialer := net.Dialer{Timeout: parsed.dialTimeout}
	var lastErr error
	for attempt := 0; attempt <= parsed.retries; attempt++ {
		if attempt > 0 {
			timeSource.Sleep(parsed.retryInterval)
		}
		connection, err := dialer.Dial("tcp", parsed.address)
		if err == nil {
			fmt.Fprintln(progress, " - connected")
			return connection, nil
		}
		lastErr = err
		fmt.Fprint(progress, ".")
	}
	fmt.Fprintln(progress)
	return nil, fmt.Errorf("connecting to %s failed after %d attempts: %w", parsed.address, parsed.retries+1, lastErr)
}

// readGreeting reads the server greeting and returns its timestamp.
func readGreeting(connection net.Conn) (string, error) {
	greeting := make([]byte, greetingSize)
	if _, err := io.ReadFull(connection, greeting); err != nil {
		return "", fmt.Errorf("reading greeting: %w", err)
	}
	line, rest, found := bytes.Cut(greeting, []byte{'\n'})
	if !found || !bytes.Equal(rest, []byte{0}) {
		return "", fmt.Errorf("malformed greeting %q", greeting)
	}
	return string(line), nil
}
