// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/piper/lib/intake"
)

// fakeServer accepts one connection, writes greeting, and hands the
// connection to serve. It returns the listen address.
func fakeServer(t *testing.T, greeting []byte, serve func(net.Conn)) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		connection, err := listener.Accept()
		if err != nil {
			return
		}
		defer connection.Close()
		if _, err := connection.Write(greeting); err != nil {
			return
		}
		serve(connection)
	}()
	return listener.Addr().String()
}

func TestRunSendsCommandAndPrintsOutput(t *testing.T) {
	connected := time.Date(2026, time.October, 16, 9, 5, 3, 0, time.UTC)
	received := make(chan string, 1)
	address := fakeServer(t, intake.Greeting(connected), func(connection net.Conn) {
		line, err := bufio.NewReader(connection).ReadString('\n')
		if err != nil {
			received <- ""
			return
		}
		received <- line
		connection.Write([]byte("Tester: starting\n"))
	})

	var stdout, stderr bytes.Buffer
	err := run([]string{"--address", address, "--retries", "0", "--command", "/usr/bin/tester x"},
		strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if line := <-received; line != "/usr/bin/tester x\n" {
		t.Errorf("server received %q", line)
	}
	want := "Fri Oct 16 09:05:03 2026\nTester: starting\n"
	if got := stdout.String(); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got := stderr.String(); got != "connecting - connected\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestRunForwardsConsoleInput(t *testing.T) {
	address := fakeServer(t, intake.Greeting(time.Now()), func(connection net.Conn) {
		line, err := bufio.NewReader(connection).ReadString('\n')
		if err != nil {
			return
		}
		connection.Write([]byte("echo: " + line))
	})

	var stdout, stderr bytes.Buffer
	err := run([]string{"--address", address, "--retries", "0"},
		strings.NewReader("cat\n"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasSuffix(stdout.String(), "\necho: cat\n") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunRejectsMalformedGreeting(t *testing.T) {
	address := fakeServer(t, []byte("this is not a greeting....\n"), func(net.Conn) {})

	var stdout, stderr bytes.Buffer
	err := run([]string{"--address", address, "--retries", "0"}, strings.NewReader(""), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "malformed greeting") {
		t.Fatalf("run error = %v, want malformed greeting", err)
	}
}

func TestDialGivesUpAfterRetries(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()

	var stdout, stderr bytes.Buffer
	err = run([]string{"--address", address, "--retries", "2", "--retry-interval", "1ms"},
		strings.NewReader(""), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("run error = %v, want failure after 3 attempts", err)
	}
	if got := stderr.String(); got != "connecting...\n" {
		t.Errorf("progress = %q, want %q", got, "connecting...\n")
	}
}

func TestParseFlags(t *testing.T) {
	if _, err := parseFlags([]string{"--retries", "-1"}); err == nil {
		t.Error("negative --retries accepted")
	}
	if _, err := parseFlags([]string{"stray"}); err == nil {
		t.Error("stray argument accepted")
	}
	parsed, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if parsed.address != "127.0.0.1:5000" || parsed.retries != 20 || parsed.retryInterval != time.Second {
		t.Errorf("defaults = %+v", parsed)
	}
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"--version"}, strings.NewReader(""), &stdout, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "piper ") {
		t.Errorf("version output = %q", stdout.String())
	}
}
