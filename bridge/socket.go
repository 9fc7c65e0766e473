// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package bridge

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// socket performs non-blocking reads and writes on a connection's
// descriptor, leaving readiness to the bridge's own poll. The Go
// runtime already keeps the descriptor in non-blocking mode.
type socket struct {
	raw syscall.RawConn
	fd  int
}

func newSocket(connection net.Conn) (*socket, error) {
	syscallConn, ok := connection.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("bridge: %T does not expose its descriptor", connection)
	}
	raw, err := syscallConn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	fd := -1
	if err := raw.Control(func(descriptor uintptr) { fd = int(descriptor) }); err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return &socket{raw: raw, fd: fd}, nil
}

// read returns 0, nil at end-of-stream and unix.EAGAIN when poll's
// readiness turned out to be spurious.
func (s *socket) read(p []byte) (int, error) {
	var n int
	var readErr error
	err := s.raw.Read(func(descriptor uintptr) bool {
		n, readErr = ignoringInterrupts(func() (int, error) { return unix.Read(int(descriptor), p) })
		return true
	})
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, readErr
}

func (s *socket) write(p []byte) (int, error) {
	var n int
	var writeErr error
	err := s.raw.Write(func(descriptor uintptr) bool {
		n, writeErr = ignoringInterrupts(func() (int, error) { return unix.Write(int(descriptor), p) })
		return true
	})
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, writeErr
}

func ignoringInterrupts(call func() (int, error)) (int, error) {
	for {
		n, err := call()
		if err != unix.EINTR {
			return n, err
		}
	}
}
