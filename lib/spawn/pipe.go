// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package spawn

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// Direction tags a pipe end with the way bytes flow through it from the
// holder's point of view.
type Direction int

const (
	// Read ends receive bytes.
	Read Direction = iota
	// Write ends send bytes.
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Pipe is one pipe end retained by the server. It is not safe for
// concurrent use; the session that owns the child is its only user.
type Pipe struct {
	name      string
	fd        int
	direction Direction
}

func newPipe(name string, fd int, direction Direction) *Pipe {
	return &Pipe{name: name, fd: fd, direction: direction}
}

// Name identifies the stream ("stdin", "stdout", "stderr").
func (p *Pipe) Name() string { return p.name }

// Direction reports whether this end is read or written.
func (p *Pipe) Direction() Direction { return p.direction }

// Fd returns the descriptor, or -1 once closed.
func (p *Pipe) Fd() int { return p.fd }

// Read reads up to len(b) bytes. It returns io.EOF when the writing side
// has closed and the pipe is drained.
func (p *Pipe) Read(b []byte) (int, error) {
	if p.fd < 0 {
		return 0, fmt.Errorf("%s: %w", p.name, io.ErrClosedPipe)
	}
	for {
		n, err := unix.Read(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 && len(b) > 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write writes b once. The stdin end is non-blocking, so a full pipe
// yields a short count or unix.EAGAIN; a child that closed its stdin
// yields unix.EPIPE.
func (p *Pipe) Write(b []byte) (int, error) {
	if p.fd < 0 {
		return 0, fmt.Errorf("%s: %w", p.name, io.ErrClosedPipe)
	}
	for {
		n, err := unix.Write(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Close releases the descriptor. Closing twice is a no-op.
func (p *Pipe) Close() error {
	if p == nil || p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	if err != nil {
		return fmt.Errorf("closing %s pipe: %w", p.name, err)
	}
	return nil
}

// pipePair is a freshly created pipe: [0] is the read end, [1] the write
// end. Both are close-on-exec.
type pipePair [2]int

func newPipePair() (pipePair, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return pipePair{-1, -1}, err
	}
	return pipePair(fds), nil
}

func closeFd(fd int) {
	if fd >= 0 {
		_ = unix.Close(fd)
	}
}
