// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package bridge

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// waker is a self-pipe that lets another goroutine interrupt a poll.
// wake and close may race; the mutex guarantees wake never writes to a
// descriptor number that close has already released.
type waker struct {
	mu          sync.Mutex
	read, write int
}

func newWaker() (*waker, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, fmt.Errorf("creating wake pipe: %w", err)
	}
	return &waker{read: fds[0], write: fds[1]}, nil
}

func (w *waker) fd() int { return w.read }

func (w *waker) wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.write >= 0 {
		// A full pipe already guarantees a pending wakeup.
		_, _ = unix.Write(w.write, []byte{1})
	}
}

func (w *waker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.read >= 0 {
		_ = unix.Close(w.read)
		w.read = -1
	}
	if w.write >= 0 {
		_ = unix.Close(w.write)
		w.write = -1
	}
}
