// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sys/unix"
)

// DefaultChunkSize bounds every single read, from the connection or
// from a child pipe.
const DefaultChunkSize = 16384

// Reason says why [Bridge.Run] returned.
type Reason int

const (
	// PeerClosed: the client disconnected, or a write to it failed.
	PeerClosed Reason = iota
	// ChildClosed: stdout and stderr both reached end-of-stream and
	// everything read from them was delivered.
	ChildClosed
	// Interrupted: the context was cancelled.
	Interrupted
)

func (r Reason) String() string {
	switch r {
	case PeerClosed:
		return "peer-closed"
	case ChildClosed:
		return "child-closed"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Stream is one of the child's pipe ends, as held by the server.
// spawn.Pipe is the implementation used outside tests.
type Stream interface {
	Name() string
	Fd() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Observer sees every chunk the bridge forwards. Calls happen on the
// bridge goroutine and p must not be retained.
type Observer interface {
	// FromClient receives bytes read from the connection and bound for
	// the child's stdin.
	FromClient(p []byte)

	// FromChild receives bytes read from the named output stream and
	// bound for the connection.
	FromChild(stream string, p []byte)
}

// Result summarizes one bridge run.
type Result struct {
	Reason Reason

	// BytesIn counts bytes received from the client, including
	// Pending.
	BytesIn int64

	// BytesOut counts bytes delivered to the client.
	BytesOut int64

	// StdinClosed is set when the child stopped accepting input before
	// the loop ended.
	StdinClosed bool
}

// Bridge connects one client connection to one child's streams.
type Bridge struct {
	// Conn is the client connection. It must implement syscall.Conn,
	// as *net.TCPConn and *net.UnixConn do.
	Conn net.Conn

	Stdin  Stream
	Stdout Stream
	Stderr Stream

	// Pending holds bytes the client sent before the loop started. They
	// are the first bytes written to stdin.
	Pending []byte

	// ChunkSize bounds each read. Zero means DefaultChunkSize.
	ChunkSize int

	// HighWater is the queue depth at which the feeding side stops
	// being read. Zero means four chunks.
	HighWater int

	Observer Observer

	// Logger receives per-stream events at Debug level. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Bridge) chunkSize() int {
	if b.ChunkSize > 0 {
		return b.ChunkSize
	}
	return DefaultChunkSize
}

func (b *Bridge) highWater() int {
	if b.HighWater > 0 {
		return b.HighWater
	}
	return 4 * b.chunkSize()
}

// output is the per-stream state of stdout or stderr.
type output struct {
	stream Stream
	open   bool
	slot   int
}

// Run forwards bytes until one of the end conditions described in the
// package documentation holds. The returned error reports a failure of
// the loop itself (poll failing, an unusable connection); the Result
// is meaningful either way.
func (b *Bridge) Run(ctx context.Context) (Result, error) {
	var result Result
	if b.Conn == nil || b.Stdin == nil || b.Stdout == nil || b.Stderr == nil {
		return result, errors.New("bridge: Conn, Stdin, Stdout and Stderr are required")
	}

	client, err := newSocket(b.Conn)
	if err != nil {
		return result, err
	}

	waker, err := newWaker()
	if err != nil {
		return result, err
	}
	defer waker.close()
	stopWake := context.AfterFunc(ctx, waker.wake)
	defer stopWake()

	logger := b.logger()
	chunk := make([]byte, b.chunkSize())
	toClient := &queue{highWater: b.highWater()}
	toChild := &queue{highWater: b.highWater()}
	stdinOpen := true

	if len(b.Pending) > 0 {
		toChild.push(b.Pending)
		result.BytesIn += int64(len(b.Pending))
		b.observeClient(b.Pending)
	}

	outputs := []*output{
		{stream: b.Stdout, open: true},
		{stream: b.Stderr, open: true},
	}

	pollFds := make([]unix.PollFd, 0, 5)
	for {
		if ctx.Err() != nil {
			result.Reason = Interrupted
			return result, nil
		}

		childDone := !outputs[0].open && !outputs[1].open
		if childDone && toClient.len() == 0 {
			result.Reason = ChildClosed
			return result, nil
		}

		pollFds = pollFds[:0]
		pollFds = append(pollFds, unix.PollFd{Fd: int32(waker.fd()), Events: unix.POLLIN})

		for _, out := range outputs {
			out.slot = -1
			if out.open && !toClient.full() {
				out.slot = len(pollFds)
				pollFds = append(pollFds, unix.PollFd{Fd: int32(out.stream.Fd()), Events: unix.POLLIN})
			}
		}

		// Once the child is done the loop only drains toClient; client
		// input has nowhere useful to go.
		readClient := !childDone && !toChild.full()
		var clientEvents int16
		if readClient {
			clientEvents |= unix.POLLIN
		}
		if toClient.len() > 0 {
			clientEvents |= unix.POLLOUT
		}
		clientSlot := len(pollFds)
		pollFds = append(pollFds, unix.PollFd{Fd: int32(client.fd), Events: clientEvents})

		stdinSlot := -1
		if stdinOpen && toChild.len() > 0 {
			stdinSlot = len(pollFds)
			pollFds = append(pollFds, unix.PollFd{Fd: int32(b.Stdin.Fd()), Events: unix.POLLOUT})
		}

		if err := poll(pollFds); err != nil {
			return result, err
		}
		for _, descriptor := range pollFds {
			if descriptor.Revents&unix.POLLNVAL != 0 {
				return result, fmt.Errorf("bridge: descriptor %d is not open", descriptor.Fd)
			}
		}

		if pollFds[0].Revents != 0 {
			result.Reason = Interrupted
			return result, nil
		}

		for _, out := range outputs {
			if out.slot < 0 || pollFds[out.slot].Revents == 0 {
				continue
			}
			n, err := out.stream.Read(chunk)
			if n > 0 {
				toClient.push(chunk[:n])
				b.observeChild(out.stream.Name(), chunk[:n])
			}
			switch {
			case err == nil:
			case err == io.EOF:
				out.open = false
				logger.Debug("child stream closed", "stream", out.stream.Name())
			case errors.Is(err, unix.EAGAIN):
			default:
				out.open = false
				logger.Warn("reading child stream failed", "stream", out.stream.Name(), "error", err)
			}
		}

		clientReady := pollFds[clientSlot].Revents
		if clientReady != 0 && toClient.len() > 0 {
			n, err := client.write(toClient.data)
			if n > 0 {
				toClient.consume(n)
				result.BytesOut += int64(n)
			}
			if err != nil && !errors.Is(err, unix.EAGAIN) {
				logger.Debug("writing to client failed", "error", err)
				result.Reason = PeerClosed
				return result, nil
			}
		}
		if clientReady != 0 && readClient {
			n, err := client.read(chunk)
			switch {
			case errors.Is(err, unix.EAGAIN):
			case err != nil:
				logger.Debug("reading from client failed", "error", err)
				result.Reason = PeerClosed
				return result, nil
			case n == 0:
				result.Reason = PeerClosed
				return result, nil
			default:
				result.BytesIn += int64(n)
				b.observeClient(chunk[:n])
				if stdinOpen {
					toChild.push(chunk[:n])
				}
			}
		} else if clientReady&(unix.POLLHUP|unix.POLLERR) != 0 && toClient.len() == 0 {
			// Nothing left to write and not reading: a hangup here has
			// no data behind it to drain.
			result.Reason = PeerClosed
			return result, nil
		}

		if stdinSlot >= 0 && pollFds[stdinSlot].Revents != 0 {
			n, err := b.Stdin.Write(toChild.data)
			if n > 0 {
				toChild.consume(n)
			}
			if err != nil && !errors.Is(err, unix.EAGAIN) {
				if !errors.Is(err, unix.EPIPE) {
					logger.Warn("writing child stdin failed", "error", err)
				}
				logger.Debug("child stopped reading stdin", "dropped_bytes", toChild.len())
				stdinOpen = false
				result.StdinClosed = true
				toChild.reset()
			}
		}
	}
}

func (b *Bridge) observeClient(p []byte) {
	if b.Observer != nil {
		b.Observer.FromClient(p)
	}
}

func (b *Bridge) observeChild(stream string, p []byte) {
	if b.Observer != nil {
		b.Observer.FromChild(stream, p)
	}
}

// poll blocks until at least one descriptor is ready, retrying when a
// signal interrupts the wait.
func poll(fds []unix.PollFd) error {
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return nil
		}
		if err != unix.EINTR {
			return fmt.Errorf("bridge: poll: %w", err)
		}
	}
}
