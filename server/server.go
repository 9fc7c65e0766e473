// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/bureau-foundation/piper/lib/clock"
	"github.com/bureau-foundation/piper/lib/journal"
)

// DefaultBacklog is the listen queue length when none is configured.
const DefaultBacklog = 10

// acceptRetryDelay is the pause after a transient accept failure.
const acceptRetryDelay = 10 * time.Millisecond

// Handler runs one session to completion. *session.Handler implements
// it.
type Handler interface {
	Serve(ctx context.Context, connection net.Conn) journal.Record
}

// Server accepts connections and serves them one at a time.
type Server struct {
	// ListenAddr is the TCP address to bind (e.g. "0.0.0.0:5000").
	// Ignored when Listener is set.
	ListenAddr string

	// Backlog is the listen queue length. Zero means DefaultBacklog.
	Backlog int

	// Listener, if set, is used instead of binding ListenAddr. This is
	// how a socket-activated listener is passed in.
	Listener net.Listener

	Handler Handler

	// Clock times the pause after a transient accept failure. Nil means
	// the real clock.
	Clock clock.Clock

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Accept failures are logged at Error; lifecycle events at
	// Info.
	Logger *slog.Logger

	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	sessions atomic.Int64

	mu  sync.Mutex
	err error
}

// logger returns the configured logger or the default.
func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) clock() clock.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return clock.Real()
}

// Start binds (or adopts) the listening socket and starts the accept
// loop in the background. It returns once the socket is listening, or
// an error if binding fails.
func (s *Server) Start(ctx context.Context) error {
	if s.Handler == nil {
		return errors.New("server: Handler is required")
	}

	listener := s.Listener
	if listener == nil {
		if s.ListenAddr == "" {
			return errors.New("server: ListenAddr or Listener is required")
		}
		backlog := s.Backlog
		if backlog <= 0 {
			backlog = DefaultBacklog
		}
		bound, err := Listen(s.ListenAddr, backlog)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		listener = bound
	}
	s.listener = listener

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	// Closing the listener is what unblocks Accept on shutdown.
	stopClose := context.AfterFunc(ctx, func() { listener.Close() })

	go func() {
		defer close(s.done)
		defer stopClose()
		defer listener.Close()
		s.acceptLoop(ctx)
	}()

	s.logger().Info("server started",
		"listen_addr", listener.Addr().String(),
		"inherited", s.Listener != nil,
	)
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		s.logger().Warn("notifying systemd failed", "error", err)
	} else if sent {
		s.logger().Debug("notified systemd of readiness")
	}
	return nil
}

// Addr returns the listener's address, useful when binding to port 0.
// Returns nil if the server has not been started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop cancels the accept loop and any session in progress, then waits
// for the loop to exit.
func (s *Server) Stop() {
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	if s.cancel != nil {
		s.cancel()
	}
	s.Wait()
}

// Wait blocks until the accept loop has exited.
func (s *Server) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// Err returns the permanent accept error that stopped the loop, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Sessions returns the number of connections accepted so far.
func (s *Server) Sessions() int64 {
	return s.sessions.Load()
}

// acceptLoop accepts a connection, serves it to completion, and repeats.
// Transient accept failures are retried after a short pause; anything
// else ends the loop.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		connection, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger().Info("server stopped", "sessions", s.sessions.Load())
				return
			}
			if isTransientAcceptError(err) {
				s.logger().Error("accept failed", "error", err)
				s.clock().Sleep(acceptRetryDelay)
				continue
			}
			s.logger().Error("accept failed permanently", "error", err)
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}

		s.sessions.Add(1)
		s.Handler.Serve(ctx, connection)
	}
}

// isTransientAcceptError reports whether an accept failure concerns a
// single connection or a momentary resource shortage rather than the
// listening socket itself.
func isTransientAcceptError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	switch errno {
	case syscall.ECONNABORTED, syscall.EINTR, syscall.EAGAIN, syscall.EPROTO,
		syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM, syscall.EPERM:
		return true
	default:
		return false
	}
}
