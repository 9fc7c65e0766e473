// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/xid"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/piper/bridge"
	"github.com/bureau-foundation/piper/lib/clock"
	"github.com/bureau-foundation/piper/lib/config"
	"github.com/bureau-foundation/piper/lib/intake"
	"github.com/bureau-foundation/piper/lib/journal"
	"github.com/bureau-foundation/piper/lib/netutil"
	"github.com/bureau-foundation/piper/lib/reaper"
	"github.com/bureau-foundation/piper/lib/spawn"
)

// Recorder receives one record per finished session. *journal.Writer
// implements it.
type Recorder interface {
	Append(record journal.Record) error
}

// Handler serves sessions. The zero value is usable: it runs on
// config.Default, the real clock and slog.Default, and keeps no
// journal.
type Handler struct {
	// Store supplies the configuration each session starts from.
	Store *config.Store

	// Clock stamps the greeting and the record, and times the grace
	// interval of the reaper.
	Clock clock.Clock

	// Journal, if set, receives a record for every session, including
	// rejected ones.
	Journal Recorder

	Logger *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) clock() clock.Clock {
	if h.Clock != nil {
		return h.Clock
	}
	return clock.Real()
}

func (h *Handler) config() *config.Config {
	if h.Store != nil {
		if current := h.Store.Load(); current != nil {
			return current
		}
	}
	return config.Default()
}

// errInterrupted marks a session cut short by server shutdown.
var errInterrupted = errors.New("interrupted by server shutdown")

// Serve runs one session on connection and returns its record. It
// always closes connection. Cancelling ctx ends the session promptly:
// intake is aborted, or the bridge returns and the child is reaped.
func (h *Handler) Serve(ctx context.Context, connection net.Conn) journal.Record {
	defer connection.Close()

	cfg := h.config()
	now := h.clock()
	record := journal.Record{
		SessionID:  xid.New().String(),
		RemoteAddr: connection.RemoteAddr().String(),
		Started:    now.Now(),
		ExitCode:   -1,
	}
	logger := h.logger().With(
		"session_id", record.SessionID,
		"remote_addr", record.RemoteAddr,
	)
	logger.Info("session started")

	h.run(ctx, connection, cfg, &record, logger)

	record.Ended = now.Now()
	if h.Journal != nil {
		if err := h.Journal.Append(record); err != nil {
			logger.Error("writing journal record failed", "error", err)
		}
	}
	return record
}

// run does the work of Serve and fills record as it goes.
func (h *Handler) run(ctx context.Context, connection net.Conn, cfg *config.Config, record *journal.Record, logger *slog.Logger) {
	if _, err := connection.Write(intake.Greeting(record.Started)); err != nil {
		record.Error = fmt.Sprintf("sending greeting: %v", err)
		logFailure(logger, "sending greeting failed", err)
		return
	}

	command, pending, err := h.readCommand(ctx, connection, cfg)
	if err != nil {
		record.Error = err.Error()
		switch {
		case errors.Is(err, io.EOF):
			logger.Debug("client left before sending a command")
		case errors.Is(err, errInterrupted):
			logger.Info("session interrupted during intake")
		default:
			logger.Info("command rejected", "error", err)
			reject(connection, err, logger)
		}
		return
	}
	record.Argv = command.Argv
	logger = logger.With("command", command.String())

	child, err := spawn.Spawn(command.Argv, spawn.Options{
		Env:     cfg.ChildEnv(),
		Dir:     cfg.Child.Dir,
		Setpgid: cfg.Child.Setpgid,
	})
	if child == nil {
		record.Error = err.Error()
		logger.Info("spawn failed", "error", err)
		reject(connection, err, logger)
		return
	}
	record.Pid = child.Pid
	logger = logger.With("pid", child.Pid)

	var reason bridge.Reason
	if err != nil {
		// The child exists but cannot be bridged safely.
		record.Error = err.Error()
		logger.Error("preparing child failed", "error", err)
		reject(connection, err, logger)
	} else {
		logger.Info("child started", "path", child.Path)
		reason = h.forward(ctx, connection, child, pending, cfg, record, logger)
	}

	// The client is released before termination escalates.
	connection.Close()
	if err := child.ClosePipes(); err != nil {
		logger.Warn("closing child pipes failed", "error", err)
	}

	collector := &reaper.Reaper{
		Grace:  cfg.Child.Grace.Std(),
		Clock:  h.clock(),
		Logger: logger,
	}
	if reason == bridge.ChildClosed {
		// Both output streams reached EOF, which a child usually does
		// while exiting; it must not be signalled mid-exit.
		collector.Settle = reaper.DefaultSettle
	}
	status, err := collector.Reap(child)
	if err != nil {
		logger.Error("reaping child failed", "error", err)
		if record.Error == "" {
			record.Error = err.Error()
		}
	}
	record.ExitCode = status.Code
	if status.Signal != 0 {
		record.Signal = unix.SignalName(status.Signal)
	}
	record.Termination = status.Step.String()

	logger.Info("session finished",
		"end_reason", record.EndReason,
		"status", status.String(),
		"bytes_in", humanize.Bytes(uint64(record.BytesIn)),
		"bytes_out", humanize.Bytes(uint64(record.BytesOut)),
		"duration", h.clock().Now().Sub(record.Started).Round(time.Millisecond),
	)
}

// readCommand reads the command line, honouring the intake timeout and
// server shutdown.
func (h *Handler) readCommand(ctx context.Context, connection net.Conn, cfg *config.Config) (intake.Command, []byte, error) {
	if timeout := cfg.Session.IntakeTimeout.Std(); timeout > 0 {
		connection.SetReadDeadline(time.Now().Add(timeout))
	}
	// A deadline in the past unblocks the pending read.
	stop := context.AfterFunc(ctx, func() {
		connection.SetReadDeadline(time.Unix(1, 0))
	})
	command, pending, err := intake.ReadCommand(connection, cfg.Session.MaxCommandBytes)
	stop()
	connection.SetReadDeadline(time.Time{})

	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		if ctx.Err() != nil {
			return intake.Command{}, nil, errInterrupted
		}
		return intake.Command{}, nil, fmt.Errorf("timed out waiting for command line")
	}
	return command, pending, err
}

// forward runs the I/O loop, records its outcome and returns why it
// ended.
func (h *Handler) forward(ctx context.Context, connection net.Conn, child *spawn.Child, pending []byte, cfg *config.Config, record *journal.Record, logger *slog.Logger) bridge.Reason {
	transcript := journal.NewTranscript()
	child.SetState(spawn.Running)

	loop := &bridge.Bridge{
		Conn:      connection,
		Stdin:     child.Stdin,
		Stdout:    child.Stdout,
		Stderr:    child.Stderr,
		Pending:   pending,
		ChunkSize: cfg.Session.ChunkSize,
		HighWater: cfg.Session.HighWater,
		Observer:  transcript,
		Logger:    logger,
	}
	result, err := loop.Run(ctx)
	if err != nil {
		logger.Error("bridge failed", "error", err)
		record.Error = err.Error()
	}

	record.EndReason = result.Reason.String()
	record.BytesIn = result.BytesIn
	record.BytesOut = result.BytesOut
	transcript.Fill(record)
	logger.Debug("bridge returned", "reason", result.Reason, "stdin_closed", result.StdinClosed)
	return result.Reason
}

// rejectLinger bounds how long a rejected client's unread input is
// drained after the diagnostic.
const rejectLinger = 250 * time.Millisecond

// reject sends the one-line diagnostic a client gets when its session
// cannot start. Closing with unread input would reset the connection and
// could destroy the diagnostic in flight, so the write side is shut down
// first and pending input drained for a moment.
func reject(connection net.Conn, reason error, logger *slog.Logger) {
	connection.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := fmt.Fprintf(connection, "error: %v\n", reason); err != nil {
		logFailure(logger, "sending diagnostic failed", err)
		return
	}
	halfCloser, ok := connection.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := halfCloser.CloseWrite(); err != nil {
		return
	}
	connection.SetReadDeadline(time.Now().Add(rejectLinger))
	io.Copy(io.Discard, connection)
}

// logFailure logs err at Debug when it is an ordinary disconnect and at
// Warn otherwise.
func logFailure(logger *slog.Logger, message string, err error) {
	if netutil.IsExpectedCloseError(err) {
		logger.Debug(message, "error", err)
		return
	}
	logger.Warn(message, "error", err)
}
