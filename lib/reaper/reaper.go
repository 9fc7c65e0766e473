// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package reaper

import (
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/piper/lib/clock"
	"github.com/bureau-foundation/piper/lib/spawn"
)

const (
	// DefaultGrace is how long a child has to exit after SIGTERM.
	DefaultGrace = time.Second

	// DefaultPollInterval is how often the child is re-checked during
	// the settle and grace intervals.
	DefaultPollInterval = 20 * time.Millisecond

	// DefaultSettle suits a child whose output streams have all reached
	// EOF: it closed them on its way out and becomes a zombie shortly.
	DefaultSettle = 500 * time.Millisecond
)

// Step records which stage of the termination sequence ended the child.
type Step int

const (
	// AlreadyExited: the child had exited before any signal was sent.
	AlreadyExited Step = iota
	// Graceful: the child exited within the grace interval after SIGTERM.
	Graceful
	// Forced: the child needed SIGKILL.
	Forced
)

func (s Step) String() string {
	switch s {
	case AlreadyExited:
		return "already-exited"
	case Graceful:
		return "graceful"
	case Forced:
		return "forced"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Status is the collected outcome of one child.
type Status struct {
	Pid int

	// Code is the exit code, or -1 when the child was killed by a signal
	// or its status was unavailable.
	Code int

	// Signal is the terminating signal, or 0 for a normal exit.
	Signal syscall.Signal

	Step Step

	// Unavailable is set when wait4 reported ECHILD: the status had
	// already been collected and Code and Signal carry no information.
	Unavailable bool
}

// Exited reports whether the child terminated through exit rather than
// a signal.
func (s Status) Exited() bool {
	return !s.Unavailable && s.Signal == 0
}

func (s Status) String() string {
	switch {
	case s.Unavailable:
		return fmt.Sprintf("pid %d: status unavailable (%s)", s.Pid, s.Step)
	case s.Signal != 0:
		return fmt.Sprintf("pid %d: killed by %s (%s)", s.Pid, unix.SignalName(s.Signal), s.Step)
	default:
		return fmt.Sprintf("pid %d: exit %d (%s)", s.Pid, s.Code, s.Step)
	}
}

// Reaper terminates and collects children. The zero value uses
// DefaultGrace, the real clock and slog.Default.
type Reaper struct {
	// Grace is the interval between SIGTERM and SIGKILL. Zero means
	// DefaultGrace.
	Grace time.Duration

	// Settle is how long a running child is left alone before SIGTERM,
	// for a child already known to be exiting. Zero sends SIGTERM
	// right away.
	Settle time.Duration

	// PollInterval bounds how long the child goes unchecked during the
	// settle and grace intervals. Zero means DefaultPollInterval.
	PollInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

func (r *Reaper) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Reaper) clock() clock.Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return clock.Real()
}

func (r *Reaper) grace() time.Duration {
	if r.Grace > 0 {
		return r.Grace
	}
	return DefaultGrace
}

func (r *Reaper) pollInterval() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return DefaultPollInterval
}

// Reap ends child and collects its status. It returns only once the pid
// has been waited for, so the child never lingers as a zombie. The
// child's state is Reaped on return, error or not.
func (r *Reaper) Reap(child *spawn.Child) (Status, error) {
	defer child.SetState(spawn.Reaped)
	logger := r.logger().With("pid", child.Pid)

	status, done, err := collect(child.Pid, unix.WNOHANG)
	if err == nil && !done && r.Settle > 0 {
		status, done, err = r.poll(child.Pid, r.Settle)
	}
	if err != nil {
		return status, err
	}
	if done {
		status.Step = AlreadyExited
		logger.Debug("child already exited", "status", status.String())
		return status, nil
	}

	child.SetState(spawn.Terminating)
	if err := signalChild(child, unix.SIGTERM); err != nil {
		logger.Warn("sending SIGTERM failed", "error", err)
	}

	grace := r.grace()
	status, done, err = r.poll(child.Pid, grace)
	if err != nil {
		return status, err
	}
	if done {
		status.Step = Graceful
		logger.Debug("child exited after SIGTERM", "status", status.String())
		return status, nil
	}

	logger.Info("child ignored SIGTERM, sending SIGKILL", "grace", grace)
	if err := signalChild(child, unix.SIGKILL); err != nil {
		logger.Warn("sending SIGKILL failed", "error", err)
	}

	status, _, err = collect(child.Pid, 0)
	if err != nil {
		return status, err
	}
	status.Step = Forced
	return status, nil
}

// poll re-checks pid every PollInterval until it has exited or window
// has passed on the clock.
func (r *Reaper) poll(pid int, window time.Duration) (Status, bool, error) {
	timeSource := r.clock()
	started := timeSource.Now()
	for {
		elapsed := timeSource.Now().Sub(started)
		if elapsed >= window {
			return Status{Pid: pid, Code: -1}, false, nil
		}
		timeSource.Sleep(min(r.pollInterval(), window-elapsed))

		status, done, err := collect(pid, unix.WNOHANG)
		if err != nil || done {
			return status, done, err
		}
	}
}

// collect calls wait4 on pid. done is false only when options includes
// WNOHANG and the child is still running. ECHILD counts as done with an
// unavailable status.
func collect(pid int, options int) (status Status, done bool, err error) {
	status = Status{Pid: pid, Code: -1}
	for {
		var wait unix.WaitStatus
		waited, err := unix.Wait4(pid, &wait, options, nil)
		if err == unix.EINTR {
			continue
		}
		if err == unix.ECHILD {
			status.Unavailable = true
			return status, true, nil
		}
		if err != nil {
			return status, false, fmt.Errorf("waiting for pid %d: %w", pid, err)
		}
		if waited == 0 {
			return status, false, nil
		}
		switch {
		case wait.Exited():
			status.Code = wait.ExitStatus()
		case wait.Signaled():
			status.Signal = wait.Signal()
		default:
			// Stopped or continued; wait4 without WUNTRACED does not
			// report these, so treat the call as not done.
			return status, false, nil
		}
		return status, true, nil
	}
}

// signalChild delivers sig to the child, or to its whole process group
// when it leads one. ESRCH means there is nothing left to signal.
func signalChild(child *spawn.Child, sig unix.Signal) error {
	target := child.Pid
	if child.Group {
		target = -child.Pid
	}
	err := unix.Kill(target, sig)
	if err == unix.ESRCH {
		return nil
	}
	if err != nil {
		return fmt.Errorf("signalling %d with %s: %w", target, unix.SignalName(sig), err)
	}
	return nil
}
