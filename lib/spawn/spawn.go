// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package spawn

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrNoCommand is returned when Spawn is given an empty argument vector.
var ErrNoCommand = errors.New("spawn: no command")

// State is the lifecycle position of a Child.
type State int

const (
	// Spawned: the process exists and its pipes are wired.
	Spawned State = iota
	// Running: the bridge is forwarding its streams.
	Running
	// Terminating: a termination signal has been sent.
	Terminating
	// Reaped: the exit status has been collected; the pid is gone.
	Reaped
)

func (s State) String() string {
	switch s {
	case Spawned:
		return "spawned"
	case Running:
		return "running"
	case Terminating:
		return "terminating"
	case Reaped:
		return "reaped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options controls how the child is started.
type Options struct {
	// Env is the complete environment of the child. Nil means the
	// server's own environment.
	Env []string

	// Dir is the working directory. Empty means the server's.
	Dir string

	// Setpgid places the child in a new process group whose id is the
	// child's pid, so that termination signals can reach its
	// descendants too.
	Setpgid bool
}

// Child is a spawned process and the pipe ends the server keeps. It is
// owned by exactly one session, which is the only code allowed to
// signal or wait on Pid.
type Child struct {
	Pid  int
	Path string
	Argv []string

	// Stdin is the write end of the child's standard input.
	Stdin *Pipe
	// Stdout and Stderr are the read ends of the child's output streams.
	Stdout *Pipe
	Stderr *Pipe

	// Group is true when the child leads its own process group.
	Group bool

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (c *Child) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState records a lifecycle transition.
func (c *Child) SetState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// ClosePipes closes the three server-side pipe ends and returns the
// first error.
func (c *Child) ClosePipes() error {
	return errors.Join(c.Stdin.Close(), c.Stdout.Close(), c.Stderr.Close())
}

// Spawn starts argv[0] with argv as its arguments and its standard
// streams connected to new pipes.
//
// A first token without a slash is looked up in PATH; one with a slash
// is used as given. On failure every descriptor Spawn created is closed.
func Spawn(argv []string, options Options) (*Child, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrNoCommand
	}

	path, err := resolve(argv[0])
	if err != nil {
		return nil, err
	}

	stdin, stdout, stderr, err := allocatePipes()
	if err != nil {
		return nil, err
	}

	env := options.Env
	if env == nil {
		env = os.Environ()
	}

	attributes := &syscall.ProcAttr{
		Dir: options.Dir,
		Env: env,
		Files: []uintptr{
			uintptr(stdin[0]),
			uintptr(stdout[1]),
			uintptr(stderr[1]),
		},
		Sys: &syscall.SysProcAttr{Setpgid: options.Setpgid},
	}

	pid, forkErr := syscall.ForkExec(path, argv, attributes)

	// The child holds its own copies of these now (or never started).
	// Keeping them open here would hide end-of-stream from both sides.
	closeFd(stdin[0])
	closeFd(stdout[1])
	closeFd(stderr[1])

	if forkErr != nil {
		closeFd(stdin[1])
		closeFd(stdout[0])
		closeFd(stderr[0])
		return nil, fmt.Errorf("starting %s: %w", path, forkErr)
	}

	child := &Child{
		Pid:    pid,
		Path:   path,
		Argv:   append([]string(nil), argv...),
		Stdin:  newPipe("stdin", stdin[1], Write),
		Stdout: newPipe("stdout", stdout[0], Read),
		Stderr: newPipe("stderr", stderr[0], Read),
		Group:  options.Setpgid,
		state:  Spawned,
	}

	if err := unix.SetNonblock(stdin[1], true); err != nil {
		// The child is running; the caller must still reap it, so hand
		// it back along with the error.
		return child, fmt.Errorf("setting stdin non-blocking: %w", err)
	}
	return child, nil
}

func resolve(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", name, err)
	}
	return path, nil
}

// allocatePipes creates the stdin, stdout and stderr pipes, closing any
// already created if a later one fails.
func allocatePipes() (stdin, stdout, stderr pipePair, err error) {
	pairs := make([]pipePair, 0, 3)
	for _, name := range []string{"stdin", "stdout", "stderr"} {
		pair, pipeErr := newPipePair()
		if pipeErr != nil {
			for _, created := range pairs {
				closeFd(created[0])
				closeFd(created[1])
			}
			return stdin, stdout, stderr, fmt.Errorf("creating %s pipe: %w", name, pipeErr)
		}
		pairs = append(pairs, pair)
	}
	return pairs[0], pairs[1], pairs[2], nil
}
