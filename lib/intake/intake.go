// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultMaxCommandBytes bounds the command line, terminator included.
const DefaultMaxCommandBytes = 16384

var (
	// ErrEmptyCommand is returned for a command line with no tokens.
	ErrEmptyCommand = errors.New("empty command")

	// ErrLineTooLong is returned when no terminator arrives within the
	// configured bound.
	ErrLineTooLong = errors.New("command line too long")
)

// Command is a tokenized command line.
type Command struct {
	// Argv is the argument vector; Argv[0] names the executable.
	Argv []string
}

// Path returns the executable token.
func (c Command) Path() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// String joins the argument vector with single spaces, for logging.
func (c Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Greeting returns the bytes the server sends on accept: the 24-byte
// ctime rendering of connected, '\n', NUL.
func Greeting(connected time.Time) []byte {
	line := connected.Format(time.ANSIC)
	greeting := make([]byte, 0, len(line)+2)
	greeting = append(greeting, line...)
	return append(greeting, '\n', 0)
}

// Tokenize splits line on whitespace (spaces, tabs, CR, LF).
func Tokenize(line string) (Command, error) {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{Argv: argv}, nil
}

// ReadCommand reads one command line from r and tokenizes it.
//
// The line ends at the first '\n'. If r reaches EOF first, whatever was
// read is treated as the line; EOF with nothing read is returned as
// io.EOF. A line longer than limit bytes (limit <= 0 means
// DefaultMaxCommandBytes) fails with ErrLineTooLong.
//
// pending holds bytes that were read past the terminator. They belong
// to the byte stream that follows the handshake.
func ReadCommand(r io.Reader, limit int) (command Command, pending []byte, err error) {
	if limit <= 0 {
		limit = DefaultMaxCommandBytes
	}
	reader := bufio.NewReaderSize(r, limit)

	line, err := reader.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return Command{}, nil, fmt.Errorf("%w (limit %d bytes)", ErrLineTooLong, limit)
	case errors.Is(err, io.EOF):
		if len(line) == 0 {
			return Command{}, nil, io.EOF
		}
	case err != nil:
		return Command{}, nil, fmt.Errorf("reading command line: %w", err)
	}

	command, err = Tokenize(string(line))
	if err != nil {
		return Command{}, nil, err
	}

	if buffered := reader.Buffered(); buffered > 0 {
		peeked, _ := reader.Peek(buffered)
		pending = append([]byte(nil), peeked...)
	}
	return command, pending, nil
}
