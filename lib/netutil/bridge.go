// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
	"net"
)

// pumpResult holds the outcome of one direction of a Pump.
type pumpResult struct {
	outbound    bool
	bytesCopied int64
	err         error
}

// halfCloser is implemented by *net.TCPConn and *net.UnixConn.
type halfCloser interface {
	CloseWrite() error
}

// Pump copies local input to the connection and the connection's data to
// local output until the remote side closes.
//
// When input reaches EOF and halfClose is set, the connection's write
// side is shut down (CloseWrite). Either way Pump keeps delivering
// remote data, so a remote program still flushing output is not cut
// off. Without halfClose the remote side sees nothing at input EOF,
// for peers that treat a shutdown as a full disconnect.
// When the remote side closes, Pump closes the connection and returns
// without waiting for input, which may be blocked on a terminal read
// that will never complete.
//
// Returns the byte counts for each direction and the first unexpected
// error; normal closure (see IsExpectedCloseError) returns nil.
func Pump(connection net.Conn, input io.Reader, output io.Writer, halfClose bool) (sent, received int64, err error) {
	done := make(chan pumpResult, 2)

	go func() {
		bytesCopied, copyErr := io.Copy(connection, input)
		if closer, ok := connection.(halfCloser); ok && halfClose && copyErr == nil {
			copyErr = closer.CloseWrite()
		}
		done <- pumpResult{outbound: true, bytesCopied: bytesCopied, err: copyErr}
	}()

	go func() {
		bytesCopied, copyErr := io.Copy(output, connection)
		done <- pumpResult{outbound: false, bytesCopied: bytesCopied, err: copyErr}
	}()

	var firstErr error
	for {
		result := <-done
		if result.err != nil && !IsExpectedCloseError(result.err) && firstErr == nil {
			firstErr = result.err
		}
		if result.outbound {
			sent = result.bytesCopied
			if result.err != nil {
				// Writing failed, so the connection is unusable in both
				// directions.
				connection.Close()
			}
			continue
		}
		received = result.bytesCopied
		connection.Close()
		return sent, received, firstErr
	}
}
