// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import "time"

// Record is the journal entry for one session. Sessions rejected before
// a child was spawned have no Pid and carry the rejection in Error.
type Record struct {
	SessionID  string    `cbor:"session_id" json:"session_id"`
	RemoteAddr string    `cbor:"remote_addr" json:"remote_addr"`
	Argv       []string  `cbor:"argv,omitempty" json:"argv,omitempty"`
	Pid        int       `cbor:"pid,omitempty" json:"pid,omitempty"`
	Started    time.Time `cbor:"started" json:"started"`
	Ended      time.Time `cbor:"ended" json:"ended"`

	BytesIn     int64 `cbor:"bytes_in" json:"bytes_in"`
	BytesOut    int64 `cbor:"bytes_out" json:"bytes_out"`
	StdoutBytes int64 `cbor:"stdout_bytes" json:"stdout_bytes"`
	StderrBytes int64 `cbor:"stderr_bytes" json:"stderr_bytes"`

	// InboundDigest and OutboundDigest are keyed BLAKE3 digests of the
	// bytes received from the client and the bytes read from the
	// child, in forwarding order.
	InboundDigest  []byte `cbor:"inbound_blake3,omitempty" json:"inbound_blake3,omitempty"`
	OutboundDigest []byte `cbor:"outbound_blake3,omitempty" json:"outbound_blake3,omitempty"`

	// EndReason is the bridge's reason for returning.
	EndReason string `cbor:"end_reason,omitempty" json:"end_reason,omitempty"`

	// ExitCode is -1 when the child was killed by a signal.
	ExitCode    int    `cbor:"exit_code" json:"exit_code"`
	Signal      string `cbor:"signal,omitempty" json:"signal,omitempty"`
	Termination string `cbor:"termination,omitempty" json:"termination,omitempty"`

	Error string `cbor:"error,omitempty" json:"error,omitempty"`
}

// Duration is how long the session lasted.
func (r Record) Duration() time.Duration {
	return r.Ended.Sub(r.Started)
}
