// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import "github.com/zeebo/blake3"

// domainKey is a BLAKE3 key: the ASCII domain name, zero-padded to 32
// bytes. Changing a key changes every digest in that domain.
type domainKey [32]byte

var (
	inboundDomainKey = domainKey{
		'p', 'i', 'p', 'e', 'r', '.', 'j', 'o', 'u', 'r', 'n', 'a', 'l', '.',
		'i', 'n', 'b', 'o', 'u', 'n', 'd',
	}
	outboundDomainKey = domainKey{
		'p', 'i', 'p', 'e', 'r', '.', 'j', 'o', 'u', 'r', 'n', 'a', 'l', '.',
		'o', 'u', 't', 'b', 'o', 'u', 'n', 'd',
	}
)

// Transcript accumulates byte counts and digests for one session. It
// satisfies bridge.Observer. It is not safe for concurrent use; the
// bridge calls it from a single goroutine.
type Transcript struct {
	inbound  *blake3.Hasher
	outbound *blake3.Hasher

	stdoutBytes int64
	stderrBytes int64
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		inbound:  newKeyedHasher(inboundDomainKey),
		outbound: newKeyedHasher(outboundDomainKey),
	}
}

func newKeyedHasher(key domainKey) *blake3.Hasher {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("journal: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// FromClient records bytes bound for the child's stdin.
func (t *Transcript) FromClient(p []byte) {
	t.inbound.Write(p)
}

// FromChild records bytes read from stdout or stderr.
func (t *Transcript) FromChild(stream string, p []byte) {
	t.outbound.Write(p)
	switch stream {
	case "stdout":
		t.stdoutBytes += int64(len(p))
	case "stderr":
		t.stderrBytes += int64(len(p))
	}
}

// Fill copies the counts and digests into record.
func (t *Transcript) Fill(record *Record) {
	record.StdoutBytes = t.stdoutBytes
	record.StderrBytes = t.stderrBytes
	record.InboundDigest = t.inbound.Sum(nil)
	record.OutboundDigest = t.outbound.Sum(nil)
}

// InboundDigest returns the keyed digest of data as a transcript would
// compute it for client bytes. Tools use it to check a record against
// a captured stream.
func InboundDigest(data []byte) []byte {
	hasher := newKeyedHasher(inboundDomainKey)
	hasher.Write(data)
	return hasher.Sum(nil)
}

// OutboundDigest is InboundDigest for child output.
func OutboundDigest(data []byte) []byte {
	hasher := newKeyedHasher(outboundDomainKey)
	hasher.Write(data)
	return hasher.Sum(nil)
}
