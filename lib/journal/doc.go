// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records one audit entry per finished session.
//
// A journal file is a sequence of frames. Each frame is a one-byte
// [Compression] tag, a uvarint payload length, and the payload: one
// CBOR-encoded [Record] (Core Deterministic Encoding, via lib/codec),
// compressed with the tagged algorithm. Frames are independent, so
// appending never rewrites earlier data and a journal may mix
// compression settings across server restarts.
//
// [Transcript] is a bridge observer that counts forwarded bytes and
// keeps keyed BLAKE3 digests of both directions, so a record can prove
// what was exchanged without storing it.
package journal
