// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is piper's single CBOR configuration. The session
// journal is the only CBOR producer; routing it through one encoder mode
// keeps records byte-identical for identical sessions, which is what
// lets journal digests be compared across hosts.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. Time
// values encode as RFC 3339 strings with nanoseconds.
//
//	data, err := codec.Marshal(record)
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(reader)
//
// Types that are only ever CBOR use `cbor` struct tags.
package codec
