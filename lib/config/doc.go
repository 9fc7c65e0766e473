// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads piper-server configuration.
//
// Configuration comes from a single file named by the --config flag or
// the PIPER_CONFIG environment variable. There is no search path and no
// ~/.config discovery: without either, the server runs on [Default].
// The file format follows the extension: .yaml and .yml (YAML), .toml
// (TOML), .json and .jsonc (JSON with comments and trailing commas).
// Unknown keys are errors in every format, so a misspelled setting
// fails loudly instead of silently keeping its default.
//
// After loading, ${VAR} and ${VAR:-default} patterns in the listen
// address, the child's directory and environment, and the journal path
// are expanded from the process environment.
//
// [Schema] renders the JSON Schema of the file format. [Watch] follows
// the file with fsnotify and hands every successfully validated
// revision to a callback; [Store] holds the revision that new sessions
// read.
//
// Key exports:
//
//   - [Config] -- the root struct: Listen, Backlog, Session, Child, Journal, Log
//   - [Default] -- the built-in defaults
//   - [Load] and [LoadFile] -- the entry points for loading
//
// This package depends on no other piper packages.
package config
