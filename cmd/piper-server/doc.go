// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Piper-server listens on a TCP port and, for each connection, runs the
// program the client names with its standard streams bridged to the
// connection. Connections are served one at a time. Configuration comes
// from a YAML, TOML or JSONC file (--config or PIPER_CONFIG) with flag
// overrides; --dump-journal and --print-config-schema are offline
// helpers that print and exit.
package main
