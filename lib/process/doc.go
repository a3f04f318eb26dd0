// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for aclsync
// binaries. It centralizes the raw I/O that happens before or after
// the structured logger exists:
//
//   - Fatal error reporting to stderr from main().
//   - Construction of the process logger from a --log-level flag.
package process
