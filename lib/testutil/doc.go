// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] and [SocketPath] create short temporary paths in /tmp
// for Unix domain sockets, which are limited to 108 bytes.
//
// [RequireReceive] and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. These are
// the only place in the test suite where real wall-clock timeouts are
// used; everything else runs on a fake clock. [RequirePending] is the
// non-blocking counterpart for asserting that a fake-clock operation
// has not finished yet.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, for principals and table names that must not
// collide between tests sharing a process.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
