// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for aclsync
// binaries.
//
// [GitCommit], [BuildTime], and [Version] are injected at build time,
// for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/aclsync/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They keep their development defaults in tests and plain builds.
package version
