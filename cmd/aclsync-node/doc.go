// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// aclsync-node serves AccessControlService for one node of an aclsync
// cluster. It holds the node's permission cache, answers grant, revoke,
// check, and version calls on its Unix socket, and pushes every local
// change to the configured peers.
//
// Configuration comes from the file named by --config, or from the path
// in ACLSYNC_CONFIG. When metrics.listen is set the node also serves
// Prometheus metrics over HTTP.
package main
