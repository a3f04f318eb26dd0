// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package converge waits for a change to reach every node of a
// cluster.
//
// The caller captures a [Snapshot] of every node's policy version
// before sending the change, then passes it to [Poller.Await]. Await
// samples the current membership and each member's version once per
// tick and returns when every member's version is strictly greater
// than its baseline. A node that is in the baseline but missing from
// the current sample, or in the sample but missing from the baseline,
// keeps the round from converging: neither case proves the node has
// observed the change.
//
// All waiting goes through a [clock.Clock], so tests drive the poll
// loop with a fake clock and no real sleeps.
package converge
