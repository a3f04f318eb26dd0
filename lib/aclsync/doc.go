// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package aclsync grants, revokes, and checks permissions across a
// cluster, and waits for each grant or revoke to reach every node
// before returning.
//
// A [Coordinator] change runs in three steps:
//
//  1. Capture the policy version of every live node. If any node
//     cannot be read, the change is not sent.
//  2. Send Grant or Revoke to the node hosting the ACL table.
//  3. Poll every live node until each version has advanced past its
//     baseline, or the convergence timeout elapses.
//
// The change itself is never retried: a failed Grant or Revoke is
// returned unchanged. Only the observation in step 3 repeats.
//
// Checks go straight to the node that serves the checked table and
// never wait for convergence.
package aclsync
