// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package acl holds the permission model, the node-local policy store,
// and the AccessControlService endpoint every node serves.
//
// A [Store] is the node's cached view of the cluster policy. Its
// version increases on every local mutation and on every refresh
// pushed by a peer, so a client that watches versions can tell when a
// change has reached a node without reading the policy itself.
//
// The node hosting the ACL table accepts Grant and Revoke, applies them
// to its own store, and hands the new snapshot to its [Propagator],
// which pushes it to every peer through the Refresh method. Peers
// replace their store contents with the snapshot and bump their own
// version.
//
// Permission checks always evaluate the calling principal: a call to
// CheckPermissions made on behalf of alice answers whether alice holds
// the listed permissions.
package acl
