// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// aclsync is the operator CLI for an aclsync cluster.
//
//	aclsync grant --principal alice --table ns:t1 READ WRITE
//	aclsync revoke --principal @ops --namespace ns READ
//	aclsync check --principal alice --table ns:t1 READ
//	aclsync versions
//
// grant and revoke return only after every live node reports a policy
// version newer than before the change, or fail with a convergence
// timeout naming the nodes that lag. check asks the node serving the
// table once and exits non-zero on a denial. versions prints each
// node's version and policy digest and exits non-zero when the digests
// differ.
//
// Calls are made as --user (default $USER). The cluster layout comes
// from the same aclsync.yaml the nodes use.
package main
