// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acl

import (
	"context"
	"testing"

	"github.com/bureau-foundation/aclsync/lib/codec"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/service"
)

func TestDigestFollowsContentNotVersion(t *testing.T) {
	source := NewStore(StoreOptions{Node: "digest-source"})
	source.Grant("alice", GlobalScope(), []Action{Read})
	source.Grant("bob", TableScope("t1", "", ""), []Action{Write})
	source.Grant("bob", TableScope("t1", "", ""), []Action{Write})

	replica := NewStore(StoreOptions{Node: "digest-replica"})
	replica.Grant("bob", TableScope("t1", "", ""), []Action{Write})
	replica.Grant("alice", GlobalScope(), []Action{Read})

	sourceDigest, sourceVersion := source.Digest()
	replicaDigest, replicaVersion := replica.Digest()
	if sourceVersion == replicaVersion {
		t.Fatalf("versions both %d; the test needs them to differ", sourceVersion)
	}
	if sourceDigest != replicaDigest {
		t.Errorf("same entries, different digests: %s vs %s", sourceDigest, replicaDigest)
	}

	replica.Revoke("alice", GlobalScope(), []Action{Read})
	if changed, _ := replica.Digest(); changed == sourceDigest {
		t.Error("digest did not change after revoke")
	}

	empty, _ := NewStore(StoreOptions{Node: "digest-empty"}).Digest()
	if empty.IsZero() {
		t.Error("empty store has the zero digest")
	}
	if len(empty.Short()) != 12 || len(empty.String()) != 64 {
		t.Errorf("digest text %q / %q", empty.Short(), empty.String())
	}
}

func TestPolicyVerifySurvivesWire(t *testing.T) {
	store := NewStore(StoreOptions{Node: "digest-wire"})
	store.Grant("alice", NamespaceScope("ns1"), []Action{Read, Create})
	policy := store.Snapshot()

	data, err := codec.Marshal(policy)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Policy
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := decoded.Verify(); err != nil {
		t.Fatalf("Verify after decode: %v", err)
	}
	if got := setOf(decoded.Entries[0].Actions); got != setOf([]Action{Read, Create}) {
		t.Errorf("decoded actions = %v", decoded.Entries[0].Actions)
	}

	decoded.Entries[0].Actions = []Action{Admin}
	if err := decoded.Verify(); err == nil {
		t.Error("Verify accepted tampered entries")
	}

	var empty Policy
	if err := empty.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := empty.Verify(); err != nil {
		t.Errorf("Verify(empty sealed): %v", err)
	}
}

func TestEndpointRejectsCorruptSnapshot(t *testing.T) {
	node := newTestNode(t)
	ctx := context.Background()
	policy := Policy{Version: 3, Entries: []Entry{{Principal: "alice", Scope: GlobalScope(), Actions: []Action{Admin}}}}

	_, err := service.Call[Policy, RefreshResponse](ctx, node.as(NodePrincipal("node0")), "node1", RefreshMethod, nil, &policy)
	if fault.KindOf(err) != fault.Malformed {
		t.Fatalf("unsealed Refresh: kind %v (%v), want malformed", fault.KindOf(err), err)
	}
	if node.store.Version() != 0 {
		t.Errorf("corrupt snapshot changed the store to version %d", node.store.Version())
	}
}

func TestEndpointGetVersionReportsDigest(t *testing.T) {
	node := newTestNode(t)
	node.store.Grant("alice", GlobalScope(), []Action{Read})

	response, err := service.Call[struct{}, VersionResponse](context.Background(), node.as("anyone"), "node1", GetVersionMethod, nil, nil)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	want, _ := node.store.Digest()
	if response.Digest != want {
		t.Errorf("digest = %s, want %s", response.Digest, want)
	}
}
