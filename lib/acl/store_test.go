// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acl

import (
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/aclsync/lib/metrics"
)

func TestStoreGrantCheckRevoke(t *testing.T) {
	store := NewStore(StoreOptions{Node: "store-grant"})
	table := TableScope("ns:t", "", "")

	missing := store.Check("alice", table, []Action{Read, Write})
	if !reflect.DeepEqual(missing, []Action{Read, Write}) {
		t.Fatalf("missing before grant = %v", missing)
	}

	if version := store.Grant("alice", table, []Action{Read}); version != 1 {
		t.Errorf("version after grant = %d, want 1", version)
	}
	missing = store.Check("alice", table, []Action{Read, Write})
	if !reflect.DeepEqual(missing, []Action{Write}) {
		t.Errorf("missing after read grant = %v, want [WRITE]", missing)
	}
	if missing := store.Check("alice", TableScope("ns:t", "f", "q"), []Action{Read}); missing != nil {
		t.Errorf("table grant did not cover qualifier: missing %v", missing)
	}

	if version := store.Revoke("alice", table, []Action{Read}); version != 2 {
		t.Errorf("version after revoke = %d, want 2", version)
	}
	if missing := store.Check("alice", table, []Action{Read}); len(missing) != 1 {
		t.Errorf("read still held after revoke")
	}
	if entries := store.Permissions("alice"); len(entries) != 0 {
		t.Errorf("entries after full revoke = %v", entries)
	}
}

func TestStoreVersionAlwaysAdvances(t *testing.T) {
	store := NewStore(StoreOptions{Node: "store-advance"})
	store.Grant("alice", GlobalScope(), []Action{Read})
	before := store.Version()

	store.Grant("alice", GlobalScope(), []Action{Read})
	store.Revoke("bob", GlobalScope(), []Action{Write})
	if got := store.Version(); got != before+2 {
		t.Errorf("version = %d, want %d", got, before+2)
	}
	if got := testutil.ToFloat64(metrics.PolicyVersion.WithLabelValues("store-advance")); got != float64(before+2) {
		t.Errorf("policy_version gauge = %v, want %d", got, before+2)
	}
}

func TestStoreNamespaceGrant(t *testing.T) {
	store := NewStore(StoreOptions{})
	store.Grant("alice", NamespaceScope("ns"), []Action{Create})

	if missing := store.Check("alice", TableScope("ns:t", "", ""), []Action{Create}); missing != nil {
		t.Errorf("namespace grant did not cover table: missing %v", missing)
	}
	if missing := store.Check("alice", TableScope("other:t", "", ""), []Action{Create}); missing == nil {
		t.Error("namespace grant leaked to another namespace")
	}
}

func TestStoreSuperusersAndGroups(t *testing.T) {
	store := NewStore(StoreOptions{
		Superusers: []string{"admin", "@ops"},
		Groups: map[string][]string{
			"ops":     {"carol"},
			"readers": {"dave"},
		},
	})
	store.Grant(ConvertToGroup("readers"), TableScope("t", "", ""), []Action{Read})

	for _, principal := range []string{"admin", "carol"} {
		if missing := store.Check(principal, GlobalScope(), AllActions); missing != nil {
			t.Errorf("superuser %s missing %v", principal, missing)
		}
	}
	if missing := store.Check("dave", TableScope("t", "", ""), []Action{Read}); missing != nil {
		t.Errorf("group member missing %v", missing)
	}
	if missing := store.Check("dave", TableScope("t", "", ""), []Action{Write}); len(missing) != 1 {
		t.Errorf("group member gained WRITE")
	}
	if missing := store.Check("erin", TableScope("t", "", ""), []Action{Read}); len(missing) != 1 {
		t.Errorf("non-member gained READ through group")
	}
}

func TestStoreSnapshotReplace(t *testing.T) {
	source := NewStore(StoreOptions{})
	source.Grant("alice", GlobalScope(), []Action{Read, Write})
	source.Grant("bob", NamespaceScope("ns"), []Action{Admin})
	snapshot := source.Snapshot()
	if snapshot.Version != 2 || len(snapshot.Entries) != 2 {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	replica := NewStore(StoreOptions{})
	replica.Grant("stale", GlobalScope(), []Action{Read})

	version, applied := replica.Replace(snapshot)
	if !applied || version != 2 {
		t.Fatalf("Replace = %d, %v; want 2, true", version, applied)
	}
	if missing := replica.Check("stale", GlobalScope(), []Action{Read}); missing == nil {
		t.Error("entry from before the snapshot survived Replace")
	}
	if missing := replica.Check("alice", GlobalScope(), []Action{Read, Write}); missing != nil {
		t.Errorf("replica missing %v for alice", missing)
	}

	// An older or repeated snapshot is ignored without advancing.
	if version, applied := replica.Replace(snapshot); applied || version != 2 {
		t.Errorf("repeated Replace = %d, %v; want 2, false", version, applied)
	}
	older := snapshot
	older.Version = 1
	if _, applied := replica.Replace(older); applied {
		t.Error("older snapshot applied")
	}
}

func TestStoreReplaceAfterSourceRestart(t *testing.T) {
	source := NewStore(StoreOptions{})
	source.Grant("alice", GlobalScope(), []Action{Read})
	source.Grant("alice", TableScope("t1", "", ""), []Action{Write})
	source.Grant("carol", NamespaceScope("ns"), []Action{Create})

	replica := NewStore(StoreOptions{})
	if _, applied := replica.Replace(source.Snapshot()); !applied {
		t.Fatal("first snapshot not applied")
	}

	// The restarted source counts versions from zero again, so its
	// first snapshot carries a lower version than the one applied.
	source = NewStore(StoreOptions{})
	source.Grant("bob", GlobalScope(), []Action{Write})
	restarted := source.Snapshot()
	if restarted.Version != 1 {
		t.Fatalf("restarted snapshot version = %d, want 1", restarted.Version)
	}

	if _, applied := replica.Replace(restarted); !applied {
		t.Fatal("snapshot from the restarted source was dropped")
	}
	if missing := replica.Check("bob", GlobalScope(), []Action{Write}); missing != nil {
		t.Errorf("replica missing %v for bob", missing)
	}
	if missing := replica.Check("alice", GlobalScope(), []Action{Read}); missing == nil {
		t.Error("alice's grant from the old source survived")
	}

	// Within the new epoch, ordering is enforced again.
	if _, applied := replica.Replace(restarted); applied {
		t.Error("repeated snapshot from the restarted source applied")
	}
}
