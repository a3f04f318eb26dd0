// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aclsync

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/aclsync/lib/acl"
	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/converge"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/service"
	"github.com/bureau-foundation/aclsync/lib/testutil"
	"github.com/bureau-foundation/aclsync/lib/verdict"
)

// startSocketCluster runs n nodes on real Unix sockets with the real
// store, endpoint, and propagator. node1 hosts the ACL table and
// "ns:t1" is served by the last node.
func startSocketCluster(t *testing.T, n int) (*cluster.Directory, []*Node) {
	t.Helper()
	socketDir := testutil.SocketDir(t)

	var peers []cluster.Peer
	for i := 1; i <= n; i++ {
		id := cluster.NodeID(fmt.Sprintf("node%d", i))
		peers = append(peers, cluster.Peer{ID: id, SocketPath: filepath.Join(socketDir, string(id)+".sock")})
	}

	ctx, cancel := context.WithCancel(context.Background())
	var nodes []*Node
	var dones []chan error
	for i, self := range peers {
		others := append(append([]cluster.Peer(nil), peers[:i]...), peers[i+1:]...)
		node := NewNode(NodeConfig{
			ID:         self.ID,
			SocketPath: self.SocketPath,
			Superusers: []string{"admin"},
			Peers:      others,
			Logger:     testLogger(),
		})
		done := make(chan error, 1)
		go func() { done <- node.Run(ctx) }()
		testutil.RequireClosed(t, node.Ready(), 5*time.Second, "node %s ready", self.ID)
		nodes = append(nodes, node)
		dones = append(dones, done)
	}
	t.Cleanup(func() {
		cancel()
		for i, done := range dones {
			if err := testutil.RequireReceive(t, done, 5*time.Second, "node %d shutdown", i+1); err != nil {
				t.Errorf("node %d Run: %v", i+1, err)
			}
		}
	})

	directory := cluster.NewDirectory("node1", peers...)
	directory.PinTable("ns:t1", peers[n-1].ID)
	return directory, nodes
}

func socketCoordinator(directory *cluster.Directory, user string) *Coordinator {
	return New(Config{
		Invoker:     service.NewInvoker(service.NewSocketProvider(directory), user, testLogger()),
		Locator:     directory,
		Membership:  directory.Membership(),
		Convergence: converge.Options{Timeout: 5 * time.Second, PollInterval: 10 * time.Millisecond, NodeTimeout: time.Second},
		Logger:      testLogger(),
	})
}

func TestSocketClusterGrantRevoke(t *testing.T) {
	directory, nodes := startSocketCluster(t, 3)
	admin := socketCoordinator(directory, "admin")
	ctx := context.Background()

	before := make([]int64, len(nodes))
	for i, node := range nodes {
		before[i] = node.Store().Version()
	}

	if err := admin.GrantOnTable(ctx, "alice", "ns:t1", "", "", acl.Read, acl.Write); err != nil {
		t.Fatalf("GrantOnTable: %v", err)
	}
	for i, node := range nodes {
		if node.Store().Version() <= before[i] {
			t.Errorf("%s version %d did not advance past %d", node.ID(), node.Store().Version(), before[i])
		}
	}

	checkRead := func(ctx context.Context, user string) (any, error) {
		return nil, admin.As(user).CheckTablePermissions(ctx, "ns:t1", "", "", acl.Read)
	}
	if err := verdict.VerifyAllowed(ctx, checkRead, "alice", "admin"); err != nil {
		t.Errorf("after grant: %v", err)
	}
	if err := verdict.VerifyDenied(ctx, checkRead, "bob"); err != nil {
		t.Errorf("after grant: %v", err)
	}

	// The check went to node3, which only knows about alice through
	// node1's pushed snapshot.
	if missing := nodes[2].Store().Check("alice", acl.TableScope("ns:t1", "", ""), []acl.Action{acl.Write}); missing != nil {
		t.Errorf("node3 missing %v for alice", missing)
	}

	if err := admin.RevokeFromTable(ctx, "alice", "ns:t1", "", "", acl.Read); err != nil {
		t.Fatalf("RevokeFromTable: %v", err)
	}
	if err := verdict.VerifyDenied(ctx, checkRead, "alice"); err != nil {
		t.Errorf("after revoke: %v", err)
	}
}

func TestSocketClusterNonAdminCannotGrant(t *testing.T) {
	directory, nodes := startSocketCluster(t, 2)
	ctx := context.Background()

	err := socketCoordinator(directory, "mallory").GrantGlobal(ctx, "mallory", acl.Admin)
	if !fault.IsDenial(err) {
		t.Fatalf("IsDenial(%v) = false", err)
	}
	for _, node := range nodes {
		if node.Store().Version() != 0 {
			t.Errorf("%s version = %d after a denied grant", node.ID(), node.Store().Version())
		}
	}
}

func TestSocketClusterGlobalCheck(t *testing.T) {
	directory, _ := startSocketCluster(t, 2)
	admin := socketCoordinator(directory, "admin")
	ctx := context.Background()

	if err := admin.GrantGlobal(ctx, "carol", acl.Create); err != nil {
		t.Fatalf("GrantGlobal: %v", err)
	}
	checkCreate := func(ctx context.Context, user string) (any, error) {
		return nil, admin.As(user).CheckGlobalPermissions(ctx, acl.Create)
	}
	if err := verdict.VerifyAllowed(ctx, checkCreate, "carol"); err != nil {
		t.Error(err)
	}
	if err := verdict.VerifyDenied(ctx, checkCreate, "dave"); err != nil {
		t.Error(err)
	}
}

func TestSocketClusterNamespaceGrant(t *testing.T) {
	directory, _ := startSocketCluster(t, 2)
	admin := socketCoordinator(directory, "admin")
	ctx := context.Background()

	if err := admin.GrantOnNamespace(ctx, "erin", "ns", acl.Read); err != nil {
		t.Fatalf("GrantOnNamespace: %v", err)
	}
	checkRead := func(ctx context.Context, user string) (any, error) {
		return nil, admin.As(user).CheckTablePermissions(ctx, "ns:t1", "", "", acl.Read)
	}
	if err := verdict.VerifyAllowed(ctx, checkRead, "erin"); err != nil {
		t.Errorf("after namespace grant: %v", err)
	}

	statuses, err := admin.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !Agree(statuses) {
		t.Errorf("nodes disagree after a converged grant: %+v", statuses)
	}

	if err := admin.RevokeFromNamespace(ctx, "erin", "ns", acl.Read); err != nil {
		t.Fatalf("RevokeFromNamespace: %v", err)
	}
	if err := verdict.VerifyDenied(ctx, checkRead, "erin"); err != nil {
		t.Errorf("after namespace revoke: %v", err)
	}
}
