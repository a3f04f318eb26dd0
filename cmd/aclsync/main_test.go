// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/aclsync/lib/aclsync"
	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/testutil"
)

func TestCommandDispatch(t *testing.T) {
	var called string
	var received []string
	root := &Command{
		Name: "aclsync",
		Subcommands: []*Command{
			{Name: "grant", Run: func(args []string) error { called = "grant"; received = args; return nil }},
			{Name: "revoke", Run: func(args []string) error { called = "revoke"; return nil }},
		},
	}

	if err := root.Execute([]string{"grant", "READ"}, io.Discard); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "grant" || len(received) != 1 || received[0] != "READ" {
		t.Errorf("dispatched to %q with %v", called, received)
	}

	if err := root.Execute([]string{"grnt"}, io.Discard); err == nil || !strings.Contains(err.Error(), `unknown command "grnt"`) {
		t.Errorf("unknown command error = %v", err)
	}
	if err := root.Execute(nil, io.Discard); err == nil {
		t.Error("missing subcommand should fail")
	}
}

func TestCommandHelp(t *testing.T) {
	cli := &app{ctx: context.Background(), stdout: io.Discard, stderr: io.Discard}
	var help bytes.Buffer
	if err := cli.root().Execute([]string{"--help"}, &help); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, name := range []string{"grant", "revoke", "check", "versions"} {
		if !strings.Contains(help.String(), name) {
			t.Errorf("help does not list %q:\n%s", name, help.String())
		}
	}

	help.Reset()
	if err := cli.root().Execute([]string{"grant", "--help"}, &help); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(help.String(), "--principal") {
		t.Errorf("grant help does not describe --principal:\n%s", help.String())
	}
}

func TestScopeFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   scopeFlags
		want    string
		wantErr bool
	}{
		{name: "global", want: "global"},
		{name: "namespace", flags: scopeFlags{namespace: "ns1"}, want: "namespace ns1"},
		{name: "table", flags: scopeFlags{table: "t1", family: "f1"}, want: "table t1 family f1"},
		{name: "both", flags: scopeFlags{namespace: "ns1", table: "t1"}, wantErr: true},
		{name: "family without table", flags: scopeFlags{family: "f1"}, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			scope, err := test.flags.scope()
			if test.wantErr {
				if err == nil {
					t.Fatalf("scope() = %v, want error", scope)
				}
				return
			}
			if err != nil {
				t.Fatalf("scope(): %v", err)
			}
			if err := scope.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !strings.HasPrefix(scope.String(), test.want) {
				t.Errorf("scope = %q, want prefix %q", scope.String(), test.want)
			}
		})
	}
}

func TestChangeRequiresPrincipal(t *testing.T) {
	cli := &app{ctx: context.Background(), stdout: io.Discard, stderr: io.Discard}
	err := cli.root().Execute([]string{"grant", "--user", "admin", "READ"}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "--principal is required") {
		t.Errorf("error = %v, want --principal is required", err)
	}
}

// startNodes runs node1 and node2 on real sockets and returns a config
// file written from node1's point of view.
func startNodes(t *testing.T) string {
	t.Helper()
	socketDir := testutil.SocketDir(t)
	peers := []cluster.Peer{
		{ID: "node1", SocketPath: filepath.Join(socketDir, "node1.sock")},
		{ID: "node2", SocketPath: filepath.Join(socketDir, "node2.sock")},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	var dones []chan error
	for i, self := range peers {
		node := aclsync.NewNode(aclsync.NodeConfig{
			ID:         self.ID,
			SocketPath: self.SocketPath,
			Superusers: []string{"admin"},
			Peers:      []cluster.Peer{peers[1-i]},
			Logger:     logger,
		})
		done := make(chan error, 1)
		go func() { done <- node.Run(ctx) }()
		testutil.RequireClosed(t, node.Ready(), 5*time.Second, "node %s ready", self.ID)
		dones = append(dones, done)
	}
	t.Cleanup(func() {
		cancel()
		for _, done := range dones {
			if err := testutil.RequireReceive(t, done, 5*time.Second, "node shutdown"); err != nil {
				t.Errorf("node Run: %v", err)
			}
		}
	})

	configPath := filepath.Join(socketDir, "aclsync.yaml")
	contents := fmt.Sprintf(`environment: development
node:
  id: node1
  socket_path: %s
cluster:
  acl_node: node1
  peers:
    - id: node2
      socket_path: %s
convergence:
  timeout: 5s
  poll_interval: 10ms
`, peers[0].SocketPath, peers[1].SocketPath)
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	cli := &app{ctx: context.Background(), stdout: &stdout, stderr: io.Discard}
	err := cli.root().Execute(args, io.Discard)
	return stdout.String(), err
}

func TestGrantCheckRevoke(t *testing.T) {
	configPath := startNodes(t)

	if _, err := execute(t, "check", "--config", configPath, "--principal", "alice", "--table", "t1", "READ"); err == nil ||
		!strings.HasPrefix(err.Error(), "denied") {
		t.Fatalf("check before grant: %v, want denied", err)
	}

	output, err := execute(t, "grant", "--config", configPath, "--user", "admin",
		"--principal", "alice", "--table", "t1", "READ", "WRITE")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !strings.Contains(output, "converged") {
		t.Errorf("grant output = %q", output)
	}

	output, err = execute(t, "check", "--config", configPath, "--principal", "alice", "--table", "t1", "read")
	if err != nil {
		t.Fatalf("check after grant: %v", err)
	}
	if strings.TrimSpace(output) != "allowed" {
		t.Errorf("check output = %q, want allowed", output)
	}

	output, err = execute(t, "versions", "--config", configPath, "--user", "admin")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	for _, want := range []string{"NODE", "node1", "node2"} {
		if !strings.Contains(output, want) {
			t.Errorf("versions output missing %q:\n%s", want, output)
		}
	}

	if _, err := execute(t, "revoke", "--config", configPath, "--user", "admin",
		"--principal", "alice", "--table", "t1", "READ", "WRITE"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := execute(t, "check", "--config", configPath, "--principal", "alice", "--table", "t1", "READ"); err == nil {
		t.Fatal("check after revoke succeeded")
	}
}

func TestGrantByNonAdminIsDenied(t *testing.T) {
	configPath := startNodes(t)
	_, err := execute(t, "grant", "--config", configPath, "--user", "mallory",
		"--principal", "mallory", "ADMIN")
	if !fault.IsDenial(err) {
		t.Errorf("grant by non-admin: %v, want a denial", err)
	}
}
