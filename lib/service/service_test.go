// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/envelope"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/testutil"
)

var (
	echoMethod    = envelope.MethodDescriptor{Service: "TestService", Method: "Echo"}
	nothingMethod = envelope.MethodDescriptor{Service: "TestService", Method: "Nothing"}
	denyMethod    = envelope.MethodDescriptor{Service: "TestService", Method: "Deny"}
	failMethod    = envelope.MethodDescriptor{Service: "TestService", Method: "Fail"}
)

type echoRequest struct {
	Text string `cbor:"text"`
}

type echoResponse struct {
	Text   string `cbor:"text"`
	Caller string `cbor:"caller"`
	Row    string `cbor:"row"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// testRegistry returns a registry with one method per outcome shape.
func testRegistry() *Registry {
	registry := NewRegistry()
	Handle(registry, echoMethod, func(_ context.Context, request Request[echoRequest]) (*echoResponse, error) {
		return &echoResponse{Text: request.Body.Text, Caller: request.Caller, Row: string(request.Row)}, nil
	})
	Handle(registry, nothingMethod, func(context.Context, Request[struct{}]) (*echoResponse, error) {
		return nil, nil
	})
	Handle(registry, denyMethod, func(_ context.Context, request Request[struct{}]) (*struct{}, error) {
		return nil, fault.Denied(denyMethod.String(), request.Caller, "action ADMIN on global")
	})
	Handle(registry, failMethod, func(context.Context, Request[struct{}]) (*struct{}, error) {
		return nil, errors.New("disk on fire")
	})
	return registry
}

// startServer serves registry on a fresh socket and returns its path.
// The server is stopped when the test completes.
func startServer(t *testing.T, registry *Registry) string {
	t.Helper()
	socketPath := testutil.SocketPath(t, "node")
	server := NewSocketServer(socketPath, registry, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")

	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "server shutdown"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return socketPath
}

// staticResolver maps node IDs to socket paths.
type staticResolver map[cluster.NodeID]string

func (r staticResolver) SocketPath(node cluster.NodeID) (string, error) {
	path, ok := r[node]
	if !ok {
		return "", fmt.Errorf("unknown node %q", node)
	}
	return path, nil
}

// providerFunc adapts a function to a ConnectionProvider.
type providerFunc func(ctx context.Context, node cluster.NodeID) (Channel, error)

func (f providerFunc) Open(ctx context.Context, node cluster.NodeID) (Channel, error) {
	return f(ctx, node)
}
