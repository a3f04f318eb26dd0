// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aclsync

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/aclsync/lib/acl"
	"github.com/bureau-foundation/aclsync/lib/clock"
	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/service"
)

// NodeConfig describes one node of the cluster.
type NodeConfig struct {
	ID         cluster.NodeID
	SocketPath string

	Superusers []string
	Groups     map[string][]string

	// Peers are the other nodes. Each receives this node's snapshots
	// and may push its own.
	Peers []cluster.Peer

	// Clock and Logger default to the real clock and slog.Default().
	Clock  clock.Clock
	Logger *slog.Logger
}

// Node serves AccessControlService for one node: the policy store,
// the endpoint server on the node's socket, and the propagator that
// pushes local changes to peers.
type Node struct {
	id         cluster.NodeID
	store      *acl.Store
	server     *service.SocketServer
	propagator *acl.Propagator
	logger     *slog.Logger
}

// NewNode assembles a node. Call Run to serve it.
func NewNode(config NodeConfig) *Node {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node", config.ID)

	store := acl.NewStore(acl.StoreOptions{
		Node:       string(config.ID),
		Superusers: config.Superusers,
		Groups:     config.Groups,
	})

	peers := cluster.NewDirectory("", config.Peers...)
	peerIDs := peers.Nodes()
	refreshCallers := make([]string, len(peerIDs))
	for i, peer := range peerIDs {
		refreshCallers[i] = acl.NodePrincipal(string(peer))
	}

	propagator := acl.NewPropagator(acl.PropagatorConfig{
		Invoker: service.NewInvoker(service.NewSocketProvider(peers), acl.NodePrincipal(string(config.ID)), logger),
		Peers:   peerIDs,
		Clock:   config.Clock,
		Logger:  logger,
	})

	registry := service.NewRegistry()
	acl.RegisterEndpoint(registry, acl.EndpointConfig{
		Node:           string(config.ID),
		Store:          store,
		Publisher:      propagator,
		RefreshCallers: refreshCallers,
		Logger:         logger,
	})

	return &Node{
		id:         config.ID,
		store:      store,
		server:     service.NewSocketServer(config.SocketPath, registry, logger),
		propagator: propagator,
		logger:     logger,
	}
}

// ID returns the node id.
func (n *Node) ID() cluster.NodeID { return n.id }

// Store returns the node's policy store.
func (n *Node) Store() *acl.Store { return n.store }

// Ready is closed once the endpoint server is accepting connections.
func (n *Node) Ready() <-chan struct{} { return n.server.Ready() }

// Run serves the node until ctx is cancelled. A server failure stops
// the propagator too.
func (n *Node) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return n.server.Serve(groupCtx) })
	group.Go(func() error { return n.propagator.Run(groupCtx) })
	err := group.Wait()
	n.logger.Info("node stopped", "version", n.store.Version())
	return err
}
