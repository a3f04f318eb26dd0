// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cluster names the nodes of an aclsync cluster and answers the
// two placement questions the client side asks: which nodes are live
// and host the control endpoint, and which node serves a given table
// row.
//
// Membership is always passed explicitly. Nothing in this module reads
// cluster state from a global: the poller receives a [Membership] and
// calls it on every tick so that joins and departures are observed.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// NodeID names a node.
type NodeID string

// Peer binds a node to the Unix socket its endpoint server listens on.
type Peer struct {
	ID         NodeID `yaml:"id"`
	SocketPath string `yaml:"socket_path"`
}

// Membership lists the live nodes hosting the control endpoint. It is
// called once per poll tick and must return a fresh list each time.
type Membership func(ctx context.Context) ([]NodeID, error)

// Locator finds the node serving row of table.
type Locator interface {
	Locate(ctx context.Context, table string, row []byte) (NodeID, error)
}

// Directory is a mutable set of peers. It serves as the membership
// provider, the socket path resolver for the connection provider, and
// a static locator. Safe for concurrent use.
type Directory struct {
	mu    sync.RWMutex
	peers map[NodeID]Peer

	// tableHomes pins tables to nodes. Tables without a pin are served
	// by defaultHome.
	tableHomes  map[string]NodeID
	defaultHome NodeID
}

// NewDirectory returns a directory holding peers. defaultHome serves
// any table that has not been pinned with PinTable.
func NewDirectory(defaultHome NodeID, peers ...Peer) *Directory {
	directory := &Directory{
		peers:       make(map[NodeID]Peer, len(peers)),
		tableHomes:  make(map[string]NodeID),
		defaultHome: defaultHome,
	}
	for _, peer := range peers {
		directory.peers[peer.ID] = peer
	}
	return directory
}

// Add inserts or replaces a peer.
func (d *Directory) Add(peer Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[peer.ID] = peer
}

// Remove deletes a peer. Tables pinned to it stay pinned and will
// fail to locate until re-pinned.
func (d *Directory) Remove(id NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, id)
}

// PinTable routes every row of table to node.
func (d *Directory) PinTable(table string, node NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tableHomes[table] = node
}

// Nodes returns the current node ids in sorted order.
func (d *Directory) Nodes() []NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes := make([]NodeID, 0, len(d.peers))
	for id := range d.peers {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Membership returns a Membership backed by the directory.
func (d *Directory) Membership() Membership {
	return func(context.Context) ([]NodeID, error) {
		return d.Nodes(), nil
	}
}

// SocketPath returns the socket path of a peer.
func (d *Directory) SocketPath(id NodeID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	peer, ok := d.peers[id]
	if !ok {
		return "", fmt.Errorf("unknown node %q", id)
	}
	return peer.SocketPath, nil
}

// Locate implements Locator. The row is ignored: a table lives on a
// single node in this placement model.
func (d *Directory) Locate(_ context.Context, table string, _ []byte) (NodeID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	home, ok := d.tableHomes[table]
	if !ok {
		home = d.defaultHome
	}
	if home == "" {
		return "", fmt.Errorf("no node serves table %q", table)
	}
	if _, live := d.peers[home]; !live {
		return "", fmt.Errorf("node %q serving table %q is not a member", home, table)
	}
	return home, nil
}
