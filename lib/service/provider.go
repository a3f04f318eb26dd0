// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/fault"
)

// ConnectionProvider resolves a node to a Channel.
type ConnectionProvider interface {
	Open(ctx context.Context, node cluster.NodeID) (Channel, error)
}

// SocketResolver maps a node to the path of its endpoint socket.
type SocketResolver interface {
	SocketPath(node cluster.NodeID) (string, error)
}

// SocketProvider opens SocketChannels, caching one per node. Concurrent
// first opens of the same node share a single resolution.
type SocketProvider struct {
	resolver SocketResolver

	channels sync.Map // cluster.NodeID -> *SocketChannel
	group    singleflight.Group
}

// NewSocketProvider returns a provider resolving through resolver.
func NewSocketProvider(resolver SocketResolver) *SocketProvider {
	return &SocketProvider{resolver: resolver}
}

// Open returns the cached channel for node, resolving it on first
// use. An unresolvable node is a Transport fault: from the caller's
// side the node is unreachable.
func (p *SocketProvider) Open(ctx context.Context, node cluster.NodeID) (Channel, error) {
	if cached, ok := p.channels.Load(node); ok {
		return cached.(*SocketChannel), nil
	}

	result, err, _ := p.group.Do(string(node), func() (any, error) {
		if cached, ok := p.channels.Load(node); ok {
			return cached, nil
		}
		path, err := p.resolver.SocketPath(node)
		if err != nil {
			return nil, fault.Wrap(fault.Transport, "open "+string(node), err)
		}
		channel := NewSocketChannel(path)
		p.channels.Store(node, channel)
		return channel, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*SocketChannel), nil
}

// Forget drops the cached channel for node so the next Open resolves
// it again. Call it after a node moves to a new socket.
func (p *SocketProvider) Forget(node cluster.NodeID) {
	p.channels.Delete(node)
}
