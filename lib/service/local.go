// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/aclsync/lib/cluster"

	"github.com/bureau-foundation/aclsync/lib/codec"
	"github.com/bureau-foundation/aclsync/lib/fault"
)

// LocalChannel serves frames from a Registry in the same process. The
// frames are still encoded and decoded, so handlers see exactly what
// they would see over a socket.
type LocalChannel struct {
	registry *Registry
	logger   *slog.Logger
}

// NewLocalChannel returns a channel dispatching into registry.
func NewLocalChannel(registry *Registry, logger *slog.Logger) *LocalChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalChannel{registry: registry, logger: logger}
}

// Call decodes request as a RequestFrame, dispatches it, and returns
// the encoded ResponseFrame.
func (c *LocalChannel) Call(ctx context.Context, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Transport, "local call", err)
	}
	var frame RequestFrame
	var response ResponseFrame
	if err := codec.Unmarshal(request, &frame); err != nil {
		response = failureFrame(&fault.Error{Kind: fault.Malformed, Message: "invalid request frame", Err: err})
	} else {
		response = serveFrame(ctx, c.registry, c.logger, frame)
	}
	data, err := codec.Marshal(response)
	if err != nil {
		return nil, fault.Wrap(fault.Transport, "encoding local response", err)
	}
	return data, nil
}

// LocalProvider opens LocalChannels for nodes running in the same
// process. Removing a node makes it unreachable the way a stopped
// server would be.
type LocalProvider struct {
	logger *slog.Logger

	mu    sync.RWMutex
	nodes map[cluster.NodeID]*Registry
}

// NewLocalProvider returns a provider with no nodes.
func NewLocalProvider(logger *slog.Logger) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalProvider{logger: logger, nodes: make(map[cluster.NodeID]*Registry)}
}

// Add makes registry reachable as node.
func (p *LocalProvider) Add(node cluster.NodeID, registry *Registry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[node] = registry
}

// Remove makes node unreachable.
func (p *LocalProvider) Remove(node cluster.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, node)
}

// Open returns a channel into node's registry. The registry is looked
// up again on every call, so removing a node also breaks channels
// opened before.
func (p *LocalProvider) Open(_ context.Context, node cluster.NodeID) (Channel, error) {
	if _, ok := p.lookup(node); !ok {
		return nil, fault.New(fault.Transport, "open "+string(node), "node is not reachable")
	}
	return channelFunc(func(ctx context.Context, request []byte) ([]byte, error) {
		registry, ok := p.lookup(node)
		if !ok {
			return nil, fault.New(fault.Transport, "call "+string(node), "node is not reachable")
		}
		return NewLocalChannel(registry, p.logger).Call(ctx, request)
	}), nil
}

func (p *LocalProvider) lookup(node cluster.NodeID) (*Registry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	registry, ok := p.nodes[node]
	return registry, ok
}

// channelFunc adapts a function to a Channel.
type channelFunc func(ctx context.Context, request []byte) ([]byte, error)

func (f channelFunc) Call(ctx context.Context, request []byte) ([]byte, error) {
	return f(ctx, request)
}
