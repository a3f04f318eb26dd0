// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/aclsync/lib/clock"
	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/metrics"
	"github.com/bureau-foundation/aclsync/lib/service"
)

const (
	defaultInitialBackoff = 50 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

// PropagatorConfig configures a Propagator.
type PropagatorConfig struct {
	// Invoker sends Refresh calls. Its caller must be accepted by the
	// peers' Refresh handlers.
	Invoker *service.Invoker

	Peers []cluster.NodeID
	Clock clock.Clock

	// InitialBackoff is the wait after the first failed push to a
	// peer. It doubles per consecutive failure up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Logger *slog.Logger
}

// Propagator pushes policy snapshots to peers. Each peer has its own
// worker holding at most one pending snapshot, so a slow or dead peer
// never delays the others and a newer snapshot replaces an older one
// that has not been delivered yet.
type Propagator struct {
	invoker        *service.Invoker
	clock          clock.Clock
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger

	queues map[cluster.NodeID]*peerQueue
}

type peerQueue struct {
	mu      sync.Mutex
	pending *Policy

	// wake has capacity one; a send that would block means the worker
	// has already been signalled.
	wake chan struct{}
}

// NewPropagator returns a propagator for config.Peers. Call Run to
// start delivery.
func NewPropagator(config PropagatorConfig) *Propagator {
	propagator := &Propagator{
		invoker:        config.Invoker,
		clock:          config.Clock,
		initialBackoff: config.InitialBackoff,
		maxBackoff:     config.MaxBackoff,
		logger:         config.Logger,
		queues:         make(map[cluster.NodeID]*peerQueue, len(config.Peers)),
	}
	if propagator.logger == nil {
		propagator.logger = slog.Default()
	}
	if propagator.clock == nil {
		propagator.clock = clock.Real()
	}
	if propagator.initialBackoff <= 0 {
		propagator.initialBackoff = defaultInitialBackoff
	}
	if propagator.maxBackoff < propagator.initialBackoff {
		propagator.maxBackoff = max(defaultMaxBackoff, propagator.initialBackoff)
	}
	for _, peer := range config.Peers {
		propagator.queues[peer] = &peerQueue{wake: make(chan struct{}, 1)}
	}
	return propagator
}

// Publish queues policy for every peer. It never blocks. A snapshot
// older than the one already pending for a peer is dropped.
func (p *Propagator) Publish(policy Policy) {
	for _, queue := range p.queues {
		queue.offer(policy)
	}
}

func (q *peerQueue) offer(policy Policy) {
	q.mu.Lock()
	if q.pending == nil || q.pending.Version < policy.Version {
		q.pending = &policy
	}
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *peerQueue) take() (Policy, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return Policy{}, false
	}
	policy := *q.pending
	q.pending = nil
	return policy, true
}

// Run delivers snapshots until ctx is cancelled. Returns nil once
// every peer worker has stopped.
func (p *Propagator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for peer, queue := range p.queues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runPeer(ctx, peer, queue)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Propagator) runPeer(ctx context.Context, peer cluster.NodeID, queue *peerQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-queue.wake:
		}

		policy, ok := queue.take()
		if !ok {
			continue
		}
		p.deliver(ctx, peer, queue, policy)
	}
}

// deliver pushes policy to peer, retrying with backoff. Before each
// retry it switches to a newer snapshot if one was published while it
// waited.
func (p *Propagator) deliver(ctx context.Context, peer cluster.NodeID, queue *peerQueue, policy Policy) {
	backoff := p.initialBackoff
	for attempt := 1; ; attempt++ {
		response, err := service.Call[Policy, RefreshResponse](ctx, p.invoker, peer, RefreshMethod, nil, &policy)
		if err == nil {
			p.logger.Debug("policy pushed",
				"peer", peer,
				"snapshot_version", policy.Version,
				"applied", response.Applied,
				"peer_version", response.Version,
			)
			return
		}
		if ctx.Err() != nil {
			return
		}

		metrics.PropagationFailures.WithLabelValues(string(peer)).Inc()
		p.logger.Warn("policy push failed",
			"peer", peer,
			"snapshot_version", policy.Version,
			"attempt", attempt,
			"retry_in", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(backoff):
		}
		if newer, ok := queue.take(); ok && newer.Version > policy.Version {
			policy = newer
		}
		backoff = min(backoff*2, p.maxBackoff)
	}
}
