// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package converge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/aclsync/lib/clock"
	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/metrics"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Snapshot maps each node to its policy version at one instant.
type Snapshot map[cluster.NodeID]int64

// VersionFunc reads one node's current version.
type VersionFunc func(ctx context.Context, node cluster.NodeID) (int64, error)

// Options bounds a wait. Zero fields take the package defaults;
// NodeTimeout defaults to PollInterval.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	NodeTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.NodeTimeout <= 0 {
		o.NodeTimeout = o.PollInterval
	}
	return o
}

// Poller samples node versions.
type Poller struct {
	membership cluster.Membership
	version    VersionFunc
	clock      clock.Clock
	logger     *slog.Logger
}

// NewPoller returns a poller reading membership and versions through
// the given functions. Both are called again on every tick.
func NewPoller(membership cluster.Membership, version VersionFunc, clk clock.Clock, logger *slog.Logger) *Poller {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{membership: membership, version: version, clock: clk, logger: logger}
}

// Capture reads every live node's version. It fails if membership
// cannot be read or any node cannot be sampled: a baseline with a hole
// could never prove convergence for the missing node.
func (p *Poller) Capture(ctx context.Context, nodeTimeout time.Duration) (Snapshot, error) {
	if nodeTimeout <= 0 {
		nodeTimeout = DefaultPollInterval
	}
	nodes, err := p.membership(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading membership for baseline: %w", err)
	}
	versions, failures := p.sample(ctx, nodes, nodeTimeout)
	if len(failures) > 0 {
		node := firstNode(failures)
		return nil, fmt.Errorf("capturing baseline version of %s: %w", node, failures[node])
	}
	return versions, nil
}

// Await polls until every node's version has advanced past baseline.
// It returns a fault.ConvergenceTimeout naming the lagging nodes once
// opts.Timeout has elapsed since the call, and the context's error if
// ctx ends first.
func (p *Poller) Await(ctx context.Context, baseline Snapshot, opts Options) error {
	opts = opts.withDefaults()
	start := p.clock.Now()
	deadline := start.Add(opts.Timeout)

	for tick := 1; ; tick++ {
		metrics.ConvergenceTicks.Inc()
		lagging := p.tick(ctx, baseline, opts.NodeTimeout)
		if len(lagging) == 0 {
			p.finish(start, "converged")
			p.logger.Debug("change converged", "ticks", tick, "nodes", len(baseline))
			return nil
		}
		if err := ctx.Err(); err != nil {
			p.finish(start, "cancelled")
			return err
		}

		p.logger.Debug("change not yet converged",
			"tick", tick,
			"lagging", strings.Join(lagging, "; "),
		)

		now := p.clock.Now()
		if !now.Before(deadline) {
			p.finish(start, "timeout")
			return &fault.Error{
				Kind:    fault.ConvergenceTimeout,
				Op:      "await convergence",
				Message: fmt.Sprintf("not converged after %v: %s", opts.Timeout, strings.Join(lagging, "; ")),
			}
		}

		wait := min(opts.PollInterval, deadline.Sub(now))
		select {
		case <-ctx.Done():
			p.finish(start, "cancelled")
			return ctx.Err()
		case <-p.clock.After(wait):
		}
	}
}

func (p *Poller) finish(start time.Time, outcome string) {
	metrics.ConvergenceWaitSeconds.WithLabelValues(outcome).Observe(p.clock.Now().Sub(start).Seconds())
}

// tick takes one sample and returns a description of every node that
// keeps it from converging, sorted by node. An empty result means the
// round converged.
func (p *Poller) tick(ctx context.Context, baseline Snapshot, nodeTimeout time.Duration) []string {
	nodes, err := p.membership(ctx)
	if err != nil {
		return []string{"membership unavailable: " + err.Error()}
	}
	current, failures := p.sample(ctx, nodes, nodeTimeout)
	return lagging(baseline, nodes, current, failures)
}

// lagging compares one sample against the baseline.
func lagging(baseline Snapshot, members []cluster.NodeID, current Snapshot, failures map[cluster.NodeID]error) []string {
	var reasons []string
	seen := make(map[cluster.NodeID]bool, len(members))
	for _, node := range members {
		seen[node] = true
		before, inBaseline := baseline[node]
		switch {
		case failures[node] != nil:
			reasons = append(reasons, fmt.Sprintf("%s: sampling failed: %v", node, failures[node]))
		case !inBaseline:
			reasons = append(reasons, fmt.Sprintf("%s: joined after the baseline", node))
		case current[node] <= before:
			reasons = append(reasons, fmt.Sprintf("%s: version %d, waiting for more than %d", node, current[node], before))
		}
	}
	for node := range baseline {
		if !seen[node] {
			reasons = append(reasons, fmt.Sprintf("%s: missing from membership", node))
		}
	}
	sort.Strings(reasons)
	return reasons
}

// sample reads every node's version concurrently, each bounded by
// nodeTimeout. Failed reads land in failures and never cancel the
// other reads.
func (p *Poller) sample(ctx context.Context, nodes []cluster.NodeID, nodeTimeout time.Duration) (Snapshot, map[cluster.NodeID]error) {
	var (
		mu       sync.Mutex
		versions = make(Snapshot, len(nodes))
		failures = make(map[cluster.NodeID]error)
	)
	var group errgroup.Group
	for _, node := range nodes {
		group.Go(func() error {
			nodeCtx, cancel := context.WithTimeout(ctx, nodeTimeout)
			defer cancel()
			version, err := p.version(nodeCtx, node)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[node] = err
			} else {
				versions[node] = version
			}
			return nil
		})
	}
	group.Wait()
	return versions, failures
}

func firstNode(failures map[cluster.NodeID]error) cluster.NodeID {
	nodes := make([]cluster.NodeID, 0, len(failures))
	for node := range failures {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes[0]
}
