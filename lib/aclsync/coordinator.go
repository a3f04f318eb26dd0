// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aclsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/aclsync/lib/acl"
	"github.com/bureau-foundation/aclsync/lib/clock"
	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/converge"
	"github.com/bureau-foundation/aclsync/lib/envelope"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/service"
)

// ChangeKind selects grant or revoke for Apply.
type ChangeKind int

const (
	ChangeGrant ChangeKind = iota
	ChangeRevoke
)

func (k ChangeKind) String() string {
	if k == ChangeRevoke {
		return "revoke"
	}
	return "grant"
}

func (k ChangeKind) method() envelope.MethodDescriptor {
	if k == ChangeRevoke {
		return acl.RevokeMethod
	}
	return acl.GrantMethod
}

// Config wires a Coordinator.
type Config struct {
	// Invoker sends every call; its caller is the principal the
	// coordinator acts for.
	Invoker *service.Invoker

	// Locator finds the node serving the ACL table and user tables.
	Locator cluster.Locator

	// Membership lists the live nodes. It is read once for the
	// baseline and again on every poll tick.
	Membership cluster.Membership

	// Convergence bounds the wait after a change.
	Convergence converge.Options

	// Clock and Logger default to the real clock and slog.Default().
	Clock  clock.Clock
	Logger *slog.Logger
}

// Coordinator applies permission changes and waits for them to
// converge. Safe for concurrent use; each change captures its own
// baseline.
type Coordinator struct {
	invoker    *service.Invoker
	locator    cluster.Locator
	membership cluster.Membership
	poller     *converge.Poller
	options    converge.Options
	clock      clock.Clock
	logger     *slog.Logger
}

// New returns a Coordinator for config.
func New(config Config) *Coordinator {
	c := &Coordinator{
		invoker:    config.Invoker,
		locator:    config.Locator,
		membership: config.Membership,
		options:    config.Convergence,
		clock:      config.Clock,
		logger:     config.Logger,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.poller = converge.NewPoller(config.Membership, c.nodeVersion, c.clock, c.logger)
	return c
}

// As returns a coordinator acting for user. Version reads are not
// authorized per caller, so the clone shares the original's poller.
func (c *Coordinator) As(user string) *Coordinator {
	clone := *c
	clone.invoker = c.invoker.As(user)
	return &clone
}

// User returns the principal the coordinator acts for.
func (c *Coordinator) User() string { return c.invoker.Caller() }

// GrantGlobal grants actions on every scope to principal.
func (c *Coordinator) GrantGlobal(ctx context.Context, principal string, actions ...acl.Action) error {
	return c.Apply(ctx, ChangeGrant, acl.PermissionChangeRequest{Principal: principal, Scope: acl.GlobalScope(), Actions: actions})
}

// RevokeGlobal revokes global actions from principal.
func (c *Coordinator) RevokeGlobal(ctx context.Context, principal string, actions ...acl.Action) error {
	return c.Apply(ctx, ChangeRevoke, acl.PermissionChangeRequest{Principal: principal, Scope: acl.GlobalScope(), Actions: actions})
}

// GrantOnNamespace grants actions on namespace to principal.
func (c *Coordinator) GrantOnNamespace(ctx context.Context, principal, namespace string, actions ...acl.Action) error {
	return c.Apply(ctx, ChangeGrant, acl.PermissionChangeRequest{Principal: principal, Scope: acl.NamespaceScope(namespace), Actions: actions})
}

// RevokeFromNamespace revokes actions on namespace from principal.
func (c *Coordinator) RevokeFromNamespace(ctx context.Context, principal, namespace string, actions ...acl.Action) error {
	return c.Apply(ctx, ChangeRevoke, acl.PermissionChangeRequest{Principal: principal, Scope: acl.NamespaceScope(namespace), Actions: actions})
}

// GrantOnTable grants actions on table to principal. family and
// qualifier narrow the grant when non-empty.
func (c *Coordinator) GrantOnTable(ctx context.Context, principal, table, family, qualifier string, actions ...acl.Action) error {
	return c.Apply(ctx, ChangeGrant, acl.PermissionChangeRequest{Principal: principal, Scope: acl.TableScope(table, family, qualifier), Actions: actions})
}

// RevokeFromTable revokes actions on table from principal.
func (c *Coordinator) RevokeFromTable(ctx context.Context, principal, table, family, qualifier string, actions ...acl.Action) error {
	return c.Apply(ctx, ChangeRevoke, acl.PermissionChangeRequest{Principal: principal, Scope: acl.TableScope(table, family, qualifier), Actions: actions})
}

// Apply sends one change and waits for it to converge.
func (c *Coordinator) Apply(ctx context.Context, kind ChangeKind, request acl.PermissionChangeRequest) error {
	if err := request.Validate(); err != nil {
		return &fault.Error{Kind: fault.Malformed, Op: kind.String(), Message: "invalid permission change", Err: err}
	}

	started := c.clock.Now()
	baseline, err := c.poller.Capture(ctx, c.nodeTimeout())
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, request.Principal, err)
	}

	node, err := c.locator.Locate(ctx, acl.ACLTable, nil)
	if err != nil {
		return fmt.Errorf("locating %s: %w", acl.ACLTable, err)
	}

	response, err := service.Call[acl.PermissionChangeRequest, acl.ChangeResponse](ctx, c.invoker, node, kind.method(), nil, &request)
	if err != nil {
		return err
	}

	if err := c.poller.Await(ctx, baseline, c.options); err != nil {
		return err
	}
	c.logger.Info("permission change converged",
		"change", kind.String(),
		"caller", c.User(),
		"principal", request.Principal,
		"scope", request.Scope.String(),
		"acl_node", node,
		"acl_version", response.Version,
		"nodes", len(baseline),
		"elapsed", c.clock.Now().Sub(started),
	)
	return nil
}

// CheckGlobalPermissions asks the ACL table's node whether the
// coordinator's user holds actions globally. A missing action is a
// fault.Denial. Never waits for convergence.
func (c *Coordinator) CheckGlobalPermissions(ctx context.Context, actions ...acl.Action) error {
	return c.check(ctx, acl.ACLTable, acl.Permission{Scope: acl.GlobalScope(), Actions: actions})
}

// CheckTablePermissions asks the node serving table whether the
// coordinator's user holds actions on it.
func (c *Coordinator) CheckTablePermissions(ctx context.Context, table, family, qualifier string, actions ...acl.Action) error {
	return c.check(ctx, table, acl.Permission{Scope: acl.TableScope(table, family, qualifier), Actions: actions})
}

func (c *Coordinator) check(ctx context.Context, table string, permission acl.Permission) error {
	node, err := c.locator.Locate(ctx, table, nil)
	if err != nil {
		return fmt.Errorf("locating %s: %w", table, err)
	}
	request := acl.CheckPermissionsRequest{Permissions: []acl.Permission{permission}}
	_, err = service.Call[acl.CheckPermissionsRequest, struct{}](ctx, c.invoker, node, acl.CheckPermissionsMethod, nil, &request)
	return err
}

// Versions reads every live node's policy version.
func (c *Coordinator) Versions(ctx context.Context) (converge.Snapshot, error) {
	return c.poller.Capture(ctx, c.nodeTimeout())
}

// NodeStatus is one node's policy version and digest. Err is set
// when the node did not answer.
type NodeStatus struct {
	Node    cluster.NodeID
	Version int64
	Digest  acl.Digest
	Err     error
}

// Status reads every live node's version and policy digest, sorted by
// node. Unlike Versions, a node that does not answer is reported in
// its NodeStatus rather than failing the call.
func (c *Coordinator) Status(ctx context.Context) ([]NodeStatus, error) {
	nodes, err := c.membership(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	statuses := make([]NodeStatus, len(nodes))
	var group errgroup.Group
	for i, node := range nodes {
		group.Go(func() error {
			nodeCtx, cancel := context.WithTimeout(ctx, c.nodeTimeout())
			defer cancel()
			response, err := service.Call[struct{}, acl.VersionResponse](nodeCtx, c.invoker, node, acl.GetVersionMethod, nil, nil)
			statuses[i] = NodeStatus{Node: node, Version: response.Version, Digest: response.Digest, Err: err}
			return nil
		})
	}
	group.Wait()
	return statuses, nil
}

// Agree reports whether every status answered with the same digest.
func Agree(statuses []NodeStatus) bool {
	for _, status := range statuses {
		if status.Err != nil || status.Digest != statuses[0].Digest {
			return false
		}
	}
	return true
}

func (c *Coordinator) nodeVersion(ctx context.Context, node cluster.NodeID) (int64, error) {
	response, err := service.Call[struct{}, acl.VersionResponse](ctx, c.invoker, node, acl.GetVersionMethod, nil, nil)
	if err != nil {
		return 0, err
	}
	return response.Version, nil
}

func (c *Coordinator) nodeTimeout() time.Duration {
	if c.options.NodeTimeout > 0 {
		return c.options.NodeTimeout
	}
	if c.options.PollInterval > 0 {
		return c.options.PollInterval
	}
	return converge.DefaultPollInterval
}
