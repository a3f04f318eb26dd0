// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/aclsync/lib/envelope"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/service"
)

// ServiceName is the endpoint service every node registers.
const ServiceName = "AccessControlService"

// ACLTable is the table holding the cluster policy. Grants and revokes
// are sent to the node hosting it, addressed at the empty start row.
const ACLTable = "hbase:acl"

var (
	GrantMethod            = envelope.MethodDescriptor{Service: ServiceName, Method: "Grant"}
	RevokeMethod           = envelope.MethodDescriptor{Service: ServiceName, Method: "Revoke"}
	CheckPermissionsMethod = envelope.MethodDescriptor{Service: ServiceName, Method: "CheckPermissions"}
	GetVersionMethod       = envelope.MethodDescriptor{Service: ServiceName, Method: "GetVersion"}
	RefreshMethod          = envelope.MethodDescriptor{Service: ServiceName, Method: "Refresh"}
)

// ChangeResponse reports the store version after a grant or revoke.
type ChangeResponse struct {
	Version int64 `cbor:"version"`
}

// CheckPermissionsRequest lists permissions the caller wants to
// confirm it holds.
type CheckPermissionsRequest struct {
	Permissions []Permission `cbor:"permissions"`
}

// VersionResponse is a node's current store version and the digest of
// its entries.
type VersionResponse struct {
	Node    string `cbor:"node"`
	Version int64  `cbor:"version"`
	Digest  Digest `cbor:"digest"`
}

// RefreshResponse reports whether a pushed snapshot was applied and
// the store version afterwards.
type RefreshResponse struct {
	Applied bool  `cbor:"applied"`
	Version int64 `cbor:"version"`
}

// Publisher receives the store snapshot after every successful grant
// or revoke. *Propagator implements it.
type Publisher interface {
	Publish(policy Policy)
}

// EndpointConfig wires the AccessControlService handlers.
type EndpointConfig struct {
	// Node is reported by GetVersion.
	Node string

	Store *Store

	// Publisher is told about every mutation. Nil on a node with no
	// peers.
	Publisher Publisher

	// RefreshCallers may call Refresh in addition to superusers.
	// These are the node principals of the peers that push snapshots.
	RefreshCallers []string

	Logger *slog.Logger
}

type endpoint struct {
	node           string
	store          *Store
	publisher      Publisher
	refreshCallers map[string]bool
	logger         *slog.Logger
}

// RegisterEndpoint adds the AccessControlService methods to registry.
func RegisterEndpoint(registry *service.Registry, config EndpointConfig) {
	handlers := &endpoint{
		node:           config.Node,
		store:          config.Store,
		publisher:      config.Publisher,
		refreshCallers: make(map[string]bool, len(config.RefreshCallers)),
		logger:         config.Logger,
	}
	if handlers.logger == nil {
		handlers.logger = slog.Default()
	}
	for _, caller := range config.RefreshCallers {
		handlers.refreshCallers[caller] = true
	}

	service.Handle(registry, GrantMethod, handlers.handleGrant)
	service.Handle(registry, RevokeMethod, handlers.handleRevoke)
	service.Handle(registry, CheckPermissionsMethod, handlers.handleCheckPermissions)
	service.Handle(registry, GetVersionMethod, handlers.handleGetVersion)
	service.Handle(registry, RefreshMethod, handlers.handleRefresh)
}

func (e *endpoint) handleGrant(_ context.Context, request service.Request[PermissionChangeRequest]) (*ChangeResponse, error) {
	change := request.Body
	if err := e.authorizeChange(GrantMethod, request.Caller, change); err != nil {
		return nil, err
	}
	version := e.store.Grant(change.Principal, change.Scope, change.Actions)
	e.logger.Info("permission granted",
		"caller", request.Caller,
		"principal", change.Principal,
		"scope", change.Scope.String(),
		"actions", formatActions(change.Actions),
		"version", version,
	)
	e.publish()
	return &ChangeResponse{Version: version}, nil
}

func (e *endpoint) handleRevoke(_ context.Context, request service.Request[PermissionChangeRequest]) (*ChangeResponse, error) {
	change := request.Body
	if err := e.authorizeChange(RevokeMethod, request.Caller, change); err != nil {
		return nil, err
	}
	version := e.store.Revoke(change.Principal, change.Scope, change.Actions)
	e.logger.Info("permission revoked",
		"caller", request.Caller,
		"principal", change.Principal,
		"scope", change.Scope.String(),
		"actions", formatActions(change.Actions),
		"version", version,
	)
	e.publish()
	return &ChangeResponse{Version: version}, nil
}

// authorizeChange requires ADMIN on the changed scope.
func (e *endpoint) authorizeChange(method envelope.MethodDescriptor, caller string, change PermissionChangeRequest) error {
	if err := change.Validate(); err != nil {
		return &fault.Error{Kind: fault.Malformed, Op: method.String(), Message: "invalid permission change", Err: err}
	}
	if caller == "" {
		return fault.Denied(method.String(), "", "anonymous callers cannot change permissions")
	}
	if missing := e.store.Check(caller, change.Scope, []Action{Admin}); len(missing) > 0 {
		return fault.Denied(method.String(), caller, "action ADMIN on %s", change.Scope)
	}
	return nil
}

func (e *endpoint) publish() {
	if e.publisher != nil {
		e.publisher.Publish(e.store.Snapshot())
	}
}

// handleCheckPermissions answers with an empty result when the caller
// holds every listed permission and with a denial naming the first
// missing one otherwise.
func (e *endpoint) handleCheckPermissions(_ context.Context, request service.Request[CheckPermissionsRequest]) (*struct{}, error) {
	if len(request.Body.Permissions) == 0 {
		return nil, fault.New(fault.Malformed, CheckPermissionsMethod.String(), "no permissions to check")
	}
	for _, permission := range request.Body.Permissions {
		if err := permission.Scope.Validate(); err != nil {
			return nil, &fault.Error{Kind: fault.Malformed, Op: CheckPermissionsMethod.String(), Message: "invalid scope", Err: err}
		}
		if err := validateActions(permission.Actions); err != nil {
			return nil, &fault.Error{Kind: fault.Malformed, Op: CheckPermissionsMethod.String(), Message: "invalid actions", Err: err}
		}
		missing := e.store.Check(request.Caller, permission.Scope, permission.Actions)
		if len(missing) > 0 {
			return nil, fault.Denied(CheckPermissionsMethod.String(), request.Caller,
				"action %s on %s", formatActions(missing), permission.Scope)
		}
	}
	return nil, nil
}

func (e *endpoint) handleGetVersion(context.Context, service.Request[struct{}]) (*VersionResponse, error) {
	digest, version := e.store.Digest()
	return &VersionResponse{Node: e.node, Version: version, Digest: digest}, nil
}

func (e *endpoint) handleRefresh(_ context.Context, request service.Request[Policy]) (*RefreshResponse, error) {
	if !e.refreshCallers[request.Caller] && !e.store.IsSuperuser(request.Caller) {
		return nil, fault.Denied(RefreshMethod.String(), request.Caller, "not a peer of node %s", e.node)
	}
	for i, entry := range request.Body.Entries {
		if err := entry.Scope.Validate(); err != nil {
			return nil, &fault.Error{Kind: fault.Malformed, Op: RefreshMethod.String(), Message: fmt.Sprintf("entry %d", i), Err: err}
		}
	}
	if err := request.Body.Verify(); err != nil {
		return nil, &fault.Error{Kind: fault.Malformed, Op: RefreshMethod.String(), Message: "corrupt snapshot", Err: err}
	}
	version, applied := e.store.Replace(request.Body)
	e.logger.Debug("policy refreshed",
		"from", request.Caller,
		"snapshot_version", request.Body.Version,
		"applied", applied,
		"version", version,
	)
	return &RefreshResponse{Applied: applied, Version: version}, nil
}
