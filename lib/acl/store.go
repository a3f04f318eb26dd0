// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acl

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/aclsync/lib/metrics"
)

// Entry is one principal's actions on one scope.
type Entry struct {
	Principal string   `cbor:"principal"`
	Scope     Scope    `cbor:"scope"`
	Actions   []Action `cbor:"actions"`
}

// Policy is a full copy of a store's entries. Version is the version
// of the store the snapshot was taken from; receivers use it to drop
// snapshots older than one already applied. Versions are only
// comparable within one Epoch, which names the source store's
// lifetime. Digest covers Entries.
type Policy struct {
	Epoch   string  `cbor:"epoch"`
	Version int64   `cbor:"version"`
	Entries []Entry `cbor:"entries"`
	Digest  Digest  `cbor:"digest"`
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Node labels the store's version gauge.
	Node string

	// Superusers hold every action on every scope. Entries starting
	// with "@" name groups.
	Superusers []string

	// Groups maps a group name (without the "@") to its members.
	// Permissions granted to ConvertToGroup(name) apply to every
	// member.
	Groups map[string][]string
}

// Store is a node's versioned permission cache. Safe for concurrent
// use.
type Store struct {
	node       string
	epoch      string
	superusers map[string]bool
	memberOf   map[string][]string

	mu      sync.RWMutex
	entries map[string]map[Scope]actionSet
	version int64

	// applied is the highest snapshot version accepted by Replace
	// from appliedEpoch.
	applied      int64
	appliedEpoch string
}

// NewStore returns an empty store at version 0.
func NewStore(options StoreOptions) *Store {
	store := &Store{
		node:       options.Node,
		epoch:      uuid.NewString(),
		superusers: make(map[string]bool, len(options.Superusers)),
		memberOf:   make(map[string][]string),
		entries:    make(map[string]map[Scope]actionSet),
	}
	for _, name := range options.Superusers {
		store.superusers[name] = true
	}
	for group, members := range options.Groups {
		for _, member := range members {
			store.memberOf[member] = append(store.memberOf[member], ConvertToGroup(group))
		}
	}
	metrics.PolicyVersion.WithLabelValues(store.node).Set(0)
	return store
}

// Version returns the current version.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Grant adds actions on scope to principal and returns the new
// version. The version advances even when every action was already
// held: observers wait for the advance, not for a content change.
func (s *Store) Grant(principal string, scope Scope, actions []Action) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes := s.entries[principal]
	if scopes == nil {
		scopes = make(map[Scope]actionSet)
		s.entries[principal] = scopes
	}
	scopes[scope] |= setOf(actions)
	return s.bumpLocked()
}

// Revoke removes actions on scope from principal and returns the new
// version. Revoking actions that were never granted still advances the
// version.
func (s *Store) Revoke(principal string, scope Scope, actions []Action) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scopes := s.entries[principal]; scopes != nil {
		remaining := scopes[scope] &^ setOf(actions)
		if remaining == 0 {
			delete(scopes, scope)
		} else {
			scopes[scope] = remaining
		}
		if len(scopes) == 0 {
			delete(s.entries, principal)
		}
	}
	return s.bumpLocked()
}

// Check returns the actions in actions that principal does not hold
// on scope, in wire order. A nil result means every action is held.
func (s *Store) Check(principal string, scope Scope, actions []Action) []Action {
	if s.isSuperuser(principal) {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.heldLocked(principal, scope)
	for _, group := range s.memberOf[principal] {
		held |= s.heldLocked(group, scope)
	}
	return (setOf(actions) &^ held).list()
}

// IsSuperuser reports whether principal holds every action.
func (s *Store) IsSuperuser(principal string) bool {
	return s.isSuperuser(principal)
}

func (s *Store) isSuperuser(principal string) bool {
	if s.superusers[principal] {
		return true
	}
	for _, group := range s.memberOf[principal] {
		if s.superusers[group] {
			return true
		}
	}
	return false
}

func (s *Store) heldLocked(principal string, target Scope) actionSet {
	var held actionSet
	for scope, set := range s.entries[principal] {
		if scope.Covers(target) {
			held |= set
		}
	}
	return held
}

// Permissions returns principal's own entries, sorted by scope.
func (s *Store) Permissions(principal string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := entriesOf(principal, s.entries[principal])
	sortEntries(entries)
	return entries
}

// Snapshot returns a sealed copy of every entry and the current
// version.
func (s *Store) Snapshot() Policy {
	s.mu.RLock()
	policy := Policy{Epoch: s.epoch, Version: s.version}
	for principal, scopes := range s.entries {
		policy.Entries = append(policy.Entries, entriesOf(principal, scopes)...)
	}
	s.mu.RUnlock()

	sortEntries(policy.Entries)
	// Entries come from the store, so every action is valid and the
	// encoding cannot fail.
	if err := policy.Seal(); err != nil {
		panic("acl: sealing snapshot: " + err.Error())
	}
	return policy
}

// Digest returns the digest of the store's current entries and the
// version it was taken at.
func (s *Store) Digest() (Digest, int64) {
	policy := s.Snapshot()
	return policy.Digest, policy.Version
}

// Replace swaps the store's entries for those of policy and advances
// the version. A snapshot whose version is not newer than the last one
// applied from the same epoch is ignored; Replace reports whether it
// was applied. A snapshot from a new epoch is always applied, since its
// source restarted and counts versions from zero again.
func (s *Store) Replace(policy Policy) (version int64, applied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if policy.Epoch != s.appliedEpoch {
		s.appliedEpoch = policy.Epoch
		s.applied = 0
	}
	if policy.Version <= s.applied {
		return s.version, false
	}
	entries := make(map[string]map[Scope]actionSet)
	for _, entry := range policy.Entries {
		scopes := entries[entry.Principal]
		if scopes == nil {
			scopes = make(map[Scope]actionSet)
			entries[entry.Principal] = scopes
		}
		scopes[entry.Scope] |= setOf(entry.Actions)
	}
	s.entries = entries
	s.applied = policy.Version
	return s.bumpLocked(), true
}

func (s *Store) bumpLocked() int64 {
	s.version++
	metrics.PolicyVersion.WithLabelValues(s.node).Set(float64(s.version))
	return s.version
}

func entriesOf(principal string, scopes map[Scope]actionSet) []Entry {
	entries := make([]Entry, 0, len(scopes))
	for scope, set := range scopes {
		entries = append(entries, Entry{Principal: principal, Scope: scope, Actions: set.list()})
	}
	return entries
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Principal != entries[j].Principal {
			return entries[i].Principal < entries[j].Principal
		}
		return entries[i].Scope.String() < entries[j].Scope.String()
	})
}
