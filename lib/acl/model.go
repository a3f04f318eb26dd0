// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acl

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Action is one of the closed set of privileges a principal can hold.
// It is wider than a byte so that []Action encodes as an array of
// names; CBOR encodes a byte-kind slice as a byte string.
type Action uint16

const (
	Read Action = 1 << iota
	Write
	Exec
	Create
	Admin
)

// AllActions lists every action in wire order.
var AllActions = []Action{Read, Write, Exec, Create, Admin}

var actionNames = map[Action]string{
	Read:   "READ",
	Write:  "WRITE",
	Exec:   "EXEC",
	Create: "CREATE",
	Admin:  "ADMIN",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", uint16(a))
}

// Valid reports whether a is a single known action.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action %d", uint16(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action name.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction parses an action name, case-insensitively.
func ParseAction(name string) (Action, error) {
	upper := strings.ToUpper(name)
	for action, actionName := range actionNames {
		if actionName == upper {
			return action, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q (want one of READ, WRITE, EXEC, CREATE, ADMIN)", name)
}

// ParseActions parses a list of action names.
func ParseActions(names []string) ([]Action, error) {
	actions := make([]Action, 0, len(names))
	for _, name := range names {
		action, err := ParseAction(name)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// actionSet is a bitmask of actions.
type actionSet uint16

func setOf(actions []Action) actionSet {
	var set actionSet
	for _, action := range actions {
		set |= actionSet(action)
	}
	return set
}

func (s actionSet) has(action Action) bool { return s&actionSet(action) != 0 }

// list returns the actions in s in wire order.
func (s actionSet) list() []Action {
	var actions []Action
	for _, action := range AllActions {
		if s.has(action) {
			actions = append(actions, action)
		}
	}
	return actions
}

// ScopeKind says what a Scope covers.
type ScopeKind uint8

const (
	ScopeGlobal ScopeKind = iota
	ScopeNamespace
	ScopeTable
)

var scopeKindNames = map[ScopeKind]string{
	ScopeGlobal:    "global",
	ScopeNamespace: "namespace",
	ScopeTable:     "table",
}

func (k ScopeKind) String() string {
	if name, ok := scopeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ScopeKind(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k ScopeKind) MarshalText() ([]byte, error) {
	if _, ok := scopeKindNames[k]; !ok {
		return nil, fmt.Errorf("invalid scope kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ScopeKind) UnmarshalText(text []byte) error {
	for kind, name := range scopeKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown scope kind %q", text)
}

// DefaultNamespace is the namespace of a table named without one.
const DefaultNamespace = "default"

// Scope is what a permission applies to. Table scopes may narrow to a
// column family and, within it, a qualifier.
type Scope struct {
	Kind      ScopeKind `cbor:"kind"`
	Namespace string    `cbor:"namespace,omitempty"`
	Table     string    `cbor:"table,omitempty"`
	Family    string    `cbor:"family,omitempty"`
	Qualifier string    `cbor:"qualifier,omitempty"`
}

// GlobalScope covers every namespace and table.
func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

// NamespaceScope covers every table in namespace.
func NamespaceScope(namespace string) Scope {
	return Scope{Kind: ScopeNamespace, Namespace: namespace}
}

// TableScope covers table, or one family or qualifier of it when
// those are non-empty. Table names may carry a "namespace:" prefix.
func TableScope(table, family, qualifier string) Scope {
	return Scope{Kind: ScopeTable, Table: table, Family: family, Qualifier: qualifier}
}

// TableNamespace returns the namespace part of a table name.
func TableNamespace(table string) string {
	if namespace, _, found := strings.Cut(table, ":"); found {
		return namespace
	}
	return DefaultNamespace
}

// Validate checks that the scope sets exactly the fields its kind uses.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		if s.Namespace != "" || s.Table != "" || s.Family != "" || s.Qualifier != "" {
			return errors.New("global scope takes no namespace, table, family, or qualifier")
		}
	case ScopeNamespace:
		if s.Namespace == "" {
			return errors.New("namespace scope requires a namespace")
		}
		if s.Table != "" || s.Family != "" || s.Qualifier != "" {
			return errors.New("namespace scope takes no table, family, or qualifier")
		}
	case ScopeTable:
		if s.Table == "" {
			return errors.New("table scope requires a table")
		}
		if s.Namespace != "" {
			return errors.New("table scope names its namespace in the table name")
		}
		if s.Qualifier != "" && s.Family == "" {
			return errors.New("qualifier requires a family")
		}
	default:
		return fmt.Errorf("unknown scope kind %d", uint8(s.Kind))
	}
	return nil
}

// Covers reports whether a permission held on s also applies to
// target.
func (s Scope) Covers(target Scope) bool {
	switch s.Kind {
	case ScopeGlobal:
		return true
	case ScopeNamespace:
		switch target.Kind {
		case ScopeNamespace:
			return target.Namespace == s.Namespace
		case ScopeTable:
			return TableNamespace(target.Table) == s.Namespace
		}
		return false
	case ScopeTable:
		if target.Kind != ScopeTable || target.Table != s.Table {
			return false
		}
		if s.Family == "" {
			return true
		}
		if target.Family != s.Family {
			return false
		}
		return s.Qualifier == "" || target.Qualifier == s.Qualifier
	}
	return false
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeGlobal:
		return "global"
	case ScopeNamespace:
		return "namespace " + s.Namespace
	case ScopeTable:
		var builder strings.Builder
		builder.WriteString("table ")
		builder.WriteString(s.Table)
		if s.Family != "" {
			builder.WriteString(" family ")
			builder.WriteString(s.Family)
		}
		if s.Qualifier != "" {
			builder.WriteString(" qualifier ")
			builder.WriteString(s.Qualifier)
		}
		return builder.String()
	}
	return s.Kind.String()
}

// Permission is a set of actions on a scope.
type Permission struct {
	Scope   Scope    `cbor:"scope"`
	Actions []Action `cbor:"actions"`
}

// PermissionChangeRequest grants or revokes actions on a scope for a
// principal.
type PermissionChangeRequest struct {
	Principal string   `cbor:"principal"`
	Scope     Scope    `cbor:"scope"`
	Actions   []Action `cbor:"actions"`
}

// Validate reports the first problem with the request.
func (r PermissionChangeRequest) Validate() error {
	if r.Principal == "" {
		return errors.New("principal is required")
	}
	if err := r.Scope.Validate(); err != nil {
		return err
	}
	return validateActions(r.Actions)
}

func validateActions(actions []Action) error {
	if len(actions) == 0 {
		return errors.New("at least one action is required")
	}
	for _, action := range actions {
		if !action.Valid() {
			return fmt.Errorf("invalid action %d", uint16(action))
		}
	}
	return nil
}

// formatActions renders actions as "READ,WRITE" in wire order.
func formatActions(actions []Action) string {
	sorted := append([]Action(nil), actions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	names := make([]string, len(sorted))
	for i, action := range sorted {
		names[i] = action.String()
	}
	return strings.Join(names, ",")
}

// principalPrefix marks a name as a namespace owner or a group rather
// than a user.
const principalPrefix = "@"

// ConvertToNamespace returns the principal name under which namespace
// permissions for namespace are recorded.
func ConvertToNamespace(namespace string) string {
	return principalPrefix + namespace
}

// ConvertToGroup returns the principal name of group.
func ConvertToGroup(group string) string {
	return principalPrefix + group
}

// IsGroupPrincipal reports whether principal names a group.
func IsGroupPrincipal(principal string) bool {
	return strings.HasPrefix(principal, principalPrefix)
}

// NodePrincipal is the principal a node acts as when it pushes
// snapshots to its peers.
func NodePrincipal(node string) string {
	return "node:" + node
}
