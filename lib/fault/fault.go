// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure by where it came from and what the caller
// may do about it.
type Kind int

const (
	// Other is any failure without a more specific classification.
	Other Kind = iota

	// Transport is a network or RPC-level failure: the node could not
	// be reached or the connection broke mid-call. Never retried by
	// this module.
	Transport

	// Denial means the policy rejected the action.
	Denial

	// Malformed means a frame or payload could not be decoded. This
	// is a local bug or a protocol mismatch, not a transient error.
	Malformed

	// ConvergenceTimeout means a change was accepted but not observed
	// on every live node before the deadline.
	ConvergenceTimeout
)

var kindNames = map[Kind]string{
	Other:              "other",
	Transport:          "transport",
	Denial:             "denial",
	Malformed:          "malformed",
	ConvergenceTimeout: "convergence-timeout",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind as its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a wire name. Unknown names decode as Other so
// that a newer server cannot make an older client fail to read an
// error response.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	*k = Other
	return nil
}

// Error is the tagged error type. Op names the operation that failed
// (for example "AccessControlService.Grant" or "open node2"), Message
// is a human-readable description, and Err is an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var builder strings.Builder
	if e.Op != "" {
		builder.WriteString(e.Op)
		builder.WriteString(": ")
	}
	builder.WriteString(e.Kind.String())
	if e.Message != "" {
		builder.WriteString(": ")
		builder.WriteString(e.Message)
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind with no Op
// or Message of its own, which lets sentinel comparisons like
// errors.Is(err, &fault.Error{Kind: fault.Denial}) work.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind && other.Op == "" && other.Message == "" && other.Err == nil
}

// New returns an *Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Denied returns a Denial error for principal attempting op.
func Denied(op, principal, format string, args ...any) *Error {
	message := fmt.Sprintf(format, args...)
	if principal != "" {
		message = fmt.Sprintf("insufficient permissions for user '%s': %s", principal, message)
	}
	return &Error{Kind: Denial, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error found in err's tree, in
// the pre-order depth-first order used by errors.As. Errors with no
// *Error anywhere return Other.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return Other
}

// Has reports whether any *Error of the given kind appears anywhere in
// err's tree, including every branch of multi-cause aggregates.
func Has(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var found bool
	walk(err, func(e error) bool {
		if tagged, ok := e.(*Error); ok && tagged.Kind == kind {
			found = true
			return false
		}
		return true
	})
	return found
}

// IsDenial reports whether a Denial appears anywhere in err's tree.
func IsDenial(err error) bool { return Has(err, Denial) }

// IsTransport reports whether a Transport failure appears anywhere in
// err's tree.
func IsTransport(err error) bool { return Has(err, Transport) }

// walk visits err and every error reachable through Unwrap() error and
// Unwrap() []error. visit returns false to stop the walk.
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return true
	}
	if !visit(err) {
		return false
	}
	switch unwrapper := err.(type) {
	case interface{ Unwrap() error }:
		return walk(unwrapper.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, child := range unwrapper.Unwrap() {
			if !walk(child, visit) {
				return false
			}
		}
	}
	return true
}
