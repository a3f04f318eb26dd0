// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope defines the uniform wire shape of a dynamic endpoint
// call. A call names its target by service and method instead of by a
// compiled-in stub, and carries the request as opaque bytes, so the
// channel that moves envelopes never needs to know the method's types.
package envelope

import (
	"fmt"

	"github.com/bureau-foundation/aclsync/lib/codec"
	"github.com/bureau-foundation/aclsync/lib/fault"
)

// MethodDescriptor identifies a remote operation.
type MethodDescriptor struct {
	Service string
	Method  string
}

// String returns "Service.Method".
func (d MethodDescriptor) String() string {
	return d.Service + "." + d.Method
}

// Valid reports whether both names are set.
func (d MethodDescriptor) Valid() bool {
	return d.Service != "" && d.Method != ""
}

// CallEnvelope is one dynamic call. Row is the routing hint: callers
// addressing a specific table row set it to that row, callers
// addressing a whole node leave it empty.
type CallEnvelope struct {
	Row     []byte `cbor:"row"`
	Service string `cbor:"service"`
	Method  string `cbor:"method"`
	Request []byte `cbor:"request"`
}

// Descriptor returns the method the envelope addresses.
func (e CallEnvelope) Descriptor() MethodDescriptor {
	return MethodDescriptor{Service: e.Service, Method: e.Method}
}

// CallResult is the outcome of a call that did not fail. HasValue is
// false when the method ran and produced nothing, which is not an
// error.
type CallResult struct {
	HasValue bool   `cbor:"has_value"`
	Value    []byte `cbor:"value,omitempty"`
}

// Encode builds the envelope for a call. A nil row is normalized to
// an empty one so that envelopes compare and encode identically.
func Encode(row []byte, method MethodDescriptor, request []byte) CallEnvelope {
	if row == nil {
		row = []byte{}
	}
	if request == nil {
		request = []byte{}
	}
	return CallEnvelope{
		Row:     row,
		Service: method.Service,
		Method:  method.Method,
		Request: request,
	}
}

// Decode extracts the response bytes from a result. When the result
// has no value, ok is false and value is nil.
func Decode(result CallResult) (value []byte, ok bool) {
	if !result.HasValue {
		return nil, false
	}
	return result.Value, true
}

// Value wraps response bytes as a result that carries a value.
func Value(data []byte) CallResult {
	if data == nil {
		data = []byte{}
	}
	return CallResult{HasValue: true, Value: data}
}

// Empty is the result of a method that produced nothing.
func Empty() CallResult {
	return CallResult{}
}

// Unpack decodes a result into the response prototype pointed to by
// response. With no value, the prototype is reset to its zero value.
// Decode failures are Malformed faults.
func Unpack[T any](result CallResult, response *T) error {
	value, ok := Decode(result)
	if !ok {
		var zero T
		*response = zero
		return nil
	}
	if err := codec.Unmarshal(value, response); err != nil {
		return &fault.Error{
			Kind:    fault.Malformed,
			Message: fmt.Sprintf("decoding %T response", *response),
			Err:     err,
		}
	}
	return nil
}
