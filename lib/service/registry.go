// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bureau-foundation/aclsync/lib/codec"
	"github.com/bureau-foundation/aclsync/lib/envelope"
	"github.com/bureau-foundation/aclsync/lib/fault"
)

// Incoming is a decoded request frame as seen by a handler.
type Incoming struct {
	// Caller is the principal the client claims to act for.
	Caller string

	// Row is the routing hint of the envelope.
	Row []byte

	// Request is the undecoded request payload.
	Request []byte
}

// HandlerFunc processes a call. A nil error with envelope.Empty() is
// the "ran and produced nothing" outcome.
type HandlerFunc func(ctx context.Context, call Incoming) (envelope.CallResult, error)

// Registry maps method descriptors to handlers. Register every method
// before serving; lookups after that are read-only.
type Registry struct {
	mu       sync.RWMutex
	handlers map[envelope.MethodDescriptor]HandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[envelope.MethodDescriptor]HandlerFunc)}
}

// Register adds a handler. Panics on an invalid descriptor or a
// duplicate registration: both are wiring bugs.
func (r *Registry) Register(method envelope.MethodDescriptor, handler HandlerFunc) {
	if !method.Valid() {
		panic(fmt.Sprintf("service.Registry: invalid method descriptor %+v", method))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[method]; exists {
		panic(fmt.Sprintf("service.Registry: duplicate handler for %s", method))
	}
	r.handlers[method] = handler
}

// Methods returns every registered descriptor, sorted.
func (r *Registry) Methods() []envelope.MethodDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]envelope.MethodDescriptor, 0, len(r.handlers))
	for method := range r.handlers {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].String() < methods[j].String()
	})
	return methods
}

// Dispatch routes a request frame to its handler.
func (r *Registry) Dispatch(ctx context.Context, frame RequestFrame) (envelope.CallResult, error) {
	method := frame.Envelope.Descriptor()
	r.mu.RLock()
	handler, exists := r.handlers[method]
	r.mu.RUnlock()
	if !exists {
		return envelope.CallResult{}, fault.New(fault.Other, method.String(), "no such method registered")
	}
	return handler(ctx, Incoming{
		Caller:  frame.Caller,
		Row:     frame.Envelope.Row,
		Request: frame.Envelope.Request,
	})
}

// Request is a call whose payload has been decoded into Body.
type Request[T any] struct {
	Caller string
	Row    []byte
	Body   T
}

// Handle registers a typed handler. The request payload is decoded
// into Req (an empty payload leaves Req at its zero value). A nil
// *Resp produces an empty result; otherwise the response is encoded
// as the result value.
func Handle[Req, Resp any](registry *Registry, method envelope.MethodDescriptor, handler func(ctx context.Context, request Request[Req]) (*Resp, error)) {
	registry.Register(method, func(ctx context.Context, call Incoming) (envelope.CallResult, error) {
		request := Request[Req]{Caller: call.Caller, Row: call.Row}
		if len(call.Request) > 0 {
			if err := codec.Unmarshal(call.Request, &request.Body); err != nil {
				return envelope.CallResult{}, &fault.Error{
					Kind:    fault.Malformed,
					Op:      method.String(),
					Message: "decoding request",
					Err:     err,
				}
			}
		}

		response, err := handler(ctx, request)
		if err != nil {
			return envelope.CallResult{}, err
		}
		if response == nil {
			return envelope.Empty(), nil
		}

		data, err := codec.Marshal(response)
		if err != nil {
			return envelope.CallResult{}, fmt.Errorf("%s: encoding response: %w", method, err)
		}
		return envelope.Value(data), nil
	})
}
