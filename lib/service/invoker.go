// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/codec"
	"github.com/bureau-foundation/aclsync/lib/envelope"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/metrics"
)

// LevelTrace is the slog level for per-call request and response
// summaries. Enable it with a handler level of LevelTrace or lower.
const LevelTrace = slog.Level(-8)

// Invoker issues dynamic endpoint calls. It holds no per-call state
// and is safe for concurrent use.
type Invoker struct {
	provider ConnectionProvider
	caller   string
	logger   *slog.Logger
}

// NewInvoker returns an invoker that opens channels through provider
// and identifies itself as caller. A nil logger means slog.Default().
func NewInvoker(provider ConnectionProvider, caller string, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{provider: provider, caller: caller, logger: logger}
}

// Caller returns the principal the invoker acts for.
func (i *Invoker) Caller() string { return i.caller }

// As returns an invoker sharing the provider but acting for caller.
func (i *Invoker) As(caller string) *Invoker {
	return &Invoker{provider: i.provider, caller: caller, logger: i.logger}
}

// InvokeRaw sends one envelope to node and returns its result.
//
// Transport failures come back as fault.Transport, undecodable
// response frames as fault.Malformed, and server-side failures with
// the kind the server attached. Nothing is retried.
func (i *Invoker) InvokeRaw(ctx context.Context, node cluster.NodeID, method envelope.MethodDescriptor, row []byte, request []byte) (envelope.CallResult, error) {
	if !method.Valid() {
		return envelope.CallResult{}, fault.New(fault.Other, method.String(), "method descriptor needs both service and method")
	}

	callID := uuid.NewString()
	started := time.Now()
	result, err := i.invoke(ctx, node, method, row, request, callID)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = fault.KindOf(err).String()
	case !result.HasValue:
		outcome = "empty"
	}
	metrics.Invocations.WithLabelValues(method.Service, method.Method, outcome).Inc()
	metrics.InvocationSeconds.WithLabelValues(method.Service, method.Method).Observe(time.Since(started).Seconds())

	if i.logger.Enabled(ctx, LevelTrace) {
		i.logger.Log(ctx, LevelTrace, "call finished",
			"call_id", callID,
			"node", node,
			"method", method.String(),
			"outcome", outcome,
			"has_value", result.HasValue,
			"response_bytes", len(result.Value),
		)
	}
	return result, err
}

func (i *Invoker) invoke(ctx context.Context, node cluster.NodeID, method envelope.MethodDescriptor, row []byte, request []byte, callID string) (envelope.CallResult, error) {
	channel, err := i.provider.Open(ctx, node)
	if err != nil {
		return envelope.CallResult{}, err
	}

	frame := RequestFrame{Caller: i.caller, Envelope: envelope.Encode(row, method, request)}
	data, err := codec.Marshal(frame)
	if err != nil {
		return envelope.CallResult{}, &fault.Error{Kind: fault.Malformed, Op: method.String(), Message: "encoding request frame", Err: err}
	}

	if i.logger.Enabled(ctx, LevelTrace) {
		summary, _ := codec.Diagnose(request)
		i.logger.Log(ctx, LevelTrace, "call",
			"call_id", callID,
			"node", node,
			"method", method.String(),
			"row", string(row),
			"request_bytes", len(request),
			"request", summary,
		)
	}

	responseData, err := channel.Call(ctx, data)
	if err != nil {
		return envelope.CallResult{}, err
	}

	var response ResponseFrame
	if err := codec.Unmarshal(responseData, &response); err != nil {
		return envelope.CallResult{}, &fault.Error{Kind: fault.Malformed, Op: method.String(), Message: "decoding response frame", Err: err}
	}
	if err := response.Err(method.String()); err != nil {
		return envelope.CallResult{}, err
	}
	return response.Result, nil
}

// Invoke marshals request (nil sends an empty payload), calls method
// on node, and decodes the result into response. When the method
// produces no value, response is reset to its zero value.
func Invoke[Req, Resp any](ctx context.Context, invoker *Invoker, node cluster.NodeID, method envelope.MethodDescriptor, row []byte, request *Req, response *Resp) error {
	var payload []byte
	if request != nil {
		data, err := codec.Marshal(request)
		if err != nil {
			return &fault.Error{Kind: fault.Malformed, Op: method.String(), Message: "encoding request", Err: err}
		}
		payload = data
	}

	result, err := invoker.InvokeRaw(ctx, node, method, row, payload)
	if err != nil {
		return err
	}
	if err := envelope.Unpack(result, response); err != nil {
		var tagged *fault.Error
		if errors.As(err, &tagged) && tagged.Op == "" {
			tagged.Op = method.String()
		}
		return err
	}
	return nil
}

// Call is Invoke returning the response by value.
func Call[Req, Resp any](ctx context.Context, invoker *Invoker, node cluster.NodeID, method envelope.MethodDescriptor, row []byte, request *Req) (Resp, error) {
	var response Resp
	err := Invoke(ctx, invoker, node, method, row, request, &response)
	return response, err
}
