// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the error taxonomy shared by the invocation
// channel, the control endpoint, and the convergence protocol.
//
// Every failure that matters to a caller is tagged with a [Kind] at the
// point where it originates: the socket client tags transport
// failures, the control endpoint tags policy rejections, the envelope
// decoder tags malformed responses, and the poller tags timeouts. The
// kind survives the wire (the response frame carries it) and any amount
// of wrapping on the client, so consumers ask [KindOf] or [IsDenial]
// instead of inspecting messages or concrete types.
//
// Wrapping paths that aggregate several failures are modeled with
// [BatchError] (one cause per failed operation) and [InvocationError]
// (an indirect call through a dispatcher). Both participate in the
// standard errors.Is / errors.As tree walk.
package fault
