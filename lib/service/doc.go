// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the dynamic endpoint channel: a way to
// call any method a node has registered, by service and method name,
// without the channel knowing the method's request or response types.
//
// Server side:
//
//   - [Registry] maps (service, method) to a handler. [Handle] builds a
//     handler from a typed function by pairing it with a CBOR request
//     decoder and response encoder, so each entry is the triple
//     (decode request, handle, encode response) fixed at startup.
//   - [SocketServer] serves the registry on a Unix socket. Each
//     connection carries exactly one request frame and one response
//     frame.
//
// Client side:
//
//   - [Channel] moves one encoded request frame to a node and returns
//     the encoded response frame. [SocketChannel] does this over the
//     node's Unix socket.
//   - [ConnectionProvider] resolves a node to a Channel.
//     [SocketProvider] resolves through a socket path lookup and caches
//     the result per node.
//   - [Invoker] builds the envelope, sends it, and turns the response
//     frame back into a result or a tagged fault. [Call] adds typed
//     response reconstruction on top.
//
// A server-side failure crosses the wire with its fault kind, so a
// denial raised by a node's policy check surfaces on the client as a
// fault.Denial no matter how many layers wrap it afterwards.
package service
