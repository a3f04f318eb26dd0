// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/aclsync/lib/codec"
	"github.com/bureau-foundation/aclsync/lib/fault"
)

// dialTimeout bounds the connect phase of a call.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long a client waits for the response
// frame when the context carries no earlier deadline. Matches the
// server's read plus write timeouts.
const responseReadTimeout = 40 * time.Second

// Channel carries one encoded request frame to a node and returns the
// encoded response frame.
type Channel interface {
	Call(ctx context.Context, request []byte) ([]byte, error)
}

// SocketChannel is a Channel over a node's Unix socket. Each call
// opens a new connection, matching the server's one-frame-per-
// connection model.
type SocketChannel struct {
	socketPath string
}

// NewSocketChannel returns a channel for socketPath.
func NewSocketChannel(socketPath string) *SocketChannel {
	return &SocketChannel{socketPath: socketPath}
}

// SocketPath returns the socket the channel dials.
func (c *SocketChannel) SocketPath() string { return c.socketPath }

// Call writes request and reads one CBOR item back. Every failure is
// a fault.Transport: the frame itself is not interpreted here.
func (c *SocketChannel) Call(ctx context.Context, request []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fault.Wrap(fault.Transport, "connecting to "+c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(responseReadTimeout)
	if contextDeadline, ok := ctx.Deadline(); ok && contextDeadline.Before(deadline) {
		deadline = contextDeadline
	}
	conn.SetDeadline(deadline)

	// Abort the blocking read if the context ends first.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.Write(request); err != nil {
		return nil, fault.Wrap(fault.Transport, "writing request", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxFrameSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, fault.Wrap(fault.Transport, "reading response", fmt.Errorf("%w (%v)", ctx.Err(), err))
		}
		return nil, fault.Wrap(fault.Transport, "reading response", err)
	}
	return response, nil
}
