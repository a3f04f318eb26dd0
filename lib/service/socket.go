// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/aclsync/lib/codec"
	"github.com/bureau-foundation/aclsync/lib/envelope"
	"github.com/bureau-foundation/aclsync/lib/fault"
	"github.com/bureau-foundation/aclsync/lib/metrics"
)

// readTimeout is how long the server waits for the request frame.
// Clients write the frame immediately after connecting.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing the response frame.
const writeTimeout = 10 * time.Second

// maxFrameSize bounds a single request frame. A full policy snapshot
// pushed by Refresh is the largest payload this module sends.
const maxFrameSize = 4 * 1024 * 1024

// SocketServer serves a Registry on a Unix socket, one request frame
// and one response frame per connection.
type SocketServer struct {
	socketPath string
	registry   *Registry
	logger     *slog.Logger

	// ready is closed once the listener is accepting.
	ready     chan struct{}
	readyOnce sync.Once

	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server for registry on socketPath.
func NewSocketServer(socketPath string, registry *Registry, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		socketPath: socketPath,
		registry:   registry,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Ready is closed once Serve is accepting connections.
func (s *SocketServer) Ready() <-chan struct{} { return s.ready }

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight calls to finish. A stale socket file is removed before
// listening and the socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("endpoint server listening",
		"path", s.socketPath,
		"methods", len(s.registry.Methods()),
	)
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var frame RequestFrame
	if err := codec.NewDecoder(io.LimitReader(conn, maxFrameSize)).Decode(&frame); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.write(conn, failureFrame(&fault.Error{
			Kind:    fault.Malformed,
			Message: "invalid request frame",
			Err:     err,
		}))
		return
	}

	s.write(conn, serveFrame(ctx, s.registry, s.logger, frame))
}

// serveFrame dispatches one decoded request frame and builds the
// response frame, recording the outcome.
func serveFrame(ctx context.Context, registry *Registry, logger *slog.Logger, frame RequestFrame) ResponseFrame {
	method := frame.Envelope.Descriptor()
	if !method.Valid() {
		return failureFrame(fault.New(fault.Malformed, "", "request frame names no service or method"))
	}

	result, err := registry.Dispatch(ctx, frame)
	if err != nil {
		kind := fault.KindOf(err)
		metrics.HandledCalls.WithLabelValues(method.Service, method.Method, kind.String()).Inc()
		logger.Debug("call failed",
			"method", method.String(),
			"caller", frame.Caller,
			"kind", kind.String(),
			"error", err,
		)
		return failureFrame(err)
	}

	metrics.HandledCalls.WithLabelValues(method.Service, method.Method, resultOutcome(result)).Inc()
	return ResponseFrame{OK: true, Result: result}
}

// write sends a response frame. Write failures are logged at debug
// level; the connection is closing either way.
func (s *SocketServer) write(conn net.Conn, frame ResponseFrame) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(frame); err != nil {
		s.logger.Debug("failed to write response frame", "error", err)
	}
}

func resultOutcome(result envelope.CallResult) string {
	if result.HasValue {
		return "ok"
	}
	return "empty"
}
