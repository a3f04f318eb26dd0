// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"github.com/bureau-foundation/aclsync/lib/envelope"
	"github.com/bureau-foundation/aclsync/lib/fault"
)

// RequestFrame is what a client writes to a node's socket. Caller is
// the principal on whose behalf the call is made.
type RequestFrame struct {
	Caller   string                `cbor:"caller,omitempty"`
	Envelope envelope.CallEnvelope `cbor:"envelope"`
}

// ResponseFrame is what a node writes back. When OK is false, Kind,
// Op, and Error describe the failure and Result is absent.
type ResponseFrame struct {
	OK     bool                `cbor:"ok"`
	Kind   fault.Kind          `cbor:"kind,omitempty"`
	Op     string              `cbor:"op,omitempty"`
	Error  string              `cbor:"error,omitempty"`
	Result envelope.CallResult `cbor:"result"`
}

// failureFrame builds the response frame for a handler error. The
// kind is taken from the first tagged error in the tree; when the
// handler returned a *fault.Error directly its Op is kept separate so
// the client does not repeat it in the message.
func failureFrame(err error) ResponseFrame {
	frame := ResponseFrame{OK: false, Kind: fault.KindOf(err), Error: err.Error()}
	if tagged, ok := err.(*fault.Error); ok {
		frame.Op = tagged.Op
		frame.Error = tagged.Message
		if tagged.Err != nil {
			if frame.Error != "" {
				frame.Error += ": "
			}
			frame.Error += tagged.Err.Error()
		}
	}
	return frame
}

// Err reconstructs the failure carried by a non-OK frame, using op
// when the server did not name one. Returns nil for OK frames.
func (f ResponseFrame) Err(op string) error {
	if f.OK {
		return nil
	}
	if f.Op != "" {
		op = f.Op
	}
	return &fault.Error{Kind: f.Kind, Op: op, Message: f.Error}
}
