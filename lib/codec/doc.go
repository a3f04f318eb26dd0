// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration shared by every aclsync
// wire type: the endpoint request and response frames, call envelopes,
// and the control endpoint messages they carry.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical message always produces identical bytes, which keeps
// request bytes stable when they are logged or compared in tests.
//
// For buffer-oriented operations (envelope payloads):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (socket connections):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Wire types use `cbor` struct tags. Types with a natural text form
// (acl.Action, acl.ScopeKind) implement encoding.TextMarshaler and are
// carried as CBOR text strings.
package codec
