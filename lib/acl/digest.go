// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acl

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/aclsync/lib/codec"
)

// Digest is a BLAKE3 keyed hash of a policy's entries. Two stores hold
// the same permissions exactly when their digests match, whatever
// their versions.
type Digest [32]byte

// policyDomainKey separates policy digests from any other BLAKE3 use
// of the same bytes. ASCII "aclsync.policy", zero-padded.
var policyDomainKey = [32]byte{
	'a', 'c', 'l', 's', 'y', 'n', 'c', '.', 'p', 'o', 'l', 'i', 'c', 'y', 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// String returns the digest as lowercase hex.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters, for tables.
func (d Digest) Short() string { return d.String()[:12] }

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool { return d == Digest{} }

// DigestEntries hashes the deterministic CBOR encoding of entries.
// Entries must already be in Snapshot order.
func DigestEntries(entries []Entry) (Digest, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := codec.Marshal(entries)
	if err != nil {
		return Digest{}, fmt.Errorf("encoding policy entries: %w", err)
	}
	// NewKeyed fails only for a key that is not 32 bytes.
	hasher, err := blake3.NewKeyed(policyDomainKey[:])
	if err != nil {
		panic("acl: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// Seal sets the policy's digest from its entries.
func (p *Policy) Seal() error {
	digest, err := DigestEntries(p.Entries)
	if err != nil {
		return err
	}
	p.Digest = digest
	return nil
}

// Verify checks that the policy's digest matches its entries.
func (p Policy) Verify() error {
	digest, err := DigestEntries(p.Entries)
	if err != nil {
		return err
	}
	if digest != p.Digest {
		return fmt.Errorf("policy digest %s does not match its entries (%s)", p.Digest.Short(), digest.Short())
	}
	return nil
}
