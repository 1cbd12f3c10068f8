// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of uncompressed content. It is the
// deduplication key: identical bytes always hash to the same value, so
// the same content reached through different paths maps to one blob.
type Hash [32]byte

// HashBytes computes the BLAKE3 digest of data.
func HashBytes(data []byte) Hash {
	return blake3.Sum256(data)
}

// FormatHash returns the hex-encoded string representation of a hash.
// This is the canonical form used in cache filenames and logs.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing content hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("content hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}
