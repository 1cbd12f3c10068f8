// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"github.com/klauspost/compress/zstd"
)

// decoder is reused across calls to avoid repeated initialization.
// zstd.Decoder is safe for concurrent use via DecodeAll.
var decoder *zstd.Decoder

func init() {
	var err error
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("blobcache: zstd decoder initialization failed: " + err.Error())
	}
}

// DecompressionError indicates that a compressed blob could not be
// decoded — typically a corrupt or truncated cache entry.
type DecompressionError struct {
	Err error
}

func (e *DecompressionError) Error() string {
	return "decompressing blob: " + e.Err.Error()
}

func (e *DecompressionError) Unwrap() error {
	return e.Err
}

// Decompress decodes a zstd-compressed blob body back to the original
// bytes. Decompress(Compress(x).Compressed) == x for all x, including
// empty input.
func Decompress(compressed []byte) ([]byte, error) {
	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, &DecompressionError{Err: err}
	}
	return data, nil
}
