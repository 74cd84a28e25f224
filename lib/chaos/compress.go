// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// compressStringThreshold is the raw string length at and above which
// a string must use the compressed-string wire form: the inline
// string tag's low 7 bits can only hold lengths up to 126, so 127 is
// reserved as the escape into the compressed form, and there is no
// raw-but-escaped alternative — a string this long is always LZ4
// compressed, whether or not that actually shrinks it.
const compressStringThreshold = 127

// compressDictionaryThreshold is the raw dictionary buffer size at and
// above which the dictionary section must use its compressed form,
// for the same reason: the single-byte flag can represent a raw
// length up to 254, and 0xFF is reserved to mean "compressed."
const compressDictionaryThreshold = 255

// lz4CompressBlock compresses data with the HC (high compression)
// block encoder at its maximum level, unconditionally — callers only
// reach for this once the wire format has already committed to a
// compressed representation, so there is no raw fallback to weigh
// against, and no reason to trade ratio for encode speed.
func lz4CompressBlock(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlockHC(data, dst, lz4.Level9, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chaos: lz4 compress: %w", err)
	}
	return dst[:written], nil
}

// lz4Decompress reverses lz4CompressBlock. originalSize must be the
// exact length of the data before compression.
func lz4Decompress(compressed []byte, originalSize int) ([]byte, error) {
	dst := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("chaos: lz4 decompress: %w", err)
	}
	if n != originalSize {
		return nil, fmt.Errorf("%w: lz4 decompress produced %d bytes, expected %d", ErrMalformedInput, n, originalSize)
	}
	return dst, nil
}
