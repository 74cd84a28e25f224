// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"bytes"
	"strings"
	"testing"
)

func TestLZ4RoundtripCompressible(t *testing.T) {
	data := []byte(strings.Repeat("chaos wire format compression test ", 200))

	compressed, err := lz4CompressBlock(data)
	if err != nil {
		t.Fatalf("lz4CompressBlock failed: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed size %d did not shrink below original %d", len(compressed), len(data))
	}

	got, err := lz4Decompress(compressed, len(data))
	if err != nil {
		t.Fatalf("lz4Decompress failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("decompressed bytes do not match original")
	}
}

func TestLZ4RoundtripIncompressible(t *testing.T) {
	// Random-looking bytes that don't shrink under LZ4 still round-trip:
	// the format never needs an "is it worth it" decision, only a
	// correct one. The 256 bytes below are each byte value once, in a
	// scrambled order, so no 4-byte sequence repeats for LZ4 to match.
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i*167 + 13)
	}

	compressed, err := lz4CompressBlock(data)
	if err != nil {
		t.Fatalf("lz4CompressBlock failed: %v", err)
	}

	got, err := lz4Decompress(compressed, len(data))
	if err != nil {
		t.Fatalf("lz4Decompress failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("decompressed bytes do not match original")
	}
}

func TestLZ4DecompressWrongSize(t *testing.T) {
	data := []byte(strings.Repeat("x", 500))
	compressed, err := lz4CompressBlock(data)
	if err != nil {
		t.Fatalf("lz4CompressBlock failed: %v", err)
	}

	if _, err := lz4Decompress(compressed, len(data)-1); err == nil {
		t.Error("lz4Decompress should fail when the declared original size is wrong")
	}
}
