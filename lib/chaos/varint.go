// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import "fmt"

// Numbers under 128 are stored as a single byte. Numbers at or above
// 128 are stored as a length byte (0x80 | trailing byte count) followed
// by that many little-endian bytes — just enough to hold the value, so
// a small value never pays for a full 8-byte encoding.

// varintLenMask extracts the trailing-byte count from a multi-byte
// length byte.
const varintLenMask = 0x7F

// varintMultiByteFlag marks a length byte as introducing a multi-byte
// encoding rather than being the value itself.
const varintMultiByteFlag = 0x80

// nearestByteWidth returns the smallest byte count able to hold n
// (1 through 8), matching the width the encoder picks for the
// trailing bytes of a multi-byte varint or an offset table entry.
func nearestByteWidth(n uint64) int {
	width := 1
	for n>>(8*width) != 0 {
		width++
	}
	return width
}

// putVarint appends the varint encoding of n to dst and returns the
// extended slice.
func putVarint(dst []byte, n uint64) []byte {
	if n < varintMultiByteFlag {
		return append(dst, byte(n))
	}
	width := nearestByteWidth(n)
	dst = append(dst, byte(varintMultiByteFlag|width))
	for i := 0; i < width; i++ {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst
}

// varintLen returns the number of bytes putVarint would write for n.
func varintLen(n uint64) int {
	if n < varintMultiByteFlag {
		return 1
	}
	return 1 + nearestByteWidth(n)
}

// readVarint parses a varint starting at buf[off], returning the value
// and the offset of the first byte after it.
func readVarint(buf []byte, off int) (uint64, int, error) {
	if off >= len(buf) {
		return 0, 0, fmt.Errorf("%w: varint length byte past end of buffer", ErrMalformedInput)
	}
	head := buf[off]
	if head < varintMultiByteFlag {
		return uint64(head), off + 1, nil
	}
	width := int(head & varintLenMask)
	if width > 8 {
		return 0, 0, fmt.Errorf("%w: varint declares %d trailing bytes, max is 8", ErrMalformedInput, width)
	}
	if off+1+width > len(buf) {
		return 0, 0, fmt.Errorf("%w: varint body past end of buffer", ErrMalformedInput)
	}
	var result uint64
	for i := 0; i < width; i++ {
		result |= uint64(buf[off+1+i]) << (8 * i)
	}
	return result, off + 1 + width, nil
}

// putFixedWidth appends the len-byte little-endian encoding of n to
// dst. Used for offset table entries, whose width is fixed per table
// rather than self-describing per entry.
func putFixedWidth(dst []byte, n uint64, width int) []byte {
	for i := 0; i < width; i++ {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst
}

// readFixedWidth reads a width-byte little-endian integer from
// buf[off:off+width].
func readFixedWidth(buf []byte, off int, width int) (uint64, error) {
	if off+width > len(buf) {
		return 0, fmt.Errorf("%w: fixed-width read past end of buffer", ErrMalformedInput)
	}
	var result uint64
	for i := 0; i < width; i++ {
		result |= uint64(buf[off+i]) << (8 * i)
	}
	return result, nil
}
