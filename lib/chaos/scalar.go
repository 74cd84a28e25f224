// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodeStringValue, decodeCustomValue, and decodeExtendedValue decode
// the value classes that never themselves contain a reference to
// another entity. All three decoder variants (whole-document serial,
// whole-document parallel, and selective) share this code — only the
// handling of reference and container-header bytes differs between
// them.

func decodeStringValue(data []byte, tag byte, off int) (Value, int, error) {
	off++
	length := tag & tagStringLenMask
	if length != tagStringEscape {
		if off+int(length) > len(data) {
			return Value{}, 0, fmt.Errorf("%w: string value past end of file", ErrMalformedInput)
		}
		return String(string(data[off : off+int(length)])), off + int(length), nil
	}

	compLen, off, err := readVarint(data, off)
	if err != nil {
		return Value{}, 0, err
	}
	origLen, off, err := readVarint(data, off)
	if err != nil {
		return Value{}, 0, err
	}
	if off+int(compLen) > len(data) {
		return Value{}, 0, fmt.Errorf("%w: compressed string past end of file", ErrMalformedInput)
	}
	raw, err := lz4Decompress(data[off:off+int(compLen)], int(origLen))
	if err != nil {
		return Value{}, 0, err
	}
	return String(string(raw)), off + int(compLen), nil
}

func decodeCustomValue(data []byte, customSizes map[byte]int, tag byte, off int) (Value, int, error) {
	off++
	id := uint64(tag & tagCustomMask)
	var err error
	if id == tagCustomEscape {
		id, off, err = readVarint(data, off)
		if err != nil {
			return Value{}, 0, err
		}
	}
	size, ok := customSizes[byte(id)]
	if !ok {
		return Value{}, 0, fmt.Errorf("%w: type %d", ErrUnregisteredCustomType, id)
	}
	if off+size > len(data) {
		return Value{}, 0, fmt.Errorf("%w: custom value past end of file", ErrMalformedInput)
	}
	payload := append([]byte(nil), data[off:off+size]...)
	return ForCustom(byte(id), payload), off + size, nil
}

func decodeExtendedValue(data []byte, tag byte, off int) (Value, int, error) {
	subtype := tag & tagSubtypeMask
	off++

	switch subtype {
	case tagSubtypeNull:
		return Null(), off, nil
	case tagSubtypeByte:
		if off >= len(data) {
			return Value{}, 0, fmt.Errorf("%w: missing byte value", ErrMalformedInput)
		}
		return Byte(data[off]), off + 1, nil
	case tagSubtypeFalse:
		return Boolean(false), off, nil
	case tagSubtypeTrue:
		return Boolean(true), off, nil
	case tagSubtypeFloat32:
		if off+4 > len(data) {
			return Value{}, 0, fmt.Errorf("%w: missing float32 bytes", ErrMalformedInput)
		}
		bits := binary.LittleEndian.Uint32(data[off : off+4])
		return Float(float64(math.Float32frombits(bits))), off + 4, nil
	case tagSubtypeFloat64:
		if off+8 > len(data) {
			return Value{}, 0, fmt.Errorf("%w: missing float64 bytes", ErrMalformedInput)
		}
		bits := binary.LittleEndian.Uint64(data[off : off+8])
		return Float(math.Float64frombits(bits)), off + 8, nil
	}

	if subtype <= tagSubtypeSizedMax {
		width := sizedIntWidth(subtype)
		if off+width > len(data) {
			return Value{}, 0, fmt.Errorf("%w: missing sized integer bytes", ErrMalformedInput)
		}
		magnitude, err := readFixedWidth(data, off, width)
		if err != nil {
			return Value{}, 0, err
		}
		n := int64(magnitude)
		if subtype&tagSubtypeNegFlag != 0 {
			n = -n
		}
		return Integer(n), off + width, nil
	}

	return Value{}, 0, fmt.Errorf("%w: unrecognized tag 0x%02X", ErrMalformedInput, tag)
}
