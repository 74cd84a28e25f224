// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"
)

// DecodeFile reads and fully decodes a CHAOS document using the
// single-threaded decoder.
func DecodeFile(path string, opts ...Option) (Value, error) {
	o := applyOptions(opts)
	mapped, err := openMapped(path)
	if err != nil {
		return Value{}, err
	}
	defer mapped.close()

	return decodeWholeDocument(mapped.bytes(), o)
}

// decodeWholeDocument parses a complete CHAOS byte stream.
func decodeWholeDocument(data []byte, o Options) (Value, error) {
	header, err := parseHeader(data)
	if err != nil {
		return Value{}, err
	}

	d := &serialDecoder{
		data:          data,
		dict:          header.dict,
		entityOffsets: header.entityOffsets,
		baseOffset:    header.baseOffset,
		customSizes:   o.CustomSizes,
		visiting:      make(map[int64]bool),
	}
	return d.decodeWrapper(0)
}

// fileHeader is the parsed result of everything before the entity data
// region: the dictionary and the entity offset table.
type fileHeader struct {
	dict          []string
	entityOffsets []uint64
	baseOffset    int
}

// parseHeader parses the magic, header length, entity count,
// dictionary section, and entity offset table shared by every decoder
// variant.
func parseHeader(data []byte) (*fileHeader, error) {
	if len(data) < 4 || data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] {
		return nil, fmt.Errorf("%w: missing CHAOS magic bytes", ErrMalformedInput)
	}
	if data[3] != magic[3] {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrMalformedInput, data[3])
	}

	off := 4
	restLen, off, err := readVarint(data, off)
	if err != nil {
		return nil, fmt.Errorf("%w: header length: %v", ErrMalformedInput, err)
	}
	restStart := off

	entityCount, off, err := readVarint(data, off)
	if err != nil {
		return nil, fmt.Errorf("%w: entity count: %v", ErrMalformedInput, err)
	}

	dictStrings, off, err := readDictionarySection(data, off)
	if err != nil {
		return nil, err
	}

	if off >= len(data) {
		return nil, fmt.Errorf("%w: missing entity offset width byte", ErrMalformedInput)
	}
	offsetWidth := int(data[off])
	off++

	entityOffsets := make([]uint64, entityCount)
	for i := range entityOffsets {
		v, err := readFixedWidth(data, off, offsetWidth)
		if err != nil {
			return nil, fmt.Errorf("%w: entity offset table: %v", ErrMalformedInput, err)
		}
		entityOffsets[i] = v
		off += offsetWidth
	}

	if uint64(off-restStart) != restLen {
		return nil, fmt.Errorf("%w: header length %d does not match parsed header of %d bytes", ErrMalformedInput, restLen, off-restStart)
	}

	return &fileHeader{dict: dictStrings, entityOffsets: entityOffsets, baseOffset: off}, nil
}

// serialDecoder walks a fully-loaded byte slice to decode an entire
// document. visiting guards against a cyclic reference graph: a
// reference that is already being resolved decodes to Null instead of
// recursing forever.
type serialDecoder struct {
	data          []byte
	dict          []string
	entityOffsets []uint64
	baseOffset    int
	customSizes   map[byte]int
	visiting      map[int64]bool
}

// decodeWrapper decodes the entity with the given id, by seeking to
// its body and dispatching on whether it is an object or a list.
func (d *serialDecoder) decodeWrapper(id int64) (Value, error) {
	if d.visiting[id] {
		return Null(), nil
	}
	if id < 0 || int(id) >= len(d.entityOffsets) {
		return Value{}, fmt.Errorf("%w: entity id %d", ErrDanglingReference, id)
	}
	d.visiting[id] = true
	defer delete(d.visiting, id)

	off := d.baseOffset + int(d.entityOffsets[id])
	if off >= len(d.data) {
		return Value{}, fmt.Errorf("%w: entity %d offset past end of file", ErrMalformedInput, id)
	}

	if d.data[off]&containerHeaderListBit != 0 {
		v, _, err := d.decodeListBody(off)
		return v, err
	}
	v, _, err := d.decodeObjectBody(off)
	return v, err
}

// readContainerHeader parses the count byte (with its varint escape)
// at off, returning the count and the offset of the offset-width byte
// that follows it.
func readContainerHeader(data []byte, off int) (count int, next int, err error) {
	if off >= len(data) {
		return 0, 0, fmt.Errorf("%w: missing container header byte", ErrMalformedInput)
	}
	raw := data[off] & containerHeaderCountMask
	off++
	if raw != containerHeaderEscape {
		return int(raw), off, nil
	}
	n, off, err := readVarint(data, off)
	if err != nil {
		return 0, 0, err
	}
	return int(n), off, nil
}

func (d *serialDecoder) decodeObjectBody(off int) (Value, int, error) {
	count, off, err := readContainerHeader(d.data, off)
	if err != nil {
		return Value{}, 0, err
	}
	if off >= len(d.data) {
		return Value{}, 0, fmt.Errorf("%w: missing object offset-width byte", ErrMalformedInput)
	}
	width := int(d.data[off])
	off++

	off += count * width // skip the offset table; the serial decoder reads fields in order
	obj := NewObject()
	for i := 0; i < count; i++ {
		keyIdx, next, err := readVarint(d.data, off)
		if err != nil {
			return Value{}, 0, fmt.Errorf("%w: object field %d key: %v", ErrMalformedInput, i, err)
		}
		off = next
		key, err := d.lookupKey(keyIdx)
		if err != nil {
			return Value{}, 0, err
		}
		v, next, err := d.decodeValue(off)
		if err != nil {
			return Value{}, 0, err
		}
		off = next
		obj.Set(key, v)
	}
	return ForObject(obj), off, nil
}

func (d *serialDecoder) decodeListBody(off int) (Value, int, error) {
	count, off, err := readContainerHeader(d.data, off)
	if err != nil {
		return Value{}, 0, err
	}
	if off >= len(d.data) {
		return Value{}, 0, fmt.Errorf("%w: missing list offset-width byte", ErrMalformedInput)
	}
	width := int(d.data[off])
	off++

	off += count * width
	lst := NewList(count)
	for i := 0; i < count; i++ {
		v, next, err := d.decodeValue(off)
		if err != nil {
			return Value{}, 0, err
		}
		off = next
		lst.Append(v)
	}
	return ForList(lst), off, nil
}

func (d *serialDecoder) lookupKey(idx uint64) (string, error) {
	if idx >= uint64(len(d.dict)) {
		return "", fmt.Errorf("%w: key index %d (%d entries)", ErrMalformedInput, idx, len(d.dict))
	}
	return d.dict[idx], nil
}

// decodeValue decodes the tagged value starting at off, returning the
// value and the offset of the first byte after it.
func (d *serialDecoder) decodeValue(off int) (Value, int, error) {
	if off >= len(d.data) {
		return Value{}, 0, fmt.Errorf("%w: missing value tag", ErrMalformedInput)
	}
	tag := d.data[off]

	if tag&tagStringHighBit == 0 {
		return decodeStringValue(d.data, tag, off)
	}

	if tag&tagRefTopMask == tagRefObject || tag&tagRefTopMask == tagRefList {
		id := uint64(tag & tagRefIDMask)
		off++
		if id == tagRefIDEscape {
			var err error
			id, off, err = readVarint(d.data, off)
			if err != nil {
				return Value{}, 0, err
			}
		}
		v, err := d.decodeWrapper(int64(id))
		return v, off, err
	}

	switch tag & tagIntTopMask {
	case tagIntPos:
		return Integer(int64(tag & tagIntMask)), off + 1, nil
	case tagIntNeg:
		return Integer(-int64(tag & tagIntMask)), off + 1, nil
	}

	if tag&0xF0 == tagCustom {
		return decodeCustomValue(d.data, d.customSizes, tag, off)
	}

	return decodeExtendedValue(d.data, tag, off)
}
