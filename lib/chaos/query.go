// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"
	"strconv"
)

// Decoder provides selective, random-access decoding of a CHAOS
// document: each query component descends one level into the document
// (an object field name or a list index) without materializing
// sibling subtrees. Once the query is exhausted, the remaining subtree
// decodes in full through the same logic DecodeFile uses.
type Decoder struct {
	mapped      *mappedFile
	header      *fileHeader
	customSizes map[byte]int
	query       []string
}

// Open memory-maps path and parses its header, ready for selective
// decoding. The caller must call Close when done.
func Open(path string, opts ...Option) (*Decoder, error) {
	o := applyOptions(opts)
	mapped, err := openMapped(path)
	if err != nil {
		return nil, err
	}
	header, err := parseHeader(mapped.bytes())
	if err != nil {
		mapped.close()
		return nil, err
	}
	return &Decoder{mapped: mapped, header: header, customSizes: o.CustomSizes}, nil
}

// Close unmaps the underlying file.
func (d *Decoder) Close() error { return d.mapped.close() }

// SetQuery sets the path to descend before decoding: each component is
// either an object field name or, for a list, a base-10 index. An
// empty or nil query means "decode the whole document", the same
// result DecodeFile would produce.
func (d *Decoder) SetQuery(components []string) { d.query = components }

// RegisterCustomSize registers the fixed payload size for a custom
// value type id, in addition to (or overriding) any sizes passed to
// Open through WithCustomSize.
func (d *Decoder) RegisterCustomSize(id byte, size int) {
	if d.customSizes == nil {
		d.customSizes = make(map[byte]int)
	}
	d.customSizes[id] = size
}

// Decode resolves the current query against the document and returns
// the value it names.
func (d *Decoder) Decode() (Value, error) {
	s := &selectiveDecoder{data: d.mapped.bytes(), dict: d.header.dict, customSizes: d.customSizes, query: d.query}
	return s.decodeEntity(0, d.header.entityOffsets, d.header.baseOffset)
}

// Keys returns the field names of the object the current query names,
// in the same sorted order Object.Keys returns, without decoding any
// field's value.
func (d *Decoder) Keys() ([]string, error) {
	s := &selectiveDecoder{data: d.mapped.bytes(), dict: d.header.dict, customSizes: d.customSizes, query: d.query}
	off, isList, err := s.locateContainer(0, d.header.entityOffsets, d.header.baseOffset)
	if err != nil {
		return nil, err
	}
	if isList {
		return nil, fmt.Errorf("%w: Keys called on a list", ErrNotContainer)
	}

	count, off, err := readContainerHeader(s.data, off)
	if err != nil {
		return nil, err
	}
	if off >= len(s.data) {
		return nil, fmt.Errorf("%w: missing object offset-width byte", ErrMalformedInput)
	}
	width := int(s.data[off])
	off++
	tableStart := off
	dataStart := off + count*width

	keys := make([]string, count)
	for i := 0; i < count; i++ {
		entryOff, err := readFixedWidth(s.data, tableStart+i*width, width)
		if err != nil {
			return nil, err
		}
		keyIdx, _, err := readVarint(s.data, dataStart+int(entryOff))
		if err != nil {
			return nil, err
		}
		if keyIdx >= uint64(len(s.dict)) {
			return nil, fmt.Errorf("%w: key index %d (%d entries)", ErrMalformedInput, keyIdx, len(s.dict))
		}
		keys[i] = s.dict[keyIdx]
	}
	return keys, nil
}

// Len returns the element count of the object or list the current
// query names, without decoding any element.
func (d *Decoder) Len() (int, error) {
	s := &selectiveDecoder{data: d.mapped.bytes(), dict: d.header.dict, customSizes: d.customSizes, query: d.query}
	off, _, err := s.locateContainer(0, d.header.entityOffsets, d.header.baseOffset)
	if err != nil {
		return 0, err
	}
	count, _, err := readContainerHeader(s.data, off)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// selectiveDecoder walks query one component at a time. pos advances
// as components are consumed; once it reaches len(query), whatever
// entity or value remains decodes in full.
type selectiveDecoder struct {
	data        []byte
	dict        []string
	customSizes map[byte]int
	query       []string
	pos         int
}

// decodeEntity decodes the entity with the given id under the
// remaining query. If the query is already exhausted, it hands off to
// a full serialDecoder rather than duplicating whole-subtree decode
// logic a third time.
func (s *selectiveDecoder) decodeEntity(id int64, entityOffsets []uint64, baseOffset int) (Value, error) {
	if id < 0 || int(id) >= len(entityOffsets) {
		return Value{}, fmt.Errorf("%w: entity id %d", ErrDanglingReference, id)
	}
	off := baseOffset + int(entityOffsets[id])
	if off >= len(s.data) {
		return Value{}, fmt.Errorf("%w: entity %d offset past end of file", ErrMalformedInput, id)
	}
	isList := s.data[off]&containerHeaderListBit != 0

	if s.pos >= len(s.query) {
		full := &serialDecoder{
			data:          s.data,
			dict:          s.dict,
			entityOffsets: entityOffsets,
			baseOffset:    baseOffset,
			customSizes:   s.customSizes,
			visiting:      make(map[int64]bool),
		}
		return full.decodeWrapper(id)
	}

	component := s.query[s.pos]
	s.pos++
	if isList {
		return s.decodeListSelective(off, component, entityOffsets, baseOffset)
	}
	return s.decodeObjectSelective(off, component, entityOffsets, baseOffset)
}

func (s *selectiveDecoder) decodeObjectSelective(off int, key string, entityOffsets []uint64, baseOffset int) (Value, error) {
	valOff, err := objectValueOffset(s.data, s.dict, off, key)
	if err != nil {
		return Value{}, err
	}
	return s.decodeValue(valOff, entityOffsets, baseOffset)
}

func (s *selectiveDecoder) decodeListSelective(off int, component string, entityOffsets []uint64, baseOffset int) (Value, error) {
	idx, err := strconv.Atoi(component)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q is not a valid list index", ErrMalformedInput, component)
	}
	valOff, err := listValueOffset(s.data, off, idx)
	if err != nil {
		return Value{}, err
	}
	return s.decodeValue(valOff, entityOffsets, baseOffset)
}

// decodeValue decodes the value at off. A reference continues the
// selective descent; a scalar ends it, and is an error if the query
// still has components left to consume (there is nothing left to
// descend into).
func (s *selectiveDecoder) decodeValue(off int, entityOffsets []uint64, baseOffset int) (Value, error) {
	if off >= len(s.data) {
		return Value{}, fmt.Errorf("%w: missing value tag", ErrMalformedInput)
	}
	tag := s.data[off]

	if id, _, ok, err := parseReferenceTag(s.data, tag, off); err != nil {
		return Value{}, err
	} else if ok {
		return s.decodeEntity(id, entityOffsets, baseOffset)
	}

	if s.pos < len(s.query) {
		return Value{}, fmt.Errorf("%w: query continues past a scalar value", ErrNotContainer)
	}

	if tag&tagStringHighBit == 0 {
		v, _, err := decodeStringValue(s.data, tag, off)
		return v, err
	}
	switch tag & tagIntTopMask {
	case tagIntPos:
		return Integer(int64(tag & tagIntMask)), nil
	case tagIntNeg:
		return Integer(-int64(tag & tagIntMask)), nil
	}
	if tag&0xF0 == tagCustom {
		v, _, err := decodeCustomValue(s.data, s.customSizes, tag, off)
		return v, err
	}
	v, _, err := decodeExtendedValue(s.data, tag, off)
	return v, err
}

// locateContainer descends the remaining query the same way
// decodeEntity does, but stops at the offset of a container's header
// instead of decoding into it — enough for Keys and Len to read the
// header without materializing any element.
func (s *selectiveDecoder) locateContainer(id int64, entityOffsets []uint64, baseOffset int) (off int, isList bool, err error) {
	if id < 0 || int(id) >= len(entityOffsets) {
		return 0, false, fmt.Errorf("%w: entity id %d", ErrDanglingReference, id)
	}
	off = baseOffset + int(entityOffsets[id])
	if off >= len(s.data) {
		return 0, false, fmt.Errorf("%w: entity %d offset past end of file", ErrMalformedInput, id)
	}
	isList = s.data[off]&containerHeaderListBit != 0

	if s.pos >= len(s.query) {
		return off, isList, nil
	}

	component := s.query[s.pos]
	s.pos++

	var valOff int
	if isList {
		idx, convErr := strconv.Atoi(component)
		if convErr != nil {
			return 0, false, fmt.Errorf("%w: %q is not a valid list index", ErrMalformedInput, component)
		}
		valOff, err = listValueOffset(s.data, off, idx)
	} else {
		valOff, err = objectValueOffset(s.data, s.dict, off, component)
	}
	if err != nil {
		return 0, false, err
	}
	if valOff >= len(s.data) {
		return 0, false, fmt.Errorf("%w: value past end of file", ErrMalformedInput)
	}

	refID, _, ok, err := parseReferenceTag(s.data, s.data[valOff], valOff)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, ErrNotContainer
	}
	return s.locateContainer(refID, entityOffsets, baseOffset)
}

// parseReferenceTag reports whether tag is an object/list reference
// tag and, if so, the entity id it names and the offset of the first
// byte after it.
func parseReferenceTag(data []byte, tag byte, off int) (id int64, next int, ok bool, err error) {
	if tag&tagRefTopMask != tagRefObject && tag&tagRefTopMask != tagRefList {
		return 0, off, false, nil
	}
	rawID := uint64(tag & tagRefIDMask)
	off++
	if rawID == tagRefIDEscape {
		rawID, off, err = readVarint(data, off)
		if err != nil {
			return 0, 0, false, err
		}
	}
	return int64(rawID), off, true, nil
}

// objectValueOffset binary-searches the object entity body starting at
// off for key, returning the byte offset of its value. Fields are
// stored in sorted key order, the same order Object.Set maintains, so
// the search never needs to fall back to a linear scan.
func objectValueOffset(data []byte, dict []string, off int, key string) (int, error) {
	count, off, err := readContainerHeader(data, off)
	if err != nil {
		return 0, err
	}
	if off >= len(data) {
		return 0, fmt.Errorf("%w: missing object offset-width byte", ErrMalformedInput)
	}
	width := int(data[off])
	off++
	tableStart := off
	dataStart := off + count*width

	lo, hi := 0, count-1
	for lo <= hi {
		mid := (lo + hi) / 2
		entryOff, err := readFixedWidth(data, tableStart+mid*width, width)
		if err != nil {
			return 0, err
		}
		keyIdx, valOff, err := readVarint(data, dataStart+int(entryOff))
		if err != nil {
			return 0, err
		}
		if keyIdx >= uint64(len(dict)) {
			return 0, fmt.Errorf("%w: key index %d (%d entries)", ErrMalformedInput, keyIdx, len(dict))
		}
		switch candidate := dict[keyIdx]; {
		case candidate == key:
			return valOff, nil
		case candidate < key:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// listValueOffset returns the byte offset of the value at index in the
// list entity body starting at off.
func listValueOffset(data []byte, off int, index int) (int, error) {
	count, off, err := readContainerHeader(data, off)
	if err != nil {
		return 0, err
	}
	if off >= len(data) {
		return 0, fmt.Errorf("%w: missing list offset-width byte", ErrMalformedInput)
	}
	width := int(data[off])
	off++
	if index < 0 || index >= count {
		return 0, fmt.Errorf("%w: index %d (length %d)", ErrIndexOutOfRange, index, count)
	}
	entryOff, err := readFixedWidth(data, off+index*width, width)
	if err != nil {
		return 0, err
	}
	dataStart := off + count*width
	return dataStart + int(entryOff), nil
}
