// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
)

// magic identifies a CHAOS file and its format version. Resolves
// SPEC_FULL.md §9 open question 1: purely additive over the bytes the
// rest of the format describes, so it doesn't perturb any offset math.
var magic = [4]byte{'C', 'H', 'A', 1}

// EncodeFile serializes root to path using the single-threaded
// encoder. root must be an Object or a List — it becomes entity 0.
// EncodeFile writes to a temporary file in path's directory and
// renames it into place, so a failed or interrupted encode never
// leaves a partial file at path.
func EncodeFile(root Value, path string, opts ...Option) error {
	o := applyOptions(opts)
	data, err := encodeSerial(root, o)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a temp file beside path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("chaos: creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("chaos: writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("chaos: closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("chaos: renaming %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// entityTree holds the flattened entity list plus the id assigned to
// every Object/List pointer reachable from the root — the product of
// the flattening pass both encoders start from.
type entityTree struct {
	entities []Value
	objIDs   map[*Object]int64
	lstIDs   map[*List]int64
}

// flatten walks root's container graph with an explicit worklist
// stack (rather than recursion, matching this format's original
// non-recursive encoder) and assigns every distinct Object/List
// pointer a contiguous entity id in discovery order. root always
// receives id 0.
func flatten(root Value) (*entityTree, error) {
	if !root.isContainer() {
		return nil, fmt.Errorf("%w: root value must be an object or a list", ErrMalformedInput)
	}

	t := &entityTree{
		objIDs: make(map[*Object]int64),
		lstIDs: make(map[*List]int64),
	}

	assign := func(v Value) (id int64, fresh bool) {
		switch v.Kind {
		case KindObject:
			if existing, ok := t.objIDs[v.Obj]; ok {
				return existing, false
			}
			id = int64(len(t.entities))
			t.objIDs[v.Obj] = id
			t.entities = append(t.entities, v)
			return id, true
		case KindList:
			if existing, ok := t.lstIDs[v.Lst]; ok {
				return existing, false
			}
			id = int64(len(t.entities))
			t.lstIDs[v.Lst] = id
			t.entities = append(t.entities, v)
			return id, true
		default:
			panic("chaos: assign called on a non-container value")
		}
	}

	assign(root)
	worklist := []int64{0}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		switch t.entities[id].Kind {
		case KindObject:
			var childErr error
			t.entities[id].Obj.Range(func(_ string, v Value) bool {
				if v.isContainer() {
					childID, fresh := assign(v)
					if fresh {
						worklist = append(worklist, childID)
					}
				}
				return childErr == nil
			})
			if childErr != nil {
				return nil, childErr
			}
		case KindList:
			for _, v := range t.entities[id].Lst.Elements() {
				if v.isContainer() {
					childID, fresh := assign(v)
					if fresh {
						worklist = append(worklist, childID)
					}
				}
			}
		}
	}

	return t, nil
}

// bodyBuilder synthesizes the wire bytes for entity bodies and
// in-body values. Both the serial and parallel encoders share it — the
// parallel encoder just runs many of them concurrently against a
// dictionary and entity-id assignment that were already fixed in a
// serial pre-pass.
type bodyBuilder struct {
	dict   *dictionary
	objIDs map[*Object]int64
	lstIDs map[*List]int64
}

// entityBody encodes one entity's full body: header, offset table,
// and data section.
func (b *bodyBuilder) entityBody(entity Value) ([]byte, error) {
	switch entity.Kind {
	case KindObject:
		return b.objectBody(entity.Obj)
	case KindList:
		return b.listBody(entity.Lst)
	default:
		return nil, fmt.Errorf("chaos: entity %d is not an object or list", entity.Kind)
	}
}

func (b *bodyBuilder) objectBody(obj *Object) ([]byte, error) {
	count := obj.Len()
	offsets := make([]uint64, 0, count)
	var data []byte

	var rangeErr error
	obj.Range(func(key string, v Value) bool {
		offsets = append(offsets, uint64(len(data)))
		data = putVarint(data, uint64(b.dict.intern(key)))
		encoded, err := b.encodeValue(v)
		if err != nil {
			rangeErr = err
			return false
		}
		data = append(data, encoded...)
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}

	return assembleContainer(count, false, offsets, data), nil
}

func (b *bodyBuilder) listBody(lst *List) ([]byte, error) {
	elems := lst.Elements()
	offsets := make([]uint64, 0, len(elems))
	var data []byte

	for _, v := range elems {
		offsets = append(offsets, uint64(len(data)))
		encoded, err := b.encodeValue(v)
		if err != nil {
			return nil, err
		}
		data = append(data, encoded...)
	}

	return assembleContainer(len(elems), true, offsets, data), nil
}

// assembleContainer builds [header][offset size byte][offset table][data].
func assembleContainer(count int, isList bool, offsets []uint64, data []byte) []byte {
	width := nearestByteWidth(uint64max(uint64(len(data)), 1))
	out := containerHeader(count, isList)
	out = append(out, byte(width))
	for _, off := range offsets {
		out = putFixedWidth(out, off, width)
	}
	return append(out, data...)
}

func uint64max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// containerHeader builds the count byte (plus trailing varint escape
// for counts at or above 0x7F) for an object or list entity body.
func containerHeader(count int, isList bool) []byte {
	base := byte(0)
	if isList {
		base = containerHeaderListBit
	}
	if count < containerHeaderEscape {
		return []byte{base | byte(count)}
	}
	out := []byte{base | containerHeaderEscape}
	return putVarint(out, uint64(count))
}

// encodeValue encodes a single value as it appears inside a
// container's data section: inline for scalars, a reference tag for
// nested containers.
func (b *bodyBuilder) encodeValue(v Value) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte{tagExtended | tagSubtypeNull}, nil
	case KindBoolean:
		if v.Bool {
			return []byte{tagExtended | tagSubtypeTrue}, nil
		}
		return []byte{tagExtended | tagSubtypeFalse}, nil
	case KindByte:
		return []byte{tagExtended | tagSubtypeByte, v.B}, nil
	case KindInteger:
		return encodeInteger(v.Int), nil
	case KindFloat:
		return encodeFloat(v.Flt), nil
	case KindString:
		return encodeString(v.Str)
	case KindObject:
		id, ok := b.objIDs[v.Obj]
		if !ok {
			return nil, fmt.Errorf("chaos: object value was not discovered during flattening")
		}
		return encodeReference(tagRefObject, id), nil
	case KindList:
		id, ok := b.lstIDs[v.Lst]
		if !ok {
			return nil, fmt.Errorf("chaos: list value was not discovered during flattening")
		}
		return encodeReference(tagRefList, id), nil
	case KindCustom:
		return encodeCustom(v.Custom), nil
	default:
		return nil, fmt.Errorf("chaos: unsupported value kind %d", v.Kind)
	}
}

// encodeReference emits a 100xxxxx/101xxxxx reference tag, escaping
// to a trailing varint when id doesn't fit the inline 5 bits.
func encodeReference(class byte, id int64) []byte {
	if id < tagRefIDEscape {
		return []byte{class | byte(id)}
	}
	out := []byte{class | tagRefIDEscape}
	return putVarint(out, uint64(id))
}

// encodeCustom emits a 1110xxxx custom-value tag followed by its
// payload, escaping the type id to a trailing varint when it doesn't
// fit the inline 4 bits.
func encodeCustom(c *CustomValue) []byte {
	var out []byte
	if c.TypeID < tagCustomEscape {
		out = []byte{tagCustom | c.TypeID}
	} else {
		out = []byte{tagCustom | tagCustomEscape}
		out = putVarint(out, uint64(c.TypeID))
	}
	return append(out, c.Payload...)
}

// encodeInteger picks the smallest representation for n: 4-bit inline
// for |n| <= 15, otherwise the smallest sized form (1, 2, 4, or 8
// bytes) holding its magnitude, tagged with sign.
//
// Negative magnitudes are computed with uint64(-n) rather than an
// absolute-value function: Go's signed arithmetic wraps silently on
// overflow (unlike C++, where negating the minimum int64 is undefined
// behavior), so uint64(-n) for n == math.MinInt64 already produces the
// correct two's-complement bit pattern without special-casing, and
// decodeExtendedValue's symmetric -int64(magnitude) recovers n exactly.
func encodeInteger(n int64) []byte {
	if n >= 0 && n <= 0x0F {
		return []byte{tagIntPos | byte(n)}
	}
	if n < 0 && n >= -0x0F {
		return []byte{tagIntNeg | byte(-n)}
	}

	negative := n < 0
	var magnitude uint64
	if negative {
		magnitude = uint64(-n)
	} else {
		magnitude = uint64(n)
	}

	width := sizedWidthFor(magnitude)
	out := []byte{sizedIntTag(width, negative)}
	return putFixedWidth(out, magnitude, width)
}

// sizedWidthFor returns the smallest of {1, 2, 4, 8} bytes that holds
// m.
func sizedWidthFor(m uint64) int {
	switch {
	case m < 1<<8:
		return 1
	case m < 1<<16:
		return 2
	case m < 1<<32:
		return 4
	default:
		return 8
	}
}

// encodeFloat narrows to float32 whenever f's magnitude fits, even
// when narrowing loses precision, and otherwise stores the full
// float64. This is a magnitude test, not a round-trip test: a value
// outside float32 range always stays 64-bit, and one inside it always
// narrows.
func encodeFloat(f float64) []byte {
	if f >= -math.MaxFloat32 && f <= math.MaxFloat32 {
		out := make([]byte, 5)
		out[0] = tagExtended | tagSubtypeFloat32
		binary.LittleEndian.PutUint32(out[1:], math.Float32bits(float32(f)))
		return out
	}
	out := make([]byte, 9)
	out[0] = tagExtended | tagSubtypeFloat64
	binary.LittleEndian.PutUint64(out[1:], math.Float64bits(f))
	return out
}

// encodeString encodes s inline when short, or through the compressed
// escape when its length reaches compressStringThreshold — at which
// point compression is not optional, since the inline form has no way
// to represent a string that long.
func encodeString(s string) ([]byte, error) {
	raw := []byte(s)
	if len(raw) < compressStringThreshold {
		return append([]byte{byte(len(raw))}, raw...), nil
	}

	compressed, err := lz4CompressBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("chaos: compressing string of length %d: %w", len(raw), err)
	}
	out := []byte{tagStringEscape}
	out = putVarint(out, uint64(len(compressed)))
	out = putVarint(out, uint64(len(raw)))
	return append(out, compressed...), nil
}

// encodeSerial runs the single-threaded encode pipeline: flatten,
// synthesize each entity body in id order (building the dictionary as
// keys are encountered), then assemble the container file.
func encodeSerial(root Value, o Options) ([]byte, error) {
	tree, err := flatten(root)
	if err != nil {
		return nil, err
	}

	b := &bodyBuilder{
		dict:   newDictionary(),
		objIDs: tree.objIDs,
		lstIDs: tree.lstIDs,
	}

	bodies := make([][]byte, len(tree.entities))
	for id, entity := range tree.entities {
		body, err := b.entityBody(entity)
		if err != nil {
			return nil, fmt.Errorf("chaos: encoding entity %d: %w", id, err)
		}
		bodies[id] = body
	}

	out, err := assembleFile(bodies, b.dict)
	if err != nil {
		return nil, err
	}

	o.Logger.Info("chaos: encoded document",
		"entities", len(tree.entities),
		"size", datasize.ByteSize(len(out)).String())
	return out, nil
}

// assembleFile lays out the final byte stream: magic, header length,
// entity count, dictionary section, entity offset table, then the
// concatenated entity bodies in id order.
func assembleFile(bodies [][]byte, dict *dictionary) ([]byte, error) {
	entityOffsets := make([]uint64, len(bodies))
	var dataRegion []byte
	for i, body := range bodies {
		entityOffsets[i] = uint64(len(dataRegion))
		dataRegion = append(dataRegion, body...)
	}

	dictSection, err := writeDictionarySection(nil, dict)
	if err != nil {
		return nil, fmt.Errorf("chaos: writing dictionary section: %w", err)
	}

	entityOffsetWidth := nearestByteWidth(uint64max(uint64(len(dataRegion)), 1))

	var rest []byte
	rest = putVarint(rest, uint64(len(bodies)))
	rest = append(rest, dictSection...)
	rest = append(rest, byte(entityOffsetWidth))
	for _, off := range entityOffsets {
		rest = putFixedWidth(rest, off, entityOffsetWidth)
	}

	out := make([]byte, 0, 4+10+len(rest)+len(dataRegion))
	out = append(out, magic[:]...)
	out = putVarint(out, uint64(len(rest)))
	out = append(out, rest...)
	out = append(out, dataRegion...)
	return out, nil
}
