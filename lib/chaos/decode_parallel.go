// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DecodeFileParallel decodes a CHAOS document the same way DecodeFile
// does, but fans entity-body decoding out across a worker pool. Each
// worker owns its own byte cursor into the shared read-only mmap, so
// there is no contention during the decode phase; a second, separate
// phase resolves entity references against the results, guarded by
// two small mutexes — one over the memoized per-entity result, one
// over the in-flight set used to break reference cycles.
func DecodeFileParallel(path string, opts ...Option) (Value, error) {
	o := applyOptions(opts)
	mapped, err := openMapped(path)
	if err != nil {
		return Value{}, err
	}
	defer mapped.close()

	return decodeWholeDocumentParallel(mapped.bytes(), o)
}

func decodeWholeDocumentParallel(data []byte, o Options) (Value, error) {
	header, err := parseHeader(data)
	if err != nil {
		return Value{}, err
	}

	raw := &parallelRawDecoder{data: data, dict: header.dict, customSizes: o.CustomSizes}

	rawEntities := make([]Value, len(header.entityOffsets))
	g := new(errgroup.Group)
	g.SetLimit(o.resolvedWorkers())
	for id := range header.entityOffsets {
		id := id
		g.Go(func() error {
			off := header.baseOffset + int(header.entityOffsets[id])
			if off >= len(data) {
				return fmt.Errorf("%w: entity %d offset past end of file", ErrMalformedInput, id)
			}
			var v Value
			var err error
			if data[off]&containerHeaderListBit != 0 {
				v, _, err = raw.decodeListBody(off)
			} else {
				v, _, err = raw.decodeObjectBody(off)
			}
			if err != nil {
				return fmt.Errorf("chaos: decoding entity %d: %w", id, err)
			}
			rawEntities[id] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Value{}, err
	}

	r := &referenceResolver{rawEntities: rawEntities}
	return r.resolve(0)
}

// referenceResolver replaces KindReference placeholders left by
// parallelRawDecoder with the fully resolved entity they point to.
// Resolution can itself be run concurrently (each top-level field of
// an entity can resolve independently), so the memoized result cache
// and the cycle-detecting in-flight set are guarded by separate
// mutexes rather than a single lock serializing both concerns.
type referenceResolver struct {
	rawEntities []Value

	resultMu sync.Mutex
	results  map[int64]Value

	visitMu  sync.Mutex
	visiting map[int64]bool
}

func (r *referenceResolver) resolve(id int64) (Value, error) {
	r.resultMu.Lock()
	if r.results == nil {
		r.results = make(map[int64]Value)
	}
	if v, ok := r.results[id]; ok {
		r.resultMu.Unlock()
		return v, nil
	}
	r.resultMu.Unlock()

	r.visitMu.Lock()
	if r.visiting == nil {
		r.visiting = make(map[int64]bool)
	}
	if r.visiting[id] {
		r.visitMu.Unlock()
		return Null(), nil
	}
	r.visiting[id] = true
	r.visitMu.Unlock()
	defer func() {
		r.visitMu.Lock()
		delete(r.visiting, id)
		r.visitMu.Unlock()
	}()

	if id < 0 || int(id) >= len(r.rawEntities) {
		return Value{}, fmt.Errorf("%w: entity id %d", ErrDanglingReference, id)
	}

	resolved, err := r.resolveValue(r.rawEntities[id])
	if err != nil {
		return Value{}, err
	}

	r.resultMu.Lock()
	r.results[id] = resolved
	r.resultMu.Unlock()
	return resolved, nil
}

func (r *referenceResolver) resolveValue(v Value) (Value, error) {
	switch v.Kind {
	case KindReference:
		return r.resolve(v.RefID)
	case KindObject:
		out := NewObject()
		var rangeErr error
		v.Obj.Range(func(key string, fv Value) bool {
			rv, err := r.resolveValue(fv)
			if err != nil {
				rangeErr = err
				return false
			}
			out.Set(key, rv)
			return true
		})
		if rangeErr != nil {
			return Value{}, rangeErr
		}
		return ForObject(out), nil
	case KindList:
		out := NewList(v.Lst.Len())
		for _, e := range v.Lst.Elements() {
			rv, err := r.resolveValue(e)
			if err != nil {
				return Value{}, err
			}
			out.Append(rv)
		}
		return ForList(out), nil
	default:
		return v, nil
	}
}

// parallelRawDecoder decodes one entity body at a time from a shared,
// read-only byte slice. Unlike serialDecoder, it never follows a
// reference itself — it returns a KindReference placeholder instead —
// so many goroutines can run it concurrently against the same
// underlying bytes without any shared mutable state.
type parallelRawDecoder struct {
	data        []byte
	dict        []string
	customSizes map[byte]int
}

func (d *parallelRawDecoder) decodeObjectBody(off int) (Value, int, error) {
	count, off, err := readContainerHeader(d.data, off)
	if err != nil {
		return Value{}, 0, err
	}
	if off >= len(d.data) {
		return Value{}, 0, fmt.Errorf("%w: missing object offset-width byte", ErrMalformedInput)
	}
	width := int(d.data[off])
	off++
	off += count * width

	obj := NewObject()
	for i := 0; i < count; i++ {
		keyIdx, next, err := readVarint(d.data, off)
		if err != nil {
			return Value{}, 0, fmt.Errorf("%w: object field %d key: %v", ErrMalformedInput, i, err)
		}
		off = next
		if keyIdx >= uint64(len(d.dict)) {
			return Value{}, 0, fmt.Errorf("%w: key index %d (%d entries)", ErrMalformedInput, keyIdx, len(d.dict))
		}
		v, next, err := d.decodeValue(off)
		if err != nil {
			return Value{}, 0, err
		}
		off = next
		obj.Set(d.dict[keyIdx], v)
	}
	return ForObject(obj), off, nil
}

func (d *parallelRawDecoder) decodeListBody(off int) (Value, int, error) {
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

func (d *parallelRawDecoder) decodeValue(off int) (Value, int, error) {
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
		return Value{Kind: KindReference, RefID: int64(id)}, off, nil
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
