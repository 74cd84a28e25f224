// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"

	"github.com/samber/lo"
)

// dictionary is the append-only table of interned key strings shared
// by every object in a document. Keys are looked up by string and
// referenced elsewhere by their integer index, which is almost always
// far smaller on the wire than the key itself.
type dictionary struct {
	strings []string
	index   map[string]int
}

func newDictionary() *dictionary {
	return &dictionary{index: make(map[string]int)}
}

// intern returns the index of s, appending it if it hasn't been seen
// before. The index a key receives is stable for the lifetime of the
// dictionary — once assigned it never changes.
func (d *dictionary) intern(s string) int {
	if i, ok := d.index[s]; ok {
		return i
	}
	i := len(d.strings)
	d.strings = append(d.strings, s)
	d.index[s] = i
	return i
}

// lookup returns the string at index i.
func (d *dictionary) lookup(i int) (string, error) {
	if i < 0 || i >= len(d.strings) {
		return "", fmt.Errorf("%w: dictionary index %d out of range (%d entries)", ErrMalformedInput, i, len(d.strings))
	}
	return d.strings[i], nil
}

// buildDictionaryFromKeys interns every key across a set of Objects in
// first-seen order and returns the resulting dictionary. Used by the
// parallel encoder's serial pre-pass, which must fix key indices
// before entity bodies can be synthesized concurrently.
func buildDictionaryFromKeys(keySets [][]string) *dictionary {
	d := newDictionary()
	for _, keys := range keySets {
		for _, k := range lo.Uniq(keys) {
			d.intern(k)
		}
	}
	return d
}

// serialize writes the dictionary as a sequence of varint-length-
// prefixed strings, in index order, and returns the raw (uncompressed)
// bytes.
func (d *dictionary) serialize() []byte {
	var buf []byte
	for _, s := range d.strings {
		buf = putVarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

// parseDictionary parses a raw (already decompressed) dictionary
// buffer into an ordered slice of strings.
func parseDictionary(buf []byte) ([]string, error) {
	var out []string
	off := 0
	for off < len(buf) {
		length, next, err := readVarint(buf, off)
		if err != nil {
			return nil, fmt.Errorf("%w: dictionary entry length: %v", ErrMalformedInput, err)
		}
		off = next
		if off+int(length) > len(buf) {
			return nil, fmt.Errorf("%w: dictionary entry length %d exceeds buffer", ErrMalformedInput, length)
		}
		out = append(out, string(buf[off:off+int(length)]))
		off += int(length)
	}
	return out, nil
}

// writeDictionarySection appends the dictionary section (flag byte
// plus body) to dst. The flag byte is either the raw length (when
// < 0xFF) or 0xFF to signal a compressed body prefixed with
// compressed/original size varints — mirroring the per-string
// compression escape used for long strings in the value stream. A raw
// buffer at or above the threshold has no representation other than
// the compressed one, so compression there is unconditional.
func writeDictionarySection(dst []byte, d *dictionary) ([]byte, error) {
	raw := d.serialize()

	if len(raw) < compressDictionaryThreshold {
		dst = append(dst, byte(len(raw)))
		return append(dst, raw...), nil
	}

	compressed, err := lz4CompressBlock(raw)
	if err != nil {
		return nil, err
	}
	dst = append(dst, 0xFF)
	dst = putVarint(dst, uint64(len(compressed)))
	dst = putVarint(dst, uint64(len(raw)))
	return append(dst, compressed...), nil
}

// readDictionarySection parses the dictionary section starting at
// buf[off], returning the parsed strings and the offset just past the
// section.
func readDictionarySection(buf []byte, off int) ([]string, int, error) {
	if off >= len(buf) {
		return nil, 0, fmt.Errorf("%w: missing dictionary flag byte", ErrMalformedInput)
	}
	flag := buf[off]
	off++

	var raw []byte
	if flag == 0xFF {
		compressedSize, next, err := readVarint(buf, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		originalSize, next, err := readVarint(buf, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		if off+int(compressedSize) > len(buf) {
			return nil, 0, fmt.Errorf("%w: dictionary compressed body exceeds buffer", ErrMalformedInput)
		}
		raw, err = lz4Decompress(buf[off:off+int(compressedSize)], int(originalSize))
		if err != nil {
			return nil, 0, err
		}
		off += int(compressedSize)
	} else {
		n := int(flag)
		if off+n > len(buf) {
			return nil, 0, fmt.Errorf("%w: dictionary raw body exceeds buffer", ErrMalformedInput)
		}
		raw = buf[off : off+n]
		off += n
	}

	strs, err := parseDictionary(raw)
	if err != nil {
		return nil, 0, err
	}
	return strs, off, nil
}
