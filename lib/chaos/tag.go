// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

// The tag byte alphabet. A tag is read in one of two grammar
// positions — a container header (object/list count) or a value tag —
// and the two positions share bit patterns: an object header and an
// inline string tag both have the high bit clear, and 0x7F is the
// "read the real count/length as a following varint" escape in both.
// This is unambiguous because the grammar never reads a container
// header where a value tag is expected or vice versa.
//
// Value tag layout (high bits first):
//
//	0xxxxxxx  inline string, length in low 7 bits (0x7F = compressed
//	          string escape: varint compressed size, varint original
//	          size, compressed bytes follow)
//	100xxxxx  object-entity reference, low 5 bits are the entity id
//	          (0x1F = escape: entity id follows as a varint)
//	101xxxxx  list-entity reference, same id encoding as above
//	1100xxxx  inline positive integer, value in low 4 bits (0-15)
//	1101xxxx  inline negative integer, value is -(low 4 bits)
//	1110xxxx  custom value, low 4 bits are the type id (0xF = escape:
//	          type id follows as a varint); payload length comes from
//	          the registered size for that type id
//	11110xyy  sized integer: yy selects width 1<<yy bytes (1,2,4,8),
//	          x selects sign (0 = positive, 1 = negative)
//	11111000  float32 (4 bytes follow)
//	11111001  float64 (8 bytes follow)
//	11111100  null
//	11111101  byte (1 byte follows)
//	11111110  false
//	11111111  true
//
// Container header layout:
//
//	0xxxxxxx  object header, field count in low 7 bits (0x7F = escape:
//	          count follows as a varint)
//	1xxxxxxx  list header, element count in low 7 bits (same escape)
const (
	tagStringLenMask   = 0x7F
	tagStringEscape    = 0x7F
	tagStringHighBit   = 0x80 // clear => string tag

	tagRefTopMask  = 0xE0
	tagRefObject   = 0x80 // 100xxxxx
	tagRefList     = 0xA0 // 101xxxxx
	tagRefIDMask   = 0x1F
	tagRefIDEscape = 0x1F

	tagIntTopMask = 0xF0
	tagIntPos     = 0xC0 // 1100xxxx
	tagIntNeg     = 0xD0 // 1101xxxx
	tagIntMask    = 0x0F

	tagCustom       = 0xE0 // 1110xxxx
	tagCustomMask   = 0x0F
	tagCustomEscape = 0x0F

	tagExtended = 0xF0 // 1111xxxx, subtype in low 4 bits

	tagSubtypeMask   = 0x0F
	tagSubtypeSizedMax = 0x07 // 0x00-0x07: sized integers
	tagSubtypeNegFlag  = 0x04
	tagSubtypeWidthMask = 0x03
	tagSubtypeFloat32 = 0x08
	tagSubtypeFloat64 = 0x09
	tagSubtypeNull    = 0x0C
	tagSubtypeByte    = 0x0D
	tagSubtypeFalse   = 0x0E
	tagSubtypeTrue    = 0x0F

	// containerHeaderCountMask/Escape apply to the count byte read at
	// the start of an entity body by readContainerHeader, a position
	// value tags are never read from.
	containerHeaderListBit  = 0x80
	containerHeaderCountMask = 0x7F
	containerHeaderEscape    = 0x7F
)

// sizedIntTag builds a 0xF0-class tag for an integer stored in
// exactly width bytes (1, 2, 4, or 8), with the sign folded into the
// tag rather than the stored bits — the caller stores abs(n) in width
// little-endian bytes and negate on decode.
func sizedIntTag(width int, negative bool) byte {
	var shift byte
	switch width {
	case 1:
		shift = 0
	case 2:
		shift = 1
	case 4:
		shift = 2
	case 8:
		shift = 3
	default:
		panic("chaos: invalid sized integer width")
	}
	tag := byte(tagExtended) | shift
	if negative {
		tag |= tagSubtypeNegFlag
	}
	return tag
}

// sizedIntWidth returns the byte width encoded by a 0xF0-class sized
// integer subtype (subtype & tagSubtypeSizedMax range).
func sizedIntWidth(subtype byte) int {
	return 1 << (subtype & tagSubtypeWidthMask)
}
