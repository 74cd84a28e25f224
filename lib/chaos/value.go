// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import "sort"

// Kind identifies which alternative of the Value union is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBoolean
	KindByte
	KindObject
	KindList
	KindCustom
	// KindReference only appears transiently in decoded intermediate
	// state; it never survives a full Decode call.
	KindReference
)

// Value is a tagged union over every alternative the wire format can
// hold. Exactly one of the fields matching Kind is meaningful; the
// zero Value is KindNull.
type Value struct {
	Kind Kind

	Str     string
	Int     int64
	Flt     float64
	Bool    bool
	B       byte
	Obj     *Object
	Lst     *List
	Custom  *CustomValue
	RefID   int64
}

// CustomValue is an opaque, fixed-size payload tagged with an
// application-defined type id. The size for a given id must be
// registered with the encoder and decoder out of band — the format
// carries no length for custom values.
type CustomValue struct {
	TypeID  byte
	Payload []byte
}

// Null returns the null Value.
func Null() Value { return Value{Kind: KindNull} }

// String returns a Value wrapping s.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Integer returns a Value wrapping n.
func Integer(n int64) Value { return Value{Kind: KindInteger, Int: n} }

// Float returns a Value wrapping f.
func Float(f float64) Value { return Value{Kind: KindFloat, Flt: f} }

// Boolean returns a Value wrapping b.
func Boolean(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Byte returns a Value wrapping a single byte.
func Byte(b byte) Value { return Value{Kind: KindByte, B: b} }

// ForObject returns a Value wrapping obj.
func ForObject(obj *Object) Value { return Value{Kind: KindObject, Obj: obj} }

// ForList returns a Value wrapping lst.
func ForList(lst *List) Value { return Value{Kind: KindList, Lst: lst} }

// ForCustom returns a Value wrapping a custom payload.
func ForCustom(typeID byte, payload []byte) Value {
	return Value{Kind: KindCustom, Custom: &CustomValue{TypeID: typeID, Payload: payload}}
}

// field is one key/value pair inside an Object.
type field struct {
	key   string
	value Value
}

// Object is an ordered collection of unique key/value pairs. Fields
// are kept sorted by key byte order at all times, which is what lets
// the encoder emit a binary-searchable offset table and the selective
// decoder search it.
type Object struct {
	fields []field
}

// NewObject returns an empty Object.
func NewObject() *Object { return &Object{} }

// Set inserts or replaces the value for key. Keys are compared by raw
// byte order (Go's native string comparison), not Unicode collation —
// the wire format's offset table is binary-searched under the same
// ordering, so encoder and decoder must agree on it exactly.
func (o *Object) Set(key string, v Value) {
	i := sort.Search(len(o.fields), func(i int) bool { return o.fields[i].key >= key })
	if i < len(o.fields) && o.fields[i].key == key {
		o.fields[i].value = v
		return
	}
	o.fields = append(o.fields, field{})
	copy(o.fields[i+1:], o.fields[i:])
	o.fields[i] = field{key: key, value: v}
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	i := sort.Search(len(o.fields), func(i int) bool { return o.fields[i].key >= key })
	if i < len(o.fields) && o.fields[i].key == key {
		return o.fields[i].value, true
	}
	return Value{}, false
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.fields) }

// Keys returns the field keys in sorted order. The returned slice must
// not be mutated.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.fields))
	for i, f := range o.fields {
		keys[i] = f.key
	}
	return keys
}

// Range calls fn for each field in sorted key order, stopping early if
// fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	for _, f := range o.fields {
		if !fn(f.key, f.value) {
			return
		}
	}
}

// List is an ordered, dense collection of values addressable by
// index.
type List struct {
	elements []Value
}

// NewList returns an empty List, optionally reserving capacity.
func NewList(capacity int) *List {
	return &List{elements: make([]Value, 0, capacity)}
}

// Append adds v to the end of the list.
func (l *List) Append(v Value) { l.elements = append(l.elements, v) }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.elements) }

// At returns the element at index i.
func (l *List) At(i int) Value { return l.elements[i] }

// Elements returns the underlying slice. The returned slice must not
// be mutated.
func (l *List) Elements() []Value { return l.elements }

// isContainer reports whether v is an Object or a List — the two
// "entity" kinds that get flattened into the entity table on encode.
func (v Value) isContainer() bool {
	return v.Kind == KindObject || v.Kind == KindList
}
