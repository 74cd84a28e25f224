// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import "errors"

// Sentinel errors returned by the encoders and decoders. Callers
// should compare against these with errors.Is rather than string
// matching — errors about malformed files, failed queries and a
// non-container root wrap one of these with %w plus call-site context.
// File I/O and LZ4 library failures wrap the underlying error instead,
// and an encoder error about an unsupported or undiscovered value
// carries no sentinel.
var (
	// ErrMalformedInput is returned when a file's bytes do not parse
	// as a well-formed CHAOS document: a bad magic number, a varint
	// whose length byte claims more than 8 trailing bytes, a
	// dictionary that doesn't parse to exactly its declared size, or
	// similar structural violations.
	ErrMalformedInput = errors.New("chaos: malformed input")

	// ErrUnknownKey is returned by the selective decoder when a query
	// component names a key that does not exist in the object being
	// searched.
	ErrUnknownKey = errors.New("chaos: unknown key")

	// ErrIndexOutOfRange is returned by the selective decoder when a
	// query component names a list index outside [0, length).
	ErrIndexOutOfRange = errors.New("chaos: index out of range")

	// ErrDanglingReference is returned when a reference's entity id
	// has no corresponding entry in the entity table.
	ErrDanglingReference = errors.New("chaos: dangling reference")

	// ErrUnregisteredCustomType is returned when a custom value's type
	// id has no registered size.
	ErrUnregisteredCustomType = errors.New("chaos: unregistered custom type")

	// ErrNotContainer is returned when a query path descends into a
	// scalar value, or when Keys or Len is called on a decoder whose
	// query currently points at a scalar rather than an object or list.
	ErrNotContainer = errors.New("chaos: value is not an object or list")
)
