// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chaos implements a binary serialization format for
// hierarchical, JSON-like documents, and a set of encoders and
// decoders over it. The format's defining feature is selective
// random-access decoding: given a memory-mapped file and a path into
// the document, a Decoder visits only the bytes on that path, using an
// in-file offset table per container and a shared string dictionary,
// without ever materializing sibling values.
//
// The package is organized in layers:
//
//   - Values: a tagged union (Null, String, Integer, Float, Boolean,
//     Byte, Object, List, Custom) that mirrors JSON's shape closely
//     enough to round-trip through it, plus an Object/List distinction
//     that JSON's single "object" concept does not make.
//
//   - Wire format: a compact tag byte per value, a two-form integer
//     codec (inline small values, length-prefixed large ones), and
//     fixed-width offset tables per container so a field or element
//     can be located with a binary search or direct index instead of a
//     linear scan.
//
//   - Dictionary: object keys repeat far more than they vary, so every
//     distinct key string is interned once into an append-only
//     dictionary and referenced elsewhere by a small integer index.
//
//   - Compression: once a string or the dictionary crosses its length
//     threshold, the inline wire form can no longer represent it at
//     all, so it is LZ4-compressed unconditionally, whether or not
//     that particular payload would have shrunk.
//
//   - Encoding: a document tree is flattened into a numbered sequence
//     of entities (Objects and Lists), each assigned a stable id, then
//     each entity's body is synthesized independently and assembled in
//     id order. This can run single-threaded or fanned out across a
//     worker pool.
//
//   - Decoding: whole-document decoding (single-threaded or parallel)
//     walks every entity; selective decoding walks only the entities
//     and fields on a caller-supplied path, using the offset tables to
//     skip everything else.
//
// All multi-byte integers in the wire format are little-endian and the
// format is not portable across byte orders — see Options for the
// tunable knobs that affect encoding but not decoding compatibility.
package chaos
