// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"
	"math"

	"github.com/zeebo/pcg"
)

// valueGenerator builds randomized Value trees for property tests, off
// a seeded PRNG so failures reproduce deterministically from the seed
// alone.
type valueGenerator struct {
	rng      pcg.T
	maxDepth int
}

func newValueGenerator(seed uint64, maxDepth int) *valueGenerator {
	return &valueGenerator{rng: pcg.New(seed), maxDepth: maxDepth}
}

func (g *valueGenerator) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(g.rng.Uint32n(uint32(n)))
}

func (g *valueGenerator) bool() bool { return g.rng.Uint32n(2) == 0 }

func (g *valueGenerator) letters(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte('a' + g.intn(26))
	}
	return string(buf)
}

func (g *valueGenerator) int64() int64 {
	hi := uint64(g.rng.Uint32())
	lo := uint64(g.rng.Uint32())
	return int64(hi<<32 | lo)
}

func (g *valueGenerator) float64() float64 {
	return float64(g.rng.Uint32()) / float64(math.MaxUint32)
}

// scalar returns a random leaf Value. One in seven leaves is a long
// string, forcing the compressed-string wire path.
func (g *valueGenerator) scalar() Value {
	switch g.intn(7) {
	case 0:
		return Null()
	case 1:
		return String(g.letters(g.intn(12)))
	case 2:
		return Integer(g.int64())
	case 3:
		return Float(g.float64())
	case 4:
		return Boolean(g.bool())
	case 5:
		return Byte(byte(g.intn(256)))
	default:
		return String(g.letters(compressStringThreshold + g.intn(200)))
	}
}

// container returns a random Object or List, recursing into children
// up to maxDepth, and appends every container it builds (including
// nested ones) to pool so a caller can wire up duplicate references
// afterward.
func (g *valueGenerator) container(depth int, pool *[]Value) Value {
	child := func() Value {
		if depth+1 >= g.maxDepth || (depth > 0 && g.bool()) {
			return g.scalar()
		}
		return g.container(depth+1, pool)
	}

	var v Value
	if g.bool() {
		obj := NewObject()
		for i, n := 0, g.intn(4); i < n; i++ {
			obj.Set(fmt.Sprintf("f%d_%d", depth, i), child())
		}
		v = ForObject(obj)
	} else {
		lst := NewList(0)
		for i, n := 0, g.intn(4); i < n; i++ {
			lst.Append(child())
		}
		v = ForList(lst)
	}
	*pool = append(*pool, v)
	return v
}

// generateDocument builds a random root container, then, when the root
// is an Object, splices two more references to an already-built
// container into it under fresh keys so encode/decode round trips
// exercise shared entities in addition to a plain tree.
func generateDocument(seed uint64, maxDepth int) Value {
	g := newValueGenerator(seed, maxDepth)
	var pool []Value
	root := g.container(0, &pool)

	if root.Kind == KindObject && len(pool) > 1 {
		shared := pool[g.intn(len(pool)-1)]
		root.Obj.Set("shared_ref_a", shared)
		root.Obj.Set("shared_ref_b", shared)
	}
	return root
}
