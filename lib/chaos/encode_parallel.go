// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// EncodeFileParallel serializes root to path the same way EncodeFile
// does, but synthesizes entity bodies across a worker pool after a
// short single-threaded pre-pass fixes entity ids and the key
// dictionary — both of which every worker needs to already agree on
// before bodies can be built independently.
func EncodeFileParallel(root Value, path string, opts ...Option) error {
	o := applyOptions(opts)
	data, err := encodeParallel(root, o)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// encodeParallel runs the pre-pass + worker-pool encode pipeline.
func encodeParallel(root Value, o Options) ([]byte, error) {
	tree, err := flatten(root)
	if err != nil {
		return nil, err
	}

	dict := buildDictionaryFromKeys(collectObjectKeys(tree.entities))

	bodies := make([][]byte, len(tree.entities))
	completed := atomic.NewInt64(0)

	g := new(errgroup.Group)
	g.SetLimit(o.resolvedWorkers())

	for id, entity := range tree.entities {
		id, entity := id, entity
		g.Go(func() error {
			b := &bodyBuilder{dict: dict, objIDs: tree.objIDs, lstIDs: tree.lstIDs}
			body, err := b.entityBody(entity)
			if err != nil {
				return fmt.Errorf("chaos: encoding entity %d: %w", id, err)
			}
			bodies[id] = body
			completed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := assembleFile(bodies, dict)
	if err != nil {
		return nil, err
	}

	o.Logger.Info("chaos: encoded document (parallel)",
		"entities", completed.Load(),
		"workers", o.resolvedWorkers(),
		"size", datasize.ByteSize(len(out)).String())
	return out, nil
}

// collectObjectKeys gathers each entity's own field keys (Objects
// only; Lists contribute nothing) so the dictionary can be built once,
// serially, before any worker starts encoding entity bodies. Every
// worker needs the dictionary to already be complete and stable —
// workers only call dict.intern on keys that were already interned
// here, so concurrent calls never race on appending a new entry.
func collectObjectKeys(entities []Value) [][]string {
	keySets := make([][]string, 0, len(entities))
	for _, entity := range entities {
		if entity.Kind != KindObject {
			continue
		}
		keySets = append(keySets, entity.Obj.Keys())
	}
	return keySets
}
