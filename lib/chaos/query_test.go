// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"path/filepath"
	"testing"
)

func buildQueryFixture() Value {
	child := NewObject()
	child.Set("value", Integer(42))
	child.Set("label", String("leaf"))

	item0 := NewObject()
	item0.Set("id", Integer(0))
	item1 := NewObject()
	item1.Set("id", Integer(1))

	items := NewList(0)
	items.Append(ForObject(item0))
	items.Append(ForObject(item1))

	root := NewObject()
	root.Set("name", String("fixture"))
	root.Set("child", ForObject(child))
	root.Set("items", ForList(items))
	return ForObject(root)
}

func openFixture(t *testing.T) (*Decoder, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.chaos")
	if err := EncodeFile(buildQueryFixture(), path); err != nil {
		t.Fatalf("EncodeFile failed: %v", err)
	}
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return d, func() { d.Close() }
}

func TestSelectiveDecodeEmptyQueryDecodesWholeDocument(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	got, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !valuesEqual(got, buildQueryFixture()) {
		t.Error("empty-query Decode did not return the whole document")
	}
}

func TestSelectiveDecodeObjectField(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"name"})
	got, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Kind != KindString || got.Str != "fixture" {
		t.Errorf("Decode([name]) = %v, want String(fixture)", got)
	}
}

func TestSelectiveDecodeNestedObjectField(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"child", "value"})
	got, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Kind != KindInteger || got.Int != 42 {
		t.Errorf("Decode([child value]) = %v, want Integer(42)", got)
	}
}

func TestSelectiveDecodeListIndex(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"items", "1", "id"})
	got, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Kind != KindInteger || got.Int != 1 {
		t.Errorf("Decode([items 1 id]) = %v, want Integer(1)", got)
	}
}

func TestSelectiveDecodeSubtreeWithExhaustedQuery(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"child"})
	got, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	label, ok := got.Obj.Get("label")
	if !ok || label.Str != "leaf" {
		t.Errorf("Decode([child]) subtree did not decode in full: %v", got)
	}
}

func TestSelectiveDecodeUnknownKey(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"does_not_exist"})
	if _, err := d.Decode(); err == nil {
		t.Error("Decode should fail for a key that does not exist")
	}
}

func TestSelectiveDecodeIndexOutOfRange(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"items", "5"})
	if _, err := d.Decode(); err == nil {
		t.Error("Decode should fail for a list index past the end")
	}
}

func TestSelectiveDecodeBadListIndex(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"items", "not-a-number"})
	if _, err := d.Decode(); err == nil {
		t.Error("Decode should fail when a list query component is not an integer")
	}
}

func TestSelectiveDecodeQueryPastScalar(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"name", "anything"})
	if _, err := d.Decode(); err == nil {
		t.Error("Decode should fail when the query continues past a scalar value")
	}
}

func TestDecoderKeys(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	keys, err := d.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"child", "items", "name"} // sorted byte order
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestDecoderKeysOnNestedObject(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"child"})
	keys, err := d.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "label" || keys[1] != "value" {
		t.Errorf("Keys([child]) = %v, want [label value]", keys)
	}
}

func TestDecoderKeysOnListFails(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"items"})
	if _, err := d.Keys(); err == nil {
		t.Error("Keys on a list should fail with ErrNotContainer")
	}
}

func TestDecoderLenOnList(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	d.SetQuery([]string{"items"})
	n, err := d.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Len([items]) = %d, want 2", n)
	}
}

func TestDecoderLenOnObject(t *testing.T) {
	d, closeFn := openFixture(t)
	defer closeFn()

	n, err := d.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}
}

// TestSelectiveDecodeAgreesWithSourceDocument checks, for several
// random documents, that descending one field into the root through
// the selective decoder returns the same value the source document
// has at that field.
func TestSelectiveDecodeAgreesWithSourceDocument(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		doc := generateDocument(seed, 4)
		if doc.Kind != KindObject || doc.Obj.Len() == 0 {
			continue
		}

		path := filepath.Join(t.TempDir(), "doc.chaos")
		if err := EncodeFile(doc, path); err != nil {
			t.Fatalf("seed %d: EncodeFile failed: %v", seed, err)
		}

		keys := doc.Obj.Keys()
		key := keys[0]
		want, _ := doc.Obj.Get(key)

		d, err := Open(path)
		if err != nil {
			t.Fatalf("seed %d: Open failed: %v", seed, err)
		}
		d.SetQuery([]string{key})
		got, err := d.Decode()
		d.Close()
		if err != nil {
			t.Fatalf("seed %d: selective Decode(%q) failed: %v", seed, key, err)
		}
		if !valuesEqual(want, got) {
			t.Errorf("seed %d: selective decode of %q disagrees with the source document", seed, key)
		}
	}
}
