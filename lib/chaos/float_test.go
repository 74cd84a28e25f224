// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"math"
	"path/filepath"
	"testing"
)

// TestEncodeFloatNarrowsByMagnitudeNotPrecision pins encodeFloat's tag
// choice to the documented boundary: any value whose magnitude fits in
// float32 range narrows, even losslessly-unrepresentable ones, and any
// value just outside that range stays 64-bit.
func TestEncodeFloatNarrowsByMagnitudeNotPrecision(t *testing.T) {
	beyondMaxFloat32 := math.Nextafter(math.MaxFloat32, math.MaxFloat64)

	cases := []struct {
		name    string
		value   float64
		wantTag byte
	}{
		{"max float32 exactly", math.MaxFloat32, tagExtended | tagSubtypeFloat32},
		{"negative max float32 exactly", -math.MaxFloat32, tagExtended | tagSubtypeFloat32},
		{"just beyond max float32", beyondMaxFloat32, tagExtended | tagSubtypeFloat64},
		{"just beyond negative max float32", -beyondMaxFloat32, tagExtended | tagSubtypeFloat64},
		{"lossy value within float32 range", 16777217.3, tagExtended | tagSubtypeFloat32},
		{"zero", 0, tagExtended | tagSubtypeFloat32},
	}

	for _, c := range cases {
		encoded := encodeFloat(c.value)
		if encoded[0] != c.wantTag {
			t.Errorf("%s: encodeFloat(%v) tag = %#02x, want %#02x", c.name, c.value, encoded[0], c.wantTag)
		}
	}
}

// TestFloatBoundaryRoundtrip checks the same boundary end-to-end
// through EncodeFile/DecodeFile: values inside float32 range decode
// back as whatever float32(v) produces (lossy for values float32
// can't represent exactly), while values just outside stay exact.
func TestFloatBoundaryRoundtrip(t *testing.T) {
	beyondMaxFloat32 := math.Nextafter(math.MaxFloat32, math.MaxFloat64)

	obj := NewObject()
	obj.Set("at_max", Float(math.MaxFloat32))
	obj.Set("at_negative_max", Float(-math.MaxFloat32))
	obj.Set("beyond_max", Float(beyondMaxFloat32))
	obj.Set("beyond_negative_max", Float(-beyondMaxFloat32))
	obj.Set("lossy_in_range", Float(16777217.3))

	path := filepath.Join(t.TempDir(), "doc.chaos")
	if err := EncodeFile(ForObject(obj), path); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}

	atMax, _ := got.Obj.Get("at_max")
	if atMax.Flt != float64(float32(math.MaxFloat32)) {
		t.Errorf("at_max round-tripped to %v, want the float32 narrowing of MaxFloat32", atMax.Flt)
	}

	beyondMax, _ := got.Obj.Get("beyond_max")
	if beyondMax.Flt != beyondMaxFloat32 {
		t.Errorf("beyond_max round-tripped to %v, want exact %v (should have stayed 64-bit)", beyondMax.Flt, beyondMaxFloat32)
	}

	beyondNegMax, _ := got.Obj.Get("beyond_negative_max")
	if beyondNegMax.Flt != -beyondMaxFloat32 {
		t.Errorf("beyond_negative_max round-tripped to %v, want exact %v", beyondNegMax.Flt, -beyondMaxFloat32)
	}

	lossy, _ := got.Obj.Get("lossy_in_range")
	want := float64(float32(16777217.3))
	if lossy.Flt != want {
		t.Errorf("lossy_in_range round-tripped to %v, want the float32 narrowing %v", lossy.Flt, want)
	}
	if lossy.Flt == 16777217.3 {
		t.Error("lossy_in_range round-tripped exactly; the test no longer exercises a lossy narrowing")
	}
}
