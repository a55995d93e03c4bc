// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

type thing struct{ id string }

func (t *thing) ID() string { return t.id }

func TestRegistryAddGet(tst *testing.T) {
	chk.PrintTitle("RegistryAddGet")
	r := NewRegistry[*thing]()
	if err := r.Add(&thing{id: "a"}); err != nil {
		tst.Errorf("add failed: %v", err)
	}
	if err := r.Add(&thing{id: "a"}); err == nil {
		tst.Errorf("expected duplicate id error")
	}
	v, ok := r.Get("a")
	if !ok || v.id != "a" {
		tst.Errorf("get failed")
	}
	if _, err := r.MustGet("missing", "thing"); err == nil {
		tst.Errorf("expected unresolved reference error")
	}
	chk.IntAssert(r.Len(), 1)
}

func TestAttributesParsing(tst *testing.T) {
	chk.PrintTitle("AttributesParsing")
	a := Attributes{"Mass": "2.5", "Position": "1 2 3", "Abort": "true"}
	m, err := a.Float64("Mass")
	if err != nil {
		tst.Errorf("unexpected error: %v", err)
	}
	chk.Float64(tst, "Mass", 1e-15, m, 2.5)
	p, err := a.Float64Slice("Position")
	if err != nil || len(p) != 3 {
		tst.Errorf("position parse failed: %v %v", p, err)
	}
	if !a.Bool("Abort", false) {
		tst.Errorf("expected Abort=true")
	}
	if _, err := a.Float64("Missing"); err == nil {
		tst.Errorf("expected missing-attribute error")
	}
}
