// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"strings"
	"testing"

	"github.com/cpmech/gosl/chk"
)

// forward references resolve regardless of declaration order: b depends on
// a but is attempted first
func TestFixedPointForwardReference(tst *testing.T) {
	chk.PrintTitle("FixedPointForwardReference")
	done := map[string]bool{}
	pending := []Resolvable{
		{ID: "b", Try: func() (bool, error) {
			if !done["a"] {
				return false, nil
			}
			done["b"] = true
			return true, nil
		}},
		{ID: "a", Try: func() (bool, error) {
			done["a"] = true
			return true, nil
		}},
	}
	if err := FixedPoint(pending); err != nil {
		tst.Fatalf("fixed point failed: %v", err)
	}
	if !done["a"] || !done["b"] {
		tst.Errorf("not all entities resolved: %v", done)
	}
}

// a cycle stalls the fixed point and every participant is named together
func TestFixedPointReportsCycle(tst *testing.T) {
	chk.PrintTitle("FixedPointReportsCycle")
	pending := []Resolvable{
		{ID: "x", Try: func() (bool, error) { return false, nil }},
		{ID: "y", Try: func() (bool, error) { return false, nil }},
	}
	err := FixedPoint(pending)
	if err == nil {
		tst.Fatalf("cycle must fail the load")
	}
	if !strings.Contains(err.Error(), "x") || !strings.Contains(err.Error(), "y") {
		tst.Errorf("error must name every unresolved id: %v", err)
	}
}

func TestFixedPointTerminalError(tst *testing.T) {
	chk.PrintTitle("FixedPointTerminalError")
	pending := []Resolvable{
		{ID: "bad", Try: func() (bool, error) { return false, chk.Err("boom") }},
	}
	if err := FixedPoint(pending); err == nil {
		tst.Errorf("terminal element error must abort resolution")
	}
}
