// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package resolve implements the generic forward-reference fixed-point
// resolver of spec.md §9: "a two-pass loader: (1) parse all elements into a
// pending list; (2) fixed-point over resolution attempts until no element
// is resolved in a full pass; report all still-unresolved entities
// together."
package resolve

import "github.com/cpmech/gosl/chk"

// Resolvable is one pending entity's resolution attempt: it returns true on
// success (the entity is fully wired and should be dropped from the
// pending list), or false if it still depends on something unresolved.
// A non-nil err from Try is a terminal error (not a missing reference)
// that aborts the fixed-point immediately.
type Resolvable struct {
	ID   string
	Try  func() (ok bool, err error)
}

// FixedPoint repeatedly sweeps the pending list, calling each Resolvable's
// Try until a full pass resolves nothing further. It returns an aggregated
// error naming every id still unresolved (spec.md §6: "the loader
// fixed-points over unresolved elements and reports the minimal set of
// cyclic or unresolvable ids on failure"), or nil if every entity resolved.
func FixedPoint(pending []Resolvable) error {
	remaining := append([]Resolvable(nil), pending...)
	for {
		progressed := false
		next := remaining[:0]
		for _, r := range remaining {
			ok, err := r.Try()
			if err != nil {
				return chk.Err("%s: %v", r.ID, err)
			}
			if ok {
				progressed = true
				continue
			}
			next = append(next, r)
		}
		remaining = next
		if len(remaining) == 0 {
			return nil
		}
		if !progressed {
			ids := make([]string, len(remaining))
			for i, r := range remaining {
				ids[i] = r.ID
			}
			return chk.Err("unresolved or cyclic references: %v", ids)
		}
	}
}
