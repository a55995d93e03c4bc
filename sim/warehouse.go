// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import "math"

// Warehouse holds a bank of reference state vectors (canonical recorded
// trajectories) against which the ClosestWarehouse fitness mode of spec.md
// §4.9 scores the running simulation: "fitness is the running minimum of a
// configured distance from a canonical reference trajectory." A warehouse
// typically holds many short reference snapshots (e.g. one per recorded
// stride) rather than a single long trajectory, so the distance at each
// step is the minimum over every entry, not a time-aligned comparison.
type Warehouse struct {
	Name    string
	Entries [][]float64

	best    float64
	haveAny bool
}

// ID implements registry.Named.
func (w *Warehouse) ID() string { return w.Name }

// NewWarehouse constructs an empty warehouse ready to accept entries via Add.
func NewWarehouse(name string) *Warehouse {
	return &Warehouse{Name: name}
}

// Add appends one reference state vector to the bank (loader-time only).
func (w *Warehouse) Add(entry []float64) {
	w.Entries = append(w.Entries, entry)
}

// RunningMinimum computes the Euclidean distance from state to the nearest
// warehouse entry and folds it into the all-time running minimum, which it
// returns. A warehouse with no entries, or a state vector of a differing
// dimension than every entry, contributes no information and returns the
// previous running minimum unchanged. The loader does not check entry
// dimensions, so entries of another length are simply skipped here.
func (w *Warehouse) RunningMinimum(state []float64) float64 {
	nearest, ok := w.nearestDistance(state)
	if !ok {
		if w.haveAny {
			return w.best
		}
		return 0
	}
	if !w.haveAny || nearest < w.best {
		w.best = nearest
		w.haveAny = true
	}
	return w.best
}

func (w *Warehouse) nearestDistance(state []float64) (float64, bool) {
	found := false
	var min float64
	for _, entry := range w.Entries {
		if len(entry) != len(state) {
			continue
		}
		d := euclidean(entry, state)
		if !found || d < min {
			min = d
			found = true
		}
	}
	return min, found
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
