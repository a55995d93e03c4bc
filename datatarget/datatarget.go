// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package datatarget implements the data-target scoring of spec.md §2/§4.9
// (component C11): time-indexed reference trajectories that convert state
// at match points into an additive fitness contribution.
package datatarget

import (
	"math"
	"sort"
)

// Policy is the match policy of spec.md §3.
type Policy int

const (
	Discrete Policy = iota
	Continuous
)

// MatchType selects the error-to-score mapping f(e) of spec.md §4.9.
type MatchType int

const (
	Linear MatchType = iota
	Square
)

func (m MatchType) apply(e float64) float64 {
	if m == Square {
		return e * e
	}
	return e
}

// Source evaluates the current simulation value of this target's channel
// at time t. Channel-specific construction (body/marker/joint/muscle state)
// lives in the modelfile/sim wiring layer; DataTarget itself is
// channel-agnostic, matching spec.md §1 treating the engine/model internals
// as external collaborators this component only reads through a seam.
type Source func(t float64) float64

// DataTarget owns a time-sorted reference array and a comparison policy
// over its associated channel (spec.md §3).
type DataTarget struct {
	Name string

	Times  []float64
	Values []float64

	Policy     Policy
	MatchType  MatchType
	Intercept, Slope float64

	HasAbort       bool
	AbortThreshold float64

	Source Source

	matched   map[int]bool
	lastError float64
	Aborted   bool
}

// ID implements registry.Named.
func (d *DataTarget) ID() string { return d.Name }

// New constructs a DataTarget. Times must be sorted ascending.
func New(name string, times, values []float64, policy Policy, matchType MatchType, intercept, slope float64, source Source) *DataTarget {
	return &DataTarget{Name: name, Times: times, Values: values, Policy: policy, MatchType: matchType, Intercept: intercept, Slope: slope, Source: source, matched: make(map[int]bool)}
}

// SetAbort configures the abort threshold of spec.md §4.9.
func (d *DataTarget) SetAbort(threshold float64) {
	d.HasAbort = true
	d.AbortThreshold = threshold
}

// Update evaluates this target at time t (step size h, for the discrete
// match window of ±h/2), returning the fitness contribution for this step
// (0 if no match/no continuous interpolation applies) per spec.md §4.9.
func (d *DataTarget) Update(t, h float64) float64 {
	switch d.Policy {
	case Discrete:
		return d.updateDiscrete(t, h)
	default:
		return d.updateContinuous(t)
	}
}

func (d *DataTarget) updateDiscrete(t, h float64) float64 {
	k := nearestIndex(d.Times, t)
	if k < 0 || math.Abs(d.Times[k]-t) > h/2 {
		return 0
	}
	if d.matched[k] {
		return 0
	}
	d.matched[k] = true
	actual := d.Source(t)
	e := actual - d.Values[k]
	d.lastError = e
	d.checkAbort(e)
	return d.Intercept + d.Slope*d.MatchType.apply(e)
}

func (d *DataTarget) updateContinuous(t float64) float64 {
	target, ok := interpolate(d.Times, d.Values, t)
	if !ok {
		return 0
	}
	actual := d.Source(t)
	e := actual - target
	d.lastError = e
	d.checkAbort(e)
	return d.Intercept + d.Slope*d.MatchType.apply(e)
}

func (d *DataTarget) checkAbort(e float64) {
	if d.HasAbort && math.Abs(e) > d.AbortThreshold {
		d.Aborted = true
	}
}

// LastError returns the most recently computed signed error, for abort
// messages naming the responsible entity (spec.md §7).
func (d *DataTarget) LastError() float64 { return d.lastError }

func nearestIndex(times []float64, t float64) int {
	if len(times) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(times, t)
	if i == 0 {
		return 0
	}
	if i >= len(times) {
		return len(times) - 1
	}
	if times[i]-t < t-times[i-1] {
		return i
	}
	return i - 1
}

func interpolate(times, values []float64, t float64) (float64, bool) {
	n := len(times)
	if n == 0 {
		return 0, false
	}
	if t <= times[0] {
		return values[0], true
	}
	if t >= times[n-1] {
		return values[n-1], true
	}
	i := sort.SearchFloat64s(times, t)
	span := times[i] - times[i-1]
	if span <= 0 {
		return values[i-1], true
	}
	frac := (t - times[i-1]) / span
	return values[i-1] + frac*(values[i]-values[i-1]), true
}
