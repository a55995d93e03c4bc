// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package driver implements the time-to-scalar producers of spec.md §2/§4.2
// (component C9): cyclic, stacked-boxcar, step, fixed, marker-position,
// marker-ellipse, Tegotae reflex and two/three-hinge IK drivers, plus the
// Drivable accumulator contract they fan out to.
package driver

import (
	"sort"

	"github.com/cpmech/gaitsym/spatial"
)

// Drivable is an accumulator: it receives N scalar pushes per step and, at
// its own update, consumes their sum (spec.md §3). The step-count stamp
// guards accumulation so values from different steps never mix.
type Drivable interface {
	Push(value float64, step int)
}

// Accumulator is the embeddable Drivable implementation shared by every
// concrete drivable (Controller, Muscle activation input, ...).
type Accumulator struct {
	sum   float64
	stamp int
	valid bool
}

// Push adds value to the accumulator, resetting it first if step is newer
// than the last stamp (spec.md §5: "A Drivable sees exactly the sum of
// pushes stamped with the current step count").
func (a *Accumulator) Push(value float64, step int) {
	if !a.valid || step != a.stamp {
		a.sum = 0
		a.stamp = step
		a.valid = true
	}
	a.sum += value
}

// Value returns the accumulated sum for the given step, or 0 if nothing
// was pushed this step.
func (a *Accumulator) Value(step int) float64 {
	if a.valid && a.stamp == step {
		return a.sum
	}
	return 0
}

// Kind is the sum-type tag for the driver family of spec.md §6.
type Kind int

const (
	Fixed Kind = iota
	Step
	Cyclic
	StackedBoxcar
	MarkerPosition
	MarkerEllipse
	Tegotae
	TwoHingeIK
	ThreeHingeIK
)

// BoxcarPulse is one rectangular pulse of a StackedBoxcar driver (spec.md
// §4.2: "sum of K rectangular pulses, each (width, height, start phase)
// within a shared period").
type BoxcarPulse struct {
	StartPhase, Width, Height float64
}

// Driver is a tagged variant over the kinds of spec.md §4.2; Update
// dispatches by Kind, and the result is fanned out to every target.
type Driver struct {
	Name string
	Kind Kind
	Min, Max float64
	Targets []Drivable

	value float64
	stamp int

	// Fixed
	FixedValue float64

	// Step: sorted change times and the value active from each.
	ChangeTimes []float64
	Values      []float64
	LinearInterpolation bool

	// Cyclic: same tables as Step, but period-wrapped with phase delay.
	Durations []float64
	Phase     float64 // fraction of period, in [0,1]
	period    float64

	// StackedBoxcar
	BoxcarPeriod float64
	Pulses       []BoxcarPulse
}

// ID implements registry.Named.
func (d *Driver) ID() string { return d.Name }

// NewFixed constructs a constant driver.
func NewFixed(name string, value, lo, hi float64) *Driver {
	return &Driver{Name: name, Kind: Fixed, FixedValue: value, Min: lo, Max: hi}
}

// NewStep constructs a piecewise-constant driver over a sorted change-time
// table, per spec.md §4.2.
func NewStep(name string, times, values []float64, linInterp bool, lo, hi float64) *Driver {
	return &Driver{Name: name, Kind: Step, ChangeTimes: times, Values: values, LinearInterpolation: linInterp, Min: lo, Max: hi}
}

// NewCyclic constructs a cyclic driver from per-interval durations and
// values, with phase delay phi in [0,1] of the period (spec.md §4.2).
func NewCyclic(name string, durations, values []float64, phi, lo, hi float64) *Driver {
	var period float64
	for _, d := range durations {
		period += d
	}
	return &Driver{Name: name, Kind: Cyclic, Durations: durations, Values: values, Phase: phi, period: period, Min: lo, Max: hi}
}

// NewStackedBoxcar constructs a stacked-boxcar driver (spec.md §4.2).
func NewStackedBoxcar(name string, period float64, pulses []BoxcarPulse, lo, hi float64) *Driver {
	return &Driver{Name: name, Kind: StackedBoxcar, BoxcarPeriod: period, Pulses: pulses, Min: lo, Max: hi}
}

// Period returns the driver's cycle period (0 for non-periodic kinds). The
// orchestrator derives a simulation cycle time as the max over all
// Cyclic/StackedBoxcar driver periods (spec.md §4.2).
func (d *Driver) Period() float64 {
	switch d.Kind {
	case Cyclic:
		return d.period
	case StackedBoxcar:
		return d.BoxcarPeriod
	default:
		return 0
	}
}

// Value returns the last-computed (clamped) output.
func (d *Driver) Value() float64 { return d.value }

// AddTarget registers a fan-out target (spec.md §4.2 "fan-out contract").
func (d *Driver) AddTarget(t Drivable) { d.Targets = append(d.Targets, t) }

// Update computes this driver's value at time t, clamps it to [Min, Max],
// and returns it. It does not itself push to targets — call Publish after
// every driver in the step has been updated, matching the orchestrator
// ordering of spec.md §4.1 phase 3.
func (d *Driver) Update(t float64, step int) float64 {
	var v float64
	switch d.Kind {
	case Fixed:
		v = d.FixedValue
	case Step:
		v = stepLookup(d.ChangeTimes, d.Values, t, d.LinearInterpolation)
	case Cyclic:
		v = d.cyclicLookup(t)
	case StackedBoxcar:
		v = d.boxcarLookup(t)
	}
	v = spatial.Clamp(v, d.Min, d.Max)
	d.value = v
	d.stamp = step
	return v
}

// Publish pushes the last-computed value to every target, stamped with
// step (spec.md §4.2 fan-out contract).
func (d *Driver) Publish(step int) {
	for _, tgt := range d.Targets {
		tgt.Push(d.value, step)
	}
}

// stepLookup binary-searches the active interval of a Step driver's sorted
// change-time table (spec.md §4.2: "Step driver at exactly a change-time
// t_k returns the new interval's value, not the old one", per spec.md §8).
func stepLookup(times, values []float64, t float64, linInterp bool) float64 {
	if len(values) == 0 {
		return 0
	}
	// find the rightmost index i such that times[i] <= t
	i := sort.Search(len(times), func(i int) bool { return times[i] > t }) - 1
	if i < 0 {
		i = 0
	}
	if !linInterp || i >= len(values)-1 {
		return values[i]
	}
	span := times[i+1] - times[i]
	if span <= 0 {
		return values[i]
	}
	frac := (t - times[i]) / span
	return values[i] + frac*(values[i+1]-values[i])
}

// cyclicLookup implements spec.md §4.2's "effective lookup time is
// (t − φ·P) mod P", reusing the Step table built from cumulative durations.
func (d *Driver) cyclicLookup(t float64) float64 {
	if d.period <= 0 || len(d.Values) == 0 {
		return 0
	}
	tEff := mod(t-d.Phase*d.period, d.period)
	times := make([]float64, len(d.Durations))
	var acc float64
	for i, dur := range d.Durations {
		times[i] = acc
		acc += dur
	}
	return stepLookup(times, d.Values, tEff, false)
}

func mod(a, m float64) float64 {
	r := a
	for r < 0 {
		r += m
	}
	for r >= m {
		r -= m
	}
	return r
}

// boxcarLookup sums the K rectangular pulses active at time t (spec.md
// §4.2).
func (d *Driver) boxcarLookup(t float64) float64 {
	if d.BoxcarPeriod <= 0 {
		return 0
	}
	tEff := mod(t, d.BoxcarPeriod)
	var sum float64
	for _, p := range d.Pulses {
		end := p.StartPhase + p.Width
		if tEff >= p.StartPhase && tEff < end {
			sum += p.Height
		} else if end > d.BoxcarPeriod {
			// pulse wraps past the period boundary
			if tEff < end-d.BoxcarPeriod {
				sum += p.Height
			}
		}
	}
	return sum
}
