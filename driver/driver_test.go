// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/rnd"
)

type probe struct{ Accumulator }

// cyclic driver with durations [.25 .25 .25 .25] and values [0 1 0 1]:
// exact values at the pinned times of the end-to-end scenario
func TestCyclicDriverPinnedValues(tst *testing.T) {
	chk.PrintTitle("CyclicDriverPinnedValues")
	d := NewCyclic("c", []float64{0.25, 0.25, 0.25, 0.25}, []float64{0, 1, 0, 1}, 0, 0, 1)
	p := &probe{}
	d.AddTarget(p)

	d.Update(0.30, 0)
	d.Publish(0)
	if got := p.Value(0); got != 1.0 {
		tst.Errorf("drive at t=0.30 must be exactly 1.0, got %v", got)
	}
	d.Update(0.50, 1)
	d.Publish(1)
	if got := p.Value(1); got != 0.0 {
		tst.Errorf("drive at t=0.50 must be exactly 0.0, got %v", got)
	}
}

// output at t equals output at t+P for a cyclic driver with phase delay
func TestCyclicPeriodicity(tst *testing.T) {
	chk.PrintTitle("CyclicPeriodicity")
	d := NewCyclic("c", []float64{0.1, 0.3, 0.2}, []float64{0.2, 0.8, 0.5}, 0.25, 0, 1)
	P := d.Period()
	chk.Float64(tst, "period", 1e-15, P, 0.6)
	for _, t := range []float64{0, 0.05, 0.17, 0.33, 0.5999} {
		a := d.Update(t, 0)
		b := d.Update(t+P, 0)
		if a != b {
			tst.Errorf("cyclic output not periodic at t=%v: %v != %v", t, a, b)
		}
	}
}

// a step driver at exactly a change time returns the new interval's value
func TestStepDriverBoundary(tst *testing.T) {
	chk.PrintTitle("StepDriverBoundary")
	d := NewStep("s", []float64{0, 1, 2}, []float64{10, 20, 30}, false, -100, 100)
	chk.Float64(tst, "before", 1e-15, d.Update(0.5, 0), 10)
	chk.Float64(tst, "at change", 1e-15, d.Update(1.0, 0), 20)
	chk.Float64(tst, "after", 1e-15, d.Update(1.5, 0), 20)
	chk.Float64(tst, "last", 1e-15, d.Update(9.0, 0), 30)
}

func TestStepDriverInterpolation(tst *testing.T) {
	chk.PrintTitle("TestStepDriverInterpolation")
	d := NewStep("s", []float64{0, 1}, []float64{0, 10}, true, -100, 100)
	chk.Float64(tst, "mid", 1e-12, d.Update(0.5, 0), 5)
}

// clamping is bit-exact at the range edges
func TestDriverClamp(tst *testing.T) {
	chk.PrintTitle("DriverClamp")
	d := NewFixed("f", 7.5, 0, 1)
	if v := d.Update(0, 0); v != 1.0 {
		tst.Errorf("clamp must be bit-exact: got %v", v)
	}
	d2 := NewFixed("f2", -3, 0, 1)
	if v := d2.Update(0, 0); v != 0.0 {
		tst.Errorf("clamp must be bit-exact: got %v", v)
	}
}

// a drivable sees exactly the sum of pushes stamped with the current step;
// earlier stamps are discarded
func TestAccumulatorStampGuard(tst *testing.T) {
	chk.PrintTitle("AccumulatorStampGuard")
	var a Accumulator
	a.Push(1, 0)
	a.Push(2, 0)
	chk.Float64(tst, "step 0 sum", 1e-15, a.Value(0), 3)
	a.Push(10, 1) // new step discards the old sum
	chk.Float64(tst, "step 1 sum", 1e-15, a.Value(1), 10)
	chk.Float64(tst, "stale read", 1e-15, a.Value(2), 0)
}

// fan-out: several drivers pushing to one drivable add up within a step,
// regardless of evaluation order
func TestFanOutAccumulation(tst *testing.T) {
	chk.PrintTitle("FanOutAccumulation")
	p := &probe{}
	d1 := NewFixed("a", 0.25, 0, 1)
	d2 := NewFixed("b", 0.5, 0, 1)
	d1.AddTarget(p)
	d2.AddTarget(p)
	d2.Update(0, 7)
	d1.Update(0, 7)
	d2.Publish(7)
	d1.Publish(7)
	chk.Float64(tst, "sum", 1e-15, p.Value(7), 0.75)
}

// the sum a drivable sees is independent of driver evaluation order:
// shuffle the publish order across many rounds and expect the same total
func TestFanOutOrderIndependence(tst *testing.T) {
	chk.PrintTitle("FanOutOrderIndependence")
	rnd.Init(1234)
	p := &probe{}
	values := []float64{0.1, 0.2, 0.3, 0.4}
	drivers := make([]*Driver, len(values))
	order := make([]int, len(values))
	for i, v := range values {
		drivers[i] = NewFixed("d", v, 0, 1)
		drivers[i].AddTarget(p)
		order[i] = i
	}
	for round := 0; round < 20; round++ {
		rnd.IntShuffle(order)
		for _, i := range order {
			drivers[i].Update(0, round)
		}
		for _, i := range order {
			drivers[i].Publish(round)
		}
		chk.Float64(tst, "shuffled sum", 1e-15, p.Value(round), 1.0)
	}
}

func TestStackedBoxcar(tst *testing.T) {
	chk.PrintTitle("StackedBoxcar")
	d := NewStackedBoxcar("b", 1.0, []BoxcarPulse{
		{StartPhase: 0.1, Width: 0.2, Height: 0.4},
		{StartPhase: 0.2, Width: 0.3, Height: 0.5},
		{StartPhase: 0.9, Width: 0.2, Height: 1.0}, // wraps past the period
	}, 0, 2)
	chk.Float64(tst, "outside", 1e-15, d.Update(0.6, 0), 0)
	chk.Float64(tst, "first", 1e-15, d.Update(0.15, 0), 0.4)
	chk.Float64(tst, "overlap", 1e-15, d.Update(0.25, 0), 0.9)
	chk.Float64(tst, "wrapped tail", 1e-15, d.Update(0.05+1.0, 0), 1.0)
	chk.Float64(tst, "period", 1e-15, d.Period(), 1.0)
}

// Tegotae: with no load the phase advances at omega, and the output stays
// inside the driver range
func TestTegotaePhase(tst *testing.T) {
	chk.PrintTitle("TegotaePhase")
	omega := 2 * math.Pi
	d := NewTegotaeDriver("t", omega, 1.5, func() float64 { return 0 }, 0, 1)
	h := 0.001
	for step := 0; step < 1000; step++ {
		v := d.Update(h, step)
		if v < 0 || v > 1 {
			tst.Fatalf("output escaped range: %v", v)
		}
	}
	chk.Float64(tst, "theta after 1s", 1e-9, d.Theta(), omega)

	// load opposing the phase slows it down (thetaDot = omega - sigma*N*cos)
	dl := NewTegotaeDriver("t2", omega, 1.5, func() float64 { return 2 }, 0, 1)
	for step := 0; step < 1000; step++ {
		dl.Update(h, step)
	}
	if dl.Theta() >= d.Theta() {
		tst.Errorf("ground load should retard the phase: %v >= %v", dl.Theta(), d.Theta())
	}
}
