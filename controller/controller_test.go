// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package controller

import (
	"testing"

	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/muscle"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gaitsym/strap"
	"github.com/cpmech/gosl/chk"
)

func testMuscle(length float64) *muscle.Muscle {
	o := marker.New("o", nil, spatial.Vec3{0, 0, 0}, spatial.IdentityQuat())
	i := marker.New("i", nil, spatial.Vec3{length, 0, 0}, spatial.IdentityQuat())
	s := strap.NewTwoPoint("s", o, i)
	s.Update(0.001)
	return muscle.NewMinettiAlexander("m", s, 100, 1, 0.2)
}

// no derivative spike on the first step: e_prev is initialised to e
func TestPIDErrorInFirstStep(tst *testing.T) {
	chk.PrintTitle("PIDErrorInFirstStep")
	c := NewPIDErrorIn("c", 2, 0, 100, -10, 10)
	c.Push(0.5, 0)
	u := c.Update(0, 0.001)
	// Kd=100 would blow up on a naive first-step derivative; expect pure P
	chk.Float64(tst, "u", 1e-12, u, 2*0.5)
}

func TestPIDErrorInIntegral(tst *testing.T) {
	chk.PrintTitle("PIDErrorInIntegral")
	c := NewPIDErrorIn("c", 0, 10, 0, -100, 100)
	h := 0.01
	for step := 0; step < 100; step++ {
		c.Push(1, step)
		c.Update(step, h)
	}
	// constant error 1 integrated over 1s with Ki=10
	chk.Float64(tst, "u", 1e-9, c.Value(), 10*1.0)
}

func TestPIDErrorInClamp(tst *testing.T) {
	chk.PrintTitle("PIDErrorInClamp")
	c := NewPIDErrorIn("c", 100, 0, 0, 0, 1)
	c.Push(5, 0)
	if u := c.Update(0, 0.001); u != 1.0 {
		tst.Errorf("output must clamp bit-exactly to 1, got %v", u)
	}
}

// PIDMuscleLength: the accumulated input is the desired length L*, the
// error is L - L*, and a setpoint change resets the integral
func TestPIDMuscleLengthSetpointReset(tst *testing.T) {
	chk.PrintTitle("PIDMuscleLengthSetpointReset")
	m := testMuscle(1.0)
	c := NewPIDMuscleLength("c", m, 1, 50, 0, -100, 100)
	h := 0.01
	for step := 0; step < 50; step++ {
		c.Push(0.8, step) // want the muscle 0.2 shorter than it is
		c.Update(step, h)
	}
	before := c.Value()
	// the integral term has wound up well past the proportional one
	if before <= 1*(1.0-0.8) {
		tst.Fatalf("integral should have accumulated, u=%v", before)
	}
	c.Push(1.0, 50) // new setpoint: error collapses and integral resets
	after := c.Update(50, h)
	chk.Float64(tst, "after reset", 1e-12, after, 0)
}

// stacked controllers advance one cycle per step: a push that lands after
// the receiver's update is consumed on the next update, not lost
func TestStackedControllersOneCycleDelay(tst *testing.T) {
	chk.PrintTitle("StackedControllersOneCycleDelay")
	up := NewPIDErrorIn("up", 1, 0, 0, -10, 10)
	down := NewPIDErrorIn("down", 1, 0, 0, -10, 10)
	up.AddTarget(down)

	// step 0: down updates before up publishes
	up.Push(2, 0)
	down.Update(0, 0.001)
	up.Update(0, 0.001)
	up.Publish(0)
	chk.Float64(tst, "down step 0", 1e-15, down.Value(), 0)

	// step 1: down consumes the delayed push
	down.Update(1, 0.001)
	chk.Float64(tst, "down step 1", 1e-15, down.Value(), 2)
}

// controller output fans out to its targets like any driver
func TestControllerPublish(tst *testing.T) {
	chk.PrintTitle("ControllerPublish")
	m := testMuscle(1.0)
	c := NewPIDErrorIn("c", 1, 0, 0, 0, 1)
	c.AddTarget(m)
	c.Push(0.4, 9)
	c.Update(9, 0.001)
	c.Publish(9)
	m.Update(0.001, 9)
	if m.Activation != 0.4 {
		tst.Errorf("muscle should see the controller output, activation=%v", m.Activation)
	}
}
