// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package controller implements the closed-loop controllers of spec.md
// §2/§4.3 (component C10): a Controller is both a Drivable (it accumulates
// a setpoint/error from upstream drivers each step) and a Driver (it emits
// its controlled output to downstream drivables).
package controller

import (
	"github.com/cpmech/gaitsym/driver"
	"github.com/cpmech/gaitsym/muscle"
	"github.com/cpmech/gaitsym/spatial"
)

// Kind is the sum-type tag for the controller family of spec.md §6.
type Kind int

const (
	PIDErrorIn Kind = iota
	PIDMuscleLength
)

// Controller is a tagged variant over the two PID flavours of spec.md
// §4.3.
type Controller struct {
	Name string
	Kind Kind

	Kp, Ki, Kd float64
	Min, Max   float64
	Targets    []driver.Drivable

	// PIDMuscleLength only
	Muscle *muscle.Muscle

	// pending accumulates pushes and is consumed (and cleared) by Update.
	// Unlike the stamp-guarded muscle accumulator this lets a push from
	// another controller, which arrives after this controller's own update
	// in the same step, survive to the next step — the "stacked
	// controllers advance one cycle per step" behaviour of spec.md §4.1.
	pending float64

	integral     float64
	prevError    float64
	haveError    bool
	prevSetpoint float64
	haveSetpoint bool

	value float64
	stamp int
}

// ID implements registry.Named.
func (c *Controller) ID() string { return c.Name }

// NewPIDErrorIn constructs a controller whose accumulated input is
// interpreted directly as the error e(t) (spec.md §4.3).
func NewPIDErrorIn(name string, kp, ki, kd, lo, hi float64) *Controller {
	return &Controller{Name: name, Kind: PIDErrorIn, Kp: kp, Ki: ki, Kd: kd, Min: lo, Max: hi}
}

// NewPIDMuscleLength constructs a controller whose accumulated input is the
// desired muscle length L*, PID-driven against the muscle's current strap
// length (spec.md §4.3).
func NewPIDMuscleLength(name string, m *muscle.Muscle, kp, ki, kd, lo, hi float64) *Controller {
	return &Controller{Name: name, Kind: PIDMuscleLength, Muscle: m, Kp: kp, Ki: ki, Kd: kd, Min: lo, Max: hi}
}

// Push implements driver.Drivable — receives input from upstream drivers
// (spec.md §4.1 phase 3/4).
func (c *Controller) Push(value float64, step int) { c.pending += value }

// AddTarget registers a fan-out target for this controller's output.
func (c *Controller) AddTarget(t driver.Drivable) { c.Targets = append(c.Targets, t) }

// Update computes this step's controlled output from the accumulated input
// (spec.md §4.1 phase 4: "one controller may not depend on another in the
// same step"). Setpoint changes reset the integral and previous error to
// prevent windup, and the first step initialises e_prev to e to avoid a
// derivative spike (spec.md §4.3).
func (c *Controller) Update(step int, h float64) float64 {
	accumulated := c.pending
	c.pending = 0

	var e float64
	switch c.Kind {
	case PIDErrorIn:
		e = accumulated
	case PIDMuscleLength:
		setpoint := accumulated
		if c.haveSetpoint && setpoint != c.prevSetpoint {
			c.integral = 0
			c.haveError = false
		}
		c.prevSetpoint, c.haveSetpoint = setpoint, true
		e = c.Muscle.Strap.Length - setpoint
	}

	if !c.haveError {
		c.prevError = e
		c.haveError = true
	}
	c.integral += 0.5 * (e + c.prevError) * h // trapezoidal integration
	var deriv float64
	if h > 0 {
		deriv = (e - c.prevError) / h
	}
	c.prevError = e

	u := c.Kp*e + c.Ki*c.integral + c.Kd*deriv
	u = spatial.Clamp(u, c.Min, c.Max)
	c.value, c.stamp = u, step
	return u
}

// Publish pushes the last-computed output to every target, stamped with
// step — the same fan-out contract as driver.Driver.Publish.
func (c *Controller) Publish(step int) {
	for _, tgt := range c.Targets {
		tgt.Push(c.value, step)
	}
}

// Value returns the last-computed output.
func (c *Controller) Value() float64 { return c.value }
