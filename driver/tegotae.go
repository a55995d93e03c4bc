// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"math"

	"github.com/cpmech/gaitsym/spatial"
)

// TegotaeDriver is a decentralised gait driver (spec.md §4.2): per-leg
// phase θ integrated against a measured ground-reaction load, read from the
// contact the step just completed recorded (spec.md §5's one-step-delay
// guarantee: "the reflex sees contacts from the step just completed, never
// from the step being assembled").
type TegotaeDriver struct {
	*Driver
	Omega, Sigma float64
	theta        float64

	// LoadSource reads the most recent ground-reaction load for this
	// driver's associated contact geom. It is wired by the orchestrator at
	// load time (spec.md §9's error-sink-by-reference pattern applied to
	// this collaborator too: an instance-owned function reference, not a
	// global).
	LoadSource func() float64
}

// NewTegotaeDriver constructs a Tegotae reflex driver.
func NewTegotaeDriver(name string, omega, sigma float64, loadSource func() float64, lo, hi float64) *TegotaeDriver {
	return &TegotaeDriver{Driver: &Driver{Name: name, Kind: Tegotae, Min: lo, Max: hi}, Omega: omega, Sigma: sigma, LoadSource: loadSource}
}

// Update integrates θ̇ = ω − σ·N·cosθ by forward Euler over h, and outputs
// sin(θ) affinely mapped into [Min, Max] (spec.md §4.2).
func (d *TegotaeDriver) Update(h float64, step int) float64 {
	var n float64
	if d.LoadSource != nil {
		n = d.LoadSource()
	}
	thetaDot := d.Omega - d.Sigma*n*math.Cos(d.theta)
	d.theta += thetaDot * h
	s := math.Sin(d.theta) // in [-1, 1]
	out := d.Min + (s+1)/2*(d.Max-d.Min)
	out = spatial.Clamp(out, d.Min, d.Max)
	d.value, d.stamp = out, step
	return out
}

// Theta returns the current leg phase, exposed for dump streams/tests.
func (d *TegotaeDriver) Theta() float64 { return d.theta }
