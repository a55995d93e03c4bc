// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"math"

	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/spatial"
)

// Axis selects a world or reference-frame component.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) component(v spatial.Vec3) float64 {
	switch a {
	case AxisX:
		return v.X()
	case AxisY:
		return v.Y()
	default:
		return v.Z()
	}
}

// MarkerPositionDriver produces a scalar axis component (world or
// reference-marker-frame) of a named marker's position, optionally its
// velocity instead (spec.md §4.2).
type MarkerPositionDriver struct {
	*Driver
	Target    *marker.Marker
	Reference *marker.Marker // nil == world frame
	Axis      Axis
	Velocity  bool

	prevVal  float64
	haveVal  bool
}

// NewMarkerPositionDriver constructs a MarkerPosition driver.
func NewMarkerPositionDriver(name string, target, reference *marker.Marker, axis Axis, velocity bool, lo, hi float64) *MarkerPositionDriver {
	return &MarkerPositionDriver{Driver: &Driver{Name: name, Kind: MarkerPosition, Min: lo, Max: hi}, Target: target, Reference: reference, Axis: axis, Velocity: velocity}
}

// Update computes the selected coordinate (or its finite-difference rate)
// at time t and clamps it, per spec.md §4.2.
func (d *MarkerPositionDriver) Update(t, h float64, step int) float64 {
	p := d.Target.WorldPos()
	if d.Reference != nil {
		inv := d.Reference.WorldOrient().Conjugate()
		p = spatial.Rotate(inv, p.Sub(d.Reference.WorldPos()))
	}
	val := d.Axis.component(p)
	out := val
	if d.Velocity {
		if d.haveVal && h > 0 {
			out = (val - d.prevVal) / h
		} else {
			out = 0
		}
	}
	d.prevVal, d.haveVal = val, true
	out = spatial.Clamp(out, d.Min, d.Max)
	d.value, d.stamp = out, step
	return out
}

// MarkerEllipseDriver traces a parametric ellipse in a reference marker's
// plane at the given phase, outputting a chosen coordinate so a downstream
// IK driver can close on it (spec.md §4.2).
type MarkerEllipseDriver struct {
	*Driver
	Reference       *marker.Marker
	RadiusA, RadiusB float64
	Period          float64
	PhaseOffset     float64
	PlaneAxisA, PlaneAxisB Axis // the two local axes spanning the ellipse plane
	OutputAxis      Axis        // which of A/B (or derived) coordinate to output
}

// NewMarkerEllipseDriver constructs a MarkerEllipse driver.
func NewMarkerEllipseDriver(name string, ref *marker.Marker, ra, rb, period, phaseOffset float64, axisA, axisB, output Axis, lo, hi float64) *MarkerEllipseDriver {
	return &MarkerEllipseDriver{Driver: &Driver{Name: name, Kind: MarkerEllipse, Min: lo, Max: hi}, Reference: ref, RadiusA: ra, RadiusB: rb, Period: period, PhaseOffset: phaseOffset, PlaneAxisA: axisA, PlaneAxisB: axisB, OutputAxis: output}
}

// Update evaluates the ellipse parametrisation at time t.
func (d *MarkerEllipseDriver) Update(t float64, step int) float64 {
	if d.Period <= 0 {
		return 0
	}
	phase := 2 * math.Pi * (mod(t, d.Period)/d.Period + d.PhaseOffset)
	a := d.RadiusA * math.Cos(phase)
	b := d.RadiusB * math.Sin(phase)
	var out float64
	if d.OutputAxis == d.PlaneAxisA {
		out = a
	} else {
		out = b
	}
	out = spatial.Clamp(out, d.Min, d.Max)
	d.value, d.stamp = out, step
	return out
}

// PointOnEllipse returns the local-frame (a,b) coordinate pair at time t,
// used directly by the IK drivers that close on this ellipse.
func (d *MarkerEllipseDriver) PointOnEllipse(t float64) (a, b float64) {
	if d.Period <= 0 {
		return 0, 0
	}
	phase := 2 * math.Pi * (mod(t, d.Period)/d.Period + d.PhaseOffset)
	return d.RadiusA * math.Cos(phase), d.RadiusB * math.Sin(phase)
}
