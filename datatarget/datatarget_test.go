// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datatarget

import (
	"math"
	"testing"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/driver"
	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

func constSource(v float64) Source {
	return func(float64) float64 { return v }
}

// discrete matching: score only within half a step of a sample time, and
// each sample is consumed at most once
func TestDiscreteMatchWindow(tst *testing.T) {
	chk.PrintTitle("DiscreteMatchWindow")
	d := New("d", []float64{0.5, 1.0}, []float64{2, 3}, Discrete, Linear, 0, 1, constSource(5))
	h := 0.001
	chk.Float64(tst, "far from sample", 1e-15, d.Update(0.3, h), 0)
	chk.Float64(tst, "at sample", 1e-12, d.Update(0.5, h), 5-2)
	chk.Float64(tst, "same sample again", 1e-15, d.Update(0.5004, h), 0)
	chk.Float64(tst, "second sample", 1e-12, d.Update(1.0, h), 5-3)
}

func TestSquareMatchAndIntercept(tst *testing.T) {
	chk.PrintTitle("SquareMatchAndIntercept")
	d := New("d", []float64{1.0}, []float64{2}, Discrete, Square, 10, -0.5, constSource(5))
	// e = 3, f(e) = 9, score = 10 - 0.5*9
	chk.Float64(tst, "score", 1e-12, d.Update(1.0, 0.001), 10-4.5)
}

// continuous policy interpolates the reference between samples and scores
// every step
func TestContinuousInterpolation(tst *testing.T) {
	chk.PrintTitle("ContinuousInterpolation")
	d := New("d", []float64{0, 1}, []float64{0, 10}, Continuous, Linear, 0, 1, constSource(5))
	// at t=0.5 the interpolated target is 5: error 0
	chk.Float64(tst, "mid", 1e-12, d.Update(0.5, 0.001), 0)
	// at t=0.25 target is 2.5: error 2.5
	chk.Float64(tst, "quarter", 1e-12, d.Update(0.25, 0.001), 2.5)
}

// marker position channel in a reference marker's frame: the reference
// rotation maps the world offset back into local coordinates
func TestMarkerPositionChannelLocalFrame(tst *testing.T) {
	chk.PrintTitle("MarkerPositionChannelLocalFrame")
	refBody := body.NewBody("ref", 1, spatial.Diag3(1, 1, 1))
	refBody.Pos = spatial.Vec3{1, 0, 0}
	refBody.Orient = spatial.AxisAngle(spatial.Vec3{0, 0, 1}, math.Pi/2) // world x -> y
	ref := marker.New("ref", refBody, spatial.Zero3, spatial.IdentityQuat())
	target := marker.New("t", nil, spatial.Vec3{1, 2, 0}, spatial.IdentityQuat())

	world := MarkerPositionChannel(target, nil, driver.AxisY)
	chk.Float64(tst, "world y", 1e-12, world(0), 2)

	// offset (0,2,0) seen from a frame rotated +90deg about z is (2,0,0)
	local := MarkerPositionChannel(target, ref, driver.AxisX)
	chk.Float64(tst, "local x", 1e-12, local(0), 2)
}

// body acceleration is a finite difference of velocity: 0 on the first
// read, dv/h afterwards
func TestBodyAccelerationChannel(tst *testing.T) {
	chk.PrintTitle("BodyAccelerationChannel")
	b := body.NewBody("b", 1, spatial.Diag3(1, 1, 1))
	h := 0.001
	src := BodyAccelerationChannel(b, driver.AxisZ, h)
	chk.Float64(tst, "first read", 1e-15, src(0), 0)
	b.LinVel = spatial.Vec3{0, 0, -9.81 * h}
	chk.Float64(tst, "one step of gravity", 1e-9, src(h), -9.81)
}

func TestMarkerVelocityChannel(tst *testing.T) {
	chk.PrintTitle("MarkerVelocityChannel")
	b := body.NewBody("b", 1, spatial.Diag3(1, 1, 1))
	b.AngVel = spatial.Vec3{0, 0, 1}
	mk := marker.New("m", b, spatial.Vec3{1, 0, 0}, spatial.IdentityQuat())
	src := MarkerVelocityChannel(mk, driver.AxisY)
	chk.Float64(tst, "omega cross r", 1e-12, src(0), 1)
}

// relative angle between two markers' x axes, distinct from the
// quaternion angle error
func TestMarkerRelativeAngleChannel(tst *testing.T) {
	chk.PrintTitle("MarkerRelativeAngleChannel")
	a := marker.New("a", nil, spatial.Zero3, spatial.IdentityQuat())
	q := spatial.AxisAngle(spatial.Vec3{0, 0, 1}, math.Pi/3)
	b := marker.New("b", nil, spatial.Zero3, q)
	src := MarkerRelativeAngleChannel(a, b)
	chk.Float64(tst, "angle", 1e-12, src(0), math.Pi/3)
}

func TestVectorNormErrorChannel(tst *testing.T) {
	chk.PrintTitle("VectorNormErrorChannel")
	mk := marker.New("m", nil, spatial.Vec3{3, 4, 0}, spatial.IdentityQuat())
	src := VectorNormErrorChannel(mk.WorldPos, spatial.Zero3)
	chk.Float64(tst, "norm", 1e-12, src(0), 5)
}

func TestAbortThreshold(tst *testing.T) {
	chk.PrintTitle("AbortThreshold")
	d := New("d", []float64{1.0}, []float64{0}, Discrete, Linear, 0, 1, constSource(100))
	d.SetAbort(50)
	d.Update(1.0, 0.001)
	if !d.Aborted {
		tst.Errorf("error 100 over threshold 50 must set the abort flag")
	}
	chk.Float64(tst, "last error", 1e-12, d.LastError(), 100)
}
