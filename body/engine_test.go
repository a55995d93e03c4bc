// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package body

import (
	"math"
	"testing"

	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

// free fall: p_z(t=1.0) = 10 - g/2 within 1e-4 at h=0.001
func TestFallingBody(tst *testing.T) {
	chk.PrintTitle("FallingBody")
	b := NewBody("ball", 1, spatial.Diag3(1, 1, 1))
	b.Pos = spatial.Vec3{0, 0, 10}
	w := NewWorld()
	w.Gravity = spatial.Vec3{0, 0, -9.81}
	w.AddBody(b)
	h := 0.001
	for i := 0; i < 1000; i++ {
		w.ClearAccumulators()
		w.Step(h)
	}
	chk.Float64(tst, "pz(1.0)", 1e-4, b.Pos.Z(), 10-0.5*9.81)
	if e := spatial.NormError(b.Orient); e > 1e-10 {
		tst.Errorf("quaternion drifted off unit norm: %v", e)
	}
}

// hinge pendulum: period matches 2*pi*sqrt(L/g) within 1% (small swing)
func TestPendulumPeriod(tst *testing.T) {
	chk.PrintTitle("PendulumPeriod")
	anchor := NewFixedBody("world")
	theta0 := 0.05
	bob := NewBody("bob", 1, spatial.Diag3(1e-6, 1e-6, 1e-6))
	bob.Pos = spatial.Vec3{math.Sin(theta0), 0, -math.Cos(theta0)}

	j := NewJoint("hinge", Hinge, anchor, bob)
	j.Anchor1 = spatial.Zero3
	j.Anchor2 = bob.Pos.Mul(-1) // joint anchor at the world origin
	j.Axis1 = spatial.Vec3{0, 1, 0}

	w := NewWorld()
	w.Gravity = spatial.Vec3{0, 0, -9.81}
	w.AddBody(anchor)
	w.AddBody(bob)
	w.AddJoint(j)

	h := 0.001
	prevVX := 0.0
	crossings := 0
	var period float64
	for i := 0; i < 5000; i++ {
		w.ClearAccumulators()
		w.Step(h)
		vx := bob.LinVel.X()
		if prevVX != 0 && vx != 0 && math.Signbit(vx) != math.Signbit(prevVX) {
			crossings++
			if crossings == 2 {
				period = float64(i+1) * h
				break
			}
		}
		prevVX = vx
	}
	if crossings < 2 {
		tst.Fatalf("pendulum did not complete one oscillation")
	}
	expected := 2 * math.Pi * math.Sqrt(1/9.81)
	chk.Float64(tst, "period", 0.01*expected, period, expected)
}

// a hinge with loStop == hiStop behaves as a fixed axis: no angular
// velocity builds up about the axis
func TestHingeStopsCoincide(tst *testing.T) {
	chk.PrintTitle("HingeStopsCoincide")
	anchor := NewFixedBody("world")
	bob := NewBody("bob", 1, spatial.Diag3(1, 1, 1))
	bob.Pos = spatial.Vec3{1, 0, 0}

	j := NewJoint("hinge", Hinge, anchor, bob)
	j.Anchor2 = spatial.Vec3{-1, 0, 0}
	j.Axis1 = spatial.Vec3{0, 1, 0}
	j.HasStops = true
	j.LoStop, j.HiStop = 0, 0
	j.StopERP, j.StopCFM = 0.2, 1e-5

	w := NewWorld()
	w.Gravity = spatial.Vec3{0, 0, -9.81}
	w.AddBody(anchor)
	w.AddBody(bob)
	w.AddJoint(j)

	h := 0.001
	for i := 0; i < 500; i++ {
		w.ClearAccumulators()
		angle := j.HingeAngle()
		angVel := j.HingeAngularVelocity()
		torque := j.StopTorque(angle, angVel)
		axisW := spatial.Rotate(anchor.Orient, j.Axis1)
		bob.AddTorque(axisW.Mul(torque))
		w.Step(h)
	}
	if math.Abs(j.HingeAngularVelocity()) > 0.2 {
		tst.Errorf("coincident stops should behave as a fixed axis, angVel=%v", j.HingeAngularVelocity())
	}
	if math.Abs(j.HingeAngle()) > 0.02 {
		tst.Errorf("hinge angle escaped the coincident stops: %v", j.HingeAngle())
	}
}

func TestBodyLimitsAndFinite(tst *testing.T) {
	chk.PrintTitle("BodyLimitsAndFinite")
	b := NewBody("b", 1, spatial.Diag3(1, 1, 1))
	b.HasPositionBounds = true
	b.PositionLow = spatial.Vec3{-1, -1, -1}
	b.PositionHigh = spatial.Vec3{1, 1, 1}
	if violated, _ := b.CheckLimits(); violated {
		tst.Errorf("in-bounds body flagged as violated")
	}
	b.Pos = spatial.Vec3{2, 0, 0}
	if violated, _ := b.CheckLimits(); !violated {
		tst.Errorf("out-of-bounds body not flagged")
	}
	b.LinVel = spatial.Vec3{math.NaN(), 0, 0}
	if b.CheckFinite() {
		tst.Errorf("NaN velocity not detected")
	}
}

// a sphere resting on a plane via a contact with bounce 0 must not sink
func TestContactRest(tst *testing.T) {
	chk.PrintTitle("ContactRest")
	b := NewBody("ball", 1, spatial.Diag3(0.4, 0.4, 0.4))
	b.Pos = spatial.Vec3{0, 0, 1}
	w := NewWorld()
	w.Gravity = spatial.Vec3{0, 0, -9.81}
	w.AddBody(b)
	h := 0.001
	for i := 0; i < 200; i++ {
		w.ClearAccumulators()
		w.Contacts = []*Contact{{
			Body2:  b,
			Point:  spatial.Vec3{0, 0, b.Pos.Z() - 1},
			Normal: spatial.Vec3{0, 0, 1},
			Mu:     0.5,
		}}
		w.Step(h)
	}
	if b.Pos.Z() < 0.99 {
		tst.Errorf("resting contact sank: z=%v", b.Pos.Z())
	}
	if w.Contacts[0].Force <= 0 {
		tst.Errorf("resting contact should report a positive normal force")
	}
}
