// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"math"

	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/spatial"
)

// TwoHingeIKDriver solves a planar 2-link chain for the joint angles that
// place EndEffector on Target, via the closed-form 2-link triangle law
// with the cosine rule (spec.md §4.2).
type TwoHingeIKDriver struct {
	*Driver
	Base, EndEffector, Target *marker.Marker
	L1, L2                    float64
	LoStop1, HiStop1, LoStop2, HiStop2 float64

	// OutputJoint selects which solved angle (0 or 1) this driver
	// publishes; one driver element per driven joint.
	OutputJoint int

	Angle1, Angle2 float64
}

// Update solves the chain and stores (for Publish to push) and returns the
// selected joint's target angle, clamped to the driver range.
func (d *TwoHingeIKDriver) Update(step int) float64 {
	a1, a2 := d.Solve()
	out := a1
	if d.OutputJoint == 1 {
		out = a2
	}
	out = spatial.Clamp(out, d.Min, d.Max)
	d.value, d.stamp = out, step
	return out
}

// NewTwoHingeIKDriver constructs a 2-link IK driver with joint ranges open
// to a full turn until the loader narrows them to the joints' stops.
func NewTwoHingeIKDriver(name string, base, end, target *marker.Marker, l1, l2 float64) *TwoHingeIKDriver {
	return &TwoHingeIKDriver{
		Driver: &Driver{Name: name, Kind: TwoHingeIK, Min: -math.Pi, Max: math.Pi},
		Base:   base, EndEffector: end, Target: target, L1: l1, L2: l2,
		LoStop1: -math.Pi, HiStop1: math.Pi, LoStop2: -math.Pi, HiStop2: math.Pi,
	}
}

// Solve computes the two joint angles placing the end-effector on the
// target, in the base marker's local xy-plane, clamped to the configured
// stop ranges (spec.md §4.2).
func (d *TwoHingeIKDriver) Solve() (angle1, angle2 float64) {
	base := d.Base.WorldPos()
	targetLocal := spatial.Rotate(d.Base.WorldOrient().Conjugate(), d.Target.WorldPos().Sub(base))
	x, y := targetLocal.X(), targetLocal.Y()
	dist := math.Hypot(x, y)
	maxReach := d.L1 + d.L2
	minReach := math.Abs(d.L1 - d.L2)
	if dist > maxReach {
		dist = maxReach
	}
	if dist < minReach {
		dist = minReach
	}
	// cosine rule for the elbow angle
	cosElbow := (d.L1*d.L1 + d.L2*d.L2 - dist*dist) / (2 * d.L1 * d.L2)
	cosElbow = spatial.Clamp(cosElbow, -1, 1)
	elbow := math.Pi - math.Acos(cosElbow)

	cosShoulderOffset := (d.L1*d.L1 + dist*dist - d.L2*d.L2) / (2 * d.L1 * dist)
	cosShoulderOffset = spatial.Clamp(cosShoulderOffset, -1, 1)
	shoulderOffset := math.Acos(cosShoulderOffset)
	baseAngle := math.Atan2(y, x)

	angle1 = spatial.Clamp(baseAngle-shoulderOffset, d.LoStop1, d.HiStop1)
	angle2 = spatial.Clamp(elbow, d.LoStop2, d.HiStop2)
	d.Angle1, d.Angle2 = angle1, angle2
	return angle1, angle2
}

// ThreeHingeIKDriver adds a search over the redundant angle using a
// bounded root-finder on a scalar reachability residual (spec.md §4.2).
type ThreeHingeIKDriver struct {
	*Driver
	Base, EndEffector, Target *marker.Marker
	L1, L2, L3                float64
	LoStop, HiStop            [3]float64

	// OutputJoint selects which solved angle (0..2) this driver publishes.
	OutputJoint int

	Angles [3]float64
}

// Update solves the chain and stores (for Publish to push) and returns the
// selected joint's target angle, clamped to the driver range.
func (d *ThreeHingeIKDriver) Update(step int) float64 {
	angles := d.Solve()
	idx := d.OutputJoint
	if idx < 0 || idx > 2 {
		idx = 0
	}
	out := spatial.Clamp(angles[idx], d.Min, d.Max)
	d.value, d.stamp = out, step
	return out
}

// NewThreeHingeIKDriver constructs a 3-link IK driver with joint ranges
// open to a full turn until the loader narrows them to the joints' stops.
func NewThreeHingeIKDriver(name string, base, end, target *marker.Marker, l1, l2, l3 float64) *ThreeHingeIKDriver {
	return &ThreeHingeIKDriver{
		Driver: &Driver{Name: name, Kind: ThreeHingeIK, Min: -math.Pi, Max: math.Pi},
		Base:   base, EndEffector: end, Target: target, L1: l1, L2: l2, L3: l3,
		LoStop: [3]float64{-math.Pi, -math.Pi, -math.Pi},
		HiStop: [3]float64{math.Pi, math.Pi, math.Pi},
	}
}

// Solve computes the three joint angles, searching the redundant first-link
// angle θ1 by Brent's method on the residual "distance from the end of
// link 1 (at θ1) to the target, minus (L2+L3) reachability slack"
// — spec.md §4.2's "bounded root-finder (Brent) on a scalar reachability
// residual".
func (d *ThreeHingeIKDriver) Solve() [3]float64 {
	base := d.Base.WorldPos()
	targetLocal := spatial.Rotate(d.Base.WorldOrient().Conjugate(), d.Target.WorldPos().Sub(base))
	x, y := targetLocal.X(), targetLocal.Y()
	baseAngle := math.Atan2(y, x)

	residual := func(theta1 float64) float64 {
		// with θ1 fixed, link-3's reach must close the remaining gap using
		// L1 rigidly oriented at θ1 then a 2-link (L2,L3) sub-chain.
		wristX := d.L1 * math.Cos(theta1)
		wristY := d.L1 * math.Sin(theta1)
		rem := math.Hypot(x-wristX, y-wristY)
		return rem - (d.L2 + d.L3)
	}
	seed := baseAngle
	theta1, ok := spatial.BrentSolve(residual, seed, 0.1, 1e-9, 60)
	if !ok {
		theta1 = seed
	}

	wristX := d.L1 * math.Cos(theta1)
	wristY := d.L1 * math.Sin(theta1)
	dx, dy := x-wristX, y-wristY
	rem := math.Hypot(dx, dy)
	maxReach := d.L2 + d.L3
	if rem > maxReach {
		rem = maxReach
	}
	cosElbow := (d.L2*d.L2 + d.L3*d.L3 - rem*rem) / (2 * d.L2 * d.L3)
	cosElbow = spatial.Clamp(cosElbow, -1, 1)
	elbow := math.Pi - math.Acos(cosElbow)

	cosOffset := (d.L2*d.L2 + rem*rem - d.L3*d.L3) / (2 * d.L2 * rem)
	cosOffset = spatial.Clamp(cosOffset, -1, 1)
	offset := math.Acos(cosOffset)
	wristAngle := math.Atan2(dy, dx)
	theta2 := wristAngle - offset - theta1

	out := [3]float64{
		spatial.Clamp(theta1, d.LoStop[0], d.HiStop[0]),
		spatial.Clamp(theta2, d.LoStop[1], d.HiStop[1]),
		spatial.Clamp(elbow, d.LoStop[2], d.HiStop[2]),
	}
	d.Angles = out
	return out
}
