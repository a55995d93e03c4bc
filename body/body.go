// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package body implements the rigid-body / joint adapter (spec.md §2,
// component C3): a thin wrapper around a constrained-dynamics engine. The
// engine itself (bodies+joints+contacts -> advance by h) is an external
// collaborator per spec.md §1; this package defines the Engine seam and
// ships one concrete implementation, SimpleEngine, so the core is
// runnable standalone.
package body

import (
	"math"

	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

// Body is a single rigid body: mass, body-frame inertia tensor, world pose
// and twist, plus the position/velocity bounds of spec.md §3.
type Body struct {
	Name string

	Mass    float64
	Inertia spatial.Mat3 // body-frame, symmetric positive-definite

	Pos    spatial.Vec3
	Orient spatial.Quat
	LinVel spatial.Vec3
	AngVel spatial.Vec3

	PositionLow, PositionHigh         spatial.Vec3
	LinVelocityLow, LinVelocityHigh   spatial.Vec3
	AngVelocityLow, AngVelocityHigh   spatial.Vec3
	HasPositionBounds, HasVelBounds   bool

	// Fixed marks a body that is rigidly anchored to the world: infinite
	// mass and inertia, never integrated. This is how a joint whose
	// marker has no owning body (a "world" marker) is realised: the
	// loader synthesises a Fixed body named "world".
	Fixed bool

	// per-step accumulators, cleared at the start of each Step
	force  spatial.Vec3
	torque spatial.Vec3
}

// ID implements registry.Named.
func (b *Body) ID() string { return b.Name }

// NewBody constructs a body with identity pose and zero twist.
func NewBody(name string, mass float64, inertia spatial.Mat3) *Body {
	return &Body{
		Name:    name,
		Mass:    mass,
		Inertia: inertia,
		Orient:  spatial.IdentityQuat(),
	}
}

// NewFixedBody constructs an immovable anchor, used for the world frame
// and for bodies explicitly marked static in the model file.
func NewFixedBody(name string) *Body {
	return &Body{Name: name, Fixed: true, Orient: spatial.IdentityQuat()}
}

// InvMass returns 1/Mass, or 0 for a fixed body (infinite mass).
func (b *Body) InvMass() float64 {
	if b.Fixed || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}

// WorldInvInertia returns the inverse inertia tensor rotated into the
// world frame: Iw^-1 = R * Ibody^-1 * R^T.
func (b *Body) WorldInvInertia() spatial.Mat3 {
	if b.Fixed {
		return spatial.Mat3{}
	}
	inv, ok := b.Inertia.Inverse()
	if !ok {
		chk.Panic("body %q has a singular inertia tensor", b.Name)
	}
	r := spatial.RotationFromQuat(b.Orient)
	return r.Mul3(inv).Mul3(r.Transpose())
}

// AddForceAtPoint applies a world-frame force f at world point p,
// contributing both to the linear force accumulator and, via the moment
// arm, to the torque accumulator. This is the application point for
// strap point-forces and fluid-sac marker loads (spec.md §4.1 phases 5,7).
func (b *Body) AddForceAtPoint(f, p spatial.Vec3) {
	if b.Fixed {
		return
	}
	b.force = b.force.Add(f)
	r := p.Sub(b.Pos)
	b.torque = b.torque.Add(r.Cross(f))
}

// AddTorque applies a pure world-frame torque (e.g. a joint motor or stop
// torque, spec.md §4.1 phase 6).
func (b *Body) AddTorque(t spatial.Vec3) {
	if b.Fixed {
		return
	}
	b.torque = b.torque.Add(t)
}

// ClearAccumulators resets the per-step force/torque accumulators; called
// through World.ClearAccumulators at the start of phase 5, before that
// phase re-populates them.
func (b *Body) ClearAccumulators() {
	b.force = spatial.Zero3
	b.torque = spatial.Zero3
}

// PointVelocity returns the world-frame velocity of the material point
// currently at world position p.
func (b *Body) PointVelocity(p spatial.Vec3) spatial.Vec3 {
	r := p.Sub(b.Pos)
	return b.LinVel.Add(b.AngVel.Cross(r))
}

// CheckFinite returns false if any pose/twist component is non-finite,
// the "non-finite component" numerical error of spec.md §7.
func (b *Body) CheckFinite() bool {
	vals := []float64{
		b.Pos.X(), b.Pos.Y(), b.Pos.Z(),
		b.Orient.W, b.Orient.V.X(), b.Orient.V.Y(), b.Orient.V.Z(),
		b.LinVel.X(), b.LinVel.Y(), b.LinVel.Z(),
		b.AngVel.X(), b.AngVel.Y(), b.AngVel.Z(),
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CheckLimits reports whether the body violates any configured position
// or velocity bound (spec.md §4.1 abort predicates).
func (b *Body) CheckLimits() (violated bool, reason string) {
	if b.HasPositionBounds {
		if outOfBounds(b.Pos, b.PositionLow, b.PositionHigh) {
			return true, "position limit"
		}
	}
	if b.HasVelBounds {
		if outOfBounds(b.LinVel, b.LinVelocityLow, b.LinVelocityHigh) {
			return true, "linear velocity limit"
		}
		if outOfBounds(b.AngVel, b.AngVelocityLow, b.AngVelocityHigh) {
			return true, "angular velocity limit"
		}
	}
	return false, ""
}

func outOfBounds(v, lo, hi spatial.Vec3) bool {
	return v.X() < lo.X() || v.X() > hi.X() ||
		v.Y() < lo.Y() || v.Y() > hi.Y() ||
		v.Z() < lo.Z() || v.Z() > hi.Z()
}
