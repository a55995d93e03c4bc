// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package body

import "github.com/cpmech/gaitsym/spatial"

// SimpleEngine is the in-tree reference Engine (spec.md §1's external
// constrained-dynamics collaborator). It integrates free bodies by
// semi-implicit Euler with a trapezoidal position update and resolves
// joints/contacts by a fixed number of sequential-impulse (Gauss-Seidel)
// passes with Baumgarte position bias — the same "soft constraint" family
// an ODE-like engine exposes via ERP/CFM, simplified to what the
// orchestrator in spec.md §4.1 actually needs.
type SimpleEngine struct {
	// Iterations is the number of Gauss-Seidel velocity-correction passes
	// per step. More iterations trade CPU for constraint accuracy.
	Iterations int
	// PositionIterations is the number of Baumgarte position-correction
	// passes per step (pulls drifted joints back together).
	PositionIterations int
}

// NewSimpleEngine constructs a SimpleEngine with sane default iteration
// counts.
func NewSimpleEngine() *SimpleEngine {
	return &SimpleEngine{Iterations: 8, PositionIterations: 4}
}

// Step implements Engine.
func (e *SimpleEngine) Step(bodies []*Body, joints []*Joint, contacts []*Contact, gravity spatial.Vec3, h, linDamp, angDamp float64) int {
	iterations := e.Iterations
	if iterations <= 0 {
		iterations = 8
	}
	numErrors := 0

	// integrate free velocities under gravity + accumulated force/torque;
	// vOld is kept for the trapezoidal position update below, which is
	// exact for constant acceleration (free fall lands on ½gt² to machine
	// precision rather than drifting by ½gh per unit time).
	vOld := make([]spatial.Vec3, len(bodies))
	for i, b := range bodies {
		vOld[i] = b.LinVel
		if b.Fixed {
			continue
		}
		invM := b.InvMass()
		if invM > 0 {
			b.LinVel = b.LinVel.Add(gravity.Mul(h)).Add(b.force.Mul(invM * h))
		}
		invI := b.WorldInvInertia()
		b.AngVel = b.AngVel.Add(invI.MulVec(b.torque).Mul(h))
		if linDamp > 0 {
			b.LinVel = b.LinVel.Mul(1 / (1 + linDamp*h))
		}
		if angDamp > 0 {
			b.AngVel = b.AngVel.Mul(1 / (1 + angDamp*h))
		}
	}

	// velocity-level joint + contact correction
	for _, j := range joints {
		j.accImpulse = spatial.Zero3
	}
	for it := 0; it < iterations; it++ {
		for _, j := range joints {
			solveJointVelocity(j)
		}
		for _, c := range contacts {
			solveContactVelocity(c)
		}
	}
	if h > 0 {
		for _, j := range joints {
			j.Reaction = j.accImpulse.Mul(1 / h)
		}
	}

	// integrate positions with the velocity average; orientation uses the
	// post-solve angular velocity (the exponential map keeps q unit-norm)
	for i, b := range bodies {
		if b.Fixed {
			continue
		}
		vMid := vOld[i].Add(b.LinVel).Mul(0.5)
		b.Pos = b.Pos.Add(vMid.Mul(h))
		b.Orient = spatial.IntegrateQuat(b.Orient, b.AngVel, h)
		if !b.CheckFinite() {
			numErrors++
		}
	}

	// position-level (Baumgarte) joint correction to curb drift
	posIters := e.PositionIterations
	if posIters <= 0 {
		posIters = 4
	}
	for it := 0; it < posIters; it++ {
		for _, j := range joints {
			solveJointPosition(j)
		}
	}

	return numErrors
}

// jointHasAnchor reports whether this joint kind constrains the anchor
// point coincidence (all but FloatingHinge/AMotor/LMotor, which are
// angular- or motor-only per the simplification documented in DESIGN.md).
func jointHasAnchor(k JointKind) bool {
	switch k {
	case FloatingHinge, AMotor, LMotor:
		return false
	default:
		return true
	}
}

// jointAngularLock reports how many angular DOF beyond the free motor axis
// this joint kind removes: 2 for Hinge/AMotor/FloatingHinge (only rotation
// about the joint axis is free), 1 for Universal (axis1⊥axis2 is held), 3
// for Fixed (full relative-orientation lock), 0 for Ball/LMotor.
func jointAngularLock(k JointKind) int {
	switch k {
	case Hinge, AMotor, FloatingHinge:
		return 2
	case Universal:
		return 1
	case Fixed:
		return 3
	default:
		return 0
	}
}

func anchorWorld(b *Body, local spatial.Vec3) spatial.Vec3 {
	return b.Pos.Add(spatial.Rotate(b.Orient, local))
}

// solveJointVelocity removes relative velocity at the anchor point (and,
// for angular-locked kinds, relative angular velocity perpendicular to the
// free axis) by an impulse computed against the full 3x3 effective-mass
// matrix K, Gauss-Seidel style.
func solveJointVelocity(j *Joint) {
	if jointHasAnchor(j.Kind) {
		p1 := anchorWorld(j.Body1, j.Anchor1)
		p2 := anchorWorld(j.Body2, j.Anchor2)
		r1 := p1.Sub(j.Body1.Pos)
		r2 := p2.Sub(j.Body2.Pos)
		relVel := pointVelocity(j.Body2, r2).Sub(pointVelocity(j.Body1, r1))
		impulse := pointImpulse(j.Body1, j.Body2, r1, r2, relVel)
		applyPointImpulse(j.Body1, r1, impulse.Mul(-1))
		applyPointImpulse(j.Body2, r2, impulse)
		j.accImpulse = j.accImpulse.Add(impulse)
	}
	lock := jointAngularLock(j.Kind)
	if lock == 0 {
		return
	}
	axis := j.axisWorld()
	relOmega := j.Body2.AngVel.Sub(j.Body1.AngVel)
	// remove the component of relative angular velocity perpendicular to
	// the free axis (Hinge/AMotor/FloatingHinge keep 1 DOF about axis;
	// Fixed keeps none).
	var perp spatial.Vec3
	if lock == 3 {
		perp = relOmega
	} else {
		along := axis.Mul(relOmega.Dot(axis))
		perp = relOmega.Sub(along)
	}
	if perp.Len() < 1e-14 {
		return
	}
	kAng := addMat3(worldInvInertiaOrZero(j.Body1), worldInvInertiaOrZero(j.Body2))
	kInv, ok := kAng.Inverse()
	if !ok {
		return
	}
	dL := kInv.MulVec(perp.Mul(-1))
	if !j.Body1.Fixed {
		j.Body1.AngVel = j.Body1.AngVel.Sub(j.Body1.WorldInvInertia().MulVec(dL))
	}
	if !j.Body2.Fixed {
		j.Body2.AngVel = j.Body2.AngVel.Add(j.Body2.WorldInvInertia().MulVec(dL))
	}
}

// solveJointPosition nudges anchor points back together (Baumgarte bias)
// using a small position-level correction, avoiding velocity-level energy
// injection.
func solveJointPosition(j *Joint) {
	if !jointHasAnchor(j.Kind) {
		return
	}
	p1 := anchorWorld(j.Body1, j.Anchor1)
	p2 := anchorWorld(j.Body2, j.Anchor2)
	err := p2.Sub(p1)
	if err.Len() < 1e-12 {
		return
	}
	const beta = 0.2
	invM1, invM2 := j.Body1.InvMass(), j.Body2.InvMass()
	denom := invM1 + invM2
	if denom <= 0 {
		return
	}
	correction := err.Mul(beta / denom)
	if !j.Body1.Fixed {
		j.Body1.Pos = j.Body1.Pos.Add(correction.Mul(invM1))
	}
	if !j.Body2.Fixed {
		j.Body2.Pos = j.Body2.Pos.Sub(correction.Mul(invM2))
	}
}

func pointVelocity(b *Body, r spatial.Vec3) spatial.Vec3 {
	if b.Fixed {
		return spatial.Zero3
	}
	return b.LinVel.Add(b.AngVel.Cross(r))
}

func worldInvInertiaOrZero(b *Body) spatial.Mat3 {
	if b == nil || b.Fixed {
		return spatial.Mat3{}
	}
	return b.WorldInvInertia()
}

func addMat3(a, b spatial.Mat3) spatial.Mat3 {
	var out spatial.Mat3
	for i := 0; i < 3; i++ {
		out[i] = a[i].Add(b[i])
	}
	return out
}

func scaleMat3(m spatial.Mat3, s float64) spatial.Mat3 {
	var out spatial.Mat3
	for i := 0; i < 3; i++ {
		out[i] = m[i].Mul(s)
	}
	return out
}

func skew(v spatial.Vec3) spatial.Mat3 {
	return spatial.Mat3{
		{0, -v.Z(), v.Y()},
		{v.Z(), 0, -v.X()},
		{-v.Y(), v.X(), 0},
	}
}

// effectiveMassMatrix builds K = (invM1+invM2)·I − skew(r1)·invI1·skew(r1)
// − skew(r2)·invI2·skew(r2), the point-constraint effective-mass matrix
// relating an impulse at the anchor to the change in relative point
// velocity: Δv_rel = K·imp.
func effectiveMassMatrix(b1, b2 *Body, r1, r2 spatial.Vec3) spatial.Mat3 {
	invM := invMassOrZero(b1) + invMassOrZero(b2)
	k := spatial.Diag3(invM, invM, invM)
	if b1 != nil && !b1.Fixed {
		s := skew(r1)
		k = addMat3(k, scaleMat3(s.Mul3(b1.WorldInvInertia()).Mul3(s), -1))
	}
	if b2 != nil && !b2.Fixed {
		s := skew(r2)
		k = addMat3(k, scaleMat3(s.Mul3(b2.WorldInvInertia()).Mul3(s), -1))
	}
	return k
}

// pointImpulse computes the impulse (applied +impulse to body2, -impulse to
// body1) that zeroes relVel at the anchor: imp = −K⁻¹·relVel.
func pointImpulse(b1, b2 *Body, r1, r2, relVel spatial.Vec3) spatial.Vec3 {
	k := effectiveMassMatrix(b1, b2, r1, r2)
	kInv, ok := k.Inverse()
	if !ok {
		return spatial.Zero3
	}
	return kInv.MulVec(relVel.Mul(-1))
}

func applyPointImpulse(b *Body, r, impulse spatial.Vec3) {
	if b == nil || b.Fixed {
		return
	}
	invM := b.InvMass()
	b.LinVel = b.LinVel.Add(impulse.Mul(invM))
	invI := b.WorldInvInertia()
	b.AngVel = b.AngVel.Add(invI.MulVec(r.Cross(impulse)))
}

// solveContactVelocity resolves a unilateral contact by a Coulomb-friction
// sequential impulse: a normal impulse preventing interpenetration velocity
// (with restitution, capped at MaxCorrectingVel), clamped at zero (never
// pulls surfaces together), plus a friction impulse bounded by mu times the
// normal impulse.
func solveContactVelocity(c *Contact) {
	r1 := c.Point.Sub(bodyPosOrZero(c.Body1))
	r2 := c.Point.Sub(bodyPosOrZero(c.Body2))
	relVel := pointVelocityOpt(c.Body2, r2).Sub(pointVelocityOpt(c.Body1, r1))
	vn := relVel.Dot(c.Normal)
	if vn >= 0 {
		return // separating already
	}
	k := effectiveMassMatrix(c.Body1, c.Body2, r1, r2)
	kn := c.Normal.Dot(k.MulVec(c.Normal))
	if kn <= 0 {
		return
	}
	bounceVel := -(1 + c.Bounce) * vn
	if c.MaxCorrectingVel > 0 && bounceVel > c.MaxCorrectingVel {
		bounceVel = c.MaxCorrectingVel
	}
	jn := bounceVel / kn
	if jn < 0 {
		jn = 0
	}
	impulse := c.Normal.Mul(jn)

	// Coulomb friction: oppose the tangential slip, bounded by mu*jn
	tangVel := relVel.Sub(c.Normal.Mul(vn))
	if c.Mu > 0 && tangVel.Len() > 1e-12 {
		tDir := tangVel.Mul(1 / tangVel.Len())
		kt := tDir.Dot(k.MulVec(tDir))
		if kt > 0 {
			jt := tangVel.Len() / kt
			if jt > c.Mu*jn {
				jt = c.Mu * jn
			}
			impulse = impulse.Sub(tDir.Mul(jt))
		}
	}

	applyPointImpulse(c.Body1, r1, impulse.Mul(-1))
	applyPointImpulse(c.Body2, r2, impulse)
	c.Force = jn
}

func bodyPosOrZero(b *Body) spatial.Vec3 {
	if b == nil {
		return spatial.Zero3
	}
	return b.Pos
}

func invMassOrZero(b *Body) float64 {
	if b == nil {
		return 0
	}
	return b.InvMass()
}

func pointVelocityOpt(b *Body, r spatial.Vec3) spatial.Vec3 {
	if b == nil {
		return spatial.Zero3
	}
	return pointVelocity(b, r)
}
