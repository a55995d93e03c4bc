// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package body

import (
	"math"

	"github.com/cpmech/gaitsym/spatial"
)

// JointKind is the sum-type tag for the joint family of spec.md §6
// (Type∈{Hinge, Universal, Ball, Fixed, FloatingHinge, AMotor, LMotor}).
// Re-expressed as a tagged variant per spec.md §9 rather than a class
// hierarchy: Joint carries every kind's fields, and World.Step switches on
// Kind the way ele.Element implementations switch on info in gofem.
type JointKind int

const (
	Hinge JointKind = iota
	Universal
	Ball
	Fixed
	FloatingHinge
	AMotor
	LMotor
)

func (k JointKind) String() string {
	switch k {
	case Hinge:
		return "Hinge"
	case Universal:
		return "Universal"
	case Ball:
		return "Ball"
	case Fixed:
		return "Fixed"
	case FloatingHinge:
		return "FloatingHinge"
	case AMotor:
		return "AMotor"
	case LMotor:
		return "LMotor"
	}
	return "Unknown"
}

// Joint anchors two bodies via body-local anchor points and axes. The
// anchor/axis pairs are resolved from marker poses by the loader (spec.md
// §3's "ordered pair of markers" is a load-time concept; the adapter itself
// only needs body-local geometry, mirroring an ODE-like engine's own joint
// API).
type Joint struct {
	Name string
	Kind JointKind

	Body1, Body2 *Body // Body2 may be the world's fixed anchor body

	Anchor1, Anchor2 spatial.Vec3 // body-local anchor point
	Axis1, Axis2     spatial.Vec3 // body-local axis (Axis2 used by Universal's 2nd axis)

	// Hinge/Universal/AMotor stop limits
	LoStop, HiStop         float64
	StopCFM, StopERP, StopBounce float64
	HasStops               bool

	// LoStopTorqueLimit/HiStopTorqueLimit bound the stop-spring reaction
	// torque of spec.md §6's JOINT element; exceeding either is a physical
	// abort distinct from the fixed-joint StressLimit below (spec.md §7:
	// "stress limit over threshold, hinge stop torque outside limit" are
	// two separate predicates).
	LoStopTorqueLimit, HiStopTorqueLimit float64

	// Motor (Hinge/AMotor/LMotor)
	MotorVel, MotorMaxForce float64
	HasMotor                bool

	// Fixed-joint stress sampling (spec.md §4.1 abort predicates)
	StressLimit    float64
	StressLowPass  bool
	stressFilter   *spatial.MovingAverage
	butter         *spatial.Butterworth2
	lastStress     float64
	lastStopTorque float64

	// Reaction is the constraint force the engine applied at the anchor
	// during the last Step (accumulated impulse over h), feeding the
	// fixed-joint stress sample.
	Reaction   spatial.Vec3
	accImpulse spatial.Vec3
}

// ID implements registry.Named.
func (j *Joint) ID() string { return j.Name }

// NewJoint constructs a joint of the given kind between two bodies.
func NewJoint(name string, kind JointKind, b1, b2 *Body) *Joint {
	return &Joint{Name: name, Kind: kind, Body1: b1, Body2: b2}
}

// EnableStopSmoothing attaches a moving-average filter of the given window
// to this joint's stop-torque/stress readings, per spec.md §4.1's "optional
// moving-window smoothing".
func (j *Joint) EnableStopSmoothing(window int) {
	j.stressFilter = spatial.NewMovingAverage(window)
}

// EnableStressLowPass attaches a 2nd-order Butterworth low-pass (cutoff fc
// at step h) to the fixed-joint stress sample instead of a moving average.
func (j *Joint) EnableStressLowPass(fc, h float64) {
	j.StressLowPass = true
	j.butter = spatial.NewButterworth2(fc, h)
}

// axisWorld returns Body1's axis rotated into world frame.
func (j *Joint) axisWorld() spatial.Vec3 {
	r := spatial.RotationFromQuat(j.Body1.Orient)
	return r.MulVec(j.Axis1)
}

// HingeAngle returns the relative rotation angle of Body2 about Body1's
// axis, referenced to the joint's initial alignment. A simplified but
// robust measure: extract the angle of the relative quaternion's component
// about the joint axis expressed in Body1's local frame.
func (j *Joint) HingeAngle() float64 {
	rel := j.Body1.Orient.Conjugate().Mul(j.Body2.Orient)
	// swing-twist decomposition about the axis in Body1's local frame
	localAxis := j.Axis1
	proj := localAxis.Mul(rel.V.Dot(localAxis))
	twist := spatial.Quat{W: rel.W, V: proj}
	if twist.Len() < 1e-12 {
		return 0
	}
	twist = twist.Normalize()
	return 2 * math.Atan2(twist.V.Dot(localAxis), twist.W)
}

// HingeAngularVelocity returns the relative angular velocity about the
// hinge axis (world frame).
func (j *Joint) HingeAngularVelocity() float64 {
	rel := j.Body2.AngVel.Sub(j.Body1.AngVel)
	return rel.Dot(j.axisWorld())
}

// MotorTorque computes the torque needed to drive the hinge/angular-motor
// velocity toward MotorVel, clipped to ±MotorMaxForce (spec.md §4.1 phase 6,
// "each joint computes motor commands").
func (j *Joint) MotorTorque(h float64) float64 {
	if !j.HasMotor {
		return 0
	}
	cur := j.HingeAngularVelocity()
	// proportional drive toward target velocity, saturating at max force;
	// this is the velocity-motor law ODE-like engines expose directly.
	need := (j.MotorVel - cur) / h
	if need > j.MotorMaxForce {
		need = j.MotorMaxForce
	}
	if need < -j.MotorMaxForce {
		need = -j.MotorMaxForce
	}
	return need
}

// StopTorque computes a penalty-spring restoring torque when the hinge
// angle is outside [LoStop, HiStop], optionally smoothed, and records the
// last value for the abort-predicate check of spec.md §4.1 ("hinge stop
// torque outside ±limit").
func (j *Joint) StopTorque(angle, angVel float64) float64 {
	if !j.HasStops {
		return 0
	}
	var raw float64
	k := stiffnessFromSoftParams(j.StopERP, j.StopCFM)
	d := k * j.StopBounce
	if angle < j.LoStop {
		raw = k*(j.LoStop-angle) - d*angVel
	} else if angle > j.HiStop {
		raw = k*(j.HiStop-angle) - d*angVel
	}
	j.lastStopTorque = raw
	if j.stressFilter != nil {
		return j.stressFilter.Push(raw)
	}
	return raw
}

// LastStopTorque returns the most recently computed (unsmoothed) stop
// torque, used by abort-predicate checks that want the raw value.
func (j *Joint) LastStopTorque() float64 { return j.lastStopTorque }

// stiffnessFromSoftParams derives an effective penalty stiffness from
// soft-constraint ERP/CFM parameters the way an ODE-like soft constraint
// would: k âˆ ERP/CFM, clipped to stay well-conditioned.
func stiffnessFromSoftParams(erp, cfm float64) float64 {
	if cfm <= 0 {
		cfm = 1e-6
	}
	k := erp / cfm
	if k > 1e9 {
		k = 1e9
	}
	return k
}

// FixedStress samples the fixed-joint's constraint load magnitude (a proxy
// for the reaction force/torque the fixed constraint carries), optionally
// low-pass filtered, per spec.md §4.1's "fixed-joint stress field sample".
func (j *Joint) FixedStress(reactionForce spatial.Vec3) float64 {
	raw := reactionForce.Len()
	j.lastStress = raw
	if j.StressLowPass && j.butter != nil {
		return j.butter.Push(raw)
	}
	if j.stressFilter != nil {
		return j.stressFilter.Push(raw)
	}
	return raw
}

// LastStress returns the most recently sampled (unsmoothed) stress value.
func (j *Joint) LastStress() float64 { return j.lastStress }
