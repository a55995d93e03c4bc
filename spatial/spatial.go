// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package spatial implements the vector/quaternion/matrix kernel, root
// finding and filtering used by every other package: the musculoskeletal
// equivalent of gofem's mdl/msolid tensor helpers, but for rigid-body poses
// rather than continuum stress/strain.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a world- or body-frame 3-vector.
type Vec3 = mgl64.Vec3

// Quat is a unit (or near-unit) rotation quaternion in mgl64's layout (W is
// the scalar part, V the vector part); model files list it as w x y z.
type Quat = mgl64.Quat

// Zero3 is the zero vector.
var Zero3 = Vec3{0, 0, 0}

// IdentityQuat is the identity rotation.
func IdentityQuat() Quat {
	return Quat{W: 1, V: Vec3{0, 0, 0}}
}

// NormError returns |1 - |q|| for the unit-quaternion invariant checks of
// spec.md §3/§8 (ε = 1e-10 tolerance is enforced by the caller).
func NormError(q Quat) float64 {
	return math.Abs(1 - q.Len())
}

// Rotate applies q's rotation to v (R(q)*v).
func Rotate(q Quat, v Vec3) Vec3 {
	return q.Rotate(v)
}

// Compose returns the product a·b, which rotates by b first and then by a
// (b is expressed in a's frame), matching the marker derivation pW = p + R(q)·pL,
// qW = q·qL in spec.md §3.
func Compose(a, b Quat) Quat {
	return a.Mul(b)
}

// AxisAngle builds a quaternion rotating by angle radians about axis
// (axis need not be normalised).
func AxisAngle(axis Vec3, angle float64) Quat {
	n := axis.Len()
	if n < 1e-300 {
		return IdentityQuat()
	}
	return mgl64.QuatRotate(angle, axis.Mul(1/n))
}

// IntegrateQuat advances q by angular velocity omega over dt using the
// exponential map, then re-normalises — the "q is unit-norm before and
// after each step" invariant of spec.md §3.
func IntegrateQuat(q Quat, omega Vec3, dt float64) Quat {
	theta := omega.Len() * dt
	var dq Quat
	if theta < 1e-12 {
		dq = Quat{W: 1, V: omega.Mul(0.5 * dt)}
	} else {
		dq = AxisAngle(omega, theta)
	}
	out := dq.Mul(q)
	return out.Normalize()
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
