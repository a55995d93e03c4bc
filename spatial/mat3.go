// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spatial

// Mat3 is a 3x3 matrix stored row-major, used for inertia tensors and
// rotation matrices. mgl64 has no inertia-tensor-oriented API of its own,
// so the handful of operations the simulator actually needs (rotate,
// transpose, multiply, invert a symmetric positive-definite tensor) are
// implemented directly here rather than routed through an ill-fitting
// general-purpose matrix type.
type Mat3 [3]Vec3 // rows

// Diag3 builds a diagonal matrix, e.g. a principal-axis inertia tensor.
func Diag3(xx, yy, zz float64) Mat3 {
	return Mat3{
		{xx, 0, 0},
		{0, yy, 0},
		{0, 0, zz},
	}
}

// Sym3 builds a symmetric matrix from its six independent components, the
// MOI layout of spec.md §6 (Ixx Iyy Izz Ixy Ixz Iyz).
func Sym3(ixx, iyy, izz, ixy, ixz, iyz float64) Mat3 {
	return Mat3{
		{ixx, ixy, ixz},
		{ixy, iyy, iyz},
		{ixz, iyz, izz},
	}
}

// MulVec returns m*v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{m[0].Dot(v), m[1].Dot(v), m[2].Dot(v)}
}

// Transpose returns m^T.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		{m[0].X(), m[1].X(), m[2].X()},
		{m[0].Y(), m[1].Y(), m[2].Y()},
		{m[0].Z(), m[1].Z(), m[2].Z()},
	}
}

// Mul3 returns m*n.
func (m Mat3) Mul3(n Mat3) Mat3 {
	nt := n.Transpose()
	var out Mat3
	for i := 0; i < 3; i++ {
		out[i] = Vec3{m[i].Dot(nt[0]), m[i].Dot(nt[1]), m[i].Dot(nt[2])}
	}
	return out
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	return m[0].X()*(m[1].Y()*m[2].Z()-m[1].Z()*m[2].Y()) -
		m[0].Y()*(m[1].X()*m[2].Z()-m[1].Z()*m[2].X()) +
		m[0].Z()*(m[1].X()*m[2].Y()-m[1].Y()*m[2].X())
}

// Inverse returns m^-1, and false if m is singular.
func (m Mat3) Inverse() (Mat3, bool) {
	d := m.Det()
	if d == 0 {
		return Mat3{}, false
	}
	invD := 1 / d
	a, b, c := m[0].X(), m[0].Y(), m[0].Z()
	dd, e, f := m[1].X(), m[1].Y(), m[1].Z()
	g, h, i := m[2].X(), m[2].Y(), m[2].Z()
	cof := Mat3{
		{(e*i - f*h) * invD, (c*h - b*i) * invD, (b*f - c*e) * invD},
		{(f*g - dd*i) * invD, (a*i - c*g) * invD, (c*dd - a*f) * invD},
		{(dd*h - e*g) * invD, (b*g - a*h) * invD, (a*e - b*dd) * invD},
	}
	return cof, true
}

// RotationFromQuat builds the rotation matrix R(q) such that
// R(q)*v == Rotate(q, v).
func RotationFromQuat(q Quat) Mat3 {
	x, y, z, w := q.V.X(), q.V.Y(), q.V.Z(), q.W
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}
