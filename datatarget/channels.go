// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datatarget

import (
	"math"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/driver"
	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/muscle"
	"github.com/cpmech/gaitsym/spatial"
)

func component(v spatial.Vec3, axis driver.Axis) float64 {
	switch axis {
	case driver.AxisX:
		return v.X()
	case driver.AxisY:
		return v.Y()
	default:
		return v.Z()
	}
}

// BodyPositionChannel returns a Source reading a world-frame position
// component of a body (spec.md §4.9's "position/velocity/acceleration
// components").
func BodyPositionChannel(b *body.Body, axis driver.Axis) Source {
	return func(float64) float64 { return component(b.Pos, axis) }
}

// BodyVelocityChannel returns a Source reading a world-frame linear
// velocity component of a body.
func BodyVelocityChannel(b *body.Body, axis driver.Axis) Source {
	return func(float64) float64 { return component(b.LinVel, axis) }
}

// BodyAccelerationChannel returns a Source reading a world-frame linear
// acceleration component of a body, by finite difference of the velocity
// over the step size h (0 on the first read).
func BodyAccelerationChannel(b *body.Body, axis driver.Axis, h float64) Source {
	var prev float64
	have := false
	return func(float64) float64 {
		v := component(b.LinVel, axis)
		var a float64
		if have && h > 0 {
			a = (v - prev) / h
		}
		prev, have = v, true
		return a
	}
}

// MarkerPositionChannel returns a Source reading a position component of a
// marker, in world frame or, when ref is non-nil, in the reference
// marker's local frame (spec.md §4.9 "world or marker-local").
func MarkerPositionChannel(m, ref *marker.Marker, axis driver.Axis) Source {
	return func(float64) float64 {
		p := m.WorldPos()
		if ref != nil {
			inv := ref.WorldOrient().Conjugate()
			p = spatial.Rotate(inv, p.Sub(ref.WorldPos()))
		}
		return component(p, axis)
	}
}

// MarkerVelocityChannel returns a Source reading a world-frame velocity
// component of a marker's material point.
func MarkerVelocityChannel(m *marker.Marker, axis driver.Axis) Source {
	return func(float64) float64 { return component(m.WorldVelocity(), axis) }
}

// MarkerDistanceChannel returns a Source reading the distance between two
// markers (spec.md §4.9 "marker-to-marker distance").
func MarkerDistanceChannel(a, b *marker.Marker) Source {
	return func(float64) float64 { return a.WorldPos().Sub(b.WorldPos()).Len() }
}

// MarkerRelativeAngleChannel returns a Source reading the angle between
// two markers' primary (local X) axes in world frame, the "relative angle"
// companion of the distance channel above.
func MarkerRelativeAngleChannel(a, b *marker.Marker) Source {
	xAxis := spatial.Vec3{1, 0, 0}
	return func(float64) float64 {
		xa := a.AxisWorld(xAxis)
		xb := b.AxisWorld(xAxis)
		dot := spatial.Clamp(xa.Dot(xb), -1, 1)
		return math.Acos(dot)
	}
}

// QuaternionAngleChannel returns a Source computing the angle error between
// two orientations via 2·acos(|q_a·q_b|), spec.md §4.9.
func QuaternionAngleChannel(a, b *marker.Marker) Source {
	return func(float64) float64 {
		qa, qb := a.WorldOrient(), b.WorldOrient()
		dot := qa.W*qb.W + qa.V.Dot(qb.V)
		if dot > 1 {
			dot = 1
		}
		if dot < -1 {
			dot = -1
		}
		return 2 * math.Acos(math.Abs(dot))
	}
}

// MuscleForceChannel returns a Source reading a muscle's current tension.
func MuscleForceChannel(m *muscle.Muscle) Source {
	return func(float64) float64 { return m.Tension }
}

// MuscleLengthChannel returns a Source reading a muscle's strap length.
func MuscleLengthChannel(m *muscle.Muscle) Source {
	return func(float64) float64 { return m.Strap.Length }
}

// JointAngleChannel returns a Source reading a hinge joint's current angle.
func JointAngleChannel(j *body.Joint) Source {
	return func(float64) float64 { return j.HingeAngle() }
}

// VectorNormErrorChannel returns a Source computing |actual - ref|, given a
// live vector reader and a fixed reference vector (spec.md §4.9 "vector
// norm error").
func VectorNormErrorChannel(read func() spatial.Vec3, ref spatial.Vec3) Source {
	return func(float64) float64 { return read().Sub(ref).Len() }
}

// ContactCountChannel returns a Source reading the number of active
// contacts on a geom this step (spec.md §4.9 "contact count on a named
// geom"). contacts is supplied by the caller (the geom's Contacts slice,
// re-read each call since it's cleared/rebuilt every step).
func ContactCountChannel(contacts func() int) Source {
	return func(float64) float64 { return float64(contacts()) }
}
