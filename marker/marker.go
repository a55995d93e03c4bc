// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package marker implements Marker (spec.md §2, component C4): a pose
// rigidly attached to a body, providing world-frame queries for joints and
// straps. This is the rigid-body analogue of gofem's ele.Info local-frame
// bookkeeping, generalised from finite elements to a single attachment point.
package marker

import (
	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

// Marker is a local pose (position + orientation) attached to a body, or to
// the world if Body is nil (spec.md §3).
type Marker struct {
	Name string
	Body *body.Body // nil == world

	LocalPos   spatial.Vec3
	LocalOrient spatial.Quat
}

// ID implements registry.Named.
func (m *Marker) ID() string { return m.Name }

// New constructs a marker attached to b (nil for world) at the given local
// pose. LocalOrient must be unit-norm (spec.md §3 invariant).
func New(name string, b *body.Body, localPos spatial.Vec3, localOrient spatial.Quat) *Marker {
	return &Marker{Name: name, Body: b, LocalPos: localPos, LocalOrient: localOrient}
}

// WorldPos returns pW = p + R(q)*pL, or LocalPos alone for a world marker.
func (m *Marker) WorldPos() spatial.Vec3 {
	if m.Body == nil {
		return m.LocalPos
	}
	return m.Body.Pos.Add(spatial.Rotate(m.Body.Orient, m.LocalPos))
}

// WorldOrient returns qW = q*qL, or LocalOrient alone for a world marker.
func (m *Marker) WorldOrient() spatial.Quat {
	if m.Body == nil {
		return m.LocalOrient
	}
	return spatial.Compose(m.Body.Orient, m.LocalOrient)
}

// WorldVelocity returns the linear velocity of the material point the
// marker currently occupies (zero for a world marker).
func (m *Marker) WorldVelocity() spatial.Vec3 {
	if m.Body == nil {
		return spatial.Zero3
	}
	return m.Body.PointVelocity(m.WorldPos())
}

// AxisWorld returns a body-frame unit axis (e.g. X=(1,0,0) or Z=(0,0,1))
// rotated into world coordinates by the marker's orientation. This is how
// cylinder-wrap markers expose their wrap axis (spec.md §4.4.2): "fixed by
// the marker's basis".
func (m *Marker) AxisWorld(axis spatial.Vec3) spatial.Vec3 {
	return spatial.Rotate(m.WorldOrient(), axis)
}

// CheckUnit validates the unit-quaternion invariant at load time, returning
// an error naming the marker on failure.
func (m *Marker) CheckUnit(eps float64) error {
	if e := spatial.NormError(m.LocalOrient); e > eps {
		return chk.Err("marker %q has non-unit local orientation (|1-|q||=%.3e)", m.Name, e)
	}
	return nil
}
