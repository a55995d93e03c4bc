// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package marker

import (
	"math"
	"testing"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

// pW = p + R(q)*pL: a local offset rotated by the host body's orientation
func TestWorldPose(tst *testing.T) {
	chk.PrintTitle("WorldPose")
	b := body.NewBody("b", 1, spatial.Diag3(1, 1, 1))
	b.Pos = spatial.Vec3{1, 2, 3}
	b.Orient = spatial.AxisAngle(spatial.Vec3{0, 0, 1}, math.Pi/2) // x -> y
	m := New("m", b, spatial.Vec3{1, 0, 0}, spatial.IdentityQuat())
	p := m.WorldPos()
	chk.Float64(tst, "x", 1e-12, p.X(), 1)
	chk.Float64(tst, "y", 1e-12, p.Y(), 3)
	chk.Float64(tst, "z", 1e-12, p.Z(), 3)
}

func TestWorldMarker(tst *testing.T) {
	chk.PrintTitle("WorldMarker")
	m := New("m", nil, spatial.Vec3{5, 6, 7}, spatial.IdentityQuat())
	if m.WorldPos() != (spatial.Vec3{5, 6, 7}) {
		tst.Errorf("world marker pose is its local pose")
	}
	if m.WorldVelocity() != spatial.Zero3 {
		tst.Errorf("world marker has zero velocity")
	}
}

// the marker's velocity includes the omega x r term of its host
func TestWorldVelocitySpin(tst *testing.T) {
	chk.PrintTitle("WorldVelocitySpin")
	b := body.NewBody("b", 1, spatial.Diag3(1, 1, 1))
	b.AngVel = spatial.Vec3{0, 0, 1}
	m := New("m", b, spatial.Vec3{1, 0, 0}, spatial.IdentityQuat())
	v := m.WorldVelocity()
	chk.Float64(tst, "vy", 1e-12, v.Y(), 1)
	chk.Float64(tst, "vx", 1e-12, v.X(), 0)
}

func TestCheckUnit(tst *testing.T) {
	chk.PrintTitle("CheckUnit")
	bad := New("bad", nil, spatial.Zero3, spatial.Quat{W: 1, V: spatial.Vec3{1, 0, 0}})
	if err := bad.CheckUnit(1e-10); err == nil {
		tst.Errorf("non-unit local orientation must be rejected")
	}
}
