// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package strap

import (
	"math"

	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/spatial"
)

// cylinderFrame returns the functions to map a world point into/out of a
// cylinder marker's local frame, where the wrap plane is the local xy-plane
// and the cylinder axis is the marker's local Z, per spec.md §4.4.2 ("fixed
// by the marker's basis").
type cylinderFrame struct {
	origin spatial.Vec3
	orient spatial.Quat
}

func newCylinderFrame(m *marker.Marker) cylinderFrame {
	return cylinderFrame{origin: m.WorldPos(), orient: m.WorldOrient()}
}

func (f cylinderFrame) toLocal(p spatial.Vec3) spatial.Vec3 {
	inv := f.orient.Conjugate()
	return spatial.Rotate(inv, p.Sub(f.origin))
}

func (f cylinderFrame) toWorld(p spatial.Vec3) spatial.Vec3 {
	return f.origin.Add(spatial.Rotate(f.orient, p))
}

// tangentAngles returns the two candidate tangent-point angles (radians,
// in the circle's local xy frame) from an external 2-D point p to a
// centred circle of radius r, per the right-triangle construction of
// spec.md §4.4.2 step 2. ok is false if p is inside the circle.
func tangentAngles(px, py, r float64) (a1, a2 float64, ok bool) {
	d := math.Hypot(px, py)
	if d <= r {
		return 0, 0, false
	}
	angleP := math.Atan2(py, px)
	beta := math.Acos(r / d)
	return angleP + beta, angleP - beta, true
}

func circlePoint(r, angle float64) (x, y float64) {
	return r * math.Cos(angle), r * math.Sin(angle)
}

// segmentCircleIntersects reports whether the 2-D segment p1-p2 passes
// within r of the origin, i.e. whether a wrap is geometrically required.
func segmentCircleIntersects(p1x, p1y, p2x, p2y, r float64) bool {
	dx, dy := p2x-p1x, p2y-p1y
	lenSq := dx*dx + dy*dy
	if lenSq < 1e-300 {
		return math.Hypot(p1x, p1y) < r
	}
	t := -(p1x*dx + p1y*dy) / lenSq
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	cx, cy := p1x+t*dx, p1y+t*dy
	return math.Hypot(cx, cy) < r
}

// oneCylinderPath implements spec.md §4.4.2.
func oneCylinderPath(origin, insertion, cyl *marker.Marker, r float64, segments int) ([]pathVertex, Status) {
	frame := newCylinderFrame(cyl)
	oL := frame.toLocal(origin.WorldPos())
	iL := frame.toLocal(insertion.WorldPos())

	straight := []pathVertex{
		{pos: origin.WorldPos(), host: origin.Body},
		{pos: insertion.WorldPos(), host: insertion.Body},
	}

	dO := math.Hypot(oL.X(), oL.Y())
	dI := math.Hypot(iL.X(), iL.Y())
	if dO <= r || dI <= r {
		return straight, Degenerate
	}
	if !segmentCircleIntersects(oL.X(), oL.Y(), iL.X(), iL.Y(), r) {
		return straight, Straight
	}

	oa1, oa2, _ := tangentAngles(oL.X(), oL.Y(), r)
	ia1, ia2, _ := tangentAngles(iL.X(), iL.Y(), r)

	// choose the side (above/below the O-I chord) the circle center sits on,
	// and pick the tangent-angle pair on that side so the wrap goes the
	// short way around the obstacle (spec.md §4.4.2 step 2).
	side := (iL.X()-oL.X())*(0-oL.Y()) - (iL.Y()-oL.Y())*(0-oL.X())
	var angO, angI float64
	if side >= 0 {
		angO, angI = pickUpper(oa1, oa2), pickUpper(ia1, ia2)
	} else {
		angO, angI = pickLower(oa1, oa2), pickLower(ia1, ia2)
	}

	arc := shortArc(angO, angI)
	n := segments
	if n < 1 {
		n = 1
	}
	path := make([]pathVertex, 0, n+2)
	path = append(path, pathVertex{pos: origin.WorldPos(), host: origin.Body})
	for k := 0; k <= n; k++ {
		t := float64(k) / float64(n)
		a := angO + arc*t
		x, y := circlePoint(r, a)
		z := axialAt(oL, iL, angO, angI, a)
		path = append(path, pathVertex{pos: frame.toWorld(spatial.Vec3{x, y, z}), host: cyl.Body})
	}
	path = append(path, pathVertex{pos: insertion.WorldPos(), host: insertion.Body})
	return path, Wrapped
}

// axialAt linearly interpolates the axial (local Z) component along the
// arc fraction between the two tangent angles, per spec.md §4.4.2 step 3
// ("reconstruct the 3-D path by linearly interpolating the axial
// component along the arc").
func axialAt(oL, iL spatial.Vec3, angO, angI, at float64) float64 {
	span := angI - angO
	if math.Abs(span) < 1e-12 {
		return oL.Z()
	}
	t := (at - angO) / span
	return oL.Z() + t*(iL.Z()-oL.Z())
}

func pickUpper(a1, a2 float64) float64 {
	if math.Sin(a1) >= math.Sin(a2) {
		return a1
	}
	return a2
}

func pickLower(a1, a2 float64) float64 {
	if math.Sin(a1) <= math.Sin(a2) {
		return a1
	}
	return a2
}

// shortArc returns the signed arc (radians) from a to b along the shorter
// angular path.
func shortArc(a, b float64) float64 {
	d := math.Mod(b-a, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// twoCylinderPath implements spec.md §4.4.3. Each cylinder end re-derives
// its own tangent direction from its own marker frame (spec.md §9 design
// note: "the second end's direction should be re-derived from its own
// marker", fixing the source's reuse bug).
func twoCylinderPath(origin, insertion, c1, c2 *marker.Marker, r1, r2 float64, segments int) ([]pathVertex, Status) {
	straight := []pathVertex{
		{pos: origin.WorldPos(), host: origin.Body},
		{pos: insertion.WorldPos(), host: insertion.Body},
	}

	// degrade gracefully: if either cylinder's wrap isn't needed, fall back
	// to a single-cylinder wrap around the other, per spec.md §4.4.3 step 2.
	f1 := newCylinderFrame(c1)
	f2 := newCylinderFrame(c2)
	c1InF1 := spatial.Zero3
	c2InF1 := f1.toLocal(c2.WorldPos())
	if c2InF1.Sub(c1InF1).Len() < (r1 + r2) {
		// cylinders overlap: no consistent two-tangent path exists.
		return oneCylinderPath(origin, insertion, c1, r1, segments)
	}

	oL1 := f1.toLocal(origin.WorldPos())
	if math.Hypot(oL1.X(), oL1.Y()) <= r1 {
		return straight, Degenerate
	}
	iL2 := f2.toLocal(insertion.WorldPos())
	if math.Hypot(iL2.X(), iL2.Y()) <= r2 {
		return straight, Degenerate
	}

	needC1 := segmentCircleIntersects(oL1.X(), oL1.Y(), f1.toLocal(insertion.WorldPos()).X(), f1.toLocal(insertion.WorldPos()).Y(), r1)
	needC2 := segmentCircleIntersects(f2.toLocal(origin.WorldPos()).X(), f2.toLocal(origin.WorldPos()).Y(), iL2.X(), iL2.Y(), r2)
	if !needC1 && !needC2 {
		return straight, Straight
	}
	if needC1 && !needC2 {
		return oneCylinderPath(origin, insertion, c1, r1, segments)
	}
	if needC2 && !needC1 {
		return oneCylinderPath(origin, insertion, c2, r2, segments)
	}

	// both cylinders participate: wrap origin around c1, insertion around
	// c2, bridged by the inter-cylinder tangent.
	oa1, oa2, _ := tangentAngles(oL1.X(), oL1.Y(), r1)
	bridgeInF1 := c2InF1
	ba1, ba2, _ := tangentAngles(bridgeInF1.X(), bridgeInF1.Y(), r1)
	side1 := (bridgeInF1.X()-oL1.X())*(0-oL1.Y()) - (bridgeInF1.Y()-oL1.Y())*(0-oL1.X())
	var angO, angB1 float64
	if side1 >= 0 {
		angO, angB1 = pickUpper(oa1, oa2), pickUpper(ba1, ba2)
	} else {
		angO, angB1 = pickLower(oa1, oa2), pickLower(ba1, ba2)
	}
	arcO := shortArc(angO, angB1)

	f1InF2 := f2.toLocal(c1.WorldPos())
	iL2b := f2.toLocal(insertion.WorldPos())
	ia1, ia2, _ := tangentAngles(iL2b.X(), iL2b.Y(), r2)
	ba3, ba4, _ := tangentAngles(f1InF2.X(), f1InF2.Y(), r2)
	side2 := (iL2b.X()-f1InF2.X())*(0-f1InF2.Y()) - (iL2b.Y()-f1InF2.Y())*(0-f1InF2.X())
	var angB2, angI float64
	if side2 >= 0 {
		angB2, angI = pickUpper(ba3, ba4), pickUpper(ia1, ia2)
	} else {
		angB2, angI = pickLower(ba3, ba4), pickLower(ia1, ia2)
	}
	arcI := shortArc(angB2, angI)

	n := segments
	if n < 1 {
		n = 1
	}
	var path []pathVertex
	path = append(path, pathVertex{pos: origin.WorldPos(), host: origin.Body})
	for k := 0; k <= n; k++ {
		t := float64(k) / float64(n)
		a := angO + arcO*t
		x, y := circlePoint(r1, a)
		path = append(path, pathVertex{pos: f1.toWorld(spatial.Vec3{x, y, oL1.Z()}), host: c1.Body})
	}
	for k := 0; k <= n; k++ {
		t := float64(k) / float64(n)
		a := angB2 + arcI*t
		x, y := circlePoint(r2, a)
		path = append(path, pathVertex{pos: f2.toWorld(spatial.Vec3{x, y, iL2b.Z()}), host: c2.Body})
	}
	path = append(path, pathVertex{pos: insertion.WorldPos(), host: insertion.Body})
	return path, Wrapped
}
