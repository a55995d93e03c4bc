// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package strap implements the path abstraction of spec.md §2/§4.4
// (component C5): length, shortening velocity and per-host point-forces
// over two-point, N-point, one-cylinder and two-cylinder wrap geometries.
package strap

import (
	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/spatial"
)

// Kind is the sum-type tag for the strap family of spec.md §6.
type Kind int

const (
	TwoPoint Kind = iota
	NPoint
	CylinderWrap
	TwoCylinderWrap
)

// Status is the wrap-mode status code of spec.md §4.4.2.
type Status int

const (
	Straight Status = iota
	Wrapped
	Degenerate
)

func (s Status) String() string {
	switch s {
	case Straight:
		return "straight"
	case Wrapped:
		return "wrapped"
	default:
		return "degenerate"
	}
}

// PointForce is a (host body, world point, unit world direction) triple
// that the strap's tension scales and applies (spec.md §3/§4.4).
type PointForce struct {
	Host *body.Body
	Point spatial.Vec3
	Dir  spatial.Vec3
}

// pathVertex is one sampled point of the piecewise-linear path, tagged
// with the body it is rigidly attached to.
type pathVertex struct {
	pos  spatial.Vec3
	host *body.Body
}

// Strap is a tagged variant over the path kinds of spec.md §4.4; one
// Update function per Kind, switched in the Update method, per the sum-type
// design note in spec.md §9.
type Strap struct {
	Name string
	Kind Kind

	// TwoPoint/NPoint: Origin, Via..., Insertion, in order.
	Markers []*marker.Marker

	// CylinderWrap / TwoCylinderWrap
	Origin, Insertion       *marker.Marker
	Cylinder1, Cylinder2    *marker.Marker
	Radius1, Radius2        float64
	WrapSegments            int

	Length    float64
	Velocity  float64
	status    Status
	path      []pathVertex
	prevLength float64
	firstStep  bool
	wrapSettling int // steps since a straight<->wrapped transition, for V clamp
}

// ID implements registry.Named.
func (s *Strap) ID() string { return s.Name }

// NewTwoPoint constructs a two-point strap between origin and insertion.
func NewTwoPoint(name string, origin, insertion *marker.Marker) *Strap {
	return &Strap{Name: name, Kind: TwoPoint, Markers: []*marker.Marker{origin, insertion}, firstStep: true}
}

// NewNPoint constructs an N-point via strap.
func NewNPoint(name string, points []*marker.Marker) *Strap {
	return &Strap{Name: name, Kind: NPoint, Markers: points, firstStep: true}
}

// NewCylinderWrap constructs a one-cylinder wrap strap.
func NewCylinderWrap(name string, origin, insertion, cylinder *marker.Marker, radius float64, segments int) *Strap {
	if segments < 1 {
		segments = 8
	}
	return &Strap{Name: name, Kind: CylinderWrap, Origin: origin, Insertion: insertion, Cylinder1: cylinder, Radius1: radius, WrapSegments: segments, firstStep: true}
}

// NewTwoCylinderWrap constructs a two-cylinder wrap strap.
func NewTwoCylinderWrap(name string, origin, insertion, c1, c2 *marker.Marker, r1, r2 float64, segments int) *Strap {
	if segments < 1 {
		segments = 8
	}
	return &Strap{Name: name, Kind: TwoCylinderWrap, Origin: origin, Insertion: insertion, Cylinder1: c1, Cylinder2: c2, Radius1: r1, Radius2: r2, WrapSegments: segments, firstStep: true}
}

// Status returns the most recent wrap-mode status (Straight for
// TwoPoint/NPoint strap kinds, always).
func (s *Strap) Status() Status { return s.status }

// Update recomputes the path, length and shortening velocity for the
// current marker poses, per spec.md §4.4 (called each step, phase 5 of
// §4.1, before PointForces).
func (s *Strap) Update(h float64) {
	prevStatus := s.status
	switch s.Kind {
	case TwoPoint, NPoint:
		s.path = pointPath(s.Markers)
		s.status = Straight
	case CylinderWrap:
		s.path, s.status = oneCylinderPath(s.Origin, s.Insertion, s.Cylinder1, s.Radius1, s.WrapSegments)
	case TwoCylinderWrap:
		s.path, s.status = twoCylinderPath(s.Origin, s.Insertion, s.Cylinder1, s.Cylinder2, s.Radius1, s.Radius2, s.WrapSegments)
	}
	L := pathLength(s.path)
	if s.firstStep {
		s.Velocity = 0
		s.firstStep = false
	} else if prevStatus != s.status {
		// straight<->wrapped transition: clamp V for one step to avoid the
		// spurious spike spec.md §4.4 warns against.
		s.Velocity = 0
		s.wrapSettling = 1
	} else if h > 0 {
		s.Velocity = -(L - s.Length) / h
	}
	s.prevLength = s.Length
	s.Length = L
}

func pointPath(markers []*marker.Marker) []pathVertex {
	out := make([]pathVertex, len(markers))
	for i, m := range markers {
		out[i] = pathVertex{pos: m.WorldPos(), host: m.Body}
	}
	return out
}

func pathLength(path []pathVertex) float64 {
	var L float64
	for i := 1; i < len(path); i++ {
		L += path[i].pos.Sub(path[i-1].pos).Len()
	}
	return L
}

// PointForces returns the per-host point-forces scaled by tension T,
// computed from the current path per spec.md §4.4.1 (internal points see
// the difference of neighbouring unit vectors, so Σ F = 0 and Σ torques = 0
// across all hosts — spec.md §8's Newton's-third-law invariant).
func (s *Strap) PointForces(T float64) []PointForce {
	n := len(s.path)
	if n < 2 || T == 0 {
		return nil
	}
	units := make([]spatial.Vec3, n-1)
	for i := 0; i < n-1; i++ {
		d := s.path[i+1].pos.Sub(s.path[i].pos)
		if l := d.Len(); l > 1e-300 {
			units[i] = d.Mul(1 / l)
		}
	}
	out := make([]PointForce, 0, n)
	for i := 0; i < n; i++ {
		var dir spatial.Vec3
		if i > 0 {
			dir = dir.Sub(units[i-1])
		}
		if i < n-1 {
			dir = dir.Add(units[i])
		}
		if dir.Len() < 1e-300 {
			continue
		}
		out = append(out, PointForce{Host: s.path[i].host, Point: s.path[i].pos, Dir: dir.Mul(T)})
	}
	return out
}
