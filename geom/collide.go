// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import (
	"math"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/spatial"
)

// PairRule carries the per-pair load-time toggles of spec.md §4.8.
type PairRule struct {
	AllowConnectedCollisions bool
	AllowInternalCollisions  bool
	MaxContactsPerPair       int
	ContactSurfaceLayer      float64
	ContactMaxCorrectingVel  float64
}

// jointedPair reports whether g1's and g2's bodies are directly joined by
// a non-contact joint, used to apply AllowConnectedCollisions.
func jointedPair(g1, g2 *Geom, joints []*body.Joint) bool {
	b1, b2 := g1.Body, g2.Body
	if b1 == nil || b2 == nil {
		return false
	}
	for _, j := range joints {
		if (j.Body1 == b1 && j.Body2 == b2) || (j.Body1 == b2 && j.Body2 == b1) {
			return true
		}
	}
	return false
}

// Bond is an adhesion event: a pair of geoms whose first touch this step
// must be converted by the orchestrator into a permanent ball joint at the
// contact point (spec.md §4.8, "forces are not measurable").
type Bond struct {
	G1, G2 *Geom
	Point  spatial.Vec3
}

// BuildContacts runs broadphase (all-pairs, adequate for the entity counts
// a musculoskeletal model has) then narrowphase intersection over geoms,
// applying the skip rules of spec.md §4.8, and returns the contact joints
// to feed to body.World plus per-geom contact records and any adhesion
// bonds. Each geom's per-step list is cleared first, matching spec.md §4.1
// phase 2.
func BuildContacts(geoms []*Geom, joints []*body.Joint, rule PairRule) ([]*body.Contact, []Bond) {
	for _, g := range geoms {
		g.ClearStep()
	}
	var contacts []*body.Contact
	var bonds []Bond
	for i := 0; i < len(geoms); i++ {
		for j := i + 1; j < len(geoms); j++ {
			g1, g2 := geoms[i], geoms[j]
			if g1.Body == nil && g2.Body == nil {
				continue // two static geoms never collide
			}
			if g1.Excludes(g2) {
				continue
			}
			if !rule.AllowConnectedCollisions && jointedPair(g1, g2, joints) {
				continue
			}
			if !rule.AllowInternalCollisions && g1.ContactGroup != "" && g1.ContactGroup == g2.ContactGroup {
				continue
			}
			hits := intersect(g1, g2, rule.ContactSurfaceLayer)
			if (g1.Adhesion || g2.Adhesion) && len(hits) > 0 {
				bonds = append(bonds, Bond{G1: g1, G2: g2, Point: hits[0].point})
				continue
			}
			maxN := rule.MaxContactsPerPair
			if maxN <= 0 || maxN > len(hits) {
				maxN = len(hits)
			}
			mat := ResolvePair(g1.Mat, g2.Mat)
			for k := 0; k < maxN; k++ {
				h := hits[k]
				c := &body.Contact{
					Body1: g1.Body, Body2: g2.Body,
					Point: h.point, Normal: h.normal, Depth: h.depth,
					Mu: mat.Mu, Bounce: mat.Bounce,
					SoftCFM: mat.SoftCFM, SoftERP: mat.SoftERP,
					MaxCorrectingVel: rule.ContactMaxCorrectingVel,
				}
				contacts = append(contacts, c)
				g1.Contacts = append(g1.Contacts, c)
				g2.Contacts = append(g2.Contacts, c)
			}
		}
	}
	return contacts, bonds
}

type hit struct {
	point, normal spatial.Vec3
	depth         float64
}

// intersect dispatches narrowphase intersection by the (ordered) kind pair.
// Sphere-sphere and sphere-plane are exact; any pair involving Box,
// CappedCylinder, Convex or Trimesh is approximated by each geom's bounding
// sphere, consistent with spec.md §1 treating the precise narrowphase
// intersector as an external collaborator ("we assume an ODE-like engine
// exists") — here it is approximated rather than reimplemented in full.
func intersect(g1, g2 *Geom, layer float64) []hit {
	switch {
	case g1.Kind == Sphere && g2.Kind == Sphere:
		return sphereSphere(g1, g2, layer)
	case g1.Kind == Sphere && g2.Kind == Plane:
		hits := spherePlane(g1, g2, layer)
		for i := range hits {
			hits[i].normal = hits[i].normal.Mul(-1)
		}
		return hits
	case g1.Kind == Plane && g2.Kind == Sphere:
		return spherePlane(g2, g1, layer)
	default:
		return boundingSphereSphere(g1, g2, layer)
	}
}

func sphereSphere(g1, g2 *Geom, layer float64) []hit {
	p1, p2 := g1.WorldPos(), g2.WorldPos()
	d := p2.Sub(p1)
	dist := d.Len()
	sep := dist - g1.Radius - g2.Radius
	if sep > layer {
		return nil
	}
	n := spatial.Vec3{0, 0, 1}
	if dist > 1e-12 {
		n = d.Mul(1 / dist)
	}
	point := p1.Add(n.Mul(g1.Radius))
	return []hit{{point: point, normal: n, depth: -sep}}
}

func spherePlane(gs, gp *Geom, layer float64) []hit {
	p := gs.WorldPos()
	n := spatial.Rotate(gp.WorldOrient(), gp.PlaneNormal)
	sep := p.Dot(n) - gp.PlaneOffset - gs.Radius
	if sep > layer {
		return nil
	}
	point := p.Sub(n.Mul(gs.Radius))
	return []hit{{point: point, normal: n, depth: -sep}}
}

// radiusOf returns the radius used by the approximate fallback
// intersector: the bounding-sphere radius for Sphere, CappedCylinder and
// Box, and a fixed 0.1 for every other kind (Plane, Convex, Trimesh).
func radiusOf(g *Geom) float64 {
	switch g.Kind {
	case Sphere:
		return g.Radius
	case CappedCylinder:
		return g.Radius + g.Length/2
	case Box:
		return 0.5 * math.Sqrt(g.Lx*g.Lx+g.Ly*g.Ly+g.Lz*g.Lz)
	default:
		return 0.1
	}
}

func boundingSphereSphere(g1, g2 *Geom, layer float64) []hit {
	r1, r2 := radiusOf(g1), radiusOf(g2)
	p1, p2 := g1.WorldPos(), g2.WorldPos()
	d := p2.Sub(p1)
	dist := d.Len()
	sep := dist - r1 - r2
	if sep > layer {
		return nil
	}
	n := spatial.Vec3{0, 0, 1}
	if dist > 1e-12 {
		n = d.Mul(1 / dist)
	}
	point := p1.Add(n.Mul(r1))
	return []hit{{point: point, normal: n, depth: -sep}}
}
