// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package geom implements geometry primitives, material pair resolution and
// the contact-building pipeline of spec.md §2/§4.8 (component C8).
package geom

import (
	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/spatial"
)

// Kind is the sum-type tag for the primitive family of spec.md §6
// (sphere, box, capped cylinder, plane, convex, trimesh).
type Kind int

const (
	Sphere Kind = iota
	Box
	CappedCylinder
	Plane
	Convex
	Trimesh
)

// Material holds the contact-relevant surface parameters of spec.md §3.
type Material struct {
	Mu      float64 // friction coefficient
	Rho     float64 // rolling friction coefficient
	Bounce  float64
	SoftCFM float64
	SoftERP float64
}

// ResolvePair combines two materials per spec.md §4.8's "material pair
// resolution": mu/rho/bounce/softCFM take the max, softERP takes the
// min-that-is-≥0.
func ResolvePair(a, b Material) Material {
	erp := a.SoftERP
	if b.SoftERP < erp {
		erp = b.SoftERP
	}
	if erp < 0 {
		erp = 0
	}
	return Material{
		Mu:      maxf(a.Mu, b.Mu),
		Rho:     maxf(a.Rho, b.Rho),
		Bounce:  maxf(a.Bounce, b.Bounce),
		SoftCFM: maxf(a.SoftCFM, b.SoftCFM),
		SoftERP: erp,
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Geom is one collision primitive attached to a body (or world, Body==nil),
// per spec.md §3.
type Geom struct {
	Name string
	Body *body.Body
	Kind Kind

	// local pose relative to Body
	LocalPos    spatial.Vec3
	LocalOrient spatial.Quat

	// primitive parameters, interpreted by Kind
	Radius               float64 // Sphere, CappedCylinder
	Length               float64 // CappedCylinder (cylinder length, excl. caps)
	Lx, Ly, Lz           float64 // Box
	PlaneNormal          spatial.Vec3
	PlaneOffset          float64
	Hull                 []spatial.Vec3 // Convex vertices (planes derived as needed)
	MeshVertices         []spatial.Vec3 // Trimesh
	MeshTriangles        [][3]int

	Mat Material

	Abort        bool // spec.md §4.1: participating in contact aborts the run
	Adhesion     bool
	ExcludeIDs   map[string]bool
	ContactGroup string // "environment" or a per-body group tag, spec.md §3

	// per-step contact record, cleared at the start of each step
	// (spec.md §3 "collision list cleared at start of each step").
	Contacts []*body.Contact

	// LastContactForce/LastContactCount snapshot the post-integrate state
	// of the previous step's contacts, written by the orchestrator after
	// integrate so drivers reading ground-reaction load (Tegotae) see the
	// step just completed, never the step being assembled (spec.md §5).
	LastContactForce float64
	LastContactCount int
}

// ID implements registry.Named.
func (g *Geom) ID() string { return g.Name }

// NewSphere constructs a sphere primitive.
func NewSphere(name string, b *body.Body, radius float64, mat Material) *Geom {
	return &Geom{Name: name, Body: b, Kind: Sphere, Radius: radius, Mat: mat, LocalOrient: spatial.IdentityQuat()}
}

// NewPlane constructs a static plane a*x+b*y+c*z=d (normal need not be
// pre-normalised; NewPlane normalises it).
func NewPlane(name string, normal spatial.Vec3, offset float64, mat Material) *Geom {
	return &Geom{Name: name, Kind: Plane, PlaneNormal: normal.Normalize(), PlaneOffset: offset, Mat: mat, LocalOrient: spatial.IdentityQuat()}
}

// NewBox constructs an axis-aligned (in local frame) box primitive.
func NewBox(name string, b *body.Body, lx, ly, lz float64, mat Material) *Geom {
	return &Geom{Name: name, Body: b, Kind: Box, Lx: lx, Ly: ly, Lz: lz, Mat: mat, LocalOrient: spatial.IdentityQuat()}
}

// WorldPos returns the geom's world-frame origin.
func (g *Geom) WorldPos() spatial.Vec3 {
	if g.Body == nil {
		return g.LocalPos
	}
	return g.Body.Pos.Add(spatial.Rotate(g.Body.Orient, g.LocalPos))
}

// WorldOrient returns the geom's world-frame orientation.
func (g *Geom) WorldOrient() spatial.Quat {
	if g.Body == nil {
		return g.LocalOrient
	}
	return spatial.Compose(g.Body.Orient, g.LocalOrient)
}

// ClearStep clears this geom's per-step contact list (spec.md §3).
func (g *Geom) ClearStep() { g.Contacts = nil }

// SnapshotContacts records the post-integrate contact force sum and count
// for next-step driver reads (spec.md §4.8 "the geom records the contact
// ... force after integrate ... for downstream readers such as Tegotae
// drivers").
func (g *Geom) SnapshotContacts() {
	g.LastContactForce = 0
	g.LastContactCount = len(g.Contacts)
	for _, c := range g.Contacts {
		g.LastContactForce += c.Force
	}
}

// AddExclude suppresses future collisions between g and other in both
// directions, used once an adhesion ball joint has bonded the pair.
func (g *Geom) AddExclude(other *Geom) {
	if g.ExcludeIDs == nil {
		g.ExcludeIDs = make(map[string]bool)
	}
	g.ExcludeIDs[other.Name] = true
	if other.ExcludeIDs == nil {
		other.ExcludeIDs = make(map[string]bool)
	}
	other.ExcludeIDs[g.Name] = true
}

// Excludes reports whether collisions between g and other are explicitly
// suppressed (spec.md §4.8 "explicit per-geom exclude lists always win").
func (g *Geom) Excludes(other *Geom) bool {
	if g.ExcludeIDs != nil && g.ExcludeIDs[other.Name] {
		return true
	}
	if other.ExcludeIDs != nil && other.ExcludeIDs[g.Name] {
		return true
	}
	return false
}
