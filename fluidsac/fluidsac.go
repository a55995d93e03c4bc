// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package fluidsac implements the closed triangle-mesh membrane model of
// spec.md §2/§4.6 (component C7): volume, pressure and per-marker point
// forces.
package fluidsac

import (
	"math"

	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

// Kind is the sum-type tag for the pressure-law family of spec.md §6.
type Kind int

const (
	IdealGas Kind = iota
	Incompressible
)

// Triangle is a static index triple into Markers (spec.md §3).
type Triangle [3]int

// FluidSac is a closed triangle-mesh membrane defined by ordered markers
// (spec.md §3).
type FluidSac struct {
	Name      string
	Kind      Kind
	Markers   []*marker.Marker
	Triangles []Triangle

	// IdealGas parameters
	MolesR_T float64 // n*R*T, held isothermal
	ExternalPressure float64

	// Incompressible parameters
	BulkModulus, BulkDamping, RestVolume, RestPressure float64

	Volume, VolumeRate, Pressure float64

	prevVolume float64
	firstStep  bool

	// cached per-step force accumulated per marker index
	forces []markerForce
}

type markerForce struct {
	marker *marker.Marker
	force  [3]float64
}

// ID implements registry.Named.
func (f *FluidSac) ID() string { return f.Name }

// NewIdealGas constructs an ideal-gas sac (spec.md §4.6 step 5).
func NewIdealGas(name string, markers []*marker.Marker, tris []Triangle, nRT, pExt float64) *FluidSac {
	return &FluidSac{Name: name, Kind: IdealGas, Markers: markers, Triangles: tris, MolesR_T: nRT, ExternalPressure: pExt, firstStep: true}
}

// NewIncompressible constructs a linear bulk-modulus sac.
func NewIncompressible(name string, markers []*marker.Marker, tris []Triangle, k, d, v0, p0 float64) *FluidSac {
	return &FluidSac{Name: name, Kind: Incompressible, Markers: markers, Triangles: tris, BulkModulus: k, BulkDamping: d, RestVolume: v0, RestPressure: p0, firstStep: true}
}

// CheckMesh validates the load-time mesh-quality invariants of spec.md
// §4.6: every marker appears in at least one triangle, every edge is
// shared by exactly two triangles with opposite orientation, and the
// initial volume is non-zero.
func (f *FluidSac) CheckMesh() error {
	seen := make([]bool, len(f.Markers))
	type edge struct{ a, b int }
	edgeCount := make(map[edge]int)
	for _, t := range f.Triangles {
		for _, idx := range t {
			if idx < 0 || idx >= len(f.Markers) {
				return chk.Err("fluidsac %q: triangle references out-of-range marker index %d", f.Name, idx)
			}
			seen[idx] = true
		}
		for k := 0; k < 3; k++ {
			a, b := t[k], t[(k+1)%3]
			edgeCount[edge{a, b}]++
		}
	}
	for i, ok := range seen {
		if !ok {
			return chk.Err("fluidsac %q: marker %q is not used by any triangle", f.Name, f.Markers[i].ID())
		}
	}
	for e, n := range edgeCount {
		if n != 1 {
			return chk.Err("fluidsac %q: directed edge (%d,%d) used %d times (mesh not closed/consistently oriented)", f.Name, e.a, e.b, n)
		}
		opp := edge{e.b, e.a}
		if edgeCount[opp] != 1 {
			return chk.Err("fluidsac %q: edge (%d,%d) has no opposite-oriented twin", f.Name, e.a, e.b)
		}
	}
	v := f.computeVolume()
	if math.Abs(v) < 1e-15 {
		return chk.Err("fluidsac %q: initial enclosed volume is zero", f.Name)
	}
	return nil
}

func (f *FluidSac) computeVolume() float64 {
	var v float64
	for _, t := range f.Triangles {
		pa := f.Markers[t[0]].WorldPos()
		pb := f.Markers[t[1]].WorldPos()
		pc := f.Markers[t[2]].WorldPos()
		v += pa.Dot(pb.Cross(pc))
	}
	return v / 6
}

// Update recomputes volume, volume rate, pressure and per-marker point
// forces for the current marker poses, per spec.md §4.6 (called each step,
// phase 7 of §4.1).
func (f *FluidSac) Update(h float64) error {
	V := f.computeVolume()
	if !f.firstStep && ((V > 0) != (f.Volume > 0)) {
		return chk.Err("fluidsac %q: signed volume changed sign (%.6g -> %.6g), fatal model error", f.Name, f.Volume, V)
	}
	if f.firstStep {
		f.VolumeRate = 0
		f.firstStep = false
	} else if h > 0 {
		f.VolumeRate = (V - f.Volume) / h
	}
	f.prevVolume = f.Volume
	f.Volume = V

	switch f.Kind {
	case IdealGas:
		p := f.MolesR_T/V - f.ExternalPressure
		if p < 0 {
			p = 0
		}
		f.Pressure = p
	case Incompressible:
		f.Pressure = f.RestPressure - f.BulkModulus*(V-f.RestVolume)/f.RestVolume + (f.BulkDamping/f.RestVolume)*f.VolumeRate
	}

	f.accumulateForces()
	return nil
}

// accumulateForces distributes each triangle's pressure force equally
// across its three vertices (spec.md §4.6 step 6).
func (f *FluidSac) accumulateForces() {
	acc := make([][3]float64, len(f.Markers))
	for _, t := range f.Triangles {
		pa := f.Markers[t[0]].WorldPos()
		pb := f.Markers[t[1]].WorldPos()
		pc := f.Markers[t[2]].WorldPos()
		e1 := pb.Sub(pa)
		e2 := pc.Sub(pa)
		n := e1.Cross(e2)
		area2 := n.Len()
		if area2 < 1e-300 {
			continue
		}
		area := 0.5 * area2
		nHat := n.Mul(1 / area2)
		fMag := f.Pressure * area
		fVec := nHat.Mul(fMag / 3)
		for _, idx := range t {
			acc[idx][0] += fVec.X()
			acc[idx][1] += fVec.Y()
			acc[idx][2] += fVec.Z()
		}
	}
	f.forces = f.forces[:0]
	for i, m := range f.Markers {
		f.forces = append(f.forces, markerForce{marker: m, force: acc[i]})
	}
}

// ApplyForces applies the accumulated per-marker loads to each marker's
// host body via body.Body.AddForceAtPoint, the "loads are applied via the
// rigid-body adapter" contract of spec.md §4.1 phase 7. World markers
// (Body==nil) are skipped.
func (f *FluidSac) ApplyForces() {
	for _, mf := range f.forces {
		if mf.marker.Body == nil {
			continue
		}
		fv := spatial.Vec3{mf.force[0], mf.force[1], mf.force[2]}
		mf.marker.Body.AddForceAtPoint(fv, mf.marker.WorldPos())
	}
}
