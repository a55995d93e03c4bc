// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import (
	"testing"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

func TestMaterialPairResolution(tst *testing.T) {
	chk.PrintTitle("MaterialPairResolution")
	a := Material{Mu: 0.2, Rho: 0.1, Bounce: 0.5, SoftCFM: 1e-6, SoftERP: 0.3}
	b := Material{Mu: 0.8, Rho: 0.05, Bounce: 0.1, SoftCFM: 1e-4, SoftERP: 0.1}
	m := ResolvePair(a, b)
	chk.Float64(tst, "mu is max", 1e-15, m.Mu, 0.8)
	chk.Float64(tst, "rho is max", 1e-15, m.Rho, 0.1)
	chk.Float64(tst, "bounce is max", 1e-15, m.Bounce, 0.5)
	chk.Float64(tst, "softCFM is max", 1e-15, m.SoftCFM, 1e-4)
	chk.Float64(tst, "softERP is min>=0", 1e-15, m.SoftERP, 0.1)
}

func TestSpherePlaneContact(tst *testing.T) {
	chk.PrintTitle("SpherePlaneContact")
	b := body.NewBody("ball", 1, spatial.Diag3(1, 1, 1))
	b.Pos = spatial.Vec3{0, 0, 0.5}
	sphere := NewSphere("s", b, 1, Material{Mu: 0.5})
	plane := NewPlane("ground", spatial.Vec3{0, 0, 1}, 0, Material{})
	contacts, bonds := BuildContacts([]*Geom{sphere, plane}, nil, PairRule{MaxContactsPerPair: 4})
	if len(bonds) != 0 {
		tst.Fatalf("no adhesion expected")
	}
	if len(contacts) != 1 {
		tst.Fatalf("expected one contact, got %d", len(contacts))
	}
	c := contacts[0]
	chk.Float64(tst, "depth", 1e-12, c.Depth, 0.5)
	if len(sphere.Contacts) != 1 || len(plane.Contacts) != 1 {
		tst.Errorf("both geoms must record the contact")
	}
}

func TestExcludeListWins(tst *testing.T) {
	chk.PrintTitle("ExcludeListWins")
	b1 := body.NewBody("b1", 1, spatial.Diag3(1, 1, 1))
	b2 := body.NewBody("b2", 1, spatial.Diag3(1, 1, 1))
	b2.Pos = spatial.Vec3{0.5, 0, 0}
	g1 := NewSphere("g1", b1, 1, Material{})
	g2 := NewSphere("g2", b2, 1, Material{})
	g1.ExcludeIDs = map[string]bool{"g2": true}
	contacts, _ := BuildContacts([]*Geom{g1, g2}, nil, PairRule{})
	if len(contacts) != 0 {
		tst.Errorf("excluded pair must not collide")
	}
}

func TestConnectedPairSkipped(tst *testing.T) {
	chk.PrintTitle("ConnectedPairSkipped")
	b1 := body.NewBody("b1", 1, spatial.Diag3(1, 1, 1))
	b2 := body.NewBody("b2", 1, spatial.Diag3(1, 1, 1))
	b2.Pos = spatial.Vec3{0.5, 0, 0}
	j := body.NewJoint("j", body.Hinge, b1, b2)
	g1 := NewSphere("g1", b1, 1, Material{})
	g2 := NewSphere("g2", b2, 1, Material{})
	g1.ContactGroup, g2.ContactGroup = "b1", "b2"
	joints := []*body.Joint{j}
	contacts, _ := BuildContacts([]*Geom{g1, g2}, joints, PairRule{})
	if len(contacts) != 0 {
		tst.Errorf("jointed pair must be skipped by default")
	}
	contacts, _ = BuildContacts([]*Geom{g1, g2}, joints, PairRule{AllowConnectedCollisions: true})
	if len(contacts) == 0 {
		tst.Errorf("AllowConnectedCollisions must re-enable the pair")
	}
}

func TestSameGroupSkipped(tst *testing.T) {
	chk.PrintTitle("SameGroupSkipped")
	b1 := body.NewBody("b1", 1, spatial.Diag3(1, 1, 1))
	b2 := body.NewBody("b2", 1, spatial.Diag3(1, 1, 1))
	b2.Pos = spatial.Vec3{0.5, 0, 0}
	g1 := NewSphere("g1", b1, 1, Material{})
	g2 := NewSphere("g2", b2, 1, Material{})
	g1.ContactGroup, g2.ContactGroup = "leg", "leg"
	contacts, _ := BuildContacts([]*Geom{g1, g2}, nil, PairRule{})
	if len(contacts) != 0 {
		tst.Errorf("same contact group must be skipped by default")
	}
	contacts, _ = BuildContacts([]*Geom{g1, g2}, nil, PairRule{AllowInternalCollisions: true})
	if len(contacts) == 0 {
		tst.Errorf("AllowInternalCollisions must re-enable the pair")
	}
}

func TestAdhesionBecomesBond(tst *testing.T) {
	chk.PrintTitle("AdhesionBecomesBond")
	b1 := body.NewBody("b1", 1, spatial.Diag3(1, 1, 1))
	b2 := body.NewBody("b2", 1, spatial.Diag3(1, 1, 1))
	b2.Pos = spatial.Vec3{0.5, 0, 0}
	g1 := NewSphere("g1", b1, 1, Material{})
	g2 := NewSphere("g2", b2, 1, Material{})
	g1.Adhesion = true
	g1.ContactGroup, g2.ContactGroup = "a", "b"
	contacts, bonds := BuildContacts([]*Geom{g1, g2}, nil, PairRule{})
	if len(contacts) != 0 {
		tst.Errorf("adhesive touch must not produce a contact joint")
	}
	if len(bonds) != 1 {
		tst.Fatalf("expected one bond, got %d", len(bonds))
	}
}

func TestSnapshotContacts(tst *testing.T) {
	chk.PrintTitle("SnapshotContacts")
	b := body.NewBody("ball", 1, spatial.Diag3(1, 1, 1))
	g := NewSphere("s", b, 1, Material{})
	g.Contacts = []*body.Contact{{Force: 2}, {Force: 3}}
	g.SnapshotContacts()
	chk.Float64(tst, "force sum", 1e-15, g.LastContactForce, 5)
	chk.IntAssert(g.LastContactCount, 2)
}
