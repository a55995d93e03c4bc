// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package body

import "github.com/cpmech/gaitsym/spatial"

// Contact is a unilateral constraint between two geoms at a point, built by
// the collision pipeline of spec.md §4.8 and consumed by the Engine.
type Contact struct {
	Body1, Body2   *Body
	Point          spatial.Vec3
	Normal         spatial.Vec3 // points from Body1 towards Body2
	Depth          float64
	Mu, Bounce     float64
	SoftCFM, SoftERP float64
	MaxCorrectingVel float64

	// Force is filled in by the engine after Step, the "force after
	// integrate" spec.md §4.8 says geoms record for downstream readers
	// such as the Tegotae driver.
	Force float64
}

// Engine is the external constrained-dynamics collaborator of spec.md §1:
// "we assume an ODE-like engine exists that, given bodies, joints, contact
// joints, gravity, ERP/CFM, and a step size, advances the world". World
// drives this interface once per step (phase 8 of spec.md §4.1); it never
// reaches into the engine's internals.
type Engine interface {
	// Step advances every non-fixed body in bodies by h, honouring the
	// constraints in joints and contacts, under gravity and the given
	// linear/angular damping. It returns the number of numerical errors
	// detected during the step (non-finite state, singular solve, ...).
	Step(bodies []*Body, joints []*Joint, contacts []*Contact, gravity spatial.Vec3, h, linDamp, angDamp float64) (numErrors int)
}
