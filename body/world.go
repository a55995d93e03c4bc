// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package body

import "github.com/cpmech/gaitsym/spatial"

// World owns the body/joint/contact collections and drives the Engine once
// per step, the "bodies (mass, inertia, pose, twist), joints ..., contact
// groups, world step" thin wrapper of spec.md §2 component C3.
type World struct {
	Engine Engine

	Gravity spatial.Vec3
	StepSize float64
	LinearDamping, AngularDamping float64

	Bodies []*Body
	Joints []*Joint

	// Contacts is rebuilt every step by the collision pipeline (spec.md
	// §4.1 phase 2) before Step is called.
	Contacts []*Contact

	// LastNumErrors is the numerical-error count the Engine reported for
	// the most recent Step call (spec.md §4.1 phase 9).
	LastNumErrors int
}

// NewWorld constructs a World with the reference SimpleEngine installed.
func NewWorld() *World {
	return &World{Engine: NewSimpleEngine(), StepSize: 1e-3}
}

// AddBody registers a body with the world.
func (w *World) AddBody(b *Body) { w.Bodies = append(w.Bodies, b) }

// AddJoint registers a joint with the world.
func (w *World) AddJoint(j *Joint) { w.Joints = append(w.Joints, j) }

// ClearAccumulators resets every body's per-step force/torque accumulator,
// called at the start of each step before drivers/muscles/joints/sacs
// apply their loads (spec.md §4.1 phases 5-7).
func (w *World) ClearAccumulators() {
	for _, b := range w.Bodies {
		b.ClearAccumulators()
	}
}

// Step advances the world by h using the installed Engine (spec.md §4.1
// phase 8). Contacts must already be populated for this step.
func (w *World) Step(h float64) {
	w.LastNumErrors = w.Engine.Step(w.Bodies, w.Joints, w.Contacts, w.Gravity, h, w.LinearDamping, w.AngularDamping)
}
