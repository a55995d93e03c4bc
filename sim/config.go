// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package sim implements the simulation orchestrator of spec.md §2/§4.1
// (component C12): the per-step pipeline, abort conditions, energy
// bookkeeping, dump streams and model-state serialisation, owning every
// other component's registries.
package sim

import "github.com/cpmech/gaitsym/spatial"

// FitnessType is the scoring-composition mode of spec.md §3/§4.9.
type FitnessType int

const (
	KinematicMatch FitnessType = iota
	KinematicMatchMiniMax
	ClosestWarehouse
)

// IntegratorKind selects the engine's integration family (spec.md §3).
type IntegratorKind int

const (
	WorldIntegrator IntegratorKind = iota
	QuickIntegrator
)

// Config holds the GLOBAL element's parameters (spec.md §3/§6).
type Config struct {
	Gravity  spatial.Vec3
	StepSize float64

	ERP, CFM                float64
	ContactMaxCorrectingVel float64
	ContactSurfaceLayer     float64
	MaxContactsPerPair      int

	LinearDamping, AngularDamping float64

	Integrator IntegratorKind

	AllowConnectedCollisions bool
	AllowInternalCollisions  bool

	PermittedNumericalErrors int
	NumericalErrorsScore    float64

	FitnessType FitnessType

	BMR                   float64
	TimeLimit             float64
	MechanicalEnergyLimit float64
	MetabolicEnergyLimit  float64
	HasEnergyLimits       bool

	// DistanceBodyName names the body whose displacement is used for
	// distance-travelled-derived fitness/reporting (spec.md §3).
	DistanceBodyName string

	OutputModelStateFile    string
	OutputStateAtTime       float64
	OutputStateAtCycle      int
	AbortAfterState         bool
}

// DefaultConfig returns sane defaults matching typical gait models.
func DefaultConfig() Config {
	return Config{
		Gravity:  spatial.Vec3{0, 0, -9.81},
		StepSize: 0.001,
		ERP:      0.2,
		CFM:      1e-6,
		MaxContactsPerPair: 4,
		Integrator:         WorldIntegrator,
		FitnessType:        KinematicMatch,
	}
}
