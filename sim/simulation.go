// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"context"
	"fmt"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/controller"
	"github.com/cpmech/gaitsym/datatarget"
	"github.com/cpmech/gaitsym/fluidsac"
	"github.com/cpmech/gaitsym/geom"
	"github.com/cpmech/gaitsym/muscle"
	"github.com/cpmech/gaitsym/registry"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gaitsym/strap"
	"github.com/cpmech/gosl/chk"
)

// Simulation owns every entity in per-kind name-indexed registries, the
// current time/step, energy and fitness accumulators, the active-contact
// list for the current step, and dump streams — the arena of spec.md §3/§9.
type Simulation struct {
	Config Config
	World  *body.World

	Bodies      *registry.Registry[*body.Body]
	Joints      *registry.Registry[*body.Joint]
	Geoms       *registry.Registry[*geom.Geom]
	Straps      *registry.Registry[*strap.Strap]
	Muscles     *registry.Registry[*muscle.Muscle]
	FluidSacs   *registry.Registry[*fluidsac.FluidSac]
	Drivers     []DriverLike
	Controllers []*controller.Controller
	DataTargets *registry.Registry[*datatarget.DataTarget]

	Warehouse *Warehouse

	Time float64
	Step int

	MechanicalEnergy float64
	MetabolicEnergy  float64
	Fitness          float64
	minimaxSum       float64

	numericalErrorCount int
	lastAborted         bool
	abortReason         string
	worldBody           *body.Body

	dumps map[string]*dumpStream

	// StateEncoder renders the current world as model-file text; bound by
	// the loader (sim has no modelfile dependency of its own, to avoid an
	// import cycle between the two packages).
	StateEncoder ModelStateEncoder

	wroteStateAtTime     bool
	lastStateCycle       int
	lastResourceErr      error
	abortAfterStateWrite bool
}

// DriverLike is satisfied by driver.Driver and the marker/Tegotae/IK driver
// wrappers, each of which exposes Update(...)/Publish(step) with whatever
// signature its kind needs; the orchestrator drives them through a small
// closure captured at load time rather than a single rigid interface,
// mirroring spec.md §9's "switch on the tag" sum-type dispatch one level up
// (resolved once at load, not re-dispatched every step).
type DriverLike struct {
	Name    string
	Update  func(t, h float64, step int) float64
	Publish func(step int)
	Period  func() float64
}

// NewSimulation constructs an empty Simulation with the given config.
func NewSimulation(cfg Config) *Simulation {
	w := body.NewWorld()
	w.Gravity = cfg.Gravity
	w.StepSize = cfg.StepSize
	w.LinearDamping = cfg.LinearDamping
	w.AngularDamping = cfg.AngularDamping
	return &Simulation{
		Config:      cfg,
		World:       w,
		Bodies:      registry.NewRegistry[*body.Body](),
		Joints:      registry.NewRegistry[*body.Joint](),
		Geoms:       registry.NewRegistry[*geom.Geom](),
		Straps:      registry.NewRegistry[*strap.Strap](),
		Muscles:     registry.NewRegistry[*muscle.Muscle](),
		FluidSacs:   registry.NewRegistry[*fluidsac.FluidSac](),
		DataTargets: registry.NewRegistry[*datatarget.DataTarget](),
		dumps:       make(map[string]*dumpStream),
	}
}

// CycleTime returns the simulation cycle time derived as the maximum over
// every Cyclic/StackedBoxcar driver's period (spec.md §4.2).
func (s *Simulation) CycleTime() float64 {
	var max float64
	for _, d := range s.Drivers {
		if d.Period == nil {
			continue
		}
		if p := d.Period(); p > max {
			max = p
		}
	}
	return max
}

// Run steps the simulation until an abort predicate fires or the time
// limit is reached, returning the final fitness scalar (spec.md §9's
// outer-optimiser contract: "construct Simulation, load model, run until
// termination or time limit, read fitness scalar, destroy").
func (s *Simulation) Run(ctx context.Context) (float64, error) {
	for {
		select {
		case <-ctx.Done():
			return s.Fitness, ctx.Err()
		default:
		}
		aborted, reason := s.stepOnce()
		if aborted {
			s.lastAborted = true
			s.abortReason = reason
			return s.Fitness, nil
		}
		if s.Config.TimeLimit > 0 && s.Time >= s.Config.TimeLimit {
			return s.Fitness, nil
		}
		if s.Config.HasEnergyLimits {
			if s.Config.MechanicalEnergyLimit > 0 && s.MechanicalEnergy > s.Config.MechanicalEnergyLimit {
				return s.Fitness, nil
			}
			if s.Config.MetabolicEnergyLimit > 0 && s.MetabolicEnergy > s.Config.MetabolicEnergyLimit {
				return s.Fitness, nil
			}
		}
	}
}

// Close flushes every dump stream to disk under dir (spec.md §5: "Dump
// file streams: ... closed at Simulation destruction"). It does not touch
// the physics world. Call once, after Run returns.
func (s *Simulation) Close(dumpDir string) []error {
	return s.closeDumps(dumpDir)
}

// Aborted reports whether the last Run/Step call terminated via an abort
// predicate, and names it (spec.md §7: "the precise predicate and entity
// id" on stderr).
func (s *Simulation) Aborted() (bool, string) { return s.lastAborted, s.abortReason }

// StepOnce runs exactly one pass of the nine-phase pipeline of spec.md
// §4.1, for callers driving the simulation one step at a time (e.g. the
// zero-step and save/reload invariants of spec.md §8).
func (s *Simulation) StepOnce() (aborted bool, reason string) {
	return s.stepOnce()
}

func (s *Simulation) stepOnce() (aborted bool, reason string) {
	h := s.Config.StepSize

	// phase 1: scoring pre-step
	var minContribution float64
	haveMin := false
	for _, dt := range s.DataTargets.All() {
		c := dt.Update(s.Time, h)
		if s.Config.FitnessType == KinematicMatchMiniMax {
			if !haveMin || c < minContribution {
				minContribution = c
				haveMin = true
			}
		} else {
			s.Fitness += c
		}
		if dt.Aborted {
			return true, fmt.Sprintf("data target %q error %.6g exceeded abort threshold", dt.Name, dt.LastError())
		}
	}
	if s.Config.FitnessType == KinematicMatchMiniMax && haveMin {
		s.minimaxSum += minContribution
		s.Fitness = s.minimaxSum
	}
	if s.Config.FitnessType == ClosestWarehouse && s.Warehouse != nil {
		s.Fitness = s.Warehouse.RunningMinimum(s.currentStateVector())
	}

	// phase 2: contact rebuild
	rule := geom.PairRule{
		AllowConnectedCollisions: s.Config.AllowConnectedCollisions,
		AllowInternalCollisions:  s.Config.AllowInternalCollisions,
		MaxContactsPerPair:       s.Config.MaxContactsPerPair,
		ContactSurfaceLayer:      s.Config.ContactSurfaceLayer,
		ContactMaxCorrectingVel:  s.Config.ContactMaxCorrectingVel,
	}
	contacts, bonds := geom.BuildContacts(s.Geoms.All(), s.Joints.All(), rule)
	s.World.Contacts = contacts
	for _, b := range bonds {
		s.bondPair(b)
	}
	for _, g := range s.Geoms.All() {
		if g.Abort && len(g.Contacts) > 0 {
			return true, fmt.Sprintf("geom %q (abort-on-contact) participated in a contact", g.Name)
		}
	}

	// phase 3: driver update
	for _, d := range s.Drivers {
		d.Update(s.Time, h, s.Step)
	}
	for _, d := range s.Drivers {
		d.Publish(s.Step)
	}

	// phase 4: controller update (each sees only this step's driver pushes)
	for _, c := range s.Controllers {
		c.Update(s.Step, h)
	}
	for _, c := range s.Controllers {
		c.Publish(s.Step)
	}

	// phase 5: muscle/strap update
	s.World.ClearAccumulators()
	for _, m := range s.Muscles.All() {
		m.Strap.Update(h)
		m.Update(h, s.Step)
		for _, pf := range m.Strap.PointForces(m.Tension) {
			if pf.Host != nil {
				pf.Host.AddForceAtPoint(pf.Dir, pf.Point)
			}
		}
		s.MechanicalEnergy += m.Tension * m.Strap.Velocity * h
		s.MetabolicEnergy += m.MetabolicPower() * h
	}
	s.MetabolicEnergy += s.Config.BMR * h

	// phase 6: joint update
	for _, j := range s.Joints.All() {
		angle := j.HingeAngle()
		angVel := j.HingeAngularVelocity()
		torque := j.MotorTorque(h) + j.StopTorque(angle, angVel)
		if torque != 0 {
			applyJointTorque(j, torque)
		}
		if j.HasStops {
			if lim := j.LastStopTorque(); s.exceedsStopLimit(j, lim) {
				return true, fmt.Sprintf("joint %q hinge stop torque %.6g exceeded limit", j.Name, lim)
			}
		}
		if j.Kind == body.Fixed && j.StressLimit > 0 {
			stress := j.FixedStress(j.Reaction)
			if stress > j.StressLimit {
				return true, fmt.Sprintf("joint %q fixed-joint stress %.6g exceeded limit", j.Name, stress)
			}
		}
	}

	// phase 7: fluid-sac update
	for _, fs := range s.FluidSacs.All() {
		if err := fs.Update(h); err != nil {
			return true, err.Error()
		}
		fs.ApplyForces()
	}

	// phase 8: integrate
	s.World.Step(h)

	// phase 9: post-step checks; contact forces are snapshotted per geom
	// so next step's drivers (Tegotae) read the step just completed
	for _, g := range s.Geoms.All() {
		g.SnapshotContacts()
	}
	newErrors := s.World.LastNumErrors
	for _, b := range s.Bodies.All() {
		if !b.CheckFinite() {
			newErrors++
			continue
		}
		if violated, why := b.CheckLimits(); violated {
			return true, fmt.Sprintf("body %q %s violated", b.Name, why)
		}
	}
	s.numericalErrorCount += newErrors
	if s.numericalErrorCount > s.Config.PermittedNumericalErrors {
		return true, fmt.Sprintf("numerical error count %d exceeded permitted %d", s.numericalErrorCount, s.Config.PermittedNumericalErrors)
	}
	// below the cap each new error costs a configurable fitness penalty
	s.Fitness += float64(newErrors) * s.Config.NumericalErrorsScore

	s.dumpStep()
	s.maybeWriteModelState()

	s.Time += h
	s.Step++
	if s.abortAfterStateWrite {
		return true, "--abort-after-state: model state written"
	}
	return false, ""
}

// bondPair converts an adhesion touch into a permanent ball joint at the
// contact point and suppresses further collisions for the pair (spec.md
// §4.8: "a permanent ball joint is created at the contact point").
func (s *Simulation) bondPair(b geom.Bond) {
	b.G1.AddExclude(b.G2)
	b1, b2 := b.G1.Body, b.G2.Body
	if b1 == nil {
		b1 = s.worldAnchor()
	}
	if b2 == nil {
		b2 = s.worldAnchor()
	}
	j := body.NewJoint(fmt.Sprintf("adhesion-%s-%s", b.G1.Name, b.G2.Name), body.Ball, b1, b2)
	j.Anchor1 = spatial.Rotate(b1.Orient.Conjugate(), b.Point.Sub(b1.Pos))
	j.Anchor2 = spatial.Rotate(b2.Orient.Conjugate(), b.Point.Sub(b2.Pos))
	s.World.AddJoint(j)
}

// worldAnchor returns the lazily-created fixed body standing in for the
// world frame where a joint endpoint has no owning body.
func (s *Simulation) worldAnchor() *body.Body {
	if s.worldBody == nil {
		s.worldBody = body.NewFixedBody("World")
		s.World.AddBody(s.worldBody)
	}
	return s.worldBody
}

// WorldAnchor exposes the world fixed body for loaders wiring joints whose
// markers have no owning body.
func (s *Simulation) WorldAnchor() *body.Body { return s.worldAnchor() }

func applyJointTorque(j *body.Joint, torque float64) {
	axisWorld := j.Body1.Orient.Rotate(j.Axis1)
	t := axisWorld.Mul(torque)
	j.Body1.AddTorque(t.Mul(-1))
	j.Body2.AddTorque(t)
}

func (s *Simulation) exceedsStopLimit(j *body.Joint, torque float64) bool {
	if j.HiStopTorqueLimit > 0 && torque > j.HiStopTorqueLimit {
		return true
	}
	if j.LoStopTorqueLimit > 0 && torque < -j.LoStopTorqueLimit {
		return true
	}
	return false
}

// currentStateVector returns a flattened snapshot of every body pose,
// used by the ClosestWarehouse fitness mode's distance function.
func (s *Simulation) currentStateVector() []float64 {
	bodies := s.Bodies.All()
	out := make([]float64, 0, len(bodies)*3)
	for _, b := range bodies {
		out = append(out, b.Pos.X(), b.Pos.Y(), b.Pos.Z())
	}
	return out
}

// RegisterBody adds a body both to the registry and the physics world.
func (s *Simulation) RegisterBody(b *body.Body) error {
	if err := s.Bodies.Add(b); err != nil {
		return err
	}
	s.World.AddBody(b)
	return nil
}

// RegisterJoint adds a joint both to the registry and the physics world.
func (s *Simulation) RegisterJoint(j *body.Joint) error {
	if err := s.Joints.Add(j); err != nil {
		return err
	}
	s.World.AddJoint(j)
	return nil
}

// AggregateErrors joins a slice of load errors into one chk.Err, or nil if
// empty, mirroring spec.md §7's "the loader aggregates and returns all
// messages".
func AggregateErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return chk.Err("%s", msg)
}
