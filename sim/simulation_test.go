// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"context"
	"testing"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/datatarget"
	"github.com/cpmech/gaitsym/driver"
	"github.com/cpmech/gaitsym/geom"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gosl/chk"
)

func fallingSim(stepSize float64) (*Simulation, *body.Body) {
	cfg := DefaultConfig()
	cfg.StepSize = stepSize
	s := NewSimulation(cfg)
	b := body.NewBody("ball", 1, spatial.Diag3(1, 1, 1))
	b.Pos = spatial.Vec3{0, 0, 10}
	if err := s.RegisterBody(b); err != nil {
		panic(err)
	}
	return s, b
}

// end-to-end scenario: p_z(t=1.0) = 10 - g/2 within 1e-4
func TestRunFallingBody(tst *testing.T) {
	chk.PrintTitle("RunFallingBody")
	s, b := fallingSim(0.001)
	s.Config.TimeLimit = 1.0
	fitness, err := s.Run(context.Background())
	if err != nil {
		tst.Fatalf("run failed: %v", err)
	}
	chk.Float64(tst, "fitness (no targets)", 1e-15, fitness, 0)
	chk.Float64(tst, "pz", 1e-4, b.Pos.Z(), 10-0.5*9.81)
	chk.IntAssert(s.Step, 1000)
}

// zero-step: h=0 is a no-op on all poses and velocities, but the step
// counter (and with it every drivable stamp) advances
func TestZeroStepIsNoOp(tst *testing.T) {
	chk.PrintTitle("ZeroStepIsNoOp")
	s, b := fallingSim(0)
	b.LinVel = spatial.Vec3{1, 2, 3}
	posBefore, velBefore := b.Pos, b.LinVel
	aborted, _ := s.StepOnce()
	if aborted {
		tst.Fatalf("zero step must not abort")
	}
	if b.Pos != posBefore || b.LinVel != velBefore {
		tst.Errorf("zero step mutated body state")
	}
	chk.IntAssert(s.Step, 1)
}

func TestBodyLimitAbort(tst *testing.T) {
	chk.PrintTitle("BodyLimitAbort")
	s, b := fallingSim(0.001)
	b.HasPositionBounds = true
	b.PositionLow = spatial.Vec3{-1, -1, 9.5}
	b.PositionHigh = spatial.Vec3{1, 1, 11}
	s.Config.TimeLimit = 10
	_, err := s.Run(context.Background())
	if err != nil {
		tst.Fatalf("run failed: %v", err)
	}
	if aborted, reason := s.Aborted(); !aborted || reason == "" {
		tst.Errorf("falling past the position bound must abort with a reason")
	}
}

func TestAbortGeomContact(tst *testing.T) {
	chk.PrintTitle("AbortGeomContact")
	s, b := fallingSim(0.001)
	sphere := geom.NewSphere("foot", b, 1, geom.Material{Mu: 0.5})
	sphere.Abort = true
	ground := geom.NewPlane("ground", spatial.Vec3{0, 0, 1}, 0, geom.Material{})
	if err := s.Geoms.Add(sphere); err != nil {
		tst.Fatal(err)
	}
	if err := s.Geoms.Add(ground); err != nil {
		tst.Fatal(err)
	}
	s.Config.TimeLimit = 10
	if _, err := s.Run(context.Background()); err != nil {
		tst.Fatalf("run failed: %v", err)
	}
	aborted, reason := s.Aborted()
	if !aborted {
		tst.Fatalf("abort-flagged geom touching ground must end the run")
	}
	if reason == "" {
		tst.Errorf("abort must name the responsible entity")
	}
	if b.Pos.Z() > 1.2 || b.Pos.Z() < 0.5 {
		tst.Errorf("abort should fire near first touch, z=%v", b.Pos.Z())
	}
}

// sum vs minimax composition over two data targets
func TestFitnessComposition(tst *testing.T) {
	chk.PrintTitle("FitnessComposition")
	mkTargets := func(s *Simulation) {
		t1 := datatarget.New("t1", []float64{0}, []float64{0}, datatarget.Discrete, datatarget.Linear, 0, 1,
			func(float64) float64 { return 3 })
		t2 := datatarget.New("t2", []float64{0}, []float64{0}, datatarget.Discrete, datatarget.Linear, 0, 1,
			func(float64) float64 { return 7 })
		if err := s.DataTargets.Add(t1); err != nil {
			tst.Fatal(err)
		}
		if err := s.DataTargets.Add(t2); err != nil {
			tst.Fatal(err)
		}
	}

	s1, _ := fallingSim(0.001)
	mkTargets(s1)
	s1.StepOnce()
	chk.Float64(tst, "sum mode", 1e-12, s1.Fitness, 3+7)

	s2, _ := fallingSim(0.001)
	s2.Config.FitnessType = KinematicMatchMiniMax
	mkTargets(s2)
	s2.StepOnce()
	chk.Float64(tst, "minimax mode", 1e-12, s2.Fitness, 3)
}

// the drive delivered by a cyclic driver reaches a drivable through the
// full pipeline with the current step stamp
func TestDriverPipelineDelivery(tst *testing.T) {
	chk.PrintTitle("DriverPipelineDelivery")
	s, _ := fallingSim(0.001)
	var acc driver.Accumulator
	d := driver.NewFixed("d", 0.7, 0, 1)
	d.AddTarget(&acc)
	s.Drivers = append(s.Drivers, DriverLike{
		Name:    "d",
		Update:  func(t, h float64, step int) float64 { return d.Update(t, step) },
		Publish: d.Publish,
		Period:  d.Period,
	})
	s.StepOnce()
	chk.Float64(tst, "delivered", 1e-15, acc.Value(0), 0.7)
	s.StepOnce()
	chk.Float64(tst, "restamped", 1e-15, acc.Value(1), 0.7)
}

func TestMetabolicEnergyBMR(tst *testing.T) {
	chk.PrintTitle("MetabolicEnergyBMR")
	s, _ := fallingSim(0.001)
	s.Config.BMR = 80
	s.Config.TimeLimit = 1.0
	if _, err := s.Run(context.Background()); err != nil {
		tst.Fatalf("run failed: %v", err)
	}
	chk.Float64(tst, "BMR integral", 1e-9, s.MetabolicEnergy, 80*1.0)
}

func TestWarehouseRunningMinimum(tst *testing.T) {
	chk.PrintTitle("WarehouseRunningMinimum")
	w := NewWarehouse("w")
	w.Add([]float64{0, 0, 0})
	w.Add([]float64{10, 0, 0})
	chk.Float64(tst, "first", 1e-12, w.RunningMinimum([]float64{3, 4, 0}), 5)
	chk.Float64(tst, "closer to second entry", 1e-12, w.RunningMinimum([]float64{9, 0, 0}), 1)
	chk.Float64(tst, "running min keeps best", 1e-12, w.RunningMinimum([]float64{100, 0, 0}), 1)
}
