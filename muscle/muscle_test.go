// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package muscle

import (
	"math"
	"testing"

	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gaitsym/strap"
	"github.com/cpmech/gosl/chk"
)

func fixedStrap(length float64) *strap.Strap {
	o := marker.New("o", nil, spatial.Vec3{0, 0, 0}, spatial.IdentityQuat())
	i := marker.New("i", nil, spatial.Vec3{length, 0, 0}, spatial.IdentityQuat())
	s := strap.NewTwoPoint("s", o, i)
	s.Update(0.001)
	return s
}

// alpha = 0 produces T = 0 exactly
func TestZeroActivationZeroTension(tst *testing.T) {
	chk.PrintTitle("ZeroActivationZeroTension")
	m := NewMinettiAlexander("m", fixedStrap(1), 100, 1, 0.2)
	m.Push(0, 0)
	m.Update(0.001, 0)
	if m.Tension != 0 {
		tst.Errorf("alpha=0 must give T=0 exactly, got %v", m.Tension)
	}
}

// isometric (v=0): F = alpha*FMax (both force-velocity branches give 1 at v=0)
func TestMAIsometricForce(tst *testing.T) {
	chk.PrintTitle("MAIsometricForce")
	m := NewMinettiAlexander("m", fixedStrap(1), 100, 1, 0.2)
	m.Push(0.5, 3)
	m.Update(0.001, 3)
	chk.Float64(tst, "T", 1e-12, m.Tension, 0.5*100)
	if m.MetabolicPower() <= 0 {
		tst.Errorf("active muscle must burn metabolic power")
	}
}

// lengthening force exceeds isometric (eccentric branch rises towards 1.8)
func TestMAEccentricBranch(tst *testing.T) {
	chk.PrintTitle("MAEccentricBranch")
	vMax, k := 1.0, 0.2
	iso := maForceVelocity(0, vMax, k)
	ecc := maForceVelocity(-0.1*vMax, vMax, k)
	con := maForceVelocity(0.1*vMax, vMax, k)
	if !(ecc > iso && iso > con) {
		tst.Errorf("force-velocity ordering broken: ecc=%v iso=%v con=%v", ecc, iso, con)
	}
	if lim := maForceVelocity(-vMax, vMax, k); math.Abs(lim-1.8) > 0.5 {
		tst.Errorf("eccentric plateau should approach 1.8, got %v", lim)
	}
}

// springForce mirrors the element law the muscle solves against: linear
// spring plus damping in the element's own lengthening rate, slack carries
// nothing, never compressive.
func springForce(length, slack, k, d, rate float64) float64 {
	delta := length - slack
	if delta <= 0 {
		return 0
	}
	f := k*delta + d*rate
	if f < 0 {
		f = 0
	}
	return f
}

// maCompleteBalance recomputes the force-balance residual the Brent solve
// worked on, using the lCE-derived element rates, and returns it together
// with the tendon force the strap should carry.
func maCompleteBalance(m *Muscle, lPrev, h float64) (residual, fSE float64) {
	lCE := m.FibreLength()
	ceRate := (lCE - lPrev) / h
	seRate := -m.Strap.Velocity - ceRate
	bell := 1 - 4*math.Pow(lCE/m.LOpt-1, 2)/m.Width
	if bell < 0 {
		bell = 0
	}
	ff := maForceVelocity(-ceRate, m.VMax, m.K)
	if ff < 0 {
		ff = 0
	}
	fCE := m.Activation * m.FMax * bell * ff
	fSE = springForce(m.Strap.Length-lCE, m.SlackLength, m.SEStiffness, m.SEDamping, seRate)
	fPE := springForce(lCE, m.LOpt, m.PEStiffness, m.PEDamping, ceRate)
	return fCE - (fSE - fPE), fSE
}

// MAComplete with the strap held: the Brent solve must balance the CE
// force (at its lCE-derived velocity) against SE-PE within solver
// tolerance, the strap tension equals the tendon (SE) force, and the
// fibre settles to a quasi-steady length
func TestMACompleteForceBalance(tst *testing.T) {
	chk.PrintTitle("MACompleteForceBalance")
	s := fixedStrap(1)
	m := NewMinettiAlexanderComplete("m", s, 100, 2, 0.2, 0.5, 0.4, 1.0)
	m.SEStiffness = 1e4
	m.PEStiffness = 1e3
	h := 0.001
	var lPrev float64
	for step := 0; step < 500; step++ {
		lPrev = m.FibreLength()
		m.Push(1, step)
		m.Update(h, step)
	}
	residual, fSE := maCompleteBalance(m, lPrev, h)
	if math.Abs(residual) > 0.05 {
		tst.Errorf("force balance residual too large: %v (lCE=%v)", residual, m.FibreLength())
	}
	chk.Float64(tst, "tension is tendon force", 1e-8, m.Tension, fSE)
	// after 500 steps the fibre has crept to its isometric equilibrium
	if rate := math.Abs(m.FibreLength()-lPrev) / h; rate > 1e-3*m.VMax {
		tst.Errorf("fibre should be quasi-steady, lengthening rate %v", rate)
	}
	if m.SEEnergy() <= 0 {
		tst.Errorf("stretched tendon must store elastic energy")
	}
}

// non-isometric: the strap lengthens at a constant rate, the elements have
// damping, and the solved tension must satisfy the SE/PE+damping balance
// at the lCE-derived element velocities — and exceed the undamped tension,
// since viscous terms resist lengthening
func TestMACompleteDampedLengthening(tst *testing.T) {
	chk.PrintTitle("MACompleteDampedLengthening")
	h := 0.001
	rate := 0.5 // strap lengthening rate, m/s

	build := func(dse, dpe float64) (*strap.Strap, *Muscle) {
		o := marker.New("o", nil, spatial.Vec3{0, 0, 0}, spatial.IdentityQuat())
		i := marker.New("i", nil, spatial.Vec3{1, 0, 0}, spatial.IdentityQuat())
		s := strap.NewTwoPoint("s", o, i)
		s.Update(h)
		m := NewMinettiAlexanderComplete("m", s, 100, 2, 0.2, 0.5, 0.4, 1.0)
		m.SEStiffness = 1e4
		m.PEStiffness = 1e3
		m.SEDamping = dse
		m.PEDamping = dpe
		return s, m
	}

	run := func(s *strap.Strap, m *Muscle) (lPrev float64) {
		insertion := s.Markers[1]
		for step := 0; step < 200; step++ {
			lPrev = m.FibreLength()
			p := insertion.LocalPos
			insertion.LocalPos = spatial.Vec3{p.X() + rate*h, 0, 0}
			s.Update(h)
			m.Push(1, step)
			m.Update(h, step)
		}
		return lPrev
	}

	sd, md := build(50, 10)
	lPrev := run(sd, md)
	chk.Float64(tst, "strap lengthening", 1e-9, sd.Velocity, -rate)
	residual, fSE := maCompleteBalance(md, lPrev, h)
	if math.Abs(residual) > 0.05 {
		tst.Errorf("damped force balance residual too large: %v", residual)
	}
	chk.Float64(tst, "tension is damped tendon force", 1e-8, md.Tension, fSE)

	su, mu := build(0, 0)
	run(su, mu)
	if md.Tension <= mu.Tension {
		tst.Errorf("element damping must add tension while lengthening: damped %v <= undamped %v", md.Tension, mu.Tension)
	}
}

// first-order activation kinetics: alpha rises towards the stimulus and
// decays when it is removed
func TestActivationKinetics(tst *testing.T) {
	chk.PrintTitle("ActivationKinetics")
	m := NewMinettiAlexanderComplete("m", fixedStrap(1), 100, 1, 0.2, 0.5, 0.4, 1.0)
	m.SEStiffness = 1000
	m.UseKinetics = true
	m.TauAct, m.TauDeact = 0.01, 0.04
	h := 0.001
	for step := 0; step < 100; step++ {
		m.Push(1, step)
		m.Update(h, step)
	}
	if m.Activation < 0.9 {
		tst.Errorf("activation should have risen close to 1, got %v", m.Activation)
	}
	for step := 100; step < 200; step++ {
		m.Push(0, step)
		m.Update(h, step)
	}
	if m.Activation > 0.5 {
		tst.Errorf("activation should have decayed, got %v", m.Activation)
	}
}

func TestDampedSpringTensionAndBreak(tst *testing.T) {
	chk.PrintTitle("DampedSpringTensionAndBreak")
	s := fixedStrap(1.2) // strain 0.2 over slack length 1
	m := NewDampedSpring("m", s, 1.0, 1e3, 0.01, 0, 0.5)
	m.Push(1, 0)
	m.Update(0.001, 0)
	// T = alpha*A*E*strain = 1 * 0.01 * 1e3 * 0.2
	chk.Float64(tst, "T", 1e-9, m.Tension, 2.0)

	// slack: no compressive tension
	s2 := fixedStrap(0.8)
	m2 := NewDampedSpring("m2", s2, 1.0, 1e3, 0.01, 0, 0.5)
	m2.Push(1, 0)
	m2.Update(0.001, 0)
	if m2.Tension != 0 {
		tst.Errorf("slack spring must carry no tension, got %v", m2.Tension)
	}

	// past breaking strain the muscle leaves the active set for good
	s3 := fixedStrap(1.8)
	m3 := NewDampedSpring("m3", s3, 1.0, 1e3, 0.01, 0, 0.5)
	m3.Push(1, 0)
	m3.Update(0.001, 0)
	if m3.Active || m3.Tension != 0 {
		tst.Errorf("spring past breaking strain must be removed: active=%v T=%v", m3.Active, m3.Tension)
	}
	m3.Push(1, 1)
	m3.Update(0.001, 1)
	if m3.Tension != 0 {
		tst.Errorf("broken spring must stay broken")
	}
}
