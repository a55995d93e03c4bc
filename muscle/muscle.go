// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package muscle implements the tension-generator models of spec.md §2/§4.5
// (component C6): Minetti-Alexander (instantaneous), Minetti-Alexander-
// Complete (Hill with SE/PE and activation kinetics), and damped-spring.
package muscle

import (
	"math"

	"github.com/cpmech/gaitsym/driver"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gaitsym/strap"
)

// Kind is the sum-type tag for the muscle family of spec.md §6.
type Kind int

const (
	MinettiAlexander Kind = iota
	MinettiAlexanderComplete
	DampedSpring
)

// Muscle owns (by reference) a strap and produces a scalar tension each
// step from its activation state, per spec.md §3.
type Muscle struct {
	Name  string
	Kind  Kind
	Strap *strap.Strap

	// common
	FMax, VMax float64
	K          float64 // MA curvature

	// MAComplete (Hill) parameters
	SlackLength  float64 // L_SE at zero force
	LOpt, Width  float64 // CE length-tension bell: L_opt, w
	SEStiffness, PEStiffness float64
	SELaw, PELaw string // "linear" | "square"
	SEDamping, PEDamping float64
	TauAct, TauDeact float64
	FastTwitchFrac   float64
	AlphaMin         float64
	UseKinetics      bool

	// DampedSpring parameters
	YoungsModulus, Area, SpringDamping, BreakStrain float64

	Activation float64
	Tension    float64
	Active     bool // DampedSpring: false once it breaks (spec.md §4.5.3)

	// acc is the Drivable accumulator a Driver/Controller targets to
	// deliver this muscle's stimulus each step (spec.md §4.1 phase 5:
	// "compute activation from its accumulated drive").
	acc driver.Accumulator

	lCEPrev   float64
	haveLCE   bool
	metPower  float64
}

// ID implements registry.Named.
func (m *Muscle) ID() string { return m.Name }

// Push implements driver.Drivable, letting a Driver or Controller target
// this muscle's activation input directly.
func (m *Muscle) Push(value float64, step int) { m.acc.Push(value, step) }

// NewMinettiAlexander constructs an instantaneous MA muscle (spec.md §4.5.1).
func NewMinettiAlexander(name string, s *strap.Strap, fMax, vMax, k float64) *Muscle {
	return &Muscle{Name: name, Kind: MinettiAlexander, Strap: s, FMax: fMax, VMax: vMax, K: k, Active: true}
}

// NewMinettiAlexanderComplete constructs a Hill-type muscle with SE/PE
// elements and activation kinetics (spec.md §4.5.2).
func NewMinettiAlexanderComplete(name string, s *strap.Strap, fMax, vMax, k, slackLength, lOpt, width float64) *Muscle {
	return &Muscle{
		Name: name, Kind: MinettiAlexanderComplete, Strap: s,
		FMax: fMax, VMax: vMax, K: k,
		SlackLength: slackLength, LOpt: lOpt, Width: width,
		SELaw: "linear", PELaw: "linear",
		AlphaMin: 0, Active: true,
	}
}

// NewDampedSpring constructs a damped-spring element (spec.md §4.5.3).
func NewDampedSpring(name string, s *strap.Strap, slack, E, area, damping, breakStrain float64) *Muscle {
	return &Muscle{Name: name, Kind: DampedSpring, Strap: s, SlackLength: slack, YoungsModulus: E, Area: area, SpringDamping: damping, BreakStrain: breakStrain, Active: true}
}

// Update advances the muscle's internal state by one step of size h using
// the drive (stimulus) accumulated for this step, and sets Tension
// (spec.md §4.1 phase 5, "compute activation from its accumulated drive").
func (m *Muscle) Update(h float64, step int) {
	if !m.Active {
		m.Tension = 0
		return
	}
	drive := m.acc.Value(step)
	switch m.Kind {
	case MinettiAlexander:
		m.updateMA(drive)
	case MinettiAlexanderComplete:
		m.updateMAComplete(drive, h)
	case DampedSpring:
		m.updateDampedSpring(drive, h)
	}
}

// maForceVelocity evaluates the Minetti-Alexander force-velocity law of
// spec.md §4.5.1 at contraction velocity v (positive shortening), returning
// the force fraction of alpha*FMax.
func maForceVelocity(v, vMax, k float64) float64 {
	vHat := spatial.Clamp(v/vMax, -1, 1)
	v = vHat * vMax
	if v > 0 {
		return (vMax - v) / (vMax + v/k)
	}
	return 1.8 - 0.8*(vMax+v)/(vMax-7.56*v/k)
}

// maMetabolicPower evaluates the Umberger-style cubic-ratio metabolic power
// of spec.md §4.5.1.
func maMetabolicPower(alpha, fMax, vMax, v float64) float64 {
	vHat := spatial.Clamp(v/vMax, -1, 1)
	num := 0.054 + 0.506*vHat + 2.46*vHat*vHat
	den := 1 - 1.13*vHat + 12.8*vHat*vHat - 1.64*vHat*vHat*vHat
	if den == 0 {
		den = 1e-12
	}
	return alpha * fMax * vMax * num / den
}

func (m *Muscle) updateMA(drive float64) {
	m.Activation = spatial.Clamp(drive, 0, 1)
	if m.Activation == 0 {
		m.Tension = 0
		m.metPower = 0
		return
	}
	v := m.Strap.Velocity // positive when shortening, per spec.md §4.4
	ff := maForceVelocity(v, m.VMax, m.K)
	if ff < 0 {
		ff = 0
	}
	m.Tension = m.Activation * m.FMax * ff
	m.metPower = maMetabolicPower(m.Activation, m.FMax, m.VMax, v)
}

// MetabolicPower returns the most recently computed metabolic power, used
// by the orchestrator's energy bookkeeping (spec.md §4.1 phase 9).
func (m *Muscle) MetabolicPower() float64 { return m.metPower }

// FibreLength returns the most recently solved contractile-element length
// (MAComplete only; zero before the first Update).
func (m *Muscle) FibreLength() float64 { return m.lCEPrev }

func (m *Muscle) updateDampedSpring(drive, h float64) {
	m.Activation = spatial.Clamp(drive, 0, 1)
	L := m.Strap.Length
	strain := (L - m.SlackLength) / m.SlackLength
	if strain <= 0 {
		m.Tension = 0
		return
	}
	if strain > m.BreakStrain {
		m.Active = false
		m.Tension = 0
		return
	}
	strainRate := -m.Strap.Velocity / m.SlackLength // dStrain/dt
	stress := m.YoungsModulus*strain + m.SpringDamping*strainRate
	if stress < 0 {
		stress = 0
	}
	m.Tension = m.Activation * m.Area * stress
}

// updateMAComplete implements spec.md §4.5.2: activation kinetics, then an
// implicit solve for contractile-element length against the SE/PE spring
// model, by Brent's method on the force-balance residual.
func (m *Muscle) updateMAComplete(stimulus, h float64) {
	m.updateActivationKinetics(stimulus, h)

	L := m.Strap.Length
	V := m.Strap.Velocity

	if !m.haveLCE {
		m.lCEPrev = L - m.SlackLength
		if m.lCEPrev < 0 {
			m.lCEPrev = m.LOpt
		}
		m.haveLCE = true
	}

	// each element's velocity is a function of the trial lCE, recomputed at
	// every Brent iteration: the CE lengthens at (lCE - lCEPrev)/h and the
	// SE takes up the rest of the total rate dL/dt = -V, so the damping
	// terms are solved simultaneously with the length split (spec.md §4.5.2
	// step 2: "damping is linear in element velocity")
	lCEOld := m.lCEPrev
	residual := func(lCE float64) float64 {
		lSE := L - lCE
		var ceRate, seRate float64
		if h > 0 {
			ceRate = (lCE - lCEOld) / h // d(lCE)/dt, positive lengthening
			seRate = -V - ceRate        // d(lSE)/dt
		}
		fCE := m.ceForce(lCE, -ceRate) // CE law wants positive-shortening
		fSE := m.elementForce(lSE, m.SlackLength, m.SEStiffness, m.SELaw, m.SEDamping, seRate)
		fPE := m.elementForce(lCE, m.LOpt, m.PEStiffness, m.PELaw, m.PEDamping, ceRate)
		return fCE - (fSE - fPE)
	}

	root, ok := spatial.BrentSolve(residual, m.lCEPrev, 0.01*math.Max(m.LOpt, 1e-6), 1e-8, 40)
	if !ok {
		root = m.lCEPrev // spec.md §4.5.2 step 3: "on failure, use last successful L_CE and log"
	}
	m.lCEPrev = root

	var seRate float64
	if h > 0 {
		seRate = -V - (root-lCEOld)/h
	}
	m.Tension = m.elementForce(L-root, m.SlackLength, m.SEStiffness, m.SELaw, m.SEDamping, seRate)
}

// ceForce evaluates the contractile-element force: the MA force-velocity
// law scaled by a length-tension bell, per spec.md §4.5.2 step 2.
func (m *Muscle) ceForce(lCE, vCE float64) float64 {
	bell := 1 - 4*math.Pow(lCE/m.LOpt-1, 2)/m.Width
	if bell < 0 {
		bell = 0
	}
	fMaxAtL := m.FMax * bell
	ff := maForceVelocity(vCE, m.VMax, m.K)
	if ff < 0 {
		ff = 0
	}
	return m.Activation * fMaxAtL * ff
}

// elementForce evaluates a spring/damper element's force: a linear or
// square strain-stress law plus damping linear in the element's own
// lengthening rate (spec.md §4.5.2). A slack element carries nothing, and
// damping never turns the element compressive.
func (m *Muscle) elementForce(length, slack, k float64, law string, d, rate float64) float64 {
	delta := length - slack
	if delta <= 0 {
		return 0
	}
	var f float64
	if law == "square" {
		f = k * delta * delta
	} else {
		f = k * delta
	}
	f += d * rate
	if f < 0 {
		f = 0
	}
	return f
}

// updateActivationKinetics integrates the first-order activation ODE of
// spec.md §4.5.2 step 1 by forward Euler; with kinetics disabled the
// activation is set directly to the stimulus, clamped to [AlphaMin, 1].
func (m *Muscle) updateActivationKinetics(stimulus, h float64) {
	s := spatial.Clamp(stimulus, 0, 1)
	if !m.UseKinetics {
		m.Activation = spatial.Clamp(s, m.AlphaMin, 1)
		return
	}
	tauAct := m.TauAct * (1 + m.FastTwitchFrac)
	tauDeact := m.TauDeact * (1 + m.FastTwitchFrac)
	if tauAct <= 0 {
		tauAct = 1e-3
	}
	if tauDeact <= 0 {
		tauDeact = 1e-3
	}
	t1 := 1/tauAct - 1/tauDeact
	t2 := 1 / tauDeact
	dAlpha := (s - m.Activation) * (t1*s + t2)
	m.Activation += dAlpha * h
	m.Activation = spatial.Clamp(m.Activation, m.AlphaMin, 1)
}

// elasticEnergy returns the stored elastic energy of a spring element under
// the configured law, per spec.md §4.5.2 ("½·k·Δ² linear, ⅓·k·Δ³ square").
func elasticEnergy(delta, k float64, law string) float64 {
	if delta <= 0 {
		return 0
	}
	if law == "square" {
		return k * delta * delta * delta / 3
	}
	return 0.5 * k * delta * delta
}

// SEEnergy returns the series-elastic element's stored elastic energy at
// the current solved state.
func (m *Muscle) SEEnergy() float64 {
	lSE := m.Strap.Length - m.lCEPrev
	return elasticEnergy(lSE-m.SlackLength, m.SEStiffness, m.SELaw)
}

// PEEnergy returns the parallel-elastic element's stored elastic energy.
func (m *Muscle) PEEnergy() float64 {
	return elasticEnergy(m.lCEPrev-m.LOpt, m.PEStiffness, m.PELaw)
}
