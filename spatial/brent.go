// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spatial

import "math"

// BrentSolve finds a root of f by Brent's method, expanding a bracket
// outward from seed until a sign change is found (or maxExpand is
// exhausted). This is the "implicit root-finder" contract of spec.md §9:
// given a residual function, a previous-solution seed and a tolerance, it
// returns a root or a definite failure — it never silently accepts a
// non-root.
//
// step0 is the initial half-width used to expand the bracket about seed;
// each failed expansion doubles the width, for up to maxExpand tries.
func BrentSolve(f func(x float64) float64, seed, step0, tol float64, maxExpand int) (root float64, ok bool) {
	if step0 <= 0 {
		step0 = 1e-3
	}
	lo, hi := seed-step0, seed+step0
	flo, fhi := f(lo), f(hi)
	width := step0
	for i := 0; i < maxExpand && sameSign(flo, fhi); i++ {
		width *= 2
		lo, hi = seed-width, seed+width
		flo, fhi = f(lo), f(hi)
	}
	if sameSign(flo, fhi) {
		return 0, false
	}
	return brent(f, lo, hi, flo, fhi, tol, 100)
}

// brent is the classic bisection/secant/inverse-quadratic hybrid. a,b
// bracket the root with f(a)=fa, f(b)=fb of opposite sign.
func brent(f func(float64) float64, a, b, fa, fb, tol float64, maxIter int) (float64, bool) {
	if math.Abs(fa) < math.Abs(fb) {
		a, b = b, a
		fa, fb = fb, fa
	}
	c, fc := a, fa
	mflag := true
	var d float64
	for i := 0; i < maxIter; i++ {
		if fb == 0 || math.Abs(b-a) < tol {
			return b, true
		}
		var s float64
		if fa != fc && fb != fc {
			// inverse quadratic interpolation
			s = a*fb*fc/((fa-fb)*(fa-fc)) +
				b*fa*fc/((fb-fa)*(fb-fc)) +
				c*fa*fb/((fc-fa)*(fc-fb))
		} else {
			// secant
			s = b - fb*(b-a)/(fb-fa)
		}
		cond1 := (s < (3*a+b)/4 || s > b) && (s < b || s > (3*a+b)/4)
		outsideBounds := (a < b && (s < (3*a+b)/4 || s > b)) || (a >= b && (s > (3*a+b)/4 || s < b))
		_ = cond1
		tooSlow := mflag && math.Abs(s-b) >= math.Abs(b-c)/2
		tooSlow2 := !mflag && d != 0 && math.Abs(s-b) >= math.Abs(c-d)/2
		stepTooSmall := mflag && math.Abs(b-c) < tol
		stepTooSmall2 := !mflag && d != 0 && math.Abs(c-d) < tol
		if outsideBounds || tooSlow || tooSlow2 || stepTooSmall || stepTooSmall2 {
			s = (a + b) / 2
			mflag = true
		} else {
			mflag = false
		}
		fs := f(s)
		d = c
		c, fc = b, fb
		if sameSign(fa, fs) {
			a, fa = s, fs
		} else {
			b, fb = s, fs
		}
		if math.Abs(fa) < math.Abs(fb) {
			a, b = b, a
			fa, fb = fb, fa
		}
	}
	if math.Abs(fb) < 1e3*tol {
		return b, true
	}
	return b, false
}

func sameSign(a, b float64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return math.Signbit(a) == math.Signbit(b)
}
