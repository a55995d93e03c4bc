// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spatial

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MovingAverage is a fixed-window running mean, used to smooth hinge stop
// torque and fixed-joint stress samples before comparing them against an
// abort limit (spec.md §4.1).
type MovingAverage struct {
	window []float64
	pos    int
	filled bool
}

// NewMovingAverage allocates a moving average over n samples.
func NewMovingAverage(n int) *MovingAverage {
	if n < 1 {
		n = 1
	}
	return &MovingAverage{window: make([]float64, n)}
}

// Push adds a sample and returns the current mean.
func (o *MovingAverage) Push(x float64) float64 {
	o.window[o.pos] = x
	o.pos = (o.pos + 1) % len(o.window)
	if o.pos == 0 {
		o.filled = true
	}
	n := len(o.window)
	if !o.filled {
		n = o.pos
		if n == 0 {
			n = 1
		}
	}
	return floats.Sum(o.window[:n]) / float64(n)
}

// Butterworth2 is a 2nd-order low-pass IIR filter (bilinear-transform
// design), used where a sharper roll-off than a moving average is wanted
// for stress/torque smoothing windows.
type Butterworth2 struct {
	a1, a2, b0, b1, b2 float64
	x1, x2, y1, y2     float64
	init               bool
}

// NewButterworth2 designs a 2nd-order Butterworth low-pass filter with
// cutoff frequency fc (Hz) at sample step h (s).
func NewButterworth2(fc, h float64) *Butterworth2 {
	if fc <= 0 {
		fc = 1
	}
	if h <= 0 {
		h = 1e-3
	}
	wc := math.Tan(math.Pi * fc * h)
	k1 := math.Sqrt2 * wc
	k2 := wc * wc
	a0 := k2 + k1 + 1
	return &Butterworth2{
		b0: k2 / a0,
		b1: 2 * k2 / a0,
		b2: k2 / a0,
		a1: 2 * (k2 - 1) / a0,
		a2: (k2 - k1 + 1) / a0,
	}
}

// Push filters one sample and returns the filtered output.
func (o *Butterworth2) Push(x float64) float64 {
	if !o.init {
		o.x1, o.x2 = x, x
		o.y1, o.y2 = x, x
		o.init = true
	}
	y := o.b0*x + o.b1*o.x1 + o.b2*o.x2 - o.a1*o.y1 - o.a2*o.y2
	o.x2, o.x1 = o.x1, x
	o.y2, o.y1 = o.y1, y
	return y
}
