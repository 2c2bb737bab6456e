// Package dsputil collects small numerical helpers shared across the DSP
// processors: window functions, dB/mel conversions, log-frequency
// normalization, and A-weighting. Kept dependency-free (stdlib math only) so
// every processor package can import it without pulling in FFT machinery.
package dsputil

import "math"

// WindowKind selects a window function for STFT-based processors.
type WindowKind int

const (
	Rectangular WindowKind = iota
	Hann
	Hamming
	Blackman
	BlackmanHarris
	PlanckBessel
)

// PlanckBesselParams holds the two shape parameters for the
// Planck-taper/Bessel-Kaiser composite window. Ignored for every other kind.
type PlanckBesselParams struct {
	Epsilon float64 // taper fraction, (0, 0.5)
	Beta    float64 // Kaiser-Bessel shape parameter
}

// Window fills dst (length n) with the named window function's coefficients.
// dst is returned for chaining; it is allocated fresh if nil or too short.
func Window(kind WindowKind, n int, pb PlanckBesselParams, dst []float64) []float64 {
	if cap(dst) < n {
		dst = make([]float64, n)
	} else {
		dst = dst[:n]
	}
	if n == 0 {
		return dst
	}
	if n == 1 {
		dst[0] = 1
		return dst
	}
	switch kind {
	case Rectangular:
		for i := range dst {
			dst[i] = 1
		}
	case Hann:
		for i := range dst {
			dst[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case Hamming:
		for i := range dst {
			dst[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case Blackman:
		for i := range dst {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			dst[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		}
	case BlackmanHarris:
		const a0, a1, a2, a3 = 0.35875, 0.48829, 0.14128, 0.01168
		for i := range dst {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			dst[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
		}
	case PlanckBessel:
		planckBesselWindow(n, pb, dst)
	default:
		for i := range dst {
			dst[i] = 1
		}
	}
	return dst
}

// planckBesselWindow fills dst with a Planck-taper envelope modulated by a
// Kaiser-Bessel term, giving steep roll-off (Planck) with low sidelobes
// (Bessel). epsilon is clamped to (0, 0.5); beta to >= 0.
func planckBesselWindow(n int, p PlanckBesselParams, dst []float64) {
	eps := p.Epsilon
	if eps <= 0 {
		eps = 0.1
	}
	if eps >= 0.5 {
		eps = 0.499
	}
	beta := p.Beta
	if beta < 0 {
		beta = 0
	}
	i0Beta := besselI0(beta)
	N := float64(n - 1)
	for i := range dst {
		x := float64(i) / N // in [0,1]
		planck := planckTaper(x, eps)
		k := 2*x - 1 // in [-1,1]
		arg := beta * math.Sqrt(math.Max(0, 1-k*k))
		bessel := besselI0(arg) / i0Beta
		dst[i] = planck * bessel
	}
}

// planckTaper evaluates the canonical Planck-taper window at normalized
// position u in [0,1] with taper fraction eps, per the standard
// piecewise definition (flat top, exponential roll-off at both edges).
func planckTaper(u, eps float64) float64 {
	switch {
	case u <= 0 || u >= 1:
		return 0
	case u < eps:
		zPlus := eps * (1/u + 1/(u-eps))
		return 1 / (math.Exp(zPlus) + 1)
	case u > 1-eps:
		zMinus := eps * (1/(1-u) + 1/((1-eps)-u))
		return 1 / (math.Exp(zMinus) + 1)
	default:
		return 1
	}
}

// besselI0 computes the zeroth-order modified Bessel function of the first
// kind via its power series; sufficient accuracy for window generation
// (|x| typically < 20).
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 40; k++ {
		term *= (halfX * halfX) / (float64(k) * float64(k))
		sum += term
		if term < 1e-15*sum {
			break
		}
	}
	return sum
}

// TimeRampWindow fills dst with kind's coefficients multiplied by each
// sample's offset (in samples) from the window's center. Used to build the
// "time-weighted" STFT front end for time-frequency reassignment: the
// group-delay estimate divides this window's complex spectrum by the plain
// window's.
func TimeRampWindow(kind WindowKind, n int, pb PlanckBesselParams, dst []float64) []float64 {
	dst = Window(kind, n, pb, dst)
	center := float64(n-1) / 2
	for i := range dst {
		dst[i] *= float64(i) - center
	}
	return dst
}

// DerivativeWindow fills dst with the discrete derivative (central
// difference, one-sided at the edges) of kind's coefficients with respect
// to sample index. Used to build the "frequency-weighted" STFT front end
// for time-frequency reassignment: the instantaneous-frequency estimate
// divides this window's complex spectrum by the plain window's.
func DerivativeWindow(kind WindowKind, n int, pb PlanckBesselParams, dst []float64) []float64 {
	w := Window(kind, n, pb, nil)
	if cap(dst) < n {
		dst = make([]float64, n)
	} else {
		dst = dst[:n]
	}
	for i := range dst {
		switch {
		case n < 2:
			dst[i] = 0
		case i == 0:
			dst[i] = w[1] - w[0]
		case i == n-1:
			dst[i] = w[n-1] - w[n-2]
		default:
			dst[i] = (w[i+1] - w[i-1]) / 2
		}
	}
	return dst
}

// Sum returns the sum of a window's coefficients, used to normalize FFT
// magnitude by the window's energy (coherent gain).
func Sum(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}
