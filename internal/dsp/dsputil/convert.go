package dsputil

import "math"

// MinFreqHz and MaxFreqHz bound the waveform processor's dominant-frequency
// detection window (spec §4.10).
const (
	MinFreqHz = 20.0
	MaxFreqHz = 5000.0
)

// PowerToDB converts a mean-square power value to dB, flooring at floorDB to
// avoid -Inf for silence.
func PowerToDB(ms, floorDB float64) float64 {
	const epsilon = 1e-12
	db := 10 * math.Log10(math.Max(ms, epsilon))
	if db < floorDB {
		return floorDB
	}
	return db
}

// AmplitudeToDB converts a linear amplitude (e.g. a peak sample value) to
// dBFS, flooring at floorDB.
func AmplitudeToDB(amp float64, floorDB float64) float64 {
	const epsilon = 1e-6
	db := 20 * math.Log10(math.Max(amp, epsilon))
	if db < floorDB {
		return floorDB
	}
	return db
}

// HzToNormalizedLog maps a frequency in [MinFreqHz, MaxFreqHz] onto [0,1]
// logarithmically: (ln(hz) - ln(min)) / (ln(max) - ln(min)). Used by the
// waveform processor to turn a dominant frequency into a color position.
// Out-of-range input is clamped.
func HzToNormalizedLog(hz float64) float64 {
	if hz < MinFreqHz {
		hz = MinFreqHz
	}
	if hz > MaxFreqHz {
		hz = MaxFreqHz
	}
	return (math.Log(hz) - math.Log(MinFreqHz)) / (math.Log(MaxFreqHz) - math.Log(MinFreqHz))
}

// HzToMel converts a frequency in Hz to the mel scale (O'Shaughnessy form).
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// AWeight returns the A-weighting gain (linear, not dB) at the given
// frequency in Hz, per IEC 61672-1.
func AWeight(hz float64) float64 {
	if hz <= 0 {
		return 0
	}
	f2 := hz * hz
	const (
		c1 = 12194.217 * 12194.217
		c2 = 20.598997 * 20.598997
		c3 = 107.65265 * 107.65265
		c4 = 737.86223 * 737.86223
	)
	num := c1 * f2 * f2
	den := (f2 + c2) * math.Sqrt((f2+c3)*(f2+c4)) * (f2 + c1)
	if den == 0 {
		return 0
	}
	// Normalize so that 0 dB gain occurs at 1 kHz (the standard reference).
	const aWeight1k = 0.7943471162236648 // A-weighting linear gain at 1000 Hz
	return (num / den) / aWeight1k
}

// ParabolicInterpolate refines a discrete spectral peak at index `peak`
// (with amplitude values at peak-1, peak, peak+1) to a sub-bin offset in
// [-0.5, 0.5], using the standard three-point parabolic estimator.
func ParabolicInterpolate(yMinus1, y0, yPlus1 float64) float64 {
	denom := yMinus1 - 2*y0 + yPlus1
	if denom == 0 {
		return 0
	}
	return 0.5 * (yMinus1 - yPlus1) / denom
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Lerp linearly interpolates between a and b at t in [0,1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
