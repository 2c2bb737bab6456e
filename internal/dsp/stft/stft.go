// Package stft implements the shared short-time-Fourier-transform front end
// used by both the spectrum and spectrogram processors: a sliding input
// window, configurable hop size and window function, and a real-input FFT
// via gonum.org/v1/gonum/dsp/fourier.
package stft

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
)

// FloorDB is the default magnitude floor applied to every bin, matching the
// loudness processor's default floor.
const FloorDB = -60.0

// Config describes one STFT front end's parameters. Two Configs are equal
// in the "structural" sense Engine cares about when FFTSize, HopSize, and
// Window (plus its Planck-Bessel shape) all match; SampleRate changes are
// structural too, since the frequency axis depends on it.
type Config struct {
	FFTSize      int
	HopSize      int
	Window       dsputil.WindowKind
	PlanckBessel dsputil.PlanckBesselParams
	SampleRate   int
}

// structurallyEqual reports whether reconfiguring from old to new requires
// rebuilding the window/FFT plan, as opposed to merely resetting state.
func (c Config) structurallyEqual(o Config) bool {
	return c.FFTSize == o.FFTSize && c.HopSize == o.HopSize && c.Window == o.Window &&
		c.PlanckBessel == o.PlanckBessel && c.SampleRate == o.SampleRate
}

// Result is one hop's worth of spectral output: magnitude in dB, the Hz
// each bin center corresponds to, and the raw complex coefficients the dB
// magnitudes were derived from (all length FFTSize/2+1). Coeffs is
// unnormalized by windowSum, unlike MagnitudesDB; callers comparing Coeffs
// across two Engines need those Engines' windows to be otherwise
// comparable (same FFTSize, same samples), which is how the spectrogram
// processor's reassignment auxiliary engines are built.
type Result struct {
	MagnitudesDB  []float64
	FrequencyBins []float64
	Coeffs        []complex128
}

// Engine is a sliding-window STFT front end. Feed it mono samples one at a
// time via Push; it emits a Result each time HopSize new samples have
// accumulated over a full FFTSize window. Not safe for concurrent use;
// callers serialize access the same way the visual manager serializes
// ProcessBlock calls.
type Engine struct {
	cfg Config

	ring     []float64
	head     int
	filled   int
	sinceHop int

	window    []float64
	windowSum float64
	fft       *fourier.FFT

	natural []float64 // scratch: ring unwrapped into time order
	windowed []float64 // scratch: natural, windowed
	coeffs   []complex128
	freqs    []float64
}

// NewEngine builds an Engine for cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{}
	e.reconfigure(cfg, nil)
	return e
}

// NewEngineWithWindow builds an Engine that uses window verbatim instead of
// deriving one from cfg.Window. Used by the spectrogram processor's
// time-ramp and derivative auxiliary engines for reassignment, which need
// windows no WindowKind can express.
func NewEngineWithWindow(cfg Config, window []float64) *Engine {
	e := &Engine{}
	e.reconfigure(cfg, window)
	return e
}

// Reconfigure rebuilds the Engine for a new Config, discarding any partial
// window in progress. Called whenever the spectrum/spectrogram processor
// detects a structural settings change.
func (e *Engine) Reconfigure(cfg Config) {
	e.reconfigure(cfg, nil)
}

func (e *Engine) reconfigure(cfg Config, window []float64) {
	e.cfg = cfg
	n := cfg.FFTSize
	if n < 2 {
		n = 2
	}
	e.ring = make([]float64, n)
	e.natural = make([]float64, n)
	e.windowed = make([]float64, n)
	if window != nil {
		e.window = append([]float64(nil), window...)
	} else {
		e.window = dsputil.Window(cfg.Window, n, cfg.PlanckBessel, nil)
	}
	e.windowSum = dsputil.Sum(e.window)
	e.fft = fourier.NewFFT(n)
	e.freqs = make([]float64, n/2+1)
	for i := range e.freqs {
		e.freqs[i] = float64(i) * float64(cfg.SampleRate) / float64(n)
	}
	e.Reset()
}

// Reset clears the sliding window and hop counter without discarding the
// built window/FFT plan.
func (e *Engine) Reset() {
	for i := range e.ring {
		e.ring[i] = 0
	}
	e.head = 0
	e.filled = 0
	e.sinceHop = 0
}

// Push appends mono samples into the sliding window, appending a Result to
// out for every hop boundary crossed, and returns the extended slice.
func (e *Engine) Push(mono []float64, out []Result) []Result {
	n := len(e.ring)
	for _, s := range mono {
		e.ring[e.head] = s
		e.head++
		if e.head == n {
			e.head = 0
		}
		if e.filled < n {
			e.filled++
		}
		e.sinceHop++
		if e.sinceHop >= e.cfg.HopSize && e.filled >= n {
			out = append(out, e.computeHop())
			e.sinceHop = 0
		}
	}
	return out
}

// computeHop unwraps the ring into time order, windows it, runs the FFT,
// and converts to a normalized dB magnitude spectrum.
func (e *Engine) computeHop() Result {
	n := len(e.ring)
	copy(e.natural, e.ring[e.head:])
	copy(e.natural[n-e.head:], e.ring[:e.head])

	for i, v := range e.natural {
		e.windowed[i] = v * e.window[i]
	}

	e.coeffs = e.fft.Coefficients(e.coeffs, e.windowed)

	mags := make([]float64, len(e.coeffs))
	coeffs := make([]complex128, len(e.coeffs))
	gain := 2.0
	if e.windowSum == 0 {
		e.windowSum = 1
	}
	for i, c := range e.coeffs {
		amp := math.Hypot(real(c), imag(c)) / e.windowSum
		if i != 0 && i != len(e.coeffs)-1 {
			amp *= gain
		}
		mags[i] = dsputil.AmplitudeToDB(amp, FloorDB)
		coeffs[i] = c
	}

	freqs := make([]float64, len(e.freqs))
	copy(freqs, e.freqs)

	return Result{MagnitudesDB: mags, FrequencyBins: freqs, Coeffs: coeffs}
}

// PeakFrequency finds the strongest bin in mags restricted to
// [dsputil.MinFreqHz, dsputil.MaxFreqHz], refines it via parabolic
// interpolation, and returns the corresponding frequency in Hz. Returns
// ok=false if no bin falls in range.
func PeakFrequency(mags, freqs []float64) (hz float64, ok bool) {
	best := -1
	bestVal := math.Inf(-1)
	for i, f := range freqs {
		if f < dsputil.MinFreqHz || f > dsputil.MaxFreqHz {
			continue
		}
		if mags[i] > bestVal {
			bestVal = mags[i]
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	if best == 0 || best == len(mags)-1 {
		return freqs[best], true
	}
	delta := dsputil.ParabolicInterpolate(mags[best-1], mags[best], mags[best+1])
	binHz := freqs[1] - freqs[0]
	return freqs[best] + delta*binHz, true
}
