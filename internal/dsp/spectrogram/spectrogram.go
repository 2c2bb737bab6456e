// Package spectrogram implements the scrolling time-frequency display: the
// shared STFT front end (internal/dsp/stft), optional time-frequency
// reassignment, and display-bin resampling.
package spectrogram

import (
	"math"

	"github.com/httpsworldview/openmeters/internal/audioblock"
	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
	"github.com/httpsworldview/openmeters/internal/dsp/stft"
)

// FrequencyScale mirrors spectrum.FrequencyScale; duplicated here rather
// than imported so the two processor packages stay independently usable.
type FrequencyScale int

const (
	ScaleLinear FrequencyScale = iota
	ScaleLogarithmic
	ScaleMel
)

const (
	DefaultFFTSize      = 2048
	DefaultHopSize      = 512
	DefaultHistoryLen   = 256
	DefaultReassignFloorDB   = -60.0
	DefaultReassignMaxHz     = 200.0
)

// Config holds the spectrogram processor's tunables.
type Config struct {
	FFTSize        int
	HopSize        int
	Window         dsputil.WindowKind
	PlanckBessel   dsputil.PlanckBesselParams
	FrequencyScale FrequencyScale
	HistoryLength  int

	UseReassignment           bool
	ReassignmentPowerFloorDB  float64
	ReassignmentMaxCorrectionHz float64

	// DisplayBinCount, when non-zero and different from the natural bin
	// count (FFTSize/2+1), causes bin magnitudes to be linearly resampled
	// onto a display axis of this many bins. Zero means "match the natural
	// bin count" (passthrough).
	DisplayBinCount int
}

func (c Config) normalized() Config {
	if c.FFTSize <= 0 {
		c.FFTSize = DefaultFFTSize
	}
	if c.HopSize <= 0 {
		c.HopSize = DefaultHopSize
	}
	if c.HistoryLength <= 0 {
		c.HistoryLength = DefaultHistoryLen
	}
	if c.ReassignmentPowerFloorDB == 0 {
		c.ReassignmentPowerFloorDB = DefaultReassignFloorDB
	}
	if c.ReassignmentMaxCorrectionHz <= 0 {
		c.ReassignmentMaxCorrectionHz = DefaultReassignMaxHz
	}
	return c
}

func (c Config) stftConfig(sampleRate int) stft.Config {
	return stft.Config{FFTSize: c.FFTSize, HopSize: c.HopSize, Window: c.Window, PlanckBessel: c.PlanckBessel, SampleRate: sampleRate}
}

// Column is one hop's display-resolution magnitude column.
type Column struct {
	MagnitudesDB []float64
}

// Update is the spectrogram processor's published state: zero or more new
// columns (one per hop since the last ProcessBlock call) plus the shared
// axis metadata. Reset is true the first time a column is published after
// a structural reconfiguration, telling the renderer to discard history.
type Update struct {
	FFTSize        int
	SampleRate     int
	FrequencyScale FrequencyScale
	HistoryLength  int
	Reset          bool
	DisplayBinsHz  []float64
	NewColumns     []Column
}

// Processor implements dsp.Processor for the spectrogram.
type Processor struct {
	cfg        Config
	channels   int
	sampleRate int

	engine  *stft.Engine
	timeWeighted  *stft.Engine
	freqWeighted  *stft.Engine
	mono    []float32
	monoF64 []float64

	pendingReset bool
	results      []stft.Result
	displayBins  []float64
}

// New returns a Processor with the given config (zero-value fields take
// package defaults).
func New(cfg Config) *Processor {
	return &Processor{cfg: cfg.normalized()}
}

// ProcessBlock implements dsp.Processor.
func (p *Processor) ProcessBlock(block *dsp.AudioBlock) (any, bool) {
	frames := block.FrameCount()
	if frames == 0 || block.Channels == 0 {
		return nil, false
	}
	if block.Channels != p.channels || block.SampleRate != p.sampleRate || p.engine == nil {
		p.rebuild(block.Channels, block.SampleRate)
	}

	p.mono = audioblock.Mixdown(block.Samples, block.Channels, p.mono)
	if cap(p.monoF64) < len(p.mono) {
		p.monoF64 = make([]float64, len(p.mono))
	}
	p.monoF64 = p.monoF64[:len(p.mono)]
	for i, v := range p.mono {
		p.monoF64[i] = float64(v)
	}

	p.results = p.results[:0]
	p.results = p.engine.Push(p.monoF64, p.results)

	var timeResults, freqResults []stft.Result
	if p.cfg.UseReassignment && p.timeWeighted != nil && p.freqWeighted != nil {
		timeResults = p.timeWeighted.Push(p.monoF64, nil)
		freqResults = p.freqWeighted.Push(p.monoF64, nil)
	}
	if len(p.results) == 0 {
		return nil, false
	}

	columns := make([]Column, len(p.results))
	for i, r := range p.results {
		mags := r.MagnitudesDB
		if i < len(timeResults) && i < len(freqResults) {
			mags = p.reassign(r, timeResults[i], freqResults[i])
		}
		columns[i] = Column{MagnitudesDB: p.resample(mags)}
	}

	update := Update{
		FFTSize:        p.cfg.FFTSize,
		SampleRate:     p.sampleRate,
		FrequencyScale: p.cfg.FrequencyScale,
		HistoryLength:  p.cfg.HistoryLength,
		Reset:          p.pendingReset,
		DisplayBinsHz:  append([]float64(nil), p.displayBins...),
		NewColumns:     columns,
	}
	p.pendingReset = false
	return update, true
}

// reassign relocates each bin's energy toward its instantaneous-frequency
// estimate (the Auger-Flandrin method): dividing the frequency-weighted
// auxiliary STFT's complex coefficient by the primary STFT's at the same
// bin recovers the instantaneous frequency directly, without ever needing
// timeRes and freqRes to disagree in dB magnitude the way the old
// heuristic did. timeRes (the time-ramped window) recovers the bin's group
// delay; a bin whose group delay falls outside the current hop belongs to
// a neighboring frame this single-column engine doesn't retain, so it is
// left unreassigned rather than guessed at. Corrections are clamped to
// ReassignmentMaxCorrectionHz and gated by ReassignmentPowerFloorDB.
func (p *Processor) reassign(r, timeRes, freqRes stft.Result) []float64 {
	out := append([]float64(nil), r.MagnitudesDB...)
	binHz := float64(p.sampleRate) / float64(p.cfg.FFTSize)
	halfHopSamples := float64(p.cfg.HopSize) / 2
	freqScale := float64(p.sampleRate) / (2 * math.Pi)
	for i, h := range r.Coeffs {
		if r.MagnitudesDB[i] < p.cfg.ReassignmentPowerFloorDB {
			continue
		}
		power := real(h)*real(h) + imag(h)*imag(h)
		if power < 1e-20 {
			continue
		}

		groupDelaySamples := -real(timeRes.Coeffs[i] / h)
		if math.Abs(groupDelaySamples) > halfHopSamples {
			continue
		}

		correction := -freqScale * imag(freqRes.Coeffs[i]/h)
		if correction > p.cfg.ReassignmentMaxCorrectionHz {
			correction = p.cfg.ReassignmentMaxCorrectionHz
		} else if correction < -p.cfg.ReassignmentMaxCorrectionHz {
			correction = -p.cfg.ReassignmentMaxCorrectionHz
		}

		target := int(math.Round(float64(i) + correction/binHz))
		if target < 0 {
			target = 0
		}
		if target >= len(out) {
			target = len(out) - 1
		}
		if target != i {
			out[target] = math.Max(out[target], r.MagnitudesDB[i])
		}
	}
	return out
}

// resample maps natural FFT bins onto the configured display axis via
// linear interpolation. When DisplayBinCount matches the natural bin count
// (or is unset), it passes through unchanged per the open question on
// preserving incoming display bins.
func (p *Processor) resample(mags []float64) []float64 {
	natural := len(mags)
	target := p.cfg.DisplayBinCount
	if target <= 0 || target == natural {
		return append([]float64(nil), mags...)
	}
	out := make([]float64, target)
	for i := range out {
		pos := float64(i) * float64(natural-1) / float64(target-1)
		lo := int(math.Floor(pos))
		hi := lo + 1
		if hi >= natural {
			hi = natural - 1
		}
		out[i] = dsputil.Lerp(mags[lo], mags[hi], pos-float64(lo))
	}
	return out
}

// Reset clears the STFT sliding windows and marks the next emitted update
// as a history-discarding reset.
func (p *Processor) Reset() {
	if p.engine != nil {
		p.engine.Reset()
	}
	if p.timeWeighted != nil {
		p.timeWeighted.Reset()
	}
	if p.freqWeighted != nil {
		p.freqWeighted.Reset()
	}
	p.pendingReset = true
}

// UpdateConfig implements dsp.Configurable. FFT/hop/window changes rebuild
// the STFT engines; display/reassignment-only changes apply in place,
// except that switching reassignment on builds fresh auxiliary engines and
// restarts the primary window alongside them.
func (p *Processor) UpdateConfig(cfg any) {
	next, ok := cfg.(Config)
	if !ok {
		return
	}
	next = next.normalized()
	structural := next.FFTSize != p.cfg.FFTSize || next.HopSize != p.cfg.HopSize ||
		next.Window != p.cfg.Window || next.PlanckBessel != p.cfg.PlanckBessel
	enablingReassignment := next.UseReassignment && !p.cfg.UseReassignment
	p.cfg = next
	if structural && p.engine != nil {
		sc := p.cfg.stftConfig(p.sampleRate)
		p.engine.Reconfigure(sc)
		if p.cfg.UseReassignment {
			p.rebuildAux(sc)
		}
		p.pendingReset = true
	} else if enablingReassignment && p.engine != nil {
		p.rebuildAux(p.cfg.stftConfig(p.sampleRate))
		p.engine.Reset()
		p.pendingReset = true
	}
	p.rebuildDisplayBins()
}

func (p *Processor) rebuild(channels, sampleRate int) {
	p.channels = channels
	p.sampleRate = sampleRate
	sc := p.cfg.stftConfig(sampleRate)
	p.engine = stft.NewEngine(sc)
	if p.cfg.UseReassignment {
		p.rebuildAux(sc)
	}
	p.rebuildDisplayBins()
	p.pendingReset = true
}

// rebuildAux builds the two auxiliary time- and frequency-weighted window
// engines used by reassignment: timeWeighted uses the primary window
// multiplied by a time ramp centered on the frame, freqWeighted uses the
// primary window's sample-index derivative. Both share the primary
// engine's FFT size and hop so their hops line up one-to-one; without
// distinct windows here reassign's complex ratios collapse to 1 and every
// correction would be zero.
func (p *Processor) rebuildAux(sc stft.Config) {
	timeWin := dsputil.TimeRampWindow(p.cfg.Window, sc.FFTSize, p.cfg.PlanckBessel, nil)
	freqWin := dsputil.DerivativeWindow(p.cfg.Window, sc.FFTSize, p.cfg.PlanckBessel, nil)
	p.timeWeighted = stft.NewEngineWithWindow(sc, timeWin)
	p.freqWeighted = stft.NewEngineWithWindow(sc, freqWin)
}

func (p *Processor) rebuildDisplayBins() {
	n := p.cfg.FFTSize/2 + 1
	target := p.cfg.DisplayBinCount
	if target <= 0 {
		target = n
	}
	p.displayBins = make([]float64, target)
	for i := range p.displayBins {
		pos := float64(i) * float64(n-1) / float64(max(target-1, 1))
		p.displayBins[i] = pos * float64(p.sampleRate) / float64(p.cfg.FFTSize)
	}
}

var (
	_ dsp.Processor    = (*Processor)(nil)
	_ dsp.Configurable = (*Processor)(nil)
)
