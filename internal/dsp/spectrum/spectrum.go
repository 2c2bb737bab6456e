// Package spectrum implements the real-time magnitude spectrum analyzer: an
// STFT front end (internal/dsp/stft), configurable averaging, an
// A-weighted overlay, and peak-frequency estimation.
package spectrum

import (
	"math"

	"github.com/httpsworldview/openmeters/internal/audioblock"
	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
	"github.com/httpsworldview/openmeters/internal/dsp/stft"
)

// Averaging selects how successive hops are combined into the published
// magnitude curve.
type Averaging int

const (
	AveragingNone Averaging = iota
	AveragingExponential
	AveragingPeakHold
)

// FrequencyScale selects the display axis; the processor itself always
// emits linear-Hz bins and does not read this setting, so the scale only
// affects downstream rendering.
type FrequencyScale int

const (
	ScaleLinear FrequencyScale = iota
	ScaleLogarithmic
	ScaleMel
)

// Config holds the spectrum processor's tunables.
type Config struct {
	FFTSize           int
	HopSize           int
	Window            dsputil.WindowKind
	PlanckBessel      dsputil.PlanckBesselParams
	Averaging         Averaging
	ExponentialFactor float64 // smoothing factor in (0,1], used when Averaging==AveragingExponential
	PeakHoldDecayDBPerSec float64
	FrequencyScale    FrequencyScale
}

const (
	DefaultFFTSize           = 2048
	DefaultHopSize           = 512
	DefaultExponentialFactor = 0.3
	DefaultPeakHoldDecay     = 12.0
)

func (c Config) normalized() Config {
	if c.FFTSize <= 0 {
		c.FFTSize = DefaultFFTSize
	}
	if c.HopSize <= 0 {
		c.HopSize = DefaultHopSize
	}
	if c.ExponentialFactor <= 0 {
		c.ExponentialFactor = DefaultExponentialFactor
	}
	if c.PeakHoldDecayDBPerSec <= 0 {
		c.PeakHoldDecayDBPerSec = DefaultPeakHoldDecay
	}
	return c
}

func (c Config) stftConfig(sampleRate int) stft.Config {
	return stft.Config{FFTSize: c.FFTSize, HopSize: c.HopSize, Window: c.Window, PlanckBessel: c.PlanckBessel, SampleRate: sampleRate}
}

// Snapshot is the spectrum processor's published state.
type Snapshot struct {
	FrequencyBins           []float64
	MagnitudesDB            []float64 // averaged, A-weighted
	MagnitudesUnweightedDB  []float64 // averaged, raw
	PeakFrequencyHz         float64
	HasPeak                 bool
}

// Processor implements dsp.Processor for the magnitude spectrum.
type Processor struct {
	cfg        Config
	channels   int
	sampleRate int

	engine *stft.Engine
	mono   []float32
	monoF64 []float64

	avgUnweighted []float64
	avgWeighted   []float64
	havePrior     bool

	results []stft.Result
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
	if len(p.results) == 0 {
		return nil, false
	}

	last := p.results[len(p.results)-1]
	p.applyAveraging(last.MagnitudesDB)

	weighted := make([]float64, len(last.FrequencyBins))
	for i, hz := range last.FrequencyBins {
		gainDB := 20 * math.Log10(math.Max(dsputil.AWeight(hz), 1e-9))
		weighted[i] = p.avgUnweighted[i] + gainDB
	}
	p.avgWeighted = weighted

	peakHz, ok := stft.PeakFrequency(p.avgUnweighted, last.FrequencyBins)

	snap := Snapshot{
		FrequencyBins:          append([]float64(nil), last.FrequencyBins...),
		MagnitudesDB:           append([]float64(nil), p.avgWeighted...),
		MagnitudesUnweightedDB: append([]float64(nil), p.avgUnweighted...),
		PeakFrequencyHz:        peakHz,
		HasPeak:                ok,
	}
	return snap, true
}

func (p *Processor) applyAveraging(mags []float64) {
	if !p.havePrior || len(p.avgUnweighted) != len(mags) {
		p.avgUnweighted = append([]float64(nil), mags...)
		p.havePrior = true
		return
	}
	switch p.cfg.Averaging {
	case AveragingExponential:
		a := p.cfg.ExponentialFactor
		for i, v := range mags {
			p.avgUnweighted[i] = a*v + (1-a)*p.avgUnweighted[i]
		}
	case AveragingPeakHold:
		for i, v := range mags {
			if v > p.avgUnweighted[i] {
				p.avgUnweighted[i] = v
			} else {
				p.avgUnweighted[i] -= p.cfg.PeakHoldDecayDBPerSec * float64(p.cfg.HopSize) / float64(p.sampleRate)
			}
		}
	default:
		copy(p.avgUnweighted, mags)
	}
}

// Reset clears averaging state and the STFT sliding window.
func (p *Processor) Reset() {
	p.havePrior = false
	if p.engine != nil {
		p.engine.Reset()
	}
}

// UpdateConfig implements dsp.Configurable. FFT size, hop size, and window
// changes are structural (rebuild the STFT engine); averaging mode and
// factor changes apply in place.
func (p *Processor) UpdateConfig(cfg any) {
	next, ok := cfg.(Config)
	if !ok {
		return
	}
	next = next.normalized()
	structural := next.FFTSize != p.cfg.FFTSize || next.HopSize != p.cfg.HopSize ||
		next.Window != p.cfg.Window || next.PlanckBessel != p.cfg.PlanckBessel
	p.cfg = next
	if structural && p.engine != nil {
		p.engine.Reconfigure(p.cfg.stftConfig(p.sampleRate))
		p.havePrior = false
	}
}

func (p *Processor) rebuild(channels, sampleRate int) {
	p.channels = channels
	p.sampleRate = sampleRate
	p.engine = stft.NewEngine(p.cfg.stftConfig(sampleRate))
	p.havePrior = false
}

var (
	_ dsp.Processor    = (*Processor)(nil)
	_ dsp.Configurable = (*Processor)(nil)
)
