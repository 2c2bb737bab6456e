// Package waveform implements the scrolling waveform processor: a
// per-channel column ring of min/max extents, colored by each column's
// dominant frequency. Styled after the teacher's stateful-processor
// packages (construct with New, mutate via Process*, self-reconfigure on
// structural change).
package waveform

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
)

const (
	// fftSize is the fixed dominant-frequency analysis window, independent
	// of scroll_speed so color does not shift with the timebase.
	fftSize = 2048

	// MaxSlewPerFlush bounds how far freqNorm can move in a single column.
	MaxSlewPerFlush = 0.01

	// MinScrollSpeed and MaxScrollSpeed bound scroll_speed in columns/s.
	MinScrollSpeed = 1
	MaxScrollSpeed = 1000

	// MinMaxColumns and MaxMaxColumns bound the column ring's capacity.
	MinMaxColumns = 512
	MaxMaxColumns = 16384

	// DefaultScrollSpeed and DefaultMaxColumns are used when Config omits them.
	DefaultScrollSpeed = 100.0
	DefaultMaxColumns  = 2048
)

// Config holds the waveform processor's tunables.
type Config struct {
	ScrollSpeed float64 // columns per second
	MaxColumns  int
}

func (c Config) normalized() Config {
	if c.ScrollSpeed <= 0 {
		c.ScrollSpeed = DefaultScrollSpeed
	}
	if c.ScrollSpeed < MinScrollSpeed {
		c.ScrollSpeed = MinScrollSpeed
	}
	if c.ScrollSpeed > MaxScrollSpeed {
		c.ScrollSpeed = MaxScrollSpeed
	}
	if c.MaxColumns <= 0 {
		c.MaxColumns = DefaultMaxColumns
	}
	if c.MaxColumns < MinMaxColumns {
		c.MaxColumns = MinMaxColumns
	}
	if c.MaxColumns > MaxMaxColumns {
		c.MaxColumns = MaxMaxColumns
	}
	return c
}

// Column is one flushed column's extents and color.
type Column struct {
	Min      float32
	Max      float32
	FreqNorm float64 // [0,1], log-normalized dominant frequency
}

// Preview describes the in-progress column not yet flushed.
type Preview struct {
	Min      float32
	Max      float32
	Progress float64 // [0,1], fraction of samples_per_column accumulated
}

// ChannelSnapshot is one channel's published waveform state.
type ChannelSnapshot struct {
	Columns []Column // head-to-tail order, length <= MaxColumns
	Preview Preview
}

// Snapshot is the waveform processor's published state, one ChannelSnapshot
// per input channel plus the shared timebase.
type Snapshot struct {
	Channels             []ChannelSnapshot
	ColumnSpacingSeconds float64
	ScrollPosition       float64 // first channel's position; all channels advance together
}

// channelAccum is one channel's in-progress column plus its dominant
// frequency analysis history.
type channelAccum struct {
	count int
	min   float32
	max   float32

	history  []float64 // rolling fftSize-sample history, most recent last
	filled   int
	freqNorm float64

	ring      []Column
	head      int
	written   int // total columns ever written
}

func newChannelAccum(maxColumns int) *channelAccum {
	return &channelAccum{
		min:     math.MaxFloat32,
		max:     -math.MaxFloat32,
		history: make([]float64, fftSize),
		ring:    make([]Column, maxColumns),
	}
}

// Processor implements dsp.Processor for the scrolling waveform.
type Processor struct {
	cfg              Config
	channels         int
	sampleRate       int
	samplesPerColumn int

	channelsState []*channelAccum

	fft    *fourier.FFT
	window []float64
	coeffs []complex128
}

// New returns a Processor with the given config (zero-value fields take
// package defaults).
func New(cfg Config) *Processor {
	p := &Processor{cfg: cfg.normalized()}
	p.fft = fourier.NewFFT(fftSize)
	p.window = dsputil.Window(dsputil.Hann, fftSize, dsputil.PlanckBesselParams{}, nil)
	return p
}

// ProcessBlock implements dsp.Processor.
func (p *Processor) ProcessBlock(block *dsp.AudioBlock) (any, bool) {
	frames := block.FrameCount()
	if frames == 0 || block.Channels == 0 {
		return nil, false
	}
	if block.Channels != p.channels || block.SampleRate != p.sampleRate {
		p.rebuild(block.Channels, block.SampleRate)
	}

	for f := 0; f < frames; f++ {
		base := f * block.Channels
		for c := 0; c < block.Channels; c++ {
			p.accumulate(p.channelsState[c], block.Samples[base+c])
		}
	}

	return p.snapshot(), true
}

func (p *Processor) accumulate(ch *channelAccum, sample float32) {
	if sample > ch.max {
		ch.max = sample
	}
	if sample < ch.min {
		ch.min = sample
	}
	ch.count++

	p.pushHistory(ch, float64(sample))

	if ch.count >= p.samplesPerColumn {
		p.flush(ch)
	}
}

func (p *Processor) pushHistory(ch *channelAccum, sample float64) {
	copy(ch.history, ch.history[1:])
	ch.history[len(ch.history)-1] = sample
	if ch.filled < len(ch.history) {
		ch.filled++
	}
}

func (p *Processor) flush(ch *channelAccum) {
	min, max := ch.min, ch.max
	if min == math.MaxFloat32 {
		min = 0
	}
	if max == -math.MaxFloat32 {
		max = 0
	}

	target := p.dominantFreqNorm(ch)
	delta := target - ch.freqNorm
	if delta > MaxSlewPerFlush {
		delta = MaxSlewPerFlush
	} else if delta < -MaxSlewPerFlush {
		delta = -MaxSlewPerFlush
	}
	ch.freqNorm += delta

	ch.ring[ch.head] = Column{Min: min, Max: max, FreqNorm: ch.freqNorm}
	ch.head = (ch.head + 1) % len(ch.ring)
	ch.written++

	ch.count = 0
	ch.min = math.MaxFloat32
	ch.max = -math.MaxFloat32
}

func (p *Processor) dominantFreqNorm(ch *channelAccum) float64 {
	if ch.filled < len(ch.history) {
		return ch.freqNorm
	}
	windowed := make([]float64, fftSize)
	for i, v := range ch.history {
		windowed[i] = v * p.window[i]
	}
	coeffs := p.fft.Coefficients(nil, windowed)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = math.Hypot(real(c), imag(c))
	}
	freqs := make([]float64, len(coeffs))
	for i := range freqs {
		freqs[i] = float64(i) * float64(p.sampleRate) / float64(fftSize)
	}
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
		return 0
	}
	hz := freqs[best]
	if best > 0 && best < len(mags)-1 {
		binHz := freqs[1] - freqs[0]
		hz += dsputil.ParabolicInterpolate(mags[best-1], mags[best], mags[best+1]) * binHz
	}
	return dsputil.HzToNormalizedLog(hz)
}

func (p *Processor) snapshot() Snapshot {
	channels := make([]ChannelSnapshot, len(p.channelsState))
	var scrollPosition float64
	for idx, ch := range p.channelsState {
		n := ch.written
		if n > len(ch.ring) {
			n = len(ch.ring)
		}
		columns := make([]Column, n)
		start := ch.head - n
		if start < 0 {
			start += len(ch.ring)
		}
		for i := 0; i < n; i++ {
			columns[i] = ch.ring[(start+i)%len(ch.ring)]
		}

		progress := float64(ch.count) / float64(p.samplesPerColumn)
		min, max := ch.min, ch.max
		if min == math.MaxFloat32 {
			min = 0
		}
		if max == -math.MaxFloat32 {
			max = 0
		}
		channels[idx] = ChannelSnapshot{
			Columns: columns,
			Preview: Preview{Min: min, Max: max, Progress: progress},
		}
		if idx == 0 {
			scrollPosition = float64(ch.written) + progress
		}
	}

	return Snapshot{
		Channels:             channels,
		ColumnSpacingSeconds: 1 / p.cfg.ScrollSpeed,
		ScrollPosition:       scrollPosition,
	}
}

// Reset rebuilds all per-channel state, clearing every column.
func (p *Processor) Reset() {
	p.rebuild(p.channels, p.sampleRate)
}

// UpdateConfig implements dsp.Configurable. Any structural change (column
// capacity or scroll speed, since scroll speed changes the timebase) forces
// a full rebuild.
func (p *Processor) UpdateConfig(cfg any) {
	next, ok := cfg.(Config)
	if !ok {
		return
	}
	next = next.normalized()
	p.cfg = next
	p.rebuild(p.channels, p.sampleRate)
}

func (p *Processor) rebuild(channels, sampleRate int) {
	p.channels = channels
	p.sampleRate = sampleRate
	p.samplesPerColumn = int(math.Round(float64(sampleRate) / p.cfg.ScrollSpeed))
	if p.samplesPerColumn < 1 {
		p.samplesPerColumn = 1
	}
	p.channelsState = make([]*channelAccum, channels)
	for i := range p.channelsState {
		p.channelsState[i] = newChannelAccum(p.cfg.MaxColumns)
	}
}

var (
	_ dsp.Processor    = (*Processor)(nil)
	_ dsp.Configurable = (*Processor)(nil)
)
