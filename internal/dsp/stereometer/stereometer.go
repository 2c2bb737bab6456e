// Package stereometer implements stereo correlation metering: a full-band
// correlator plus a 3-band split (Linkwitz-Riley 4th-order crossovers at
// 250 Hz and 4000 Hz), and a bounded XY point history for the vectorscope
// display.
package stereometer

import (
	"math"

	"github.com/httpsworldview/openmeters/internal/dsp"
)

const (
	// LowCrossoverHz and HighCrossoverHz are the fixed LR4 split points.
	LowCrossoverHz  = 250.0
	HighCrossoverHz = 4000.0

	// DefaultCorrelationWindow is the EMA correlator's time constant, seconds.
	DefaultCorrelationWindow = 0.2

	// DefaultSegmentDuration sizes the XY point history, seconds.
	DefaultSegmentDuration = 0.02

	// DefaultTargetSampleCount is how many evenly-spaced XY points are
	// exposed per emitted segment.
	DefaultTargetSampleCount = 512

	denomEpsilon = 1e-12
)

// Config holds the stereometer processor's tunables.
type Config struct {
	CorrelationWindow float64
	SegmentDuration   float64
	TargetSampleCount int
}

func (c Config) normalized() Config {
	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = DefaultCorrelationWindow
	}
	if c.SegmentDuration <= 0 {
		c.SegmentDuration = DefaultSegmentDuration
	}
	if c.TargetSampleCount <= 0 {
		c.TargetSampleCount = DefaultTargetSampleCount
	}
	return c
}

// Point is one (L,R) sample pair in the vectorscope history.
type Point struct {
	L, R float32
}

// Snapshot is the stereometer processor's published state.
type Snapshot struct {
	FullBandCorrelation float64
	LowBandCorrelation  float64
	MidBandCorrelation  float64
	HighBandCorrelation float64
	XYPoints            []Point
	Full                bool // true once the history has filled a full segment
}

// correlator tracks a running Pearson-style correlation via exponential
// moving averages of L*R, L*L, and R*R.
type correlator struct {
	alpha    float64
	lr, ll, rr float64
	primed   bool
}

func newCorrelator(sampleRate int, windowSeconds float64) *correlator {
	alpha := 1 - math.Exp(-1/(float64(sampleRate)*windowSeconds))
	return &correlator{alpha: alpha}
}

func (c *correlator) update(l, r float64) {
	lr, ll, rr := l*r, l*l, r*r
	if !c.primed {
		c.lr, c.ll, c.rr = lr, ll, rr
		c.primed = true
		return
	}
	c.lr += c.alpha * (lr - c.lr)
	c.ll += c.alpha * (ll - c.ll)
	c.rr += c.alpha * (rr - c.rr)
}

func (c *correlator) value() float64 {
	denom := math.Sqrt(c.ll * c.rr)
	if denom < denomEpsilon {
		return 0
	}
	rho := c.lr / denom
	if rho > 1 {
		return 1
	}
	if rho < -1 {
		return -1
	}
	return rho
}

// lr4LowPass is a 4th-order Linkwitz-Riley low-pass, realized as two
// cascaded 2nd-order Butterworth (biquad) stages.
type lr4LowPass struct {
	a *biquad
	b *biquad
}

func newLR4LowPass(cutoffHz float64, sampleRate int) *lr4LowPass {
	return &lr4LowPass{a: newButterworthLowPass(cutoffHz, sampleRate), b: newButterworthLowPass(cutoffHz, sampleRate)}
}

func (f *lr4LowPass) process(x float64) float64 {
	return f.b.process(f.a.process(x))
}

// biquad is a direct-form-II transposed 2nd-order Butterworth low-pass.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func newButterworthLowPass(cutoffHz float64, sampleRate int) *biquad {
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	q := math.Sqrt2 / 2
	alpha := sinW0 / (2 * q)

	b0 := (1 - cosW0) / 2
	b1 := 1 - cosW0
	b2 := (1 - cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return &biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// channelBandSplit holds the per-channel LR4 filter chain.
type channelBandSplit struct {
	low  *lr4LowPass
	mid  *lr4LowPass
}

func newChannelBandSplit(sampleRate int) *channelBandSplit {
	return &channelBandSplit{
		low: newLR4LowPass(LowCrossoverHz, sampleRate),
		mid: newLR4LowPass(HighCrossoverHz, sampleRate),
	}
}

// split returns (low, mid, high) per the spec's exact structure:
// low = LR4(x); mid = LR4(x - low); high = x - low - mid.
func (s *channelBandSplit) split(x float64) (low, mid, high float64) {
	low = s.low.process(x)
	mid = s.mid.process(x - low)
	high = x - low - mid
	return
}

// Processor implements dsp.Processor for stereo correlation. Requires
// channels >= 2; ProcessBlock returns ok=false otherwise.
type Processor struct {
	cfg        Config
	channels   int
	sampleRate int

	full *correlator
	low  *correlator
	mid  *correlator
	high *correlator

	leftSplit  *channelBandSplit
	rightSplit *channelBandSplit

	history       []Point
	historyHead   int
	historyFull   bool
	segmentFrames int
}

// New returns a Processor with the given config (zero-value fields take
// package defaults).
func New(cfg Config) *Processor {
	return &Processor{cfg: cfg.normalized()}
}

// ProcessBlock implements dsp.Processor.
func (p *Processor) ProcessBlock(block *dsp.AudioBlock) (any, bool) {
	frames := block.FrameCount()
	if frames == 0 || block.Channels < 2 {
		return nil, false
	}
	if block.Channels != p.channels || block.SampleRate != p.sampleRate {
		p.rebuild(block.Channels, block.SampleRate)
	}

	for f := 0; f < frames; f++ {
		base := f * block.Channels
		l := float64(block.Samples[base])
		r := float64(block.Samples[base+1])

		p.full.update(l, r)

		lLow, lMid, lHigh := p.leftSplit.split(l)
		rLow, rMid, rHigh := p.rightSplit.split(r)
		p.low.update(lLow, rLow)
		p.mid.update(lMid, rMid)
		p.high.update(lHigh, rHigh)

		p.history[p.historyHead] = Point{L: float32(l), R: float32(r)}
		p.historyHead++
		if p.historyHead == len(p.history) {
			p.historyHead = 0
			p.historyFull = true
		}
	}

	return p.snapshot(), true
}

func (p *Processor) snapshot() Snapshot {
	snap := Snapshot{
		FullBandCorrelation: p.full.value(),
		LowBandCorrelation:  p.low.value(),
		MidBandCorrelation:  p.mid.value(),
		HighBandCorrelation: p.high.value(),
		Full:                p.historyFull,
	}
	if !p.historyFull {
		return snap
	}

	n := p.cfg.TargetSampleCount
	if n > len(p.history) {
		n = len(p.history)
	}
	points := make([]Point, n)
	for i := 0; i < n; i++ {
		idx := (p.historyHead + i*len(p.history)/n) % len(p.history)
		points[i] = p.history[idx]
	}
	snap.XYPoints = points
	return snap
}

// Reset rebuilds all correlator and filter state, clearing the XY history.
func (p *Processor) Reset() {
	p.rebuild(p.channels, p.sampleRate)
}

// UpdateConfig implements dsp.Configurable. CorrelationWindow and
// SegmentDuration changes both require rebuilding the correlators/history
// since they change the underlying filter/ring sizing; TargetSampleCount
// applies in place (it only affects how the existing history is sampled).
func (p *Processor) UpdateConfig(cfg any) {
	next, ok := cfg.(Config)
	if !ok {
		return
	}
	next = next.normalized()
	structural := next.CorrelationWindow != p.cfg.CorrelationWindow || next.SegmentDuration != p.cfg.SegmentDuration
	p.cfg = next
	if structural {
		p.rebuild(p.channels, p.sampleRate)
	}
}

func (p *Processor) rebuild(channels, sampleRate int) {
	p.channels = channels
	p.sampleRate = sampleRate
	p.full = newCorrelator(sampleRate, p.cfg.CorrelationWindow)
	p.low = newCorrelator(sampleRate, p.cfg.CorrelationWindow)
	p.mid = newCorrelator(sampleRate, p.cfg.CorrelationWindow)
	p.high = newCorrelator(sampleRate, p.cfg.CorrelationWindow)
	p.leftSplit = newChannelBandSplit(sampleRate)
	p.rightSplit = newChannelBandSplit(sampleRate)

	p.segmentFrames = int(math.Round(float64(sampleRate) * p.cfg.SegmentDuration))
	if p.segmentFrames < 1 {
		p.segmentFrames = 1
	}
	p.history = make([]Point, p.segmentFrames)
	p.historyHead = 0
	p.historyFull = false
}

var (
	_ dsp.Processor    = (*Processor)(nil)
	_ dsp.Configurable = (*Processor)(nil)
)
