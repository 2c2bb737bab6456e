// Package loudness implements the momentary LUFS-style loudness meter: a
// per-channel rolling sum-of-squares window plus absolute peak hold,
// following the teacher's small stateful-processor idiom (New/Process/
// Reset) used throughout client/internal/{agc,vad,noisegate}.
package loudness

import (
	"math"

	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
)

const (
	// DefaultMomentaryWindow is the rolling window length in seconds.
	DefaultMomentaryWindow = 0.4
	// DefaultFloorDB is the dB floor both mean-square and peak are clamped to.
	DefaultFloorDB = -60.0
)

// Config holds the loudness processor's tunables. MomentaryWindow and
// FloorDB both default to zero value meaning "use the package default";
// New normalizes that.
type Config struct {
	MomentaryWindow float64
	FloorDB         float64
}

func (c Config) normalized() Config {
	if c.MomentaryWindow <= 0 {
		c.MomentaryWindow = DefaultMomentaryWindow
	}
	if c.FloorDB == 0 {
		c.FloorDB = DefaultFloorDB
	}
	return c
}

// Snapshot is the per-channel loudness reading emitted by Processor.
type Snapshot struct {
	MomentaryLUFS []float64 // per channel, dB, floor-clamped
	PeakDB        []float64 // per channel, dBFS, floor-clamped
}

// channelState is one channel's rolling sum-of-squares window.
type channelState struct {
	window   []float64
	pos      int
	filled   int
	sum      float64
	peakAbs  float64
}

func newChannelState(windowLen int) *channelState {
	if windowLen < 1 {
		windowLen = 1
	}
	return &channelState{window: make([]float64, windowLen)}
}

func (c *channelState) push(sample float64) {
	sq := sample * sample
	old := c.window[c.pos]
	c.window[c.pos] = sq
	c.sum += sq - old
	c.pos++
	if c.pos == len(c.window) {
		c.pos = 0
	}
	if c.filled < len(c.window) {
		c.filled++
	}
	if abs := math.Abs(sample); abs > c.peakAbs {
		c.peakAbs = abs
	}
}

// resetPeak zeroes the running peak ahead of a new block, since peakAbs is
// a per-block maximum, not a lifetime one.
func (c *channelState) resetPeak() {
	c.peakAbs = 0
}

func (c *channelState) meanSquare() float64 {
	if c.filled == 0 {
		return 0
	}
	return c.sum / float64(c.filled)
}

// Processor implements dsp.Processor for loudness metering.
type Processor struct {
	cfg        Config
	channels   int
	sampleRate int
	windowLen  int
	states     []*channelState
}

// New returns a Processor with the given config (zero-value fields take
// package defaults).
func New(cfg Config) *Processor {
	return &Processor{cfg: cfg.normalized()}
}

// ProcessBlock implements dsp.Processor. Returns ok=false for zero-frame or
// zero-channel blocks, per the contract's "no state change" rule.
func (p *Processor) ProcessBlock(block *dsp.AudioBlock) (any, bool) {
	frames := block.FrameCount()
	if frames == 0 || block.Channels == 0 {
		return nil, false
	}
	if block.Channels != p.channels || block.SampleRate != p.sampleRate {
		p.rebuild(block.Channels, block.SampleRate)
	}

	for _, st := range p.states {
		st.resetPeak()
	}
	for f := 0; f < frames; f++ {
		base := f * block.Channels
		for c := 0; c < block.Channels; c++ {
			p.states[c].push(float64(block.Samples[base+c]))
		}
	}

	snap := Snapshot{
		MomentaryLUFS: make([]float64, block.Channels),
		PeakDB:        make([]float64, block.Channels),
	}
	for c, st := range p.states {
		snap.MomentaryLUFS[c] = dsputil.PowerToDB(st.meanSquare(), p.cfg.FloorDB)
		snap.PeakDB[c] = dsputil.AmplitudeToDB(st.peakAbs, p.cfg.FloorDB)
	}
	return snap, true
}

// Reset clears all per-channel state without forgetting channel/rate.
func (p *Processor) Reset() {
	p.rebuild(p.channels, p.sampleRate)
}

// UpdateConfig implements dsp.Configurable. A window-length change updates
// every channel's window in place (resizing and re-zeroing it, per the
// "update_config changes window length in place" contract); the floor is
// always applied in place since it is a pure output clamp.
func (p *Processor) UpdateConfig(cfg any) {
	next, ok := cfg.(Config)
	if !ok {
		return
	}
	next = next.normalized()
	if next.MomentaryWindow != p.cfg.MomentaryWindow {
		p.cfg = next
		p.rebuild(p.channels, p.sampleRate)
		return
	}
	p.cfg = next
}

func (p *Processor) rebuild(channels, sampleRate int) {
	p.channels = channels
	p.sampleRate = sampleRate
	p.windowLen = int(float64(sampleRate) * p.cfg.MomentaryWindow)
	if p.windowLen < 1 {
		p.windowLen = 1
	}
	p.states = make([]*channelState, channels)
	for i := range p.states {
		p.states[i] = newChannelState(p.windowLen)
	}
}

var (
	_ dsp.Processor    = (*Processor)(nil)
	_ dsp.Configurable = (*Processor)(nil)
)
