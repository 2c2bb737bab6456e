// Package oscilloscope implements trigger-aligned segment capture, falling
// back to a free-running capture when no trigger crossing is found within
// one segment.
package oscilloscope

import "github.com/httpsworldview/openmeters/internal/dsp"

// Edge selects which zero-crossing direction the trigger looks for.
type Edge int

const (
	EdgeRising Edge = iota
	EdgeFalling
)

const (
	// DefaultSegmentDuration sizes the captured segment, seconds.
	DefaultSegmentDuration = 0.05
	// DefaultTriggerLevel is the amplitude the trigger looks for a crossing at.
	DefaultTriggerLevel = 0.0
	// DefaultTriggerChannel is the channel index the trigger watches.
	DefaultTriggerChannel = 0
)

// Config holds the oscilloscope processor's tunables.
type Config struct {
	SegmentDuration float64
	TriggerLevel    float32
	TriggerEdge     Edge
	TriggerChannel  int
}

func (c Config) normalized() Config {
	if c.SegmentDuration <= 0 {
		c.SegmentDuration = DefaultSegmentDuration
	}
	if c.TriggerChannel < 0 {
		c.TriggerChannel = DefaultTriggerChannel
	}
	return c
}

// Snapshot is the oscilloscope processor's published state: one captured
// segment, interleaved by channel.
type Snapshot struct {
	Channels int
	Samples  []float32
}

// Processor implements dsp.Processor for the oscilloscope.
type Processor struct {
	cfg        Config
	channels   int
	sampleRate int
	segmentFrames int

	// history is a rolling buffer of up to two segments, so a trigger
	// search can look back far enough to find a crossing followed by a
	// full segment of post-trigger data.
	history       []float32 // interleaved
	historyFrames int
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
	if block.Channels != p.channels || block.SampleRate != p.sampleRate {
		p.rebuild(block.Channels, block.SampleRate)
	}

	p.appendHistory(block)

	if p.historyFrames < p.segmentFrames {
		return nil, false
	}

	triggerCh := p.cfg.TriggerChannel
	if triggerCh >= p.channels {
		triggerCh = 0
	}

	startFrame, found := p.findTrigger(triggerCh)
	if !found {
		// Free-run fallback: use the most recent full segment.
		startFrame = p.historyFrames - p.segmentFrames
	}

	segment := make([]float32, p.segmentFrames*p.channels)
	copy(segment, p.history[startFrame*p.channels:(startFrame+p.segmentFrames)*p.channels])

	return Snapshot{Channels: p.channels, Samples: segment}, true
}

// appendHistory appends block's frames to the rolling history, keeping at
// most two segments worth so the trigger search always has a full segment
// of runway after any candidate crossing.
func (p *Processor) appendHistory(block *dsp.AudioBlock) {
	frames := block.FrameCount()
	maxFrames := 2 * p.segmentFrames

	combined := append(p.history[:p.historyFrames*p.channels], block.Samples...)
	totalFrames := p.historyFrames + frames
	if totalFrames > maxFrames {
		drop := totalFrames - maxFrames
		combined = combined[drop*p.channels:]
		totalFrames = maxFrames
	}
	p.history = combined
	p.historyFrames = totalFrames
}

// findTrigger scans history for a zero-crossing on triggerCh in the
// configured direction, leaving at least segmentFrames of history after
// it. Returns the frame index to start the captured segment at.
func (p *Processor) findTrigger(triggerCh int) (start int, found bool) {
	if p.historyFrames < p.segmentFrames {
		return 0, false
	}
	limit := p.historyFrames - p.segmentFrames
	var prev float32
	havePrev := false
	for f := 0; f <= limit; f++ {
		v := p.history[f*p.channels+triggerCh]
		if havePrev && p.crosses(prev, v) {
			return f, true
		}
		prev = v
		havePrev = true
	}
	return 0, false
}

func (p *Processor) crosses(prev, cur float32) bool {
	level := p.cfg.TriggerLevel
	switch p.cfg.TriggerEdge {
	case EdgeFalling:
		return prev > level && cur <= level
	default:
		return prev < level && cur >= level
	}
}

// Reset clears the rolling history.
func (p *Processor) Reset() {
	p.rebuild(p.channels, p.sampleRate)
}

// UpdateConfig implements dsp.Configurable. A SegmentDuration change
// rebuilds the history buffer (structural, changes sizing); trigger level,
// edge, and channel apply in place.
func (p *Processor) UpdateConfig(cfg any) {
	next, ok := cfg.(Config)
	if !ok {
		return
	}
	next = next.normalized()
	structural := next.SegmentDuration != p.cfg.SegmentDuration
	p.cfg = next
	if structural {
		p.rebuild(p.channels, p.sampleRate)
	}
}

func (p *Processor) rebuild(channels, sampleRate int) {
	p.channels = channels
	p.sampleRate = sampleRate
	p.segmentFrames = int(float64(sampleRate) * p.cfg.SegmentDuration)
	if p.segmentFrames < 1 {
		p.segmentFrames = 1
	}
	p.history = make([]float32, 0, 2*p.segmentFrames*channels)
	p.historyFrames = 0
}

var (
	_ dsp.Processor    = (*Processor)(nil)
	_ dsp.Configurable = (*Processor)(nil)
)
