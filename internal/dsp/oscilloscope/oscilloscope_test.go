package oscilloscope

import (
	"math"
	"testing"
	"time"

	"github.com/httpsworldview/openmeters/internal/dsp"
)

func sineBlock(freq float64, sampleRate, n int) *dsp.AudioBlock {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return &dsp.AudioBlock{Samples: samples, Channels: 1, SampleRate: sampleRate, Timestamp: time.Now()}
}

func TestNoSnapshotBeforeOneSegment(t *testing.T) {
	p := New(Config{SegmentDuration: 0.01})
	_, ok := p.ProcessBlock(sineBlock(1000, 48000, 10))
	if ok {
		t.Fatal("ProcessBlock returned ok=true before one segment accumulated")
	}
}

func TestCapturesRisingZeroCrossing(t *testing.T) {
	p := New(Config{SegmentDuration: 0.01, TriggerLevel: 0, TriggerEdge: EdgeRising})
	snap, ok := p.ProcessBlock(sineBlock(1000, 48000, 4800))
	if !ok {
		t.Fatal("ProcessBlock returned ok=false")
	}
	s := snap.(Snapshot)
	if len(s.Samples) != p.segmentFrames {
		t.Fatalf("len(Samples) = %d, want %d", len(s.Samples), p.segmentFrames)
	}
	// A 1 kHz sine at 48 kHz moves about 0.13 per sample near zero, so the
	// first sample at or above the trigger level lies within one step of it.
	if s.Samples[0] < 0 || s.Samples[0] > 0.14 {
		t.Fatalf("first sample = %v, want near the rising zero crossing", s.Samples[0])
	}
}

func TestFreeRunFallbackWhenSignalNeverCrosses(t *testing.T) {
	p := New(Config{SegmentDuration: 0.01, TriggerLevel: 10}) // unreachable level
	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = 0.5
	}
	block := &dsp.AudioBlock{Samples: samples, Channels: 1, SampleRate: 48000, Timestamp: time.Now()}
	snap, ok := p.ProcessBlock(block)
	if !ok {
		t.Fatal("ProcessBlock returned ok=false")
	}
	s := snap.(Snapshot)
	if len(s.Samples) != p.segmentFrames {
		t.Fatalf("len(Samples) = %d, want %d (free-run fallback)", len(s.Samples), p.segmentFrames)
	}
}

func TestZeroChannelBlockNoOp(t *testing.T) {
	p := New(Config{})
	_, ok := p.ProcessBlock(&dsp.AudioBlock{SampleRate: 48000})
	if ok {
		t.Fatal("ProcessBlock returned ok=true for a zero-channel block")
	}
}
