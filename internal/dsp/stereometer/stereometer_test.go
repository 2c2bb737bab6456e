package stereometer

import (
	"math"
	"testing"
	"time"

	"github.com/httpsworldview/openmeters/internal/dsp"
)

func stereoBlock(l, r []float32) *dsp.AudioBlock {
	samples := make([]float32, len(l)*2)
	for i := range l {
		samples[i*2] = l[i]
		samples[i*2+1] = r[i]
	}
	return &dsp.AudioBlock{Samples: samples, Channels: 2, SampleRate: 48000, Timestamp: time.Now()}
}

func sine(freq float64, n int, sampleRate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestMonoSignalIsFullyCorrelated(t *testing.T) {
	p := New(Config{})
	s := sine(1000, 4800, 48000)
	block := stereoBlock(s, s)
	snap, ok := p.ProcessBlock(block)
	if !ok {
		t.Fatal("ProcessBlock returned ok=false")
	}
	s2 := snap.(Snapshot)
	if s2.FullBandCorrelation < 0.9 {
		t.Fatalf("FullBandCorrelation = %v, want close to 1 for identical L/R", s2.FullBandCorrelation)
	}
}

func TestInvertedRightIsAntiCorrelated(t *testing.T) {
	p := New(Config{})
	left := sine(1000, 4800, 48000)
	right := make([]float32, len(left))
	for i, v := range left {
		right[i] = -v
	}
	block := stereoBlock(left, right)
	snap, _ := p.ProcessBlock(block)
	s := snap.(Snapshot)
	if s.FullBandCorrelation > -0.9 {
		t.Fatalf("FullBandCorrelation = %v, want close to -1 for inverted L/R", s.FullBandCorrelation)
	}
}

func TestSilenceYieldsZeroCorrelation(t *testing.T) {
	p := New(Config{})
	block := stereoBlock(make([]float32, 100), make([]float32, 100))
	snap, _ := p.ProcessBlock(block)
	s := snap.(Snapshot)
	if s.FullBandCorrelation != 0 {
		t.Fatalf("FullBandCorrelation = %v, want 0 for silence (tiny denominator)", s.FullBandCorrelation)
	}
}

func TestRequiresAtLeastTwoChannels(t *testing.T) {
	p := New(Config{})
	_, ok := p.ProcessBlock(&dsp.AudioBlock{Samples: make([]float32, 10), Channels: 1, SampleRate: 48000})
	if ok {
		t.Fatal("ProcessBlock returned ok=true for a mono block")
	}
}

func TestXYPointsEmitOnlyOnceHistoryFull(t *testing.T) {
	p := New(Config{SegmentDuration: 0.01, TargetSampleCount: 16})
	short := stereoBlock(sine(1000, 100, 48000), sine(1000, 100, 48000))
	snap, _ := p.ProcessBlock(short)
	s := snap.(Snapshot)
	if s.Full {
		t.Fatal("Full = true before segmentFrames samples arrived")
	}
	if s.XYPoints != nil {
		t.Fatal("XYPoints should be nil before the history fills")
	}

	more := stereoBlock(sine(1000, 1000, 48000), sine(1000, 1000, 48000))
	snap2, _ := p.ProcessBlock(more)
	s2 := snap2.(Snapshot)
	if !s2.Full {
		t.Fatal("Full = false after enough samples arrived")
	}
	if len(s2.XYPoints) != 16 {
		t.Fatalf("len(XYPoints) = %d, want 16", len(s2.XYPoints))
	}
}
