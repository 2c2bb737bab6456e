package spectrum

import (
	"math"
	"testing"
	"time"

	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
)

func sineBlock(freq float64, sampleRate, n, channels int) *dsp.AudioBlock {
	samples := make([]float32, n*channels)
	for f := 0; f < n; f++ {
		v := float32(math.Sin(2 * math.Pi * freq * float64(f) / float64(sampleRate)))
		for c := 0; c < channels; c++ {
			samples[f*channels+c] = v
		}
	}
	return &dsp.AudioBlock{Samples: samples, Channels: channels, SampleRate: sampleRate, Timestamp: time.Now()}
}

func TestEmitsOnceEnoughSamplesAccumulate(t *testing.T) {
	p := New(Config{FFTSize: 512, HopSize: 512, Window: dsputil.Hann})
	block := sineBlock(1000, 48000, 512, 1)
	snap, ok := p.ProcessBlock(block)
	if !ok {
		t.Fatal("ProcessBlock returned ok=false")
	}
	s := snap.(Snapshot)
	if len(s.FrequencyBins) != 257 {
		t.Fatalf("len(FrequencyBins) = %d, want 257", len(s.FrequencyBins))
	}
	if !s.HasPeak {
		t.Fatal("HasPeak = false")
	}
	if math.Abs(s.PeakFrequencyHz-1000) > 200 {
		t.Fatalf("PeakFrequencyHz = %v, want ~1000", s.PeakFrequencyHz)
	}
}

func TestNoResultBeforeFirstHop(t *testing.T) {
	p := New(Config{FFTSize: 2048, HopSize: 2048, Window: dsputil.Hann})
	block := sineBlock(1000, 48000, 100, 1)
	_, ok := p.ProcessBlock(block)
	if ok {
		t.Fatal("ProcessBlock returned ok=true before a full hop accumulated")
	}
}

func TestAWeightedDiffersFromUnweighted(t *testing.T) {
	p := New(Config{FFTSize: 512, HopSize: 512, Window: dsputil.Hann})
	block := sineBlock(50, 48000, 512, 1)
	snap, _ := p.ProcessBlock(block)
	s := snap.(Snapshot)
	diff := false
	for i := range s.MagnitudesDB {
		if math.Abs(s.MagnitudesDB[i]-s.MagnitudesUnweightedDB[i]) > 0.01 {
			diff = true
			break
		}
	}
	if !diff {
		t.Fatal("A-weighted and unweighted curves are identical, want a difference at low frequency")
	}
}

func TestZeroChannelBlockNoOp(t *testing.T) {
	p := New(Config{})
	_, ok := p.ProcessBlock(&dsp.AudioBlock{SampleRate: 48000})
	if ok {
		t.Fatal("ProcessBlock returned ok=true for a zero-channel block")
	}
}
