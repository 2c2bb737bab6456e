package waveform

import (
	"math"
	"testing"
	"time"

	"github.com/httpsworldview/openmeters/internal/dsp"
)

func alternatingBlock(channels, sampleRate, frames int, hi, lo float32) *dsp.AudioBlock {
	samples := make([]float32, frames*channels)
	for f := 0; f < frames; f++ {
		v := hi
		if f%2 == 1 {
			v = lo
		}
		for c := 0; c < channels; c++ {
			samples[f*channels+c] = v
		}
	}
	return &dsp.AudioBlock{Samples: samples, Channels: channels, SampleRate: sampleRate, Timestamp: time.Now()}
}

func TestSamplesPerColumn(t *testing.T) {
	p := New(Config{ScrollSpeed: 120})
	p.ProcessBlock(&dsp.AudioBlock{Samples: make([]float32, 2), Channels: 1, SampleRate: 48000})
	if p.samplesPerColumn != 400 {
		t.Fatalf("samplesPerColumn = %d, want 400 (S6)", p.samplesPerColumn)
	}
}

func TestExactlyOneColumnFromOneBlock(t *testing.T) {
	p := New(Config{ScrollSpeed: 120})
	block := alternatingBlock(1, 48000, 400, 0.5, -0.5)
	snap, ok := p.ProcessBlock(block)
	if !ok {
		t.Fatal("ProcessBlock returned ok=false")
	}
	s := snap.(Snapshot)
	cols := s.Channels[0].Columns
	if len(cols) != 1 {
		t.Fatalf("len(columns) = %d, want 1", len(cols))
	}
	if math.Abs(float64(cols[0].Max)-0.5) > 1e-6 || math.Abs(float64(cols[0].Min)+0.5) > 1e-6 {
		t.Fatalf("column = %+v, want max~0.5 min~-0.5", cols[0])
	}
}

func TestMinMaxFromOffsetAlternatingSignal(t *testing.T) {
	p := New(Config{ScrollSpeed: 100})
	block := alternatingBlock(1, 48000, 480, 0.5, -0.25)
	snap, _ := p.ProcessBlock(block)
	s := snap.(Snapshot)
	cols := s.Channels[0].Columns
	if len(cols) == 0 {
		t.Fatal("no columns flushed")
	}
	last := cols[len(cols)-1]
	if math.Abs(float64(last.Max)-0.5) > 1e-6 || math.Abs(float64(last.Min)+0.25) > 1e-6 {
		t.Fatalf("column = %+v, want max~0.5 min~-0.25", last)
	}
}

func TestFreqColorStabilityAcrossScrollSpeeds(t *testing.T) {
	sampleRate := 48000
	freq := 1000.0
	seconds := 2.0
	n := int(float64(sampleRate) * seconds)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}

	var norms []float64
	for _, speed := range []float64{50, 100, 200, 500} {
		p := New(Config{ScrollSpeed: speed})
		block := &dsp.AudioBlock{Samples: append([]float32(nil), samples...), Channels: 1, SampleRate: sampleRate, Timestamp: time.Now()}
		snap, ok := p.ProcessBlock(block)
		if !ok {
			t.Fatalf("speed=%v: ProcessBlock returned ok=false", speed)
		}
		s := snap.(Snapshot)
		cols := s.Channels[0].Columns
		if len(cols) == 0 {
			t.Fatalf("speed=%v: no columns flushed", speed)
		}
		norms = append(norms, cols[len(cols)-1].FreqNorm)
	}
	for i := 1; i < len(norms); i++ {
		if math.Abs(norms[i]-norms[0]) > 0.01 {
			t.Fatalf("freqNorm varied across scroll speeds: %v", norms)
		}
	}
}

func TestRebuildOnChannelChange(t *testing.T) {
	p := New(Config{})
	p.ProcessBlock(&dsp.AudioBlock{Samples: make([]float32, 10), Channels: 1, SampleRate: 48000})
	p.ProcessBlock(&dsp.AudioBlock{Samples: make([]float32, 20), Channels: 2, SampleRate: 48000})
	if p.channels != 2 || len(p.channelsState) != 2 {
		t.Fatalf("processor did not rebuild: channels=%d states=%d", p.channels, len(p.channelsState))
	}
}
