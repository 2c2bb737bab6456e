package stft

import (
	"math"
	"testing"

	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
)

func sineWave(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestEngineEmitsOnePerHop(t *testing.T) {
	e := NewEngine(Config{FFTSize: 256, HopSize: 64, Window: dsputil.Hann, SampleRate: 48000})
	samples := sineWave(1000, 48000, 256+64*3)
	results := e.Push(samples, nil)
	// One result when the first full window fills, then one per hop after.
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}
	for _, r := range results {
		if len(r.MagnitudesDB) != 129 || len(r.FrequencyBins) != 129 {
			t.Fatalf("result bin counts = %d/%d, want 129/129", len(r.MagnitudesDB), len(r.FrequencyBins))
		}
	}
}

func TestEngineDetectsSineFrequency(t *testing.T) {
	e := NewEngine(Config{FFTSize: 1024, HopSize: 1024, Window: dsputil.Hann, SampleRate: 48000})
	samples := sineWave(1000, 48000, 1024)
	results := e.Push(samples, nil)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	hz, ok := PeakFrequency(results[0].MagnitudesDB, results[0].FrequencyBins)
	if !ok {
		t.Fatal("PeakFrequency returned ok=false")
	}
	if math.Abs(hz-1000) > 60 {
		t.Fatalf("PeakFrequency = %v, want ~1000", hz)
	}
}

func TestReconfigureResetsState(t *testing.T) {
	e := NewEngine(Config{FFTSize: 128, HopSize: 32, Window: dsputil.Hann, SampleRate: 48000})
	e.Push(sineWave(1000, 48000, 100), nil)
	e.Reconfigure(Config{FFTSize: 256, HopSize: 64, Window: dsputil.Hann, SampleRate: 48000})
	if e.filled != 0 || e.sinceHop != 0 {
		t.Fatalf("Reconfigure did not reset state: filled=%d sinceHop=%d", e.filled, e.sinceHop)
	}
	if len(e.ring) != 256 {
		t.Fatalf("len(ring) = %d, want 256", len(e.ring))
	}
}
