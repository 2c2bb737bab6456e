package spectrogram

import (
	"math"
	"testing"
	"time"

	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
)

func sineBlock(freq float64, sampleRate, n int) *dsp.AudioBlock {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return &dsp.AudioBlock{Samples: samples, Channels: 1, SampleRate: sampleRate, Timestamp: time.Now()}
}

func TestEmitsOneColumnPerHop(t *testing.T) {
	p := New(Config{FFTSize: 256, HopSize: 128, Window: dsputil.Hann})
	block := sineBlock(1000, 48000, 256+128*2)
	update, ok := p.ProcessBlock(block)
	if !ok {
		t.Fatal("ProcessBlock returned ok=false")
	}
	u := update.(Update)
	if len(u.NewColumns) != 2 {
		t.Fatalf("len(NewColumns) = %d, want 2", len(u.NewColumns))
	}
	if !u.Reset {
		t.Fatal("first update after construction should have Reset=true")
	}
}

func TestPassthroughWhenDisplayBinsMatch(t *testing.T) {
	p := New(Config{FFTSize: 256, HopSize: 256, Window: dsputil.Hann})
	block := sineBlock(1000, 48000, 256)
	update, _ := p.ProcessBlock(block)
	u := update.(Update)
	if len(u.NewColumns[0].MagnitudesDB) != 129 {
		t.Fatalf("len(MagnitudesDB) = %d, want 129 (passthrough)", len(u.NewColumns[0].MagnitudesDB))
	}
}

func TestResamplesToDisplayBinCount(t *testing.T) {
	p := New(Config{FFTSize: 256, HopSize: 256, Window: dsputil.Hann, DisplayBinCount: 64})
	block := sineBlock(1000, 48000, 256)
	update, _ := p.ProcessBlock(block)
	u := update.(Update)
	if len(u.NewColumns[0].MagnitudesDB) != 64 {
		t.Fatalf("len(MagnitudesDB) = %d, want 64", len(u.NewColumns[0].MagnitudesDB))
	}
	if len(u.DisplayBinsHz) != 64 {
		t.Fatalf("len(DisplayBinsHz) = %d, want 64", len(u.DisplayBinsHz))
	}
}

func TestReassignmentDoesNotPanic(t *testing.T) {
	p := New(Config{FFTSize: 256, HopSize: 128, Window: dsputil.Hann, UseReassignment: true})
	block := sineBlock(1000, 48000, 256+128*3)
	update, ok := p.ProcessBlock(block)
	if !ok {
		t.Fatal("ProcessBlock returned ok=false")
	}
	u := update.(Update)
	if len(u.NewColumns) == 0 {
		t.Fatal("no columns emitted with reassignment enabled")
	}
}

func TestReassignmentRelocatesEnergyForOffBinTone(t *testing.T) {
	const (
		sampleRate = 48000
		fftSize    = 1024
		hopSize    = 256
	)
	// A tone sitting halfway between two FFT bins smears across several
	// neighboring bins under a plain STFT; reassignment should pull that
	// smeared energy toward the bin nearest the true frequency.
	binHz := float64(sampleRate) / float64(fftSize)
	freq := 20*binHz + binHz/2

	plain := New(Config{FFTSize: fftSize, HopSize: hopSize, Window: dsputil.Hann})
	reassigned := New(Config{FFTSize: fftSize, HopSize: hopSize, Window: dsputil.Hann, UseReassignment: true})

	block := sineBlock(freq, sampleRate, fftSize+hopSize*3)
	plainUpdate, ok := plain.ProcessBlock(block)
	if !ok {
		t.Fatal("plain ProcessBlock returned ok=false")
	}
	reassignedUpdate, ok := reassigned.ProcessBlock(block)
	if !ok {
		t.Fatal("reassigned ProcessBlock returned ok=false")
	}

	plainCols := plainUpdate.(Update).NewColumns
	reassignedCols := reassignedUpdate.(Update).NewColumns
	if len(plainCols) == 0 || len(reassignedCols) == 0 {
		t.Fatal("no columns emitted")
	}

	differed := false
	for c := range plainCols {
		plainMags := plainCols[c].MagnitudesDB
		reassignedMags := reassignedCols[c].MagnitudesDB
		for i := range plainMags {
			if math.Abs(plainMags[i]-reassignedMags[i]) > 1e-9 {
				differed = true
				break
			}
		}
	}
	if !differed {
		t.Fatal("reassignment produced identical output to the plain STFT; expected energy to relocate")
	}
}

func TestResetMarksNextUpdate(t *testing.T) {
	p := New(Config{FFTSize: 256, HopSize: 256, Window: dsputil.Hann})
	block := sineBlock(1000, 48000, 256)
	update, _ := p.ProcessBlock(block)
	if !update.(Update).Reset {
		t.Fatal("first update should carry Reset=true")
	}
	update2, ok := p.ProcessBlock(sineBlock(1000, 48000, 256))
	if !ok {
		t.Fatal("second ProcessBlock returned ok=false")
	}
	if update2.(Update).Reset {
		t.Fatal("second update should not carry Reset=true")
	}
}
