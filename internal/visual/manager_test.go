package visual

import (
	"testing"

	"github.com/httpsworldview/openmeters/internal/dsp"
)

func TestIngestOnlyDispatchesToEnabledKinds(t *testing.T) {
	m := New()
	m.SetFormat(Format{Channels: 2, SampleRate: 48000})
	m.SetEnabled(dsp.KindLoudness, true)

	samples := make([]float32, 2*48000)
	for i := range samples {
		samples[i] = 0.5
	}
	m.IngestSamples(samples)

	snap := m.Snapshot()
	if snap.Loudness == nil {
		t.Fatal("Loudness snapshot is nil after enabling and ingesting")
	}
	if snap.Spectrum != nil {
		t.Fatal("Spectrum snapshot is non-nil despite never being enabled")
	}
}

func TestDisablingClearsLastSnapshot(t *testing.T) {
	m := New()
	m.SetFormat(Format{Channels: 1, SampleRate: 48000})
	m.SetEnabled(dsp.KindLoudness, true)
	m.IngestSamples(make([]float32, 4800))
	if m.Snapshot().Loudness == nil {
		t.Fatal("expected a loudness snapshot before disabling")
	}
	m.SetEnabled(dsp.KindLoudness, false)
	if m.Snapshot().Loudness != nil {
		t.Fatal("expected a nil loudness snapshot after disabling")
	}
}

func TestInvalidBlockIsIgnored(t *testing.T) {
	m := New()
	m.SetFormat(Format{Channels: 2, SampleRate: 48000})
	m.SetEnabled(dsp.KindLoudness, true)
	// odd length, not a multiple of 2 channels
	m.IngestSamples([]float32{0.1, 0.2, 0.3})
	if m.Snapshot().Loudness != nil {
		t.Fatal("expected no snapshot from a malformed block")
	}
}
