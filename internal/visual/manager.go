// Package visual implements the fan-out that routes captured samples to
// every enabled DSP processor and aggregates their snapshots for the
// renderer. Grounded on the teacher's App facade pattern (client/app.go):
// a thin owner struct that holds subsystem instances and delegates to
// them, rather than a reflection-driven plugin registry.
package visual

import (
	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/loudness"
	"github.com/httpsworldview/openmeters/internal/dsp/oscilloscope"
	"github.com/httpsworldview/openmeters/internal/dsp/spectrogram"
	"github.com/httpsworldview/openmeters/internal/dsp/spectrum"
	"github.com/httpsworldview/openmeters/internal/dsp/stereometer"
	"github.com/httpsworldview/openmeters/internal/dsp/waveform"
)

// Format describes the current capture format, used to wrap raw sample
// slices into an AudioBlock before dispatch.
type Format struct {
	Channels   int
	SampleRate int
}

// Snapshot aggregates each enabled processor's most recently published
// value, keyed by kind. A nil entry means that kind is disabled or has not
// yet produced a snapshot.
type Snapshot struct {
	Loudness    *loudness.Snapshot
	Spectrum    *spectrum.Snapshot
	Spectrogram *spectrogram.Update
	Waveform    *waveform.Snapshot
	Stereometer *stereometer.Snapshot
	Oscilloscope *oscilloscope.Snapshot
}

// Manager owns one processor instance per enabled dsp.Kind and fans
// incoming samples out to all of them.
type Manager struct {
	format Format

	enabled map[dsp.Kind]bool

	loudnessProc    *loudness.Processor
	spectrumProc    *spectrum.Processor
	spectrogramProc *spectrogram.Processor
	waveformProc    *waveform.Processor
	stereometerProc *stereometer.Processor
	oscilloscopeProc *oscilloscope.Processor

	latest Snapshot
}

// New returns a Manager with every kind disabled; call SetEnabled to
// activate the kinds the UI wants.
func New() *Manager {
	return &Manager{
		enabled:         map[dsp.Kind]bool{},
		loudnessProc:    loudness.New(loudness.Config{}),
		spectrumProc:    spectrum.New(spectrum.Config{}),
		spectrogramProc: spectrogram.New(spectrogram.Config{}),
		waveformProc:    waveform.New(waveform.Config{}),
		stereometerProc: stereometer.New(stereometer.Config{}),
		oscilloscopeProc: oscilloscope.New(oscilloscope.Config{}),
	}
}

// SetEnabled turns one kind's processing on or off. Disabling a kind
// resets its processor and clears its last published snapshot.
func (m *Manager) SetEnabled(kind dsp.Kind, enabled bool) {
	m.enabled[kind] = enabled
	if enabled {
		return
	}
	switch kind {
	case dsp.KindLoudness:
		m.loudnessProc.Reset()
		m.latest.Loudness = nil
	case dsp.KindSpectrum:
		m.spectrumProc.Reset()
		m.latest.Spectrum = nil
	case dsp.KindSpectrogram:
		m.spectrogramProc.Reset()
		m.latest.Spectrogram = nil
	case dsp.KindWaveform:
		m.waveformProc.Reset()
		m.latest.Waveform = nil
	case dsp.KindStereometer:
		m.stereometerProc.Reset()
		m.latest.Stereometer = nil
	case dsp.KindOscilloscope:
		m.oscilloscopeProc.Reset()
		m.latest.Oscilloscope = nil
	}
}

// SetFormat updates the capture format used to wrap future IngestSamples
// calls into an AudioBlock.
func (m *Manager) SetFormat(format Format) {
	m.format = format
}

// Enabled reports whether kind is currently active.
func (m *Manager) Enabled(kind dsp.Kind) bool {
	return m.enabled[kind]
}

// IngestSamples wraps raw interleaved samples in the current Format and
// dispatches them to every enabled processor, open-coded per kind rather
// than through a reflection-based registry (spec.md §9 "prefer open-coded
// dispatch over virtual calls in the hot path").
func (m *Manager) IngestSamples(samples []float32) {
	block := &dsp.AudioBlock{Samples: samples, Channels: m.format.Channels, SampleRate: m.format.SampleRate}
	if !block.Valid() {
		return
	}

	if m.enabled[dsp.KindLoudness] {
		if snap, ok := m.loudnessProc.ProcessBlock(block); ok {
			s := snap.(loudness.Snapshot)
			m.latest.Loudness = &s
		}
	}
	if m.enabled[dsp.KindSpectrum] {
		if snap, ok := m.spectrumProc.ProcessBlock(block); ok {
			s := snap.(spectrum.Snapshot)
			m.latest.Spectrum = &s
		}
	}
	if m.enabled[dsp.KindSpectrogram] {
		if snap, ok := m.spectrogramProc.ProcessBlock(block); ok {
			s := snap.(spectrogram.Update)
			m.latest.Spectrogram = &s
		}
	}
	if m.enabled[dsp.KindWaveform] {
		if snap, ok := m.waveformProc.ProcessBlock(block); ok {
			s := snap.(waveform.Snapshot)
			m.latest.Waveform = &s
		}
	}
	if m.enabled[dsp.KindStereometer] {
		if snap, ok := m.stereometerProc.ProcessBlock(block); ok {
			s := snap.(stereometer.Snapshot)
			m.latest.Stereometer = &s
		}
	}
	if m.enabled[dsp.KindOscilloscope] {
		if snap, ok := m.oscilloscopeProc.ProcessBlock(block); ok {
			s := snap.(oscilloscope.Snapshot)
			m.latest.Oscilloscope = &s
		}
	}
}

// Snapshot returns the most recently aggregated Snapshot.
func (m *Manager) Snapshot() Snapshot {
	return m.latest
}

// ApplyModuleSettings forwards a settings value to the processor for kind,
// which rebuilds or updates in place per its own UpdateConfig semantics.
func (m *Manager) ApplyModuleSettings(kind dsp.Kind, settings any) {
	var target dsp.Configurable
	switch kind {
	case dsp.KindLoudness:
		target = m.loudnessProc
	case dsp.KindSpectrum:
		target = m.spectrumProc
	case dsp.KindSpectrogram:
		target = m.spectrogramProc
	case dsp.KindWaveform:
		target = m.waveformProc
	case dsp.KindStereometer:
		target = m.stereometerProc
	case dsp.KindOscilloscope:
		target = m.oscilloscopeProc
	default:
		return
	}
	target.UpdateConfig(settings)
}
