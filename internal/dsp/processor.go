// Package dsp defines the contract every analyzer in the DSP processor
// family implements, plus the small set of types shared across them. It
// pulls in no processor-specific logic; each of loudness, spectrum,
// spectrogram, waveform, stereometer, and oscilloscope lives in its own
// sibling package and depends back on this one.
package dsp

import "github.com/httpsworldview/openmeters/internal/audioblock"

// AudioBlock is the unit of work a processor consumes. It is an alias for
// audioblock.Block so every package in the pipeline shares one definition.
type AudioBlock = audioblock.Block

// Kind identifies one of the six fixed DSP analyzer families. The set is
// closed: the visual manager switches on Kind rather than discovering
// processors through a registry.
type Kind int

const (
	KindLoudness Kind = iota
	KindSpectrum
	KindSpectrogram
	KindWaveform
	KindStereometer
	KindOscilloscope
)

// String returns the kind's lowercase name, used in log fields and
// settings keys.
func (k Kind) String() string {
	switch k {
	case KindLoudness:
		return "loudness"
	case KindSpectrum:
		return "spectrum"
	case KindSpectrogram:
		return "spectrogram"
	case KindWaveform:
		return "waveform"
	case KindStereometer:
		return "stereometer"
	case KindOscilloscope:
		return "oscilloscope"
	default:
		return "unknown"
	}
}

// Processor is implemented by every DSP analyzer. ProcessBlock is called
// once per incoming block; it returns ok=false when the block produced no
// new snapshot (e.g. a spectrum processor between hops). A processor must
// tolerate channels/sample_rate changing between calls and reconfigure
// itself rather than panic or return stale data.
type Processor interface {
	ProcessBlock(block *AudioBlock) (snapshot any, ok bool)
	Reset()
}

// Configurable is implemented by processors whose settings can change at
// runtime without a full reset. UpdateConfig receives the new settings
// value (concrete type is processor-specific); implementations distinguish
// a structural change (rebuild interior state) from a smoothing-parameter
// change (update in place).
type Configurable interface {
	UpdateConfig(cfg any)
}
