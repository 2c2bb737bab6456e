package openmeters

import (
	"github.com/httpsworldview/openmeters/internal/dsp/dsputil"
	"github.com/httpsworldview/openmeters/internal/dsp/oscilloscope"
	"github.com/httpsworldview/openmeters/internal/dsp/spectrogram"
	"github.com/httpsworldview/openmeters/internal/dsp/spectrum"
)

// windowFromString maps a config.SpectrumConfig/SpectrogramConfig.Window
// string onto dsputil.WindowKind. An unrecognized or empty name falls back
// to Hann, the teacher-agnostic DSP default for STFT-based analysis.
func windowFromString(name string) dsputil.WindowKind {
	switch name {
	case "rectangular":
		return dsputil.Rectangular
	case "hann":
		return dsputil.Hann
	case "hamming":
		return dsputil.Hamming
	case "blackman":
		return dsputil.Blackman
	case "blackman_harris":
		return dsputil.BlackmanHarris
	case "planck_bessel":
		return dsputil.PlanckBessel
	default:
		return dsputil.Hann
	}
}

// frequencyScaleFromString maps a config string onto spectrum.FrequencyScale.
// spectrogram.FrequencyScale shares the same underlying values (see
// spectrogram.go's comment on duplicating the type rather than importing
// spectrum), so one function serves both config fields.
func frequencyScaleFromString(name string) spectrum.FrequencyScale {
	switch name {
	case "linear":
		return spectrum.ScaleLinear
	case "mel":
		return spectrum.ScaleMel
	default:
		return spectrum.ScaleLogarithmic
	}
}

// spectrogramFrequencyScaleFromString mirrors frequencyScaleFromString for
// spectrogram.FrequencyScale, a distinct named type with identical values
// (spectrogram.go duplicates rather than imports spectrum's type).
func spectrogramFrequencyScaleFromString(name string) spectrogram.FrequencyScale {
	return spectrogram.FrequencyScale(frequencyScaleFromString(name))
}

func averagingFromString(name string) spectrum.Averaging {
	switch name {
	case "none":
		return spectrum.AveragingNone
	case "peak_hold":
		return spectrum.AveragingPeakHold
	default:
		return spectrum.AveragingExponential
	}
}

func edgeFromString(name string) oscilloscope.Edge {
	if name == "falling" {
		return oscilloscope.EdgeFalling
	}
	return oscilloscope.EdgeRising
}
