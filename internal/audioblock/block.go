// Package audioblock defines the interleaved-frame block format shared by
// every stage downstream of the capture ring, plus the small set of
// utilities (mixdown, channel projection, windowed copy) the DSP processors
// use to turn a raw block into the layout they need.
package audioblock

import "time"

// Block is a contiguous run of frames: channels interleaved 32-bit float
// samples, plus the metadata needed to interpret them.
type Block struct {
	Samples    []float32
	Channels   int
	SampleRate int
	Timestamp  time.Time
}

// FrameCount returns the number of frames in the block. Channels is treated
// as at least 1 to avoid division by zero.
func (b Block) FrameCount() int {
	ch := b.Channels
	if ch < 1 {
		ch = 1
	}
	return len(b.Samples) / ch
}

// Valid reports whether the block is well formed: non-zero channels and a
// sample count that is an exact multiple of the channel count. Malformed
// residues are discarded at ingest per spec.
func (b Block) Valid() bool {
	return b.Channels > 0 && len(b.Samples)%b.Channels == 0
}

// Mixdown returns a mono mixdown of the block: the arithmetic mean of all
// channels for each frame. dst is reused if it has enough capacity.
func Mixdown(samples []float32, channels int, dst []float32) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	dst = growFloat32(dst, frames)
	inv := float32(1) / float32(channels)
	for f := 0; f < frames; f++ {
		var sum float32
		base := f * channels
		for c := 0; c < channels; c++ {
			sum += samples[base+c]
		}
		dst[f] = sum * inv
	}
	return dst
}

// Channel extracts a single channel's samples from an interleaved block.
// Out-of-range channel indices are clamped to [0, channels-1].
func Channel(samples []float32, channels, channel int, dst []float32) []float32 {
	if channels < 1 {
		channels = 1
	}
	if channel < 0 {
		channel = 0
	}
	if channel >= channels {
		channel = channels - 1
	}
	frames := len(samples) / channels
	dst = growFloat32(dst, frames)
	for f := 0; f < frames; f++ {
		dst[f] = samples[f*channels+channel]
	}
	return dst
}

// WindowedCopy copies the last n samples of src into dst (allocating dst
// fresh at length n), left-padding with zeros when src is shorter than n.
func WindowedCopy(src []float32, n int) []float32 {
	dst := make([]float32, n)
	if len(src) >= n {
		copy(dst, src[len(src)-n:])
		return dst
	}
	copy(dst[n-len(src):], src)
	return dst
}

// Zero zeroes every element of buf in place.
func Zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// Clamp clamps v to [-1.0, 1.0].
func Clamp(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

func growFloat32(dst []float32, n int) []float32 {
	if cap(dst) < n {
		return make([]float32, n)
	}
	return dst[:n]
}
