// ABOUTME: Audio type definitions
// ABOUTME: Defines stereo frames, stream format and sample conversions
package audio

import (
	"math"
	"unsafe"
)

const (
	// Channels is the channel count of every tapped stream (L, R)
	Channels = 2

	// BytesPerFrame is the wire size of one Frame (two float32)
	BytesPerFrame = 8

	// DefaultSampleRate matches the host mix rate when none is configured
	DefaultSampleRate = 48000
)

// Frame is one stereo sample pair. Its layout is two contiguous float32
// values with no padding, identical to the interleaved sink wire format.
type Frame struct {
	L float32
	R float32
}

// Format describes the stream handed to an output.
// Samples are always float32 little-endian, interleaved L/R.
type Format struct {
	SampleRate int
	Channels   int
}

// Stereo returns the fixed stereo format at the given rate
func Stereo(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: Channels}
}

// BytesPerSecond returns the byte rate of the float32 wire format
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 4
}

// Samples reinterprets frames as interleaved float32 samples without copying.
// The returned slice aliases frames.
func Samples(frames []Frame) []float32 {
	if len(frames) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&frames[0])), len(frames)*Channels)
}

// Bytes reinterprets frames as their little-endian wire bytes without copying.
// Only valid on little-endian hosts, which covers every supported platform.
func Bytes(frames []Frame) []byte {
	if len(frames) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&frames[0])), len(frames)*BytesPerFrame)
}

// SamplesAsBytes reinterprets interleaved float32 samples as wire bytes
func SamplesAsBytes(samples []float32) []byte {
	if len(samples) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*4)
}

// Silence zeroes frames
func Silence(frames []Frame) {
	clear(frames)
}

// Peak returns the absolute peak of each channel
func Peak(frames []Frame) (left, right float32) {
	for _, f := range frames {
		if a := float32(math.Abs(float64(f.L))); a > left {
			left = a
		}
		if a := float32(math.Abs(float64(f.R))); a > right {
			right = a
		}
	}
	return left, right
}

// SampleToInt16 converts a float sample in [-1, 1] to 16-bit PCM with clipping
func SampleToInt16(sample float32) int16 {
	if sample >= 1 {
		return math.MaxInt16
	}
	if sample <= -1 {
		return math.MinInt16
	}
	return int16(sample * math.MaxInt16)
}

// SampleFromInt16 converts a 16-bit PCM sample to float in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}
