// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Frame, Format and fixed-point/float conversions
// Package audio provides the fundamental types shared by the tap and its outputs.
//
// This package defines:
//   - Frame: one stereo sample pair, laid out exactly like the sink wire format
//   - Format: sample rate and channel count fixed at sink open time
//
// Frames are kept as structs in memory and only flattened to interleaved
// float32 at the output boundary, which is a zero-copy reinterpretation:
//
//	frames := []audio.Frame{{L: 0.5, R: -0.5}}
//	samples := audio.Samples(frames) // []float32{0.5, -0.5}
//
// Fixed-point conversion is provided for 16-bit outputs and decoders:
//
//	pcm := audio.SampleToInt16(samples[0])
package audio
