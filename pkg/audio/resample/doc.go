// ABOUTME: Stereo frame resampling using linear interpolation
// ABOUTME: Feeds file sources into a tap running at a different rate
// Package resample converts stereo frame streams between sample rates.
//
// The resampler carries the last input frame across calls, so a stream can
// be fed in chunks of any size without discontinuities at chunk edges.
//
// Example:
//
//	r := resample.New(44100, 48000)
//	out := make([]audio.Frame, r.MaxOutput(len(in)))
//	n := r.Resample(in, out)
package resample
