// ABOUTME: Linear interpolating resampler for stereo frames
// ABOUTME: Streaming: state carries over between Resample calls
package resample

import (
	"math"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64 // input frames per output frame
	position   float64 // next output position, relative to last
	last       audio.Frame
	primed     bool // last holds the previous chunk's final frame
}

// New creates a resampler from inputRate to outputRate
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts input frames and writes the result to output, returning
// the number of frames produced. output must hold MaxOutput(len(input)).
func (r *Resampler) Resample(input, output []audio.Frame) int {
	if len(input) == 0 {
		return 0
	}

	// Index 0 is the carried frame when primed
	offset := 0
	if r.primed {
		offset = 1
	}
	span := len(input) + offset

	at := func(i int) audio.Frame {
		if i < offset {
			return r.last
		}
		return input[i-offset]
	}

	outIdx := 0
	for outIdx < len(output) {
		idx := int(r.position)
		if idx+1 >= span {
			break
		}

		frac := float32(r.position - float64(idx))
		a, b := at(idx), at(idx+1)
		output[outIdx] = audio.Frame{
			L: a.L + (b.L-a.L)*frac,
			R: a.R + (b.R-a.R)*frac,
		}

		outIdx++
		r.position += r.ratio
	}

	// Rebase so the final input frame becomes index 0 of the next call
	r.position -= float64(span - 1)
	if r.position < 0 {
		r.position = 0
	}
	r.last = input[len(input)-1]
	r.primed = true

	return outIdx
}

// Reset forgets the carried frame and position
func (r *Resampler) Reset() {
	r.position = 0
	r.last = audio.Frame{}
	r.primed = false
}

// MaxOutput is an upper bound on frames produced from inputFrames
func (r *Resampler) MaxOutput(inputFrames int) int {
	return int(math.Ceil(float64(inputFrames+1)/r.ratio)) + 1
}

// InputFrames estimates the input needed to produce outputFrames
func (r *Resampler) InputFrames(outputFrames int) int {
	n := (outputFrames*r.inputRate + r.outputRate - 1) / r.outputRate
	if n < 1 {
		n = 1
	}
	return n
}

// InputRate returns the source sample rate
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the target sample rate
func (r *Resampler) OutputRate() int { return r.outputRate }
