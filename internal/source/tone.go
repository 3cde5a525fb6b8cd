// ABOUTME: Test tone generator
// ABOUTME: Generates a sine wave at half amplitude on both channels
package source

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
)

// DefaultToneFrequency is A4
const DefaultToneFrequency = 440.0

// ToneSource generates a continuous sine tone
type ToneSource struct {
	frequency  float64
	sampleRate int
	index      uint64
}

// NewTone creates a tone generator
func NewTone(frequency float64, sampleRate int) *ToneSource {
	return &ToneSource{
		frequency:  frequency,
		sampleRate: sampleRate,
	}
}

func (s *ToneSource) Read(frames []audio.Frame) (int, error) {
	for i := range frames {
		t := float64(s.index+uint64(i)) / float64(s.sampleRate)
		v := float32(0.5 * math.Sin(2*math.Pi*s.frequency*t))
		frames[i] = audio.Frame{L: v, R: v}
	}
	s.index += uint64(len(frames))
	return len(frames), nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }
func (s *ToneSource) Name() string    { return fmt.Sprintf("Test Tone %gHz", s.frequency) }
func (s *ToneSource) Close() error    { return nil }
