// ABOUTME: Audio sources that stand in for a host's real-time callback input
// ABOUTME: Test tone and looping MP3, FLAC and WAV files, resampled to the tap rate
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/Resonate-Protocol/bustap/pkg/audio/resample"
	"github.com/sirupsen/logrus"
)

// Tone selects the built-in test tone
const Tone = "tone"

// Source provides stereo frames
type Source interface {
	// Read fills frames and returns how many were written
	Read(frames []audio.Frame) (int, error)
	// SampleRate returns the sample rate of the frames
	SampleRate() int
	// Name describes the source for display
	Name() string
	// Close releases the source
	Close() error
}

// Open creates a source from "tone" (or "") or a file path, resampled to
// sampleRate when the file differs
func Open(name string, sampleRate int, log logrus.FieldLogger) (Source, error) {
	if name == "" || name == Tone {
		return NewTone(DefaultToneFrequency, sampleRate), nil
	}

	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	var src Source
	var err error

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".mp3":
		src, err = NewMP3(name)
	case ".flac":
		src, err = NewFLAC(name)
	case ".wav":
		src, err = NewWAV(name)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac, .wav)", ext)
	}
	if err != nil {
		return nil, err
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"source":      src.Name(),
			"sample_rate": src.SampleRate(),
		}).Info("Loaded audio file")
	}

	if src.SampleRate() != sampleRate {
		return NewResampled(src, sampleRate), nil
	}
	return src, nil
}

func titleFromPath(path string) string {
	filename := filepath.Base(path)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// Resampled converts a source to another sample rate
type Resampled struct {
	source    Source
	resampler *resample.Resampler
	in        []audio.Frame
	out       []audio.Frame
	pending   []audio.Frame
}

// NewResampled wraps source so it reads at targetRate
func NewResampled(source Source, targetRate int) *Resampled {
	return &Resampled{
		source:    source,
		resampler: resample.New(source.SampleRate(), targetRate),
	}
}

func (r *Resampled) Read(frames []audio.Frame) (int, error) {
	for len(r.pending) < len(frames) {
		need := r.resampler.InputFrames(len(frames) - len(r.pending))
		if cap(r.in) < need {
			r.in = make([]audio.Frame, need)
			r.out = make([]audio.Frame, r.resampler.MaxOutput(need))
		}

		n, err := r.source.Read(r.in[:need])
		if n > 0 {
			produced := r.resampler.Resample(r.in[:n], r.out)
			r.pending = append(r.pending, r.out[:produced]...)
		}
		if err != nil {
			if len(r.pending) == 0 {
				return 0, err
			}
			break
		}
		if n == 0 {
			break
		}
	}

	n := copy(frames, r.pending)
	r.pending = r.pending[:copy(r.pending, r.pending[n:])]
	return n, nil
}

func (r *Resampled) SampleRate() int { return r.resampler.OutputRate() }
func (r *Resampled) Name() string    { return r.source.Name() }
func (r *Resampled) Close() error    { return r.source.Close() }
