// ABOUTME: Looping WAV file source
// ABOUTME: Reads integer PCM through go-audio/wav into float frames
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource reads from a PCM WAV file, looping at the end
type WAVSource struct {
	file       *os.File
	decoder    *wav.Decoder
	sampleRate int
	channels   int
	scale      float32
	title      string
	buf        *goaudio.IntBuffer
}

// NewWAV opens a WAV file
func NewWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		_ = f.Close()
		return nil, errors.New("invalid WAV file")
	}
	if decoder.BitDepth == 0 || decoder.NumChans == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("unsupported WAV format: %d-bit %d channels", decoder.BitDepth, decoder.NumChans)
	}

	return &WAVSource{
		file:       f,
		decoder:    decoder,
		sampleRate: int(decoder.SampleRate),
		channels:   int(decoder.NumChans),
		scale:      1 / float32(int64(1)<<(decoder.BitDepth-1)),
		title:      titleFromPath(path),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{SampleRate: int(decoder.SampleRate), NumChannels: int(decoder.NumChans)},
		},
	}, nil
}

func (s *WAVSource) Read(frames []audio.Frame) (int, error) {
	need := len(frames) * s.channels
	if cap(s.buf.Data) < need {
		s.buf.Data = make([]int, need)
	}
	s.buf.Data = s.buf.Data[:need]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}

	got := n / s.channels
	for i := 0; i < got; i++ {
		l := s.buf.Data[i*s.channels]
		r := l
		if s.channels > 1 {
			r = s.buf.Data[i*s.channels+1]
		}
		frames[i] = audio.Frame{L: float32(l) * s.scale, R: float32(r) * s.scale}
	}

	if got < len(frames) {
		return got, s.rewind()
	}
	return got, nil
}

func (s *WAVSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	decoder := wav.NewDecoder(s.file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return errors.New("failed to rewind WAV: invalid file")
	}
	s.decoder = decoder
	return nil
}

func (s *WAVSource) SampleRate() int { return s.sampleRate }
func (s *WAVSource) Name() string    { return s.title }
func (s *WAVSource) Close() error    { return s.file.Close() }
