// ABOUTME: Looping MP3 file source
// ABOUTME: Decodes 16-bit stereo PCM from go-mp3 into float frames
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// mp3 decoder output is always 16-bit stereo
const mp3BytesPerFrame = 4

// MP3Source reads from an MP3 file, looping at the end
type MP3Source struct {
	file       *os.File
	decoder    *mp3.Decoder
	sampleRate int
	title      string
	buf        []byte
}

// NewMP3 opens an MP3 file
func NewMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &MP3Source{
		file:       f,
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
		title:      titleFromPath(path),
	}, nil
}

func (s *MP3Source) Read(frames []audio.Frame) (int, error) {
	need := len(frames) * mp3BytesPerFrame
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.decoder, buf)
	got := n / mp3BytesPerFrame
	for i := 0; i < got; i++ {
		l := int16(binary.LittleEndian.Uint16(buf[i*4:]))
		r := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
		frames[i] = audio.Frame{L: audio.SampleFromInt16(l), R: audio.SampleFromInt16(r)}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return got, s.rewind()
	}
	if err != nil {
		return got, fmt.Errorf("mp3 decode error: %w", err)
	}
	return got, nil
}

func (s *MP3Source) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	decoder, err := mp3.NewDecoder(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new decoder: %w", err)
	}
	s.decoder = decoder
	return nil
}

func (s *MP3Source) SampleRate() int { return s.sampleRate }
func (s *MP3Source) Name() string    { return s.title }
func (s *MP3Source) Close() error    { return s.file.Close() }
