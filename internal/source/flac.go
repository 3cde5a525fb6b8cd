// ABOUTME: Looping FLAC file source
// ABOUTME: Scales integer samples of any bit depth to float frames
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLACSource reads from a FLAC file, looping at the end
type FLACSource struct {
	file       *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	scale      float32
	title      string

	cur *frame.Frame
	pos int
}

// NewFLAC opens a FLAC file
func NewFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACSource{
		file:       f,
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		scale:      1 / float32(int64(1)<<(info.BitsPerSample-1)),
		title:      titleFromPath(path),
	}, nil
}

func (s *FLACSource) Read(frames []audio.Frame) (int, error) {
	n := 0
	rewound := false

	for n < len(frames) {
		if s.cur == nil || s.pos >= int(s.cur.BlockSize) {
			f, err := s.stream.ParseNext()
			if errors.Is(err, io.EOF) {
				if rewound {
					// Nothing decodable between two rewinds
					return n, io.EOF
				}
				if err := s.rewind(); err != nil {
					return n, err
				}
				rewound = true
				continue
			}
			if err != nil {
				return n, fmt.Errorf("flac decode error: %w", err)
			}
			s.cur = f
			s.pos = 0
			rewound = false
		}

		left := s.cur.Subframes[0].Samples
		right := left
		if s.channels > 1 {
			right = s.cur.Subframes[1].Samples
		}

		for ; s.pos < int(s.cur.BlockSize) && n < len(frames); s.pos++ {
			frames[n] = audio.Frame{
				L: float32(left[s.pos]) * s.scale,
				R: float32(right[s.pos]) * s.scale,
			}
			n++
		}
	}

	return n, nil
}

func (s *FLACSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new stream: %w", err)
	}
	s.stream = stream
	s.cur = nil
	s.pos = 0
	return nil
}

func (s *FLACSource) SampleRate() int { return s.sampleRate }
func (s *FLACSource) Name() string    { return s.title }
func (s *FLACSource) Close() error    { return s.file.Close() }
