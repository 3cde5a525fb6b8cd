//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform blocking-stream output using PortAudio
package output

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

const portaudioFramesPerBuffer = 512

func init() {
	Register("portaudio", OpenPortAudio)
}

// PortAudio output implementation
type PortAudio struct {
	stream *portaudio.Stream
	buffer []float32
	filled int
	once   sync.Once
}

// OpenPortAudio opens a blocking PortAudio stream on the named device
func OpenPortAudio(target string, format audio.Format) (Output, error) {
	if err := checkFormat("portaudio", target, format); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, &OpenError{Backend: "portaudio", Target: target, Code: CodeUnavailable,
			Err: fmt.Errorf("failed to initialize portaudio: %w", err)}
	}

	device, err := portaudioDevice(target)
	if err != nil {
		portaudio.Terminate()
		return nil, &OpenError{Backend: "portaudio", Target: target, Code: CodeNoDevice, Err: err}
	}

	params := portaudio.HighLatencyParameters(nil, device)
	params.Output.Channels = format.Channels
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = portaudioFramesPerBuffer

	p := &PortAudio{buffer: make([]float32, portaudioFramesPerBuffer*format.Channels)}

	stream, err := portaudio.OpenStream(params, &p.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, &OpenError{Backend: "portaudio", Target: target, Code: CodeUnavailable,
			Err: fmt.Errorf("failed to open stream: %w", err)}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, &OpenError{Backend: "portaudio", Target: target, Code: CodeUnavailable,
			Err: fmt.Errorf("failed to start stream: %w", err)}
	}

	p.stream = stream
	return p, nil
}

func portaudioDevice(target string) (*portaudio.DeviceInfo, error) {
	if target == "" {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.MaxOutputChannels >= audio.Channels && strings.Contains(d.Name, target) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no output device matches %q", target)
}

// Write fills the stream buffer and blocks on each full period
func (p *PortAudio) Write(samples []float32) error {
	if p.stream == nil {
		return ErrClosed
	}
	for len(samples) > 0 {
		n := copy(p.buffer[p.filled:], samples)
		p.filled += n
		samples = samples[n:]
		if p.filled == len(p.buffer) {
			if err := p.stream.Write(); err != nil {
				return fmt.Errorf("portaudio: stream write failed: %w", err)
			}
			p.filled = 0
		}
	}
	return nil
}

// Drain pads the pending period with silence and writes it
func (p *PortAudio) Drain() error {
	if p.stream == nil || p.filled == 0 {
		return nil
	}
	clear(p.buffer[p.filled:])
	p.filled = 0
	return p.stream.Write()
}

// Close releases resources
func (p *PortAudio) Close() error {
	var errs []error
	p.once.Do(func() {
		if p.stream != nil {
			errs = append(errs, p.stream.Stop(), p.stream.Close())
			p.stream = nil
		}
		errs = append(errs, portaudio.Terminate())
	})
	return errors.Join(errs...)
}
