// ABOUTME: WAV file output
// ABOUTME: Records the tapped stream as 16-bit PCM using go-audio/wav
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultWAVPath is used when the target is empty
const DefaultWAVPath = "bustap.wav"

const wavBitDepth = 16

func init() {
	Register("wav", OpenWAV)
}

// WAV output writing a file per open
type WAV struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
	mu      sync.Mutex
	closed  bool
}

// OpenWAV creates (or truncates) the file named by target
func OpenWAV(target string, format audio.Format) (Output, error) {
	if err := checkFormat("wav", target, format); err != nil {
		return nil, err
	}

	path := target
	if path == "" {
		path = DefaultWAVPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &OpenError{Backend: "wav", Target: target, Code: CodeNoDevice,
			Err: fmt.Errorf("failed to create directories: %w", err)}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, &OpenError{Backend: "wav", Target: target, Code: CodeNoDevice,
			Err: fmt.Errorf("failed to create file: %w", err)}
	}

	return &WAV{
		file:    f,
		encoder: wav.NewEncoder(f, format.SampleRate, wavBitDepth, format.Channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

// Write converts samples to 16-bit PCM and appends them
func (w *WAV) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(audio.SampleToInt16(s))
	}

	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("wav: write failed: %w", err)
	}
	return nil
}

// Drain flushes the file to disk
func (w *WAV) Drain() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	return w.file.Sync()
}

// Close finalizes the WAV header and closes the file
func (w *WAV) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.encoder.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("wav: failed to finalize: %w", err)
	}
	return w.file.Close()
}
