//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Registers a backend that explains how to enable PortAudio
package output

import (
	"errors"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
)

func init() {
	Register("portaudio", OpenPortAudio)
}

// OpenPortAudio always fails without the portaudio build tag
func OpenPortAudio(target string, _ audio.Format) (Output, error) {
	return nil, &OpenError{Backend: "portaudio", Target: target, Code: CodeUnsupported,
		Err: errors.New("PortAudio support not enabled (build with -tags portaudio)")}
}
