// ABOUTME: Audio output interface definition and backend registry
// ABOUTME: Common connection interface for blocking playback backends
package output

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
)

// Output is one live connection to a playback device or server
type Output interface {
	// Write transfers interleaved float32 samples, blocking until accepted
	Write(samples []float32) error

	// Drain blocks until previously written samples have been consumed
	Drain() error

	// Close releases the connection
	Close() error
}

// Opener establishes a connection to target, or the system default when
// target is empty. It makes exactly one attempt.
type Opener func(target string, format audio.Format) (Output, error)

// Code classifies open failures
type Code int

const (
	CodeUnknown Code = iota
	CodeUnavailable
	CodeNoDevice
	CodeConnection
	CodeUnsupported
)

func (c Code) String() string {
	switch c {
	case CodeUnavailable:
		return "unavailable"
	case CodeNoDevice:
		return "no_device"
	case CodeConnection:
		return "connection"
	case CodeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// OpenError reports a failed open attempt
type OpenError struct {
	Backend string
	Target  string
	Code    Code
	Err     error
}

func (e *OpenError) Error() string {
	target := e.Target
	if target == "" {
		target = "default"
	}
	return fmt.Sprintf("%s: open %q failed (%s): %v", e.Backend, target, e.Code, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the code of an *OpenError anywhere in err's chain
func ErrorCode(err error) Code {
	var oe *OpenError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return CodeUnknown
}

var (
	// ErrUnknownBackend is returned by Lookup for unregistered names
	ErrUnknownBackend = errors.New("unknown output backend")

	// ErrClosed is returned when writing to a closed output
	ErrClosed = errors.New("output closed")
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register makes a backend available by name, replacing any previous one
func Register(name string, open Opener) {
	if open == nil {
		panic("output: Register opener is nil")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = open
}

// Lookup returns the opener registered under name
func Lookup(name string) (Opener, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	open, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return open, nil
}

// Backends returns the sorted names of registered backends
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkFormat(backend, target string, format audio.Format) error {
	if format.SampleRate <= 0 || format.Channels != audio.Channels {
		return &OpenError{
			Backend: backend,
			Target:  target,
			Code:    CodeUnsupported,
			Err:     fmt.Errorf("unsupported format %dHz/%dch", format.SampleRate, format.Channels),
		}
	}
	return nil
}
