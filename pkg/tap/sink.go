// ABOUTME: Stream sink owning at most one live output connection
// ABOUTME: Logs connect and open failures; close is best-effort and idempotent
package tap

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/Resonate-Protocol/bustap/pkg/audio/output"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSinkClosed is returned when writing to a sink with no connection
	ErrSinkClosed = errors.New("sink is closed")

	// ErrSinkOpen is returned when opening a sink that is already open
	ErrSinkOpen = errors.New("sink is already open")
)

// Sink wraps an output connection for one target at a fixed format.
// It is not safe for concurrent use; custody passes between the
// supervisor and the drain worker instead.
type Sink struct {
	backend string
	open    output.Opener
	format  audio.Format
	log     logrus.FieldLogger

	conn   output.Output
	target string
}

// NewSink creates a closed sink
func NewSink(backend string, open output.Opener, format audio.Format, log logrus.FieldLogger) *Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sink{
		backend: backend,
		open:    open,
		format:  format,
		log:     log,
	}
}

// Open makes one attempt to connect to target ("" is the system default).
// On failure the sink stays closed and the caller decides when to retry.
func (s *Sink) Open(target string) error {
	if s.conn != nil {
		return ErrSinkOpen
	}

	fields := logrus.Fields{
		"backend": s.backend,
		"target":  displayTarget(target),
	}

	conn, err := s.open(target, s.format)
	if err != nil {
		code := output.ErrorCode(err)
		s.log.WithFields(fields).
			WithField("code", int(code)).
			WithField("reason", code.String()).
			WithError(err).
			Warn("Failed to open audio sink")
		return fmt.Errorf("open sink %s: %w", displayTarget(target), err)
	}

	s.conn = conn
	s.target = target
	s.log.WithFields(fields).
		WithField("sample_rate", s.format.SampleRate).
		Info("Connected to audio sink")
	return nil
}

// Write blocks until the output has accepted all samples
func (s *Sink) Write(samples []float32) error {
	if s.conn == nil {
		return ErrSinkClosed
	}
	return s.conn.Write(samples)
}

// Drain waits for written audio to be consumed. Failures are only logged.
func (s *Sink) Drain() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Drain(); err != nil {
		s.log.WithField("target", displayTarget(s.target)).
			WithError(err).
			Warn("Audio sink drain failed")
	}
}

// Close drains and releases the connection. Closing a closed sink is a no-op.
func (s *Sink) Close() {
	if s.conn == nil {
		return
	}
	s.Drain()
	if err := s.conn.Close(); err != nil {
		s.log.WithField("target", displayTarget(s.target)).
			WithError(err).
			Warn("Audio sink close failed")
	}
	s.log.WithField("target", displayTarget(s.target)).Debug("Audio sink closed")
	s.conn = nil
	s.target = ""
}

// IsOpen reports whether a connection is held
func (s *Sink) IsOpen() bool {
	return s.conn != nil
}

// Target returns the identifier of the open connection
func (s *Sink) Target() string {
	return s.target
}

func displayTarget(target string) string {
	if target == "" {
		return "default"
	}
	return target
}
