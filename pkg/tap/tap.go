// ABOUTME: Tap instance combining settings, ring buffer, supervisor and worker
// ABOUTME: Process is called from the real-time audio callback
package tap

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/Resonate-Protocol/bustap/pkg/audio/output"
	"github.com/Resonate-Protocol/bustap/pkg/audio/ring"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBackend is the output backend used when none is configured
const DefaultBackend = "pulse"

// Config holds tap configuration
type Config struct {
	// Backend is the registered output backend name (default "pulse")
	Backend string

	// Opener overrides the registry lookup for Backend
	Opener output.Opener

	// Resolver resolves mdns: targets for the websocket backend
	Resolver output.Resolver

	// SampleRate of the tapped stream (default 48000)
	SampleRate int

	// RingCapacity in frames, a power of two (default 4096)
	RingCapacity int

	// BlockFrames is the worker scratch size (default: ring capacity)
	BlockFrames int

	// PollInterval is the worker wait when the ring is empty (default 1ms)
	PollInterval time.Duration

	// RetryInterval spaces reopen attempts for an unchanged target
	// (default 1s, NoRetryThrottle to retry every cycle)
	RetryInterval time.Duration

	// DisableHeal keeps a sink whose worker stopped on a write failure
	// instead of reopening it
	DisableHeal bool

	// Settings are polled every cycle (default: default target, unmuted)
	Settings *Settings

	// Logger for lifecycle events (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// Tap copies an audio stream to an output sink without blocking the caller
type Tap struct {
	id       string
	backend  string
	format   audio.Format
	settings *Settings
	ring     *ring.RingBuffer
	stats    *counters

	supervisor *Supervisor
	log        logrus.FieldLogger
}

// New creates a tap. No sink is opened until the first Process call.
func New(cfg Config) (*Tap, error) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = ring.DefaultCapacity
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Settings == nil {
		cfg.Settings = NewSettings("", false)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	id := uuid.New().String()

	open := cfg.Opener
	if open == nil {
		if cfg.Backend == "websocket" {
			open = output.NewWebSocketOpener(cfg.Resolver, id)
		} else {
			var err error
			open, err = output.Lookup(cfg.Backend)
			if err != nil {
				return nil, err
			}
		}
	}

	r, err := ring.New(cfg.RingCapacity)
	if err != nil {
		return nil, fmt.Errorf("ring buffer: %w", err)
	}

	log := cfg.Logger.WithFields(logrus.Fields{
		"tap":     id,
		"backend": cfg.Backend,
	})

	format := audio.Stereo(cfg.SampleRate)
	stats := &counters{}
	sink := NewSink(cfg.Backend, open, format, log)
	worker := NewWorker(r, cfg.BlockFrames, cfg.PollInterval, stats, log)

	t := &Tap{
		id:         id,
		backend:    cfg.Backend,
		format:     format,
		settings:   cfg.Settings,
		ring:       r,
		stats:      stats,
		supervisor: NewSupervisor(cfg.Settings, r, sink, worker, stats, !cfg.DisableHeal, cfg.RetryInterval, log),
		log:        log,
	}

	log.WithFields(logrus.Fields{
		"sample_rate":   cfg.SampleRate,
		"ring_capacity": r.Cap(),
	}).Debug("Tap created")

	return t, nil
}

// Process handles one block from the audio callback. dst receives the
// pass-through signal (silence when muted) and may be nil. src is always
// pushed to the sink unmodified.
func (t *Tap) Process(src, dst []audio.Frame) {
	if len(src) == 0 {
		return
	}

	t.supervisor.Ensure()

	if dst != nil {
		if t.settings.Mute() {
			audio.Silence(dst)
		} else {
			copy(dst, src)
		}
	}

	accepted := t.ring.Push(src)
	t.stats.pushed.Add(uint64(len(src)))
	if dropped := len(src) - accepted; dropped > 0 {
		t.stats.dropped.Add(uint64(dropped))
	}
}

// Close stops the worker and releases the sink. Call it after the last
// Process call has returned.
func (t *Tap) Close() {
	t.supervisor.Close()
	t.log.Debug("Tap closed")
}

// Stats returns a snapshot of the tap counters
func (t *Tap) Stats() Stats {
	st := t.stats.snapshot()
	st.RingFill = t.ring.Len()
	st.RingCapacity = t.ring.Cap()
	return st
}

// Status returns the sink lifecycle state
func (t *Tap) Status() Status {
	return t.supervisor.Status()
}

// Settings returns the live settings polled by Process
func (t *Tap) Settings() *Settings {
	return t.settings
}

// ID returns the instance identifier used in logs and stream names
func (t *Tap) ID() string {
	return t.id
}

// Backend returns the output backend name
func (t *Tap) Backend() string {
	return t.backend
}

// Format returns the stream format pushed to the sink
func (t *Tap) Format() audio.Format {
	return t.format
}
