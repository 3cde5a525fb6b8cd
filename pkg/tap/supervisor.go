// ABOUTME: Stream supervisor reconciling the configured target with the live sink
// ABOUTME: Runs on the producer thread; the steady state does no I/O or locking
package tap

import (
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/audio/ring"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// NoRetryThrottle makes the supervisor retry an unchanged target every cycle
const NoRetryThrottle time.Duration = -1

// DefaultRetryInterval spaces reopen attempts for an unchanged target
const DefaultRetryInterval = time.Second

// Supervisor owns the worker and, while the worker is stopped, the sink.
// Ensure and Close must be called from the same goroutine.
type Supervisor struct {
	settings *Settings
	ring     *ring.RingBuffer
	worker   *Worker
	sink     *Sink // nil while the worker holds it
	stats    *counters
	log      logrus.FieldLogger

	heal          bool
	retry         *rate.Limiter
	retryInterval time.Duration
	nextRetry     time.Time

	cached *string
	open   bool

	status atomic.Pointer[Status]
}

// NewSupervisor wires a supervisor around an idle sink and worker
func NewSupervisor(settings *Settings, r *ring.RingBuffer, sink *Sink, worker *Worker, stats *counters, heal bool, retryInterval time.Duration, log logrus.FieldLogger) *Supervisor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Supervisor{
		settings: settings,
		ring:     r,
		worker:   worker,
		sink:     sink,
		stats:    stats,
		log:      log,
		heal:     heal,
	}
	if retryInterval >= 0 {
		if retryInterval == 0 {
			retryInterval = DefaultRetryInterval
		}
		s.retry = rate.NewLimiter(rate.Every(retryInterval), 1)
		s.retryInterval = retryInterval
	}
	s.status.Store(&Status{})
	return s
}

// Ensure makes the live sink match the configured target. It returns
// immediately when nothing changed.
func (s *Supervisor) Ensure() {
	target := s.settings.loadTarget()

	if target != s.cached && s.cached != nil && *target == *s.cached {
		// Same identifier stored again
		s.cached = target
	}

	if target == s.cached && s.open && (!s.heal || s.worker.Running()) {
		return
	}

	s.reconfigure(target)
}

func (s *Supervisor) reconfigure(target *string) {
	changed := s.cached == nil || *target != *s.cached
	if s.retry != nil {
		// The limiter is only consulted once nextRetry has passed
		now := time.Now()
		if !changed && (now.Before(s.nextRetry) || !s.retry.AllowN(now, 1)) {
			return
		}
		s.nextRetry = now.Add(s.retryInterval)
	}

	if held := s.worker.Stop(); held != nil {
		s.sink = held
	}
	s.sink.Close()
	s.open = false
	s.cached = target
	s.stats.reconfigs.Add(1)

	log := s.log.WithField("target", displayTarget(*target))
	if changed {
		log.Info("Audio sink target changed, reconfiguring")
	} else {
		log.Debug("Reopening audio sink")
	}

	if err := s.sink.Open(*target); err != nil {
		s.stats.openFailures.Add(1)
		s.publish()
		return
	}

	s.open = true
	s.ring.Reset()
	if s.worker.Start(s.sink) {
		s.sink = nil
	}
	s.publish()
}

// Close stops the worker and closes the sink
func (s *Supervisor) Close() {
	if held := s.worker.Stop(); held != nil {
		s.sink = held
	}
	s.sink.Close()
	s.open = false
	s.publish()
}

// Status returns the lifecycle snapshot. Safe from any goroutine.
func (s *Supervisor) Status() Status {
	st := *s.status.Load()
	st.Running = s.worker.Running()
	st.Failed = s.worker.Failed()
	return st
}

func (s *Supervisor) publish() {
	target := ""
	if s.cached != nil {
		target = *s.cached
	}
	s.status.Store(&Status{Target: target, Open: s.open})
}
