// ABOUTME: Drain worker moving frames from the ring buffer to the sink
// ABOUTME: Owns the sink while running and hands it back on Stop
package tap

import (
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/Resonate-Protocol/bustap/pkg/audio/ring"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how long the worker waits when the ring is empty
const DefaultPollInterval = time.Millisecond

// Worker is the consumer side of the ring. Start and Stop must be called
// from a single controlling goroutine.
type Worker struct {
	ring    *ring.RingBuffer
	scratch []audio.Frame
	poll    time.Duration
	stats   *counters
	log     logrus.FieldLogger

	running atomic.Bool
	failed  atomic.Bool

	// Controller-side state; the loop goroutine only sees its arguments
	sink *Sink
	quit chan struct{}
	done chan struct{}
}

// NewWorker creates a stopped worker with a scratch buffer of scratchFrames
func NewWorker(r *ring.RingBuffer, scratchFrames int, poll time.Duration, stats *counters, log logrus.FieldLogger) *Worker {
	if scratchFrames <= 0 {
		scratchFrames = r.Cap()
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if stats == nil {
		stats = &counters{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{
		ring:    r,
		scratch: make([]audio.Frame, scratchFrames),
		poll:    poll,
		stats:   stats,
		log:     log,
	}
}

// Start launches the drain loop and takes custody of sink. It is a no-op
// returning false while the worker is running or still holds a sink.
func (w *Worker) Start(sink *Sink) bool {
	if sink == nil || w.done != nil {
		return false
	}

	w.failed.Store(false)
	w.running.Store(true)
	w.sink = sink
	w.quit = make(chan struct{})
	w.done = make(chan struct{})

	go w.loop(sink, w.quit, w.done)
	return true
}

// Stop clears the running flag, joins the loop and returns the sink it held.
// On a worker that was never started or is already joined it returns nil.
func (w *Worker) Stop() *Sink {
	if w.done == nil {
		return nil
	}

	w.running.Store(false)
	close(w.quit)
	<-w.done

	sink := w.sink
	w.sink = nil
	w.quit = nil
	w.done = nil
	return sink
}

// Running reports whether the drain loop is active
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Failed reports whether the loop exited because a sink write failed
func (w *Worker) Failed() bool {
	return w.failed.Load()
}

func (w *Worker) loop(sink *Sink, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for w.running.Load() {
		n := w.ring.Pop(w.scratch)
		if n == 0 {
			select {
			case <-quit:
				return
			case <-ticker.C:
			}
			continue
		}

		if err := sink.Write(audio.Samples(w.scratch[:n])); err != nil {
			w.failed.Store(true)
			w.running.Store(false)
			w.stats.writeFailures.Add(1)
			w.log.WithField("target", displayTarget(sink.Target())).
				WithError(err).
				Error("Audio sink write failed, stopping drain worker")
			return
		}

		w.stats.written.Add(uint64(n))
		w.stats.batches.Add(1)
	}
}
