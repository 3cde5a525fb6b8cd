// ABOUTME: Host callback loop standing in for a real-time audio thread
// ABOUTME: Reads a block from the source and runs it through the tap each period
package app

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/bustap/internal/source"
	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/sirupsen/logrus"
)

// Processor is the per-block callback; *tap.Tap satisfies it
type Processor interface {
	Process(src, dst []audio.Frame)
}

// Host calls a Processor at the block rate of the stream
type Host struct {
	proc     Processor
	src      source.Source
	in       []audio.Frame
	out      []audio.Frame
	interval time.Duration
	log      logrus.FieldLogger

	blocks     atomic.Uint64
	peakL      atomic.Uint32
	peakR      atomic.Uint32
	sourceDown bool
}

// NewHost creates a host producing blockFrames per period at sampleRate
func NewHost(proc Processor, src source.Source, blockFrames, sampleRate int, log logrus.FieldLogger) *Host {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Host{
		proc:     proc,
		src:      src,
		in:       make([]audio.Frame, blockFrames),
		out:      make([]audio.Frame, blockFrames),
		interval: time.Duration(blockFrames) * time.Second / time.Duration(sampleRate),
		log:      log,
	}
}

// Interval returns the callback period
func (h *Host) Interval() time.Duration {
	return h.interval
}

// Run calls Cycle every period until ctx is done
func (h *Host) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Cycle()
		}
	}
}

// Cycle runs one callback. Short or failed source reads are padded with
// silence so the processor always sees a full block.
func (h *Host) Cycle() {
	n, err := h.src.Read(h.in)
	if err != nil && !h.sourceDown {
		h.sourceDown = true
		h.log.WithError(err).Warn("Audio source failed, continuing with silence")
	}
	audio.Silence(h.in[n:])

	h.proc.Process(h.in, h.out)

	l, r := audio.Peak(h.out)
	h.peakL.Store(math.Float32bits(l))
	h.peakR.Store(math.Float32bits(r))
	h.blocks.Add(1)
}

// Peak returns the pass-through peak of the last block
func (h *Host) Peak() (l, r float32) {
	return math.Float32frombits(h.peakL.Load()), math.Float32frombits(h.peakR.Load())
}

// Blocks returns the number of callbacks run
func (h *Host) Blocks() uint64 {
	return h.blocks.Load()
}
