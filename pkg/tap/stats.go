// ABOUTME: Tap counters and status snapshots
// ABOUTME: Counters are atomics so the real-time path never locks
package tap

import "sync/atomic"

// Stats is a point-in-time copy of the tap counters
type Stats struct {
	FramesPushed     uint64 // offered by the producer
	FramesDropped    uint64 // rejected because the ring was full
	FramesWritten    uint64 // accepted by the sink
	BatchesWritten   uint64
	Reconfigurations uint64
	OpenFailures     uint64
	WriteFailures    uint64
	RingFill         int
	RingCapacity     int
}

// Status describes the sink lifecycle
type Status struct {
	Target  string // last applied target identifier
	Open    bool   // a sink connection is held
	Running bool   // the drain worker is running
	Failed  bool   // the drain worker stopped on a write failure
}

type counters struct {
	pushed        atomic.Uint64
	dropped       atomic.Uint64
	written       atomic.Uint64
	batches       atomic.Uint64
	reconfigs     atomic.Uint64
	openFailures  atomic.Uint64
	writeFailures atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesPushed:     c.pushed.Load(),
		FramesDropped:    c.dropped.Load(),
		FramesWritten:    c.written.Load(),
		BatchesWritten:   c.batches.Load(),
		Reconfigurations: c.reconfigs.Load(),
		OpenFailures:     c.openFailures.Load(),
		WriteFailures:    c.writeFailures.Load(),
	}
}
