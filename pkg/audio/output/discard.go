// ABOUTME: Output that accepts and drops all samples
// ABOUTME: Used for dry runs and as a measurement sink
package output

import (
	"sync/atomic"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
)

func init() {
	Register("discard", OpenDiscard)
}

// Discard drops everything written to it
type Discard struct {
	samples atomic.Uint64
	closed  atomic.Bool
}

// OpenDiscard accepts any target
func OpenDiscard(target string, format audio.Format) (Output, error) {
	if err := checkFormat("discard", target, format); err != nil {
		return nil, err
	}
	return &Discard{}, nil
}

func (d *Discard) Write(samples []float32) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.samples.Add(uint64(len(samples)))
	return nil
}

func (d *Discard) Drain() error { return nil }

func (d *Discard) Close() error {
	d.closed.Store(true)
	return nil
}

// Samples returns the number of samples written so far
func (d *Discard) Samples() uint64 {
	return d.samples.Load()
}
