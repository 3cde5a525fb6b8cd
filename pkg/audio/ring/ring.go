// ABOUTME: Wait-free single-producer/single-consumer ring of stereo frames
// ABOUTME: Sits between the real-time callback and the sink drain goroutine
package ring

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"golang.org/x/sys/cpu"
)

// DefaultCapacity is 2^12 frames, about 85ms at 48kHz
const DefaultCapacity = 1 << 12

// ErrCapacity is returned for capacities that are not a power of two >= 2
var ErrCapacity = errors.New("ring capacity must be a power of two >= 2")

// RingBuffer is a fixed-capacity circular buffer of frames.
//
// Exactly one goroutine may call Push and exactly one may call Pop. Neither
// side locks, blocks or allocates. One slot is always left empty so that
// head == tail means empty, which caps the live frames at Cap()-1.
type RingBuffer struct {
	data []audio.Frame
	mask uint64

	_    cpu.CacheLinePad
	head atomic.Uint64 // next write slot, written by the producer only
	_    cpu.CacheLinePad
	tail atomic.Uint64 // next read slot, written by the consumer only
	_    cpu.CacheLinePad
}

// New creates a ring holding up to capacity-1 frames
func New(capacity int) (*RingBuffer, error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}
	return &RingBuffer{
		data: make([]audio.Frame, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// MustNew is New for constant capacities
func MustNew(capacity int) *RingBuffer {
	r, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return r
}

// Push copies as many frames from src as fit and returns how many were taken.
// When the ring is full the whole batch is dropped and Push returns 0.
// Producer side only.
func (r *RingBuffer) Push(src []audio.Frame) int {
	count := uint64(len(src))
	if count == 0 {
		return 0
	}

	head := r.head.Load()
	tail := r.tail.Load()

	used := (head - tail) & r.mask
	free := r.mask - used // capacity - used - 1
	if free == 0 {
		return 0
	}

	n := min(count, free)

	first := min(n, uint64(len(r.data))-head)
	copy(r.data[head:head+first], src[:first])
	if rest := n - first; rest > 0 {
		copy(r.data[:rest], src[first:n])
	}

	// Publishing head makes the copied frames visible to Pop.
	r.head.Store((head + n) & r.mask)
	return int(n)
}

// Pop copies up to len(dst) frames into dst and returns how many were copied.
// An empty ring returns 0 and leaves both indices untouched.
// Consumer side only.
func (r *RingBuffer) Pop(dst []audio.Frame) int {
	limit := uint64(len(dst))
	if limit == 0 {
		return 0
	}

	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return 0
	}

	available := (head - tail) & r.mask
	n := min(available, limit)

	first := min(n, uint64(len(r.data))-tail)
	copy(dst[:first], r.data[tail:tail+first])
	if rest := n - first; rest > 0 {
		copy(dst[first:n], r.data[:rest])
	}

	r.tail.Store((tail + n) & r.mask)
	return int(n)
}

// Reset empties the ring. Both producer and consumer must be idle.
func (r *RingBuffer) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
}

// Len returns the number of buffered frames. The value is a snapshot
// and may be stale by the time it is read.
func (r *RingBuffer) Len() int {
	return int((r.head.Load() - r.tail.Load()) & r.mask)
}

// Free returns the number of frames Push could accept right now
func (r *RingBuffer) Free() int {
	return int(r.mask) - r.Len()
}

// Cap returns the slot count. At most Cap()-1 frames are ever buffered.
func (r *RingBuffer) Cap() int {
	return len(r.data)
}
