// ABOUTME: In-memory output backend for tap tests
// ABOUTME: Records lifecycle events and written samples per target
package tap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/Resonate-Protocol/bustap/pkg/audio/output"
)

var errFakeWrite = errors.New("fake write failure")

type fakeBackend struct {
	mu         sync.Mutex
	events     []string
	outputs    []*fakeOutput
	failOpen   map[string]bool
	failWrites bool
	gates      map[string]*writeGate
}

// writeGate holds the next write to a target until release is closed
type writeGate struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		failOpen: make(map[string]bool),
		gates:    make(map[string]*writeGate),
	}
}

// gateNextWrite blocks the next write to target; the write records
// "write-done <target>" once released
func (b *fakeBackend) gateNextWrite(target string) *writeGate {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := &writeGate{entered: make(chan struct{}), release: make(chan struct{})}
	b.gates[target] = g
	return g
}

func (b *fakeBackend) takeGate(target string) *writeGate {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.gates[target]
	delete(b.gates, target)
	return g
}

func (b *fakeBackend) open(target string, format audio.Format) (output.Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failOpen[target] {
		b.events = append(b.events, "fail "+target)
		return nil, &output.OpenError{
			Backend: "fake",
			Target:  target,
			Code:    output.CodeNoDevice,
			Err:     fmt.Errorf("no such device %q", target),
		}
	}

	out := &fakeOutput{backend: b, target: target}
	b.outputs = append(b.outputs, out)
	b.events = append(b.events, "open "+target)
	return out, nil
}

func (b *fakeBackend) setFailOpen(target string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOpen[target] = fail
}

func (b *fakeBackend) setFailWrites(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWrites = fail
}

func (b *fakeBackend) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBackend) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func (b *fakeBackend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.outputs)
}

// Samples returns everything written to the outputs opened for target
func (b *fakeBackend) Samples(target string) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var all []float32
	for _, out := range b.outputs {
		if out.target == target {
			all = append(all, out.samples...)
		}
	}
	return all
}

type fakeOutput struct {
	backend *fakeBackend
	target  string
	samples []float32 // guarded by backend.mu
}

func (o *fakeOutput) Write(samples []float32) error {
	if g := o.backend.takeGate(o.target); g != nil {
		close(g.entered)
		<-g.release
		defer o.backend.record("write-done " + o.target)
	}

	o.backend.mu.Lock()
	defer o.backend.mu.Unlock()
	if len(samples) == 0 {
		o.backend.events = append(o.backend.events, "empty write "+o.target)
	}
	if o.backend.failWrites {
		return errFakeWrite
	}
	o.samples = append(o.samples, samples...)
	return nil
}

func (o *fakeOutput) Drain() error {
	o.backend.record("drain " + o.target)
	return nil
}

func (o *fakeOutput) Close() error {
	o.backend.record("close " + o.target)
	return nil
}

// ramp returns n frames where L counts up from start and R = -L
func ramp(start, n int) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		v := float32(start + i)
		frames[i] = audio.Frame{L: v, R: -v}
	}
	return frames
}
