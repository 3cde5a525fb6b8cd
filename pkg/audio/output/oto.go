// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams float32 samples into a persistent oto player through a pipe
package output

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

func init() {
	Register("oto", OpenOto)
}

// oto allows one context per process, so it outlives individual outputs
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto output implementation using oto library
type Oto struct {
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	closeOnce  sync.Once
}

// OpenOto opens the default device. oto cannot address devices by name,
// and the first format opened is the only one it will ever accept.
func OpenOto(target string, format audio.Format) (Output, error) {
	if err := checkFormat("oto", target, format); err != nil {
		return nil, err
	}
	if target != "" {
		return nil, &OpenError{Backend: "oto", Target: target, Code: CodeNoDevice,
			Err: errors.New("oto only supports the default device")}
	}

	ctx, err := otoContext(format)
	if err != nil {
		return nil, err
	}

	o := &Oto{}
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	return o, nil
}

func otoContext(format audio.Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if format != otoFormat {
			return nil, &OpenError{Backend: "oto", Code: CodeUnsupported,
				Err: fmt.Errorf("oto already initialized at %dHz/%dch", otoFormat.SampleRate, otoFormat.Channels)}
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, &OpenError{Backend: "oto", Code: CodeUnavailable,
			Err: fmt.Errorf("failed to create oto context: %w", err)}
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = format
	return ctx, nil
}

// Write blocks until the player has read the samples from the pipe
func (o *Oto) Write(samples []float32) error {
	if _, err := o.pipeWriter.Write(audio.SamplesAsBytes(samples)); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return ErrClosed
		}
		return fmt.Errorf("oto: pipe write failed: %w", err)
	}
	return nil
}

// Drain waits for the player's internal buffer to empty
func (o *Oto) Drain() error {
	deadline := time.Now().Add(time.Second)
	for o.player.BufferedSize() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("oto: drain timed out with %d bytes buffered", o.player.BufferedSize())
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// Close releases the player; the shared context stays alive
func (o *Oto) Close() error {
	var err error
	o.closeOnce.Do(func() {
		_ = o.pipeWriter.Close()
		err = o.player.Close()
		_ = o.pipeReader.Close()
	})
	return err
}
