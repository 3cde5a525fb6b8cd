// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Blocking writes feed a byte ring drained by the miniaudio callback
package output

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"
)

// bufferMs is how much audio the device-side ring holds
const bufferMs = 100

// PulseApplicationName is the client name shown by PulseAudio mixers
const PulseApplicationName = "bustap"

var errDeviceStopped = errors.New("playback device stopped")

func init() {
	Register("pulse", OpenPulse)
	Register("malgo", OpenMalgo)
}

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	backend  string
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format

	// Callback-side buffer; writers block while it is full
	ring *ringbuffer.RingBuffer

	closeOnce sync.Once
}

// OpenPulse opens a PulseAudio sink by name through miniaudio
func OpenPulse(target string, format audio.Format) (Output, error) {
	return openMalgo("pulse", []malgo.Backend{malgo.BackendPulseaudio}, target, format)
}

// OpenMalgo opens a playback device using miniaudio's default backend order
func OpenMalgo(target string, format audio.Format) (Output, error) {
	return openMalgo("malgo", nil, target, format)
}

func openMalgo(name string, backends []malgo.Backend, target string, format audio.Format) (Output, error) {
	if err := checkFormat(name, target, format); err != nil {
		return nil, err
	}

	// miniaudio copies the name during init; it only has to stay pinned until then
	appName := cString(PulseApplicationName)
	var pinner runtime.Pinner
	pinner.Pin(&appName[0])
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.Pulse.PApplicationName = &appName[0]

	ctx, err := malgo.InitContext(backends, ctxConfig, nil)
	pinner.Unpin()
	if err != nil {
		return nil, &OpenError{Backend: name, Target: target, Code: CodeUnavailable,
			Err: fmt.Errorf("failed to initialize malgo context: %w", err)}
	}

	m := &Malgo{
		backend:  name,
		malgoCtx: ctx,
		format:   format,
		ring:     ringbuffer.New(format.BytesPerSecond() * bufferMs / 1000).SetBlocking(true),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	deviceConfig.Pulse.StreamNamePlayback = pulseStreamName(target)

	if target != "" {
		info, err := findPlaybackDevice(ctx, target)
		if err != nil {
			m.freeContext()
			return nil, &OpenError{Backend: name, Target: target, Code: CodeNoDevice, Err: err}
		}
		deviceConfig.Playback.DeviceID = info.ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: m.dataCallback,
		Stop: m.stopCallback,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		m.freeContext()
		return nil, &OpenError{Backend: name, Target: target, Code: CodeUnavailable,
			Err: fmt.Errorf("failed to initialize playback device: %w", err)}
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext()
		return nil, &OpenError{Backend: name, Target: target, Code: CodeUnavailable,
			Err: fmt.Errorf("failed to start device: %w", err)}
	}

	m.device = device
	return m, nil
}

// findPlaybackDevice prefers an exact name match, then a substring match
func findPlaybackDevice(ctx *malgo.AllocatedContext, target string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	for _, info := range infos {
		if info.Name() == target {
			return info, nil
		}
	}
	for _, info := range infos {
		if strings.Contains(info.Name(), target) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no playback device matches %q", target)
}

// PlaybackDevices lists playback device names visible to miniaudio
func PlaybackDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Write queues samples for the device, blocking while the ring is full
func (m *Malgo) Write(samples []float32) error {
	if _, err := m.ring.Write(audio.SamplesAsBytes(samples)); err != nil {
		if errors.Is(err, errDeviceStopped) {
			return fmt.Errorf("%s: %w", m.backend, err)
		}
		return fmt.Errorf("%s: write failed: %w", m.backend, err)
	}
	return nil
}

// Drain waits for the callback to consume everything queued
func (m *Malgo) Drain() error {
	deadline := time.Now().Add(2 * bufferMs * time.Millisecond)
	for !m.ring.IsEmpty() {
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: drain timed out with %d bytes queued", m.backend, m.ring.Length())
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// Close stops the device and releases the context
func (m *Malgo) Close() error {
	m.closeOnce.Do(func() {
		m.ring.CloseWithError(ErrClosed)
		if m.device != nil {
			_ = m.device.Stop()
			m.device.Uninit()
			m.device = nil
		}
		m.freeContext()
	})
	return nil
}

func (m *Malgo) freeContext() {
	if m.malgoCtx != nil {
		_ = m.malgoCtx.Uninit()
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

// dataCallback is called by malgo to fill the output buffer
func (m *Malgo) dataCallback(pOutput, _ []byte, _ uint32) {
	n, _ := m.ring.TryRead(pOutput)
	// Underrun: play silence for the rest
	clear(pOutput[n:])
}

// stopCallback fires when the device goes away underneath us
func (m *Malgo) stopCallback() {
	m.ring.CloseWithError(errDeviceStopped)
}

// pulseStreamName names the playback stream after the sink it feeds
func pulseStreamName(target string) string {
	if target == "" {
		return "bus tap"
	}
	return "bus tap " + target
}

// cString returns s as NUL-terminated bytes
func cString(s string) []byte {
	return append([]byte(s), 0)
}
