// ABOUTME: Network stream receiver for websocket taps
// ABOUTME: Plays incoming frames into a local output backend and answers drains
package receiver

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/bustap/internal/discovery"
	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/Resonate-Protocol/bustap/pkg/audio/output"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Config holds receiver configuration
type Config struct {
	Name      string
	Listen    string // host:port
	Path      string // websocket path, default /tap
	Backend   string // output backend for playback
	Target    string // output target for playback
	Advertise bool   // announce over mDNS

	// Opener overrides the registry lookup for Backend
	Opener output.Opener

	Logger logrus.FieldLogger
}

// Receiver accepts one tap stream at a time
type Receiver struct {
	config   Config
	open     output.Opener
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	log      logrus.FieldLogger

	httpServer  *http.Server
	mdnsManager *discovery.Manager

	busy     atomic.Bool
	received atomic.Uint64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a receiver
func New(config Config) (*Receiver, error) {
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	open := config.Opener
	if open == nil {
		var err error
		open, err = output.Lookup(config.Backend)
		if err != nil {
			return nil, err
		}
	}

	r := &Receiver{
		config: config,
		open:   open,
		upgrader: websocket.Upgrader{
			// Local network tool; non-browser clients send no Origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
		log: config.Logger.WithFields(logrus.Fields{
			"receiver": config.Name,
			"backend":  config.Backend,
		}),
		stopChan: make(chan struct{}),
	}
	r.mux.HandleFunc(config.Path, r.handleWebSocket)
	return r, nil
}

// Handler returns the HTTP handler serving the stream path
func (r *Receiver) Handler() http.Handler {
	return r.mux
}

// FramesReceived returns the total frames played across all streams
func (r *Receiver) FramesReceived() uint64 {
	return r.received.Load()
}

// Start serves until Stop is called or the listener fails
func (r *Receiver) Start() error {
	port, err := listenPort(r.config.Listen)
	if err != nil {
		return err
	}

	if r.config.Advertise {
		r.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: r.config.Name,
			Port:        port,
			Path:        r.config.Path,
			Logger:      r.log,
		})
		if err := r.mdnsManager.Advertise(); err != nil {
			r.log.WithError(err).Warn("Failed to start mDNS advertisement")
		}
	}

	r.httpServer = &http.Server{
		Addr:              r.config.Listen,
		Handler:           r.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		r.log.WithField("address", r.config.Listen).Info("Receiver listening")
		if err := r.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-r.stopChan:
		r.log.Info("Receiver shutting down")
	case err := <-errChan:
		serverErr = err
	}

	if r.mdnsManager != nil {
		r.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.httpServer.Shutdown(ctx); err != nil {
		r.log.WithError(err).Warn("HTTP server shutdown error")
	}

	r.wg.Wait()

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the receiver
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

func (r *Receiver) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	format, err := parseFormat(req.Header)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !r.busy.CompareAndSwap(false, true) {
		http.Error(w, "receiver is busy", http.StatusConflict)
		return
	}
	defer r.busy.Store(false)

	// Before the upgrade, while Shutdown still tracks the connection
	r.wg.Add(1)
	defer r.wg.Done()

	log := r.log.WithFields(logrus.Fields{
		"stream": req.Header.Get(output.HeaderStream),
		"remote": req.RemoteAddr,
	})

	out, err := r.open(r.config.Target, format)
	if err != nil {
		log.WithError(err).Warn("Failed to open playback output")
		http.Error(w, "playback unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade error")
		_ = out.Close()
		return
	}
	conn.SetReadLimit(maxMessageBytes(format))

	log.WithField("sample_rate", format.SampleRate).Info("Stream connected")
	frames := r.serveStream(conn, out, log)
	log.WithField("frames", frames).Info("Stream ended")
}

// maxMessageBytes caps one message at a second of audio
func maxMessageBytes(format audio.Format) int64 {
	return int64(format.BytesPerSecond())
}

// serveStream plays binary messages and answers drain requests until the
// connection closes. It returns the number of frames played.
func (r *Receiver) serveStream(conn *websocket.Conn, out output.Output, log logrus.FieldLogger) uint64 {
	defer func() {
		if err := out.Drain(); err != nil {
			log.WithError(err).Debug("Final drain failed")
		}
		if err := out.Close(); err != nil {
			log.WithError(err).Warn("Closing playback output failed")
		}
		_ = conn.Close()
	}()

	var frames uint64
	var samples []float32

	// Stop closes the connection so ReadMessage returns
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.stopChan:
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Stream read ended")
			}
			return frames
		}

		switch kind {
		case websocket.BinaryMessage:
			if len(data)%audio.BytesPerFrame != 0 {
				log.WithField("bytes", len(data)).Warn("Dropping message with partial frame")
				continue
			}
			samples = decodeSamples(samples[:0], data)
			if err := out.Write(samples); err != nil {
				log.WithError(err).Error("Playback write failed")
				return frames
			}
			n := uint64(len(data) / audio.BytesPerFrame)
			frames += n
			r.received.Add(n)

		case websocket.TextMessage:
			if string(data) != output.DrainRequest {
				continue
			}
			if err := out.Drain(); err != nil {
				log.WithError(err).Warn("Playback drain failed")
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(output.DrainReply)); err != nil {
				return frames
			}
		}
	}
}

func parseFormat(h http.Header) (audio.Format, error) {
	rate, err := strconv.Atoi(h.Get(output.HeaderRate))
	if err != nil || rate <= 0 {
		return audio.Format{}, fmt.Errorf("invalid %s header", output.HeaderRate)
	}
	channels, err := strconv.Atoi(h.Get(output.HeaderChannels))
	if err != nil || channels != audio.Channels {
		return audio.Format{}, fmt.Errorf("invalid %s header", output.HeaderChannels)
	}
	return audio.Format{SampleRate: rate, Channels: channels}, nil
}

// decodeSamples appends little-endian float32 samples from data to dst
func decodeSamples(dst []float32, data []byte) []float32 {
	for i := 0; i+4 <= len(data); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return dst
}

func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}
	return port, nil
}
