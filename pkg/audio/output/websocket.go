// ABOUTME: WebSocket network output
// ABOUTME: Streams float32 frames to a remote receiver over binary messages
package output

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/gorilla/websocket"
)

// Stream protocol shared with the receiver
const (
	HeaderRate     = "X-Bustap-Rate"
	HeaderChannels = "X-Bustap-Channels"
	HeaderStream   = "X-Bustap-Stream"

	DrainRequest = "drain"
	DrainReply   = "drained"

	// MDNSScheme prefixes targets resolved through service discovery
	MDNSScheme = "mdns:"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
	drainTimeout = 5 * time.Second
)

// Resolver turns a discovered service instance name into a ws:// URL
type Resolver func(ctx context.Context, instance string) (string, error)

func init() {
	Register("websocket", NewWebSocketOpener(nil, ""))
}

// WebSocket output streaming to a receiver
type WebSocket struct {
	conn      *websocket.Conn
	url       string
	closeOnce sync.Once
}

// NewWebSocketOpener returns an Opener for ws:// targets. mdns:<name>
// targets are handed to resolve; with a nil resolver they are rejected.
// streamID is sent to the receiver for logging.
func NewWebSocketOpener(resolve Resolver, streamID string) Opener {
	return func(target string, format audio.Format) (Output, error) {
		return openWebSocket(resolve, streamID, target, format)
	}
}

func openWebSocket(resolve Resolver, streamID, target string, format audio.Format) (Output, error) {
	if err := checkFormat("websocket", target, format); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, &OpenError{Backend: "websocket", Target: target, Code: CodeNoDevice,
			Err: errors.New("websocket output has no default target")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	rawURL := target
	if instance, ok := strings.CutPrefix(target, MDNSScheme); ok {
		if resolve == nil {
			return nil, &OpenError{Backend: "websocket", Target: target, Code: CodeUnsupported,
				Err: errors.New("service discovery not configured")}
		}
		resolved, err := resolve(ctx, instance)
		if err != nil {
			return nil, &OpenError{Backend: "websocket", Target: target, Code: CodeNoDevice, Err: err}
		}
		rawURL = resolved
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return nil, &OpenError{Backend: "websocket", Target: target, Code: CodeNoDevice,
			Err: fmt.Errorf("invalid websocket url %q", rawURL)}
	}

	header := http.Header{}
	header.Set(HeaderRate, strconv.Itoa(format.SampleRate))
	header.Set(HeaderChannels, strconv.Itoa(format.Channels))
	if streamID != "" {
		header.Set(HeaderStream, streamID)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, &OpenError{Backend: "websocket", Target: target, Code: CodeConnection,
			Err: fmt.Errorf("dial failed: %w", err)}
	}

	return &WebSocket{conn: conn, url: u.String()}, nil
}

// Write sends one binary message; TCP flow control provides backpressure
func (w *WebSocket) Write(samples []float32) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteMessage(websocket.BinaryMessage, audio.SamplesAsBytes(samples)); err != nil {
		return fmt.Errorf("websocket: write to %s failed: %w", w.url, err)
	}
	return nil
}

// Drain asks the receiver to confirm it has played everything
func (w *WebSocket) Drain() error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(DrainRequest)); err != nil {
		return fmt.Errorf("websocket: drain request failed: %w", err)
	}

	_ = w.conn.SetReadDeadline(time.Now().Add(drainTimeout))
	defer func() { _ = w.conn.SetReadDeadline(time.Time{}) }()
	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket: waiting for drain reply: %w", err)
		}
		if kind == websocket.TextMessage && string(data) == DrainReply {
			return nil
		}
	}
}

// Close sends a close frame and drops the connection
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}
