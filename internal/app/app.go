// ABOUTME: Tap application orchestration
// ABOUTME: Coordinates the tap, host loop, metrics, live config and TUI
package app

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bustap/internal/config"
	"github.com/Resonate-Protocol/bustap/internal/discovery"
	"github.com/Resonate-Protocol/bustap/internal/metrics"
	"github.com/Resonate-Protocol/bustap/internal/source"
	"github.com/Resonate-Protocol/bustap/internal/ui"
	"github.com/Resonate-Protocol/bustap/pkg/tap"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	Settings *config.Settings

	// Source is "tone" or an audio file path
	Source string

	UseTUI bool

	// Watch registers a callback for config reloads (optional)
	Watch func(func(*config.Settings, error))

	Logger logrus.FieldLogger
}

// App runs one tap fed by a host loop
type App struct {
	config   Config
	tap      *tap.Tap
	src      source.Source
	host     *Host
	registry *prometheus.Registry
	endpoint *metrics.Endpoint
	log      logrus.FieldLogger
}

// New builds the tap and its collaborators without starting anything
func New(cfg Config) (*App, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	s := cfg.Settings

	tc := s.Tap.TapConfig()
	tc.Logger = cfg.Logger
	if tc.Backend == "websocket" {
		tc.Resolver = discovery.NewManager(discovery.Config{Logger: cfg.Logger}).Resolve
	}

	t, err := tap.New(tc)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(cfg.Source, s.Tap.SampleRate, cfg.Logger)
	if err != nil {
		t.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if _, err := metrics.NewTapMetrics(registry, t); err != nil {
		t.Close()
		_ = src.Close()
		return nil, err
	}

	a := &App{
		config:   cfg,
		tap:      t,
		src:      src,
		host:     NewHost(t, src, s.Tap.BlockFrames, s.Tap.SampleRate, cfg.Logger),
		registry: registry,
		log:      cfg.Logger.WithField("tap", t.ID()),
	}
	if s.Metrics.Listen != "" {
		a.endpoint = metrics.NewEndpoint(s.Metrics.Listen, registry, cfg.Logger)
	}
	return a, nil
}

// Tap returns the running tap
func (a *App) Tap() *tap.Tap {
	return a.tap
}

// Registry returns the metrics registry
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Run starts the host loop and blocks until ctx is done or the TUI quits.
// The tap and source are closed on return.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.log.WithFields(logrus.Fields{
		"backend":  a.tap.Backend(),
		"target":   a.tap.Settings().Target(),
		"source":   a.src.Name(),
		"interval": a.host.Interval(),
	}).Info("Tap starting")

	if a.endpoint != nil {
		a.endpoint.Start()
	}

	if a.config.Watch != nil {
		a.config.Watch(a.reload)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.host.Run(ctx)
	}()

	var ctrl *ui.Control
	var prog *tea.Program
	if a.config.UseTUI {
		ctrl = ui.NewControl()
		prog = ui.Run(ctrl, a.tap.Settings().Mute())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := prog.Run(); err != nil {
				a.log.WithError(err).Error("TUI failed")
			}
			ctrl.RequestQuit()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.statusLoop(ctx, prog)
	}()

	var quit <-chan struct{}
	var mute <-chan bool
	if ctrl != nil {
		quit = ctrl.Quit
		mute = ctrl.Mute
	}

loop:
	for {
		select {
		case <-ctx.Done():
			a.log.Info("Shutdown signal received")
			break loop
		case <-quit:
			a.log.Info("Received quit signal from TUI")
			break loop
		case muted := <-mute:
			a.tap.Settings().SetMute(muted)
			a.log.WithField("muted", muted).Info("Mute changed")
		}
	}

	cancel()
	if prog != nil {
		prog.Quit()
	}
	wg.Wait()

	// The host loop has stopped, so nothing calls Process any more
	a.tap.Close()
	if err := a.src.Close(); err != nil {
		a.log.WithError(err).Warn("Closing audio source failed")
	}

	if a.endpoint != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := a.endpoint.Stop(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("Metrics endpoint shutdown failed")
		}
	}

	a.log.WithField("blocks", a.host.Blocks()).Info("Tap stopped")
	return nil
}

// reload applies live settings from a changed config file
func (a *App) reload(s *config.Settings, err error) {
	if err != nil {
		a.log.WithError(err).Warn("Ignoring invalid config change")
		return
	}
	s.Tap.Apply(a.tap.Settings())
	a.log.WithFields(logrus.Fields{
		"target": s.Tap.Target,
		"muted":  s.Tap.Mute,
	}).Info("Config reloaded")
}

// statusLoop pushes tap state to the TUI, or logs it when there is none
func (a *App) statusLoop(ctx context.Context, prog *tea.Program) {
	interval := 250 * time.Millisecond
	if prog == nil {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeTicker := time.NewTicker(2 * time.Second)
	defer runtimeTicker.Stop()

	if prog != nil {
		prog.Send(ui.StatusMsg{
			Backend:    a.tap.Backend(),
			Source:     a.src.Name(),
			SampleRate: a.tap.Format().SampleRate,
		})
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-runtimeTicker.C:
			if prog == nil {
				continue
			}
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			prog.Send(ui.StatusMsg{
				Goroutines: runtime.NumGoroutine(),
				MemAlloc:   m.Alloc,
				MemSys:     m.Sys,
			})

		case <-ticker.C:
			status := a.tap.Status()
			stats := a.tap.Stats()

			if prog == nil {
				a.log.WithFields(logrus.Fields{
					"open":    status.Open,
					"running": status.Running,
					"pushed":  stats.FramesPushed,
					"written": stats.FramesWritten,
					"dropped": stats.FramesDropped,
				}).Info("Tap status")
				continue
			}

			l, r := a.host.Peak()
			muted := a.tap.Settings().Mute()
			prog.Send(ui.StatusMsg{
				Muted:  &muted,
				Status: &status,
				Stats:  &stats,
				PeakL:  l,
				PeakR:  r,
			})
		}
	}
}
