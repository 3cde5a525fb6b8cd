// ABOUTME: Prometheus collectors exposing tap counters and sink state
// ABOUTME: Values are read from the tap at scrape time
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/tap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Source is what the collectors read; *tap.Tap satisfies it
type Source interface {
	ID() string
	Backend() string
	Stats() tap.Stats
	Status() tap.Status
}

// TapMetrics contains Prometheus metrics for one tap
type TapMetrics struct {
	source Source

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewTapMetrics creates and registers metrics for source
func NewTapMetrics(registry prometheus.Registerer, source Source) (*TapMetrics, error) {
	m := &TapMetrics{source: source}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TapMetrics) initMetrics() {
	labels := prometheus.Labels{
		"tap":     m.source.ID(),
		"backend": m.source.Backend(),
	}

	counter := func(name, help string, read func(tap.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(read(m.source.Stats())) })
	}
	gauge := func(name, help string, read func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, read)
	}

	m.collectors = []prometheus.Collector{
		counter("bustap_frames_pushed_total", "Frames offered to the ring buffer",
			func(s tap.Stats) uint64 { return s.FramesPushed }),
		counter("bustap_frames_dropped_total", "Frames dropped because the ring buffer was full",
			func(s tap.Stats) uint64 { return s.FramesDropped }),
		counter("bustap_frames_written_total", "Frames written to the sink",
			func(s tap.Stats) uint64 { return s.FramesWritten }),
		counter("bustap_batches_written_total", "Sink write calls",
			func(s tap.Stats) uint64 { return s.BatchesWritten }),
		counter("bustap_reconfigurations_total", "Sink reconfigurations",
			func(s tap.Stats) uint64 { return s.Reconfigurations }),
		counter("bustap_open_failures_total", "Failed sink open attempts",
			func(s tap.Stats) uint64 { return s.OpenFailures }),
		counter("bustap_write_failures_total", "Sink write failures that stopped the drain worker",
			func(s tap.Stats) uint64 { return s.WriteFailures }),
		gauge("bustap_ring_fill_frames", "Frames waiting in the ring buffer",
			func() float64 { return float64(m.source.Stats().RingFill) }),
		gauge("bustap_ring_capacity_frames", "Ring buffer capacity",
			func() float64 { return float64(m.source.Stats().RingCapacity) }),
		gauge("bustap_sink_open", "1 when a sink connection is held",
			func() float64 { return boolValue(m.source.Status().Open) }),
		gauge("bustap_worker_running", "1 when the drain worker is running",
			func() float64 { return boolValue(m.source.Status().Running) }),
	}
}

// Describe implements the Collector interface
func (m *TapMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *TapMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Endpoint serves /metrics for a registry
type Endpoint struct {
	server *http.Server
	log    logrus.FieldLogger
}

// NewEndpoint creates an endpoint listening on addr
func NewEndpoint(addr string, gatherer prometheus.Gatherer, log logrus.FieldLogger) *Endpoint {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Endpoint{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Handler returns the endpoint's HTTP handler
func (e *Endpoint) Handler() http.Handler {
	return e.server.Handler
}

// Start runs the HTTP server in the background
func (e *Endpoint) Start() {
	go func() {
		e.log.WithField("address", e.server.Addr).Info("Metrics endpoint starting")
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.WithError(err).Error("Metrics HTTP server error")
		}
	}()
}

// Stop shuts the server down
func (e *Endpoint) Stop(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}
