package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/bustap/pkg/audio"
	"github.com/Resonate-Protocol/bustap/pkg/tap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	stats  tap.Stats
	status tap.Status
}

func (f *fakeSource) ID() string         { return "tap-1" }
func (f *fakeSource) Backend() string    { return "pulse" }
func (f *fakeSource) Stats() tap.Stats   { return f.stats }
func (f *fakeSource) Status() tap.Status { return f.status }

func TestTapMetricsReadAtScrape(t *testing.T) {
	registry := prometheus.NewRegistry()
	src := &fakeSource{}
	_, err := NewTapMetrics(registry, src)
	require.NoError(t, err)

	src.stats = tap.Stats{
		FramesPushed:     1000,
		FramesDropped:    24,
		FramesWritten:    960,
		BatchesWritten:   10,
		Reconfigurations: 2,
		OpenFailures:     1,
		RingFill:         16,
		RingCapacity:     4096,
	}
	src.status = tap.Status{Open: true, Running: true}

	expected := `
# HELP bustap_frames_dropped_total Frames dropped because the ring buffer was full
# TYPE bustap_frames_dropped_total counter
bustap_frames_dropped_total{backend="pulse",tap="tap-1"} 24
# HELP bustap_ring_fill_frames Frames waiting in the ring buffer
# TYPE bustap_ring_fill_frames gauge
bustap_ring_fill_frames{backend="pulse",tap="tap-1"} 16
# HELP bustap_worker_running 1 when the drain worker is running
# TYPE bustap_worker_running gauge
bustap_worker_running{backend="pulse",tap="tap-1"} 1
`
	err = testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"bustap_frames_dropped_total", "bustap_ring_fill_frames", "bustap_worker_running")
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	assert.Equal(t, 11, count)
}

func TestTapMetricsWithRealTap(t *testing.T) {
	tp, err := tap.New(tap.Config{Backend: "discard"})
	require.NoError(t, err)
	defer tp.Close()

	registry := prometheus.NewRegistry()
	m, err := NewTapMetrics(registry, tp)
	require.NoError(t, err)

	tp.Process(make([]audio.Frame, 8), nil)

	assert.Equal(t, 8.0, testutil.ToFloat64(m.collectors[0]))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collectors[4]), "first cycle opens the sink")

	_, err = NewTapMetrics(registry, tp)
	assert.Error(t, err, "duplicate registration")
}

func TestEndpointServesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewTapMetrics(registry, &fakeSource{stats: tap.Stats{FramesWritten: 42}})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	e := NewEndpoint("127.0.0.1:0", registry, logger)

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `bustap_frames_written_total{backend="pulse",tap="tap-1"} 42`)
}
