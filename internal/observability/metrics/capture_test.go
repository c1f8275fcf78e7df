package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavebar/wavebar/internal/audiocore"
)

func TestCaptureMetricsLifecycle(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewCaptureMetrics(registry)
	require.NoError(t, err)

	m.RecordStart("pulse")
	m.RecordStart("pulse")
	m.RecordOpenFailure("fifo")
	m.RecordStop("pulse", 0.01, false)
	m.RecordStop("pulse", 2.5, true)
	m.SetState("pulse", 2)
	m.SetFormat("pulse", audiocore.Format{SampleRate: 48000, Channels: 2, FormatCode: 16})
	m.RecordFormatMismatch("pulse", "sample_rate")

	assert.InDelta(t, 2, testutil.ToFloat64(m.starts.WithLabelValues("pulse")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.openFailures.WithLabelValues("fifo")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.stopTimeouts.WithLabelValues("pulse")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.state.WithLabelValues("pulse")), 0)
	assert.InDelta(t, 48000, testutil.ToFloat64(m.sampleRate.WithLabelValues("pulse")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.formatMismatch.WithLabelValues("pulse", "sample_rate")), 0)
}

func TestCaptureMetricsDoubleRegister(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewCaptureMetrics(registry)
	require.NoError(t, err)

	_, err = NewCaptureMetrics(registry)
	assert.Error(t, err)
}

func TestChannelCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewCaptureMetrics(registry)
	require.NoError(t, err)

	// Nothing attached: no channel series.
	assert.Equal(t, 0, testutil.CollectAndCount(m.channelReporter))

	ch := audiocore.NewChannel(4)
	ch.Write([]float64{1, 2, 3, 4, 5})
	ch.Write([]float64{6})
	dst := make([]float64, 4)
	ch.Drain(dst)
	ch.Drain(dst)

	m.AttachChannel("fifo", ch)

	expected := `
# HELP wavebar_channel_overruns_total Writes clamped to the channel capacity
# TYPE wavebar_channel_overruns_total counter
wavebar_channel_overruns_total{backend="fifo"} 1
# HELP wavebar_channel_empty_drains_total Drains that found nothing unread
# TYPE wavebar_channel_empty_drains_total counter
wavebar_channel_empty_drains_total{backend="fifo"} 1
# HELP wavebar_channel_unread_samples Samples waiting for the next drain
# TYPE wavebar_channel_unread_samples gauge
wavebar_channel_unread_samples{backend="fifo"} 0
`
	require.NoError(t, testutil.CollectAndCompare(m.channelReporter, strings.NewReader(expected),
		"wavebar_channel_overruns_total",
		"wavebar_channel_empty_drains_total",
		"wavebar_channel_unread_samples",
	))

	m.DetachChannel()
	assert.Equal(t, 0, testutil.CollectAndCount(m.channelReporter))
}

func TestFrameMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewFrameMetrics(registry)
	require.NoError(t, err)

	m.RecordFrame(512, 16, 0.001)
	m.RecordFrame(0, 16, 0.0005)
	m.RecordFrame(0, 16, 0.0005)

	assert.InDelta(t, 1, testutil.ToFloat64(m.frames.WithLabelValues(FrameResultSamples)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.frames.WithLabelValues(FrameResultEmpty)), 0)
	assert.InDelta(t, 16, testutil.ToFloat64(m.bars), 0)
}
