package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wavebar/wavebar/internal/audiocore"
)

// CaptureMetrics contains Prometheus metrics for the capture lifecycle and
// the shared channel it owns.
type CaptureMetrics struct {
	starts          *prometheus.CounterVec
	openFailures    *prometheus.CounterVec
	stopTimeouts    *prometheus.CounterVec
	stopDuration    *prometheus.HistogramVec
	state           *prometheus.GaugeVec
	sampleRate      *prometheus.GaugeVec
	formatMismatch  *prometheus.CounterVec
	channelReporter *channelCollector

	collectors []prometheus.Collector
}

// NewCaptureMetrics creates and registers capture metrics.
func NewCaptureMetrics(registry prometheus.Registerer) (*CaptureMetrics, error) {
	m := &CaptureMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CaptureMetrics) initMetrics() {
	m.starts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "capture_starts_total",
			Help:      "Capture goroutines started",
		},
		[]string{"backend"},
	)

	m.openFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "capture_open_failures_total",
			Help:      "Backend open or negotiation failures",
		},
		[]string{"backend"},
	)

	m.stopTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "capture_stop_timeouts_total",
			Help:      "Capture goroutines that did not exit within the stop grace period",
		},
		[]string{"backend"},
	)

	m.stopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "capture_stop_duration_seconds",
			Help:      "Time from termination request to join",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"backend"},
	)

	m.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "capture_state",
			Help:      "Lifecycle state: 0 uninitialized, 1 negotiating, 2 streaming, 3 terminate requested, 4 joined",
		},
		[]string{"backend"},
	)

	m.sampleRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "capture_sample_rate_hz",
			Help:      "Negotiated sample rate",
		},
		[]string{"backend"},
	)

	m.formatMismatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "capture_format_mismatches_total",
			Help:      "Negotiated format fields that differ from the requested ones",
		},
		[]string{"backend", "field"},
	)

	m.channelReporter = newChannelCollector()

	m.collectors = []prometheus.Collector{
		m.starts,
		m.openFailures,
		m.stopTimeouts,
		m.stopDuration,
		m.state,
		m.sampleRate,
		m.formatMismatch,
		m.channelReporter,
	}
}

// Describe implements the Collector interface
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordStart counts a capture goroutine launch.
func (m *CaptureMetrics) RecordStart(backend string) {
	m.starts.WithLabelValues(backend).Inc()
}

// RecordOpenFailure counts a failed backend open.
func (m *CaptureMetrics) RecordOpenFailure(backend string) {
	m.openFailures.WithLabelValues(backend).Inc()
}

// RecordStop observes how long the join took and whether it timed out.
func (m *CaptureMetrics) RecordStop(backend string, seconds float64, timedOut bool) {
	m.stopDuration.WithLabelValues(backend).Observe(seconds)
	if timedOut {
		m.stopTimeouts.WithLabelValues(backend).Inc()
	}
}

// SetState publishes the lifecycle state as its ordinal.
func (m *CaptureMetrics) SetState(backend string, state int) {
	m.state.WithLabelValues(backend).Set(float64(state))
}

// SetFormat publishes the negotiated format.
func (m *CaptureMetrics) SetFormat(backend string, f audiocore.Format) {
	m.sampleRate.WithLabelValues(backend).Set(float64(f.SampleRate))
}

// RecordFormatMismatch counts a negotiated field that overrode the request.
func (m *CaptureMetrics) RecordFormatMismatch(backend, field string) {
	m.formatMismatch.WithLabelValues(backend, field).Inc()
}

// AttachChannel exports the counters of ch until DetachChannel is called.
func (m *CaptureMetrics) AttachChannel(backend string, ch *audiocore.Channel) {
	m.channelReporter.attach(backend, ch)
}

// DetachChannel stops exporting channel counters.
func (m *CaptureMetrics) DetachChannel() {
	m.channelReporter.attach("", nil)
}

// channelCollector reads ChannelStats at scrape time so the hot path never
// touches Prometheus.
type channelCollector struct {
	mu      sync.Mutex
	backend string
	ch      *audiocore.Channel

	writes         *prometheus.Desc
	overruns       *prometheus.Desc
	overwrites     *prometheus.Desc
	samplesWritten *prometheus.Desc
	drains         *prometheus.Desc
	emptyDrains    *prometheus.Desc
	samplesDrained *prometheus.Desc
	unread         *prometheus.Desc
}

func newChannelCollector() *channelCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "channel", name), help, []string{"backend"}, nil)
	}
	return &channelCollector{
		writes:         desc("writes_total", "Write calls on the shared channel"),
		overruns:       desc("overruns_total", "Writes clamped to the channel capacity"),
		overwrites:     desc("overwrites_total", "Writes that replaced samples the consumer had not drained"),
		samplesWritten: desc("samples_written_total", "Samples made visible to the consumer"),
		drains:         desc("drains_total", "Drains that returned samples"),
		emptyDrains:    desc("empty_drains_total", "Drains that found nothing unread"),
		samplesDrained: desc("samples_drained_total", "Samples handed to the analyzer"),
		unread:         desc("unread_samples", "Samples waiting for the next drain"),
	}
}

func (c *channelCollector) attach(backend string, ch *audiocore.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend, c.ch = backend, ch
}

func (c *channelCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.writes, c.overruns, c.overwrites, c.samplesWritten,
		c.drains, c.emptyDrains, c.samplesDrained, c.unread,
	} {
		ch <- d
	}
}

func (c *channelCollector) Collect(out chan<- prometheus.Metric) {
	c.mu.Lock()
	backend, channel := c.backend, c.ch
	c.mu.Unlock()
	if channel == nil {
		return
	}

	s := channel.Stats()
	counter := func(d *prometheus.Desc, v uint64) {
		out <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), backend)
	}
	counter(c.writes, s.Writes)
	counter(c.overruns, s.Overruns)
	counter(c.overwrites, s.Overwrites)
	counter(c.samplesWritten, s.SamplesWritten)
	counter(c.drains, s.Drains)
	counter(c.emptyDrains, s.EmptyDrains)
	counter(c.samplesDrained, s.SamplesDrained)
	out <- prometheus.MustNewConstMetric(c.unread, prometheus.GaugeValue, float64(channel.Unread()), backend)
}
