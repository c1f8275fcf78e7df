package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FrameMetrics covers the overlay frame loop.
type FrameMetrics struct {
	frames   *prometheus.CounterVec
	duration prometheus.Histogram
	bars     prometheus.Gauge
}

// NewFrameMetrics creates and registers frame loop metrics.
func NewFrameMetrics(registry prometheus.Registerer) (*FrameMetrics, error) {
	m := &FrameMetrics{
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "frames_total",
				Help:      "Frames processed, by whether new samples were drained",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "frame_duration_seconds",
				Help:      "Time spent draining, analyzing and rendering one frame",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
			},
		),
		bars: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "frame_bars",
				Help:      "Number of bars produced by the analyzer",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.frames, m.duration, m.bars} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordFrame records one frame loop iteration.
func (m *FrameMetrics) RecordFrame(samples, bars int, seconds float64) {
	result := FrameResultEmpty
	if samples > 0 {
		result = FrameResultSamples
	}
	m.frames.WithLabelValues(result).Inc()
	m.duration.Observe(seconds)
	m.bars.Set(float64(bars))
}
