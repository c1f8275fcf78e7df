// Package spectrum turns drained audio snapshots into smoothed, log-spaced
// bar heights in [0, 1].
package spectrum

import (
	"math"
	"time"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

const componentSpectrum = "spectrum"

// Defaults used when a PlanConfig field is zero.
const (
	DefaultBars           = 8
	DefaultNoiseReduction = 0.77
	DefaultLowCutoff      = 50
	DefaultHighCutoff     = 8000
	DefaultFrameRate      = 100

	maxBars       = 512
	maxSampleRate = 384000
	baseFFTSize   = 512
)

// PlanConfig parameterizes a Plan.
type PlanConfig struct {
	Bars           int // bars per channel
	SampleRate     int
	Channels       int // 1 or 2
	Autosens       bool
	NoiseReduction float64 // 0 disables smoothing, values near 1 smooth heavily
	LowCutoff      int     // Hz
	HighCutoff     int     // Hz
	FrameRate      int     // frames per second, drives the fall-off speed
	Log            logger.Logger
}

func (c PlanConfig) withDefaults() PlanConfig {
	if c.Bars == 0 {
		c.Bars = DefaultBars
	}
	if c.LowCutoff == 0 {
		c.LowCutoff = DefaultLowCutoff
	}
	if c.HighCutoff == 0 {
		c.HighCutoff = DefaultHighCutoff
	}
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultFrameRate
	}
	return c
}

func (c PlanConfig) validate() error {
	var problem string
	switch {
	case c.SampleRate < 1 || c.SampleRate > maxSampleRate:
		problem = "sample rate must be between 1 and 384000"
	case c.Channels < 1 || c.Channels > 2:
		problem = "only mono and stereo input is supported"
	case c.Bars < 1 || c.Bars > maxBars:
		problem = "bars per channel must be between 1 and 512"
	case c.NoiseReduction < 0 || c.NoiseReduction >= 1:
		problem = "noise reduction must be in [0, 1)"
	case c.LowCutoff < 1:
		problem = "low cutoff must be at least 1 Hz"
	case c.HighCutoff <= c.LowCutoff:
		problem = "high cutoff must be above low cutoff"
	case c.HighCutoff > c.SampleRate/2:
		problem = "high cutoff must not exceed half the sample rate"
	default:
		return nil
	}
	return errors.Newf("invalid spectrum plan: %s", problem).
		Component(componentSpectrum).
		Category(errors.CategoryValidation).
		Context("sample_rate", c.SampleRate).
		Context("channels", c.Channels).
		Context("bars", c.Bars).
		Build()
}

// fftSizeFor scales the transform with the sample rate so bass resolution
// stays roughly constant: 4096 points at 44.1 or 48 kHz.
func fftSizeFor(rate int) int {
	size := baseFFTSize
	for _, threshold := range []int{8125, 16250, 32500, 75000, 150000, 300000} {
		if rate > threshold {
			size *= 2
		}
	}
	return size
}

// barLayout splits [low, high] into log-spaced bands and maps their edges to
// FFT bins. Every band covers at least one bin.
func barLayout(cfg PlanConfig, fftSize int) (edges []int, centers []float64) {
	nyquistBin := fftSize / 2
	edges = make([]int, cfg.Bars+1)
	centers = make([]float64, cfg.Bars)

	low, high := float64(cfg.LowCutoff), float64(cfg.HighCutoff)
	ratio := high / low
	binWidth := float64(cfg.SampleRate) / float64(fftSize)

	for i := range edges {
		freq := low * math.Pow(ratio, float64(i)/float64(cfg.Bars))
		bin := int(math.Round(freq / binWidth))
		bin = max(bin, 1)
		if i > 0 && bin <= edges[i-1] {
			bin = edges[i-1] + 1
		}
		edges[i] = min(bin, nyquistBin)
	}
	for i := range centers {
		centers[i] = low * math.Pow(ratio, (float64(i)+0.5)/float64(cfg.Bars))
	}
	return edges, centers
}

// ConfigFromSettings builds a plan for the negotiated format.
func ConfigFromSettings(s conf.SpectrumSettings, f audiocore.Format, frameInterval time.Duration, log logger.Logger) PlanConfig {
	cfg := PlanConfig{
		Bars:           s.Bars,
		SampleRate:     f.SampleRate,
		Channels:       f.Channels,
		Autosens:       s.Autosens,
		NoiseReduction: s.NoiseReduction,
		LowCutoff:      s.LowCutoff,
		HighCutoff:     s.HighCutoff,
		Log:            log,
	}
	if frameInterval > 0 {
		cfg.FrameRate = int(time.Second / frameInterval)
	}
	return cfg
}
