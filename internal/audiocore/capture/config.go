// Package capture owns the capture goroutine: it binds a backend to a fresh
// shared channel, reports the negotiated format and joins the goroutine with a
// bounded grace period on shutdown.
package capture

import (
	"time"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/logger"
)

// Config controls one capture handle.
type Config struct {
	Capacity           int              // channel capacity in samples
	Requested          audiocore.Format // format asked of the backend, used to report overrides
	NegotiationTimeout time.Duration
	StopTimeout        time.Duration
	PollInterval       time.Duration // termination poll period while parked after an open failure
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Capacity: audiocore.DefaultCapacity,
		Requested: audiocore.Format{
			SampleRate: conf.DefaultSampleRate,
			Channels:   conf.DefaultChannels,
			FormatCode: conf.DefaultBitDepth,
		},
		NegotiationTimeout: conf.DefaultNegotiation,
		StopTimeout:        conf.DefaultStopTimeout,
		PollInterval:       conf.DefaultPollInterval,
	}
}

// ConfigFromSettings maps loaded settings onto a Config.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := Config{
		Capacity: settings.Audio.BufferSize,
		Requested: audiocore.Format{
			SampleRate: settings.Audio.SampleRate,
			Channels:   settings.Audio.Channels,
			FormatCode: settings.Audio.BitDepth,
		},
		NegotiationTimeout: settings.Capture.NegotiationTimeout,
		StopTimeout:        settings.Capture.StopTimeout,
		PollInterval:       settings.Capture.PollInterval,
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.NegotiationTimeout <= 0 {
		c.NegotiationTimeout = d.NegotiationTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = d.StopTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// Recorder receives lifecycle events for metrics export.
// *metrics.CaptureMetrics implements it.
type Recorder interface {
	RecordStart(backend string)
	RecordOpenFailure(backend string)
	RecordStop(backend string, seconds float64, timedOut bool)
	SetState(backend string, state int)
	SetFormat(backend string, f audiocore.Format)
	RecordFormatMismatch(backend, field string)
	AttachChannel(backend string, ch *audiocore.Channel)
	DetachChannel()
}

type nopRecorder struct{}

func (nopRecorder) RecordStart(string) {}
func (nopRecorder) RecordOpenFailure(string) {}
func (nopRecorder) RecordStop(string, float64, bool) {}
func (nopRecorder) SetState(string, int) {}
func (nopRecorder) SetFormat(string, audiocore.Format) {}
func (nopRecorder) RecordFormatMismatch(string, string) {}
func (nopRecorder) AttachChannel(string, *audiocore.Channel) {}
func (nopRecorder) DetachChannel() {}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the parent logger; the handle logs under module "capture".
func WithLogger(l logger.Logger) Option {
	return func(h *Handle) {
		h.log = l
	}
}

// WithMetrics routes lifecycle events to r.
func WithMetrics(r Recorder) Option {
	return func(h *Handle) {
		if r != nil {
			h.metrics = r
		}
	}
}
