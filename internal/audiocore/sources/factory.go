// Package sources builds the capture backend selected in configuration.
package sources

import (
	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/audiocore/sources/fifo"
	"github.com/wavebar/wavebar/internal/audiocore/sources/mixer"
	"github.com/wavebar/wavebar/internal/audiocore/sources/pulse"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

// New returns an unopened backend of the given kind configured from settings.
func New(kind audiocore.BackendKind, settings *conf.Settings, log logger.Logger) (audiocore.Backend, error) {
	a := settings.Audio
	switch kind {
	case audiocore.BackendFIFO:
		return fifo.New(fifo.Config{
			Path:           a.FIFO.Path,
			Create:         a.FIFO.Create,
			SampleRate:     a.SampleRate,
			Channels:       a.Channels,
			BitDepth:       a.BitDepth,
			SilenceTimeout: a.FIFO.SilenceTimeout,
			ReadTimeout:    settings.Capture.PollInterval,
		}, log), nil
	case audiocore.BackendPulse:
		return pulse.New(pulse.Config{
			Source:     a.Source,
			SampleRate: a.SampleRate,
			Channels:   a.Channels,
			BitDepth:   a.BitDepth,
		}, log), nil
	case audiocore.BackendMixer:
		device := a.Source
		if device == pulse.AutoSource {
			device = ""
		}
		return mixer.New(mixer.Config{
			Device:     device,
			SampleRate: a.SampleRate,
			Channels:   a.Channels,
		}, log), nil
	default:
		return nil, errors.Newf("unknown audio backend %s", kind).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("resource", "backend").
			Build()
	}
}

// FromSettings parses audio.backend and builds that backend.
func FromSettings(settings *conf.Settings, log logger.Logger) (audiocore.Backend, error) {
	kind, err := audiocore.ParseBackendKind(settings.Audio.Backend)
	if err != nil {
		return nil, err
	}
	return New(kind, settings, log)
}

// ListDevices enumerates capture devices for backends that have them.
// The fifo backend has no devices and returns an empty list.
func ListDevices(kind audiocore.BackendKind) ([]audiocore.DeviceInfo, error) {
	switch kind {
	case audiocore.BackendPulse:
		return pulse.ListDevices()
	case audiocore.BackendMixer:
		return mixer.ListDevices()
	default:
		return nil, nil
	}
}
