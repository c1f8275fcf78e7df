// Package pulse captures from a PulseAudio source through miniaudio (malgo).
// Samples arrive on malgo's callback thread and are written straight into the
// shared channel; the capture goroutine only waits for termination.
package pulse

import (
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

const componentPulse = "pulse"

// DefaultSampleRate and DefaultBitDepth are requested when the caller leaves them unset.
const (
	DefaultSampleRate = 44100
	DefaultBitDepth   = 16
)

const pollInterval = 10 * time.Millisecond

// Config selects the source and the format requested from the server.
type Config struct {
	Source     string // device name, decoded ID or AutoSource
	SampleRate int
	Channels   int
	BitDepth   int
}

// Backend is the PulseAudio capture backend.
type Backend struct {
	cfg Config
	log logger.Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device
	format audiocore.Format

	// scratch is touched only on the malgo callback thread.
	scratch []float64

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates an unopened backend.
func New(cfg Config, log logger.Logger) *Backend {
	if cfg.Source == "" {
		cfg.Source = AutoSource
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = audiocore.DefaultChannels
	}
	if cfg.BitDepth <= 0 {
		cfg.BitDepth = DefaultBitDepth
	}
	return &Backend{
		cfg:     cfg,
		log:     logger.Ensure(log).Module("capture").Module("pulse"),
		stopped: make(chan struct{}),
	}
}

// Kind implements audiocore.Backend.
func (b *Backend) Kind() audiocore.BackendKind {
	return audiocore.BackendPulse
}

// Open connects to the server, selects the source and starts the device.
// The device's negotiated rate, channel count and sample format replace the
// requested ones.
func (b *Backend) Open(ch *audiocore.Channel) error {
	ctx, err := malgo.InitContext([]malgo.Backend{malgo.BackendPulseaudio}, malgo.ContextConfig{}, func(message string) {
		b.log.Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return audiocore.OpenError(err, audiocore.BackendPulse, "init_context")
	}
	b.ctx = ctx

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return audiocore.OpenError(err, audiocore.BackendPulse, "enumerate_devices")
	}

	selected, err := SelectDevice(describeDevices(infos), b.cfg.Source)
	if err != nil {
		return audiocore.OpenError(err, audiocore.BackendPulse, "select_source")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgoFormat(b.cfg.BitDepth)
	deviceConfig.Capture.Channels = uint32(b.cfg.Channels)
	deviceConfig.Capture.DeviceID = infos[selected.Index].ID.Pointer()
	deviceConfig.SampleRate = uint32(b.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			b.onData(ch, input)
		},
		Stop: b.onStop,
	})
	if err != nil {
		return audiocore.OpenError(err, audiocore.BackendPulse, "init_device")
	}
	b.device = device

	bits, isFloat, err := sampleFormat(device.CaptureFormat())
	if err != nil {
		return audiocore.OpenError(err, audiocore.BackendPulse, "negotiate_format")
	}
	b.format = audiocore.Format{
		SampleRate: int(device.SampleRate()),
		Channels:   int(device.CaptureChannels()),
		FormatCode: bits,
		IsFloat:    isFloat,
	}

	// The data callback reads b.format, so it is filled in before Start. The
	// channel only learns the format once the device is running.
	if err := device.Start(); err != nil {
		return audiocore.OpenError(err, audiocore.BackendPulse, "start_device")
	}
	ch.SetFormat(b.format)

	b.log.Info("listening on source",
		logger.String("source", selected.Name),
		logger.String("id", selected.ID),
		logger.String("format", b.format.String()))
	return nil
}

// onData converts one callback buffer and publishes it.
func (b *Backend) onData(ch *audiocore.Channel, input []byte) {
	width := b.format.BytesPerSample()
	if width == 0 || len(input) == 0 {
		return
	}
	samples := len(input) / width
	if cap(b.scratch) < samples {
		b.scratch = make([]float64, samples)
	}
	n, err := audiocore.DecodePCM(b.scratch[:samples], input, b.format.FormatCode, b.format.IsFloat)
	if err != nil {
		return
	}
	ch.Write(b.scratch[:n])
}

func (b *Backend) onStop() {
	b.log.Debug("device stopped")
	b.signalStop()
}

func (b *Backend) signalStop() {
	b.stopOnce.Do(func() { close(b.stopped) })
}

// Stream waits until termination is requested or the device stops.
func (b *Backend) Stream(ch *audiocore.Channel) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for !ch.ShouldTerminate() {
		select {
		case <-b.stopped:
			if !ch.ShouldTerminate() {
				b.log.Warn("device stopped unexpectedly")
			}
			return
		case <-ticker.C:
		}
	}
}

// Interrupt wakes Stream. The device itself is stopped in Close.
func (b *Backend) Interrupt() {
	b.signalStop()
}

// Close releases the device and the malgo context.
func (b *Backend) Close() error {
	var errs []error
	if b.device != nil {
		// Uninit stops a running device.
		b.device.Uninit()
		b.device = nil
	}
	if b.ctx != nil {
		if err := b.ctx.Uninit(); err != nil {
			errs = append(errs, err)
		}
		b.ctx.Free()
		b.ctx = nil
	}
	if err := errors.Join(errs...); err != nil {
		return errors.New(err).
			Component(componentPulse).
			Category(errors.CategoryResource).
			Context("operation", "close").
			Build()
	}
	return nil
}
