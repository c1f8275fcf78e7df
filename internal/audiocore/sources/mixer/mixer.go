// Package mixer captures from the platform's audio input through PortAudio
// using a blocking input stream.
package mixer

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

const componentMixer = "mixer"

// DefaultFramesPerBuffer is the blocking read size in frames.
const DefaultFramesPerBuffer = 512

// Config selects the input device and requested format.
type Config struct {
	Device          string // device name or substring; "", "auto" or "default" pick the default input
	SampleRate      int    // 0 uses the device default
	Channels        int
	FramesPerBuffer int
}

// Backend is the PortAudio capture backend.
type Backend struct {
	cfg Config
	log logger.Logger

	mu          sync.Mutex // guards stream against Interrupt
	stream      *portaudio.Stream
	initialized bool
	interrupted atomic.Bool

	buf     []float32
	scratch []float64
}

// New creates an unopened backend.
func New(cfg Config, log logger.Logger) *Backend {
	if cfg.Channels <= 0 {
		cfg.Channels = audiocore.DefaultChannels
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = DefaultFramesPerBuffer
	}
	return &Backend{
		cfg: cfg,
		log: logger.Ensure(log).Module("capture").Module("mixer"),
	}
}

// Kind implements audiocore.Backend.
func (b *Backend) Kind() audiocore.BackendKind {
	return audiocore.BackendMixer
}

// Open initializes PortAudio, opens and starts a blocking input stream and
// records the rate the stream actually runs at.
func (b *Backend) Open(ch *audiocore.Channel) error {
	if err := portaudio.Initialize(); err != nil {
		return audiocore.OpenError(err, audiocore.BackendMixer, "initialize")
	}
	b.initialized = true

	device, err := findDevice(b.cfg.Device)
	if err != nil {
		return audiocore.OpenError(err, audiocore.BackendMixer, "select_device")
	}

	channels := min(b.cfg.Channels, device.MaxInputChannels)
	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = channels
	params.Output.Device = nil
	params.Output.Channels = 0
	params.FramesPerBuffer = b.cfg.FramesPerBuffer
	if b.cfg.SampleRate > 0 {
		params.SampleRate = float64(b.cfg.SampleRate)
	}

	b.buf = make([]float32, b.cfg.FramesPerBuffer*channels)
	b.scratch = make([]float64, len(b.buf))

	stream, err := portaudio.OpenStream(params, b.buf)
	if err != nil {
		return audiocore.OpenError(err, audiocore.BackendMixer, "open_stream")
	}
	b.mu.Lock()
	b.stream = stream
	b.mu.Unlock()

	if err := stream.Start(); err != nil {
		return audiocore.OpenError(err, audiocore.BackendMixer, "start_stream")
	}

	rate := params.SampleRate
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		rate = info.SampleRate
	}
	format := audiocore.Format{
		SampleRate: int(rate),
		Channels:   channels,
		FormatCode: 32,
		IsFloat:    true,
	}
	ch.SetFormat(format)

	b.log.Info("listening on input device",
		logger.String("device", device.Name),
		logger.String("format", format.String()))
	return nil
}

// findDevice resolves a configured name to an input device.
func findDevice(name string) (*portaudio.DeviceInfo, error) {
	switch strings.ToLower(name) {
	case "", "auto", "default":
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && d.Name == name {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(d.Name, name) {
			return d, nil
		}
	}
	return nil, errors.Newf("no input device matches %q", name).
		Component(componentMixer).
		Category(errors.CategoryNotFound).
		Context("device", name).
		Build()
}

// Stream performs blocking reads until termination. Input overflows drop
// samples inside PortAudio and are logged at debug level.
func (b *Backend) Stream(ch *audiocore.Channel) {
	var overflows uint64
	for !ch.ShouldTerminate() {
		if err := b.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				overflows++
				b.log.Debug("input overflowed", logger.Uint64("count", overflows))
			} else {
				if !b.interrupted.Load() {
					b.log.Error("stream read failed", logger.Error(err))
				}
				return
			}
		}
		n := audiocore.DecodeFloat32(b.scratch, b.buf)
		ch.Write(b.scratch[:n])
	}
}

// Interrupt aborts the stream, which fails a blocked Read.
func (b *Backend) Interrupt() {
	b.interrupted.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream != nil {
		_ = b.stream.Abort()
	}
}

// Close closes the stream and terminates PortAudio.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.stream != nil {
		if err := b.stream.Close(); err != nil {
			errs = append(errs, err)
		}
		b.stream = nil
	}
	if b.initialized {
		if err := portaudio.Terminate(); err != nil {
			errs = append(errs, err)
		}
		b.initialized = false
	}
	if err := errors.Join(errs...); err != nil {
		return errors.New(err).
			Component(componentMixer).
			Category(errors.CategoryResource).
			Context("operation", "close").
			Build()
	}
	return nil
}

// ListDevices enumerates PortAudio devices that have inputs.
func ListDevices() ([]audiocore.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []audiocore.DeviceInfo
	for i, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		info := audiocore.DeviceInfo{
			Index:      i,
			Name:       d.Name,
			Default:    def != nil && d.Name == def.Name && d.HostApi == def.HostApi,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
		}
		if d.HostApi != nil {
			info.ID = d.HostApi.Name + ":" + d.Name
		}
		out = append(out, info)
	}
	return out, nil
}
