// Package overlay runs the visualizer: it starts capture, waits for the
// negotiated format, and drives the drain, analyze and draw cycle once per
// frame until the context is cancelled.
package overlay

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/audiocore/capture"
	"github.com/wavebar/wavebar/internal/audiocore/export"
	"github.com/wavebar/wavebar/internal/audiocore/sources"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
	"github.com/wavebar/wavebar/internal/observability"
	"github.com/wavebar/wavebar/internal/render"
	"github.com/wavebar/wavebar/internal/spectrum"
)

const componentOverlay = "overlay"

// Initialization stages reported when Run fails before the first frame.
const (
	StageBackend  = "backend"
	StageCapture  = "capture"
	StageSpectrum = "spectrum"
	StageRender   = "render"
	StageMetrics  = "metrics"
)

// Options overrides the pieces Run would otherwise build from settings.
type Options struct {
	Backend   audiocore.Backend // nil builds one with sources.FromSettings
	Output    io.Writer         // nil writes to os.Stdout
	Metrics   *observability.Metrics
	MaxFrames int // stop after this many frames, 0 runs until ctx is done
}

// Run blocks until ctx is cancelled, MaxFrames is reached, or initialization
// fails. Capture is always stopped before Run returns.
func Run(ctx context.Context, settings *conf.Settings, root logger.Logger, opts Options) error {
	root = logger.Ensure(root)
	log := root.Module(componentOverlay)

	var (
		wg   sync.WaitGroup
		quit = make(chan struct{})
	)
	defer func() {
		close(quit)
		wg.Wait()
	}()

	m, err := startMetrics(settings, opts.Metrics, root, &wg, quit)
	if err != nil {
		return initFailed(log, StageMetrics, err)
	}

	backend := opts.Backend
	if backend == nil {
		backend, err = sources.FromSettings(settings, root)
		if err != nil {
			return initFailed(log, StageBackend, err)
		}
	}

	captureOpts := []capture.Option{capture.WithLogger(root)}
	if m != nil {
		captureOpts = append(captureOpts, capture.WithMetrics(m.Capture))
	}
	handle, err := capture.Start(capture.ConfigFromSettings(settings), backend, captureOpts...)
	if err != nil {
		return initFailed(log, StageCapture, err)
	}

	loopErr := runFrames(ctx, settings, handle, m, root, opts)

	stopErr := handle.Stop(settings.Capture.StopTimeout)
	if stopErr != nil && !errors.Is(stopErr, audiocore.ErrTerminationTimeout) {
		log.Warn("capture shutdown failed", logger.Error(stopErr))
	}
	return errors.Join(loopErr, stopErr)
}

// runFrames negotiates the format, builds the analyzer and renderer for it
// and then ticks until done.
func runFrames(ctx context.Context, settings *conf.Settings, handle *capture.Handle, m *observability.Metrics, root logger.Logger, opts Options) error {
	log := root.Module(componentOverlay)

	format, err := handle.AwaitFormat(settings.Capture.NegotiationTimeout)
	if err != nil {
		return initFailed(log, StageCapture, err)
	}

	interval := settings.Render.FrameInterval
	if interval <= 0 {
		interval = conf.DefaultFrameRate
	}

	plan, err := spectrum.NewPlan(spectrum.ConfigFromSettings(settings.Spectrum, format, interval, root))
	if err != nil {
		return initFailed(log, StageSpectrum, err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	layout := render.Layout{
		Height:   settings.Render.Height,
		BarWidth: settings.Render.BarWidth,
		Gap:      settings.Render.Gap,
	}
	renderer, err := render.New(settings.Render.Output, out, layout, plan.Bars())
	if err != nil {
		return initFailed(log, StageRender, err)
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			log.Warn("failed to restore terminal", logger.Error(err))
		}
	}()

	drainOpts := []audiocore.DrainerOption{audiocore.WithDrainLogger(log)}
	if settings.Record.Enabled {
		rec := export.NewWAVRecorder(settings.Record.Path, root)
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn("failed to finalize recording", logger.String("path", settings.Record.Path), logger.Error(err))
			}
		}()
		drainOpts = append(drainOpts, audiocore.WithTap(rec))
	}
	drainer := audiocore.NewDrainer(handle.Channel(), plan, drainOpts...)

	log.Info("visualizer running",
		logger.String("format", format.String()),
		logger.Int("bars", plan.Bars()),
		logger.Int("fft_size", plan.FFTSize()),
		logger.Duration("frame_interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug("frame loop cancelled", logger.Int("frames", frames))
			return nil
		case <-handle.Done():
			return errors.Newf("capture exited while rendering").
				Component(componentOverlay).
				Category(errors.CategoryAudioSource).
				Context("frames", frames).
				Build()
		case <-ticker.C:
		}

		start := time.Now()
		frame := drainer.Frame()
		if err := renderer.Draw(frame.Bars); err != nil {
			return err
		}
		if m != nil {
			m.Frame.RecordFrame(frame.Samples, len(frame.Bars), time.Since(start).Seconds())
		}

		frames++
		if opts.MaxFrames > 0 && frames >= opts.MaxFrames {
			return nil
		}
	}
}

// startMetrics returns the metrics to record into and, when telemetry is
// enabled, serves them until quit is closed.
func startMetrics(settings *conf.Settings, m *observability.Metrics, root logger.Logger, wg *sync.WaitGroup, quit <-chan struct{}) (*observability.Metrics, error) {
	if !settings.Telemetry.Enabled {
		return m, nil
	}
	if m == nil {
		var err error
		if m, err = observability.NewMetrics(); err != nil {
			return nil, err
		}
	}
	endpoint, err := observability.NewEndpoint(settings, m, root)
	if err != nil {
		return nil, err
	}
	if err := endpoint.Start(wg, quit); err != nil {
		return nil, err
	}
	return m, nil
}

func initFailed(log logger.Logger, stage string, err error) error {
	log.Error("initialization failed", logger.String("stage", stage), logger.Error(err))
	return err
}
