package overlay

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
	"github.com/wavebar/wavebar/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// toneBackend produces a stereo 1 kHz sine until told to stop.
type toneBackend struct {
	openErr error
	phase   float64
	closes  atomic.Int32
}

const toneRate = 48000

func (b *toneBackend) Kind() audiocore.BackendKind { return audiocore.BackendFIFO }

func (b *toneBackend) Open(ch *audiocore.Channel) error {
	if b.openErr != nil {
		return b.openErr
	}
	ch.SetFormat(audiocore.Format{SampleRate: toneRate, Channels: 2, FormatCode: 16})
	ch.Write(b.chunk(2048))
	return nil
}

func (b *toneBackend) Stream(ch *audiocore.Channel) {
	for !ch.ShouldTerminate() {
		ch.Write(b.chunk(256))
		time.Sleep(time.Millisecond)
	}
}

func (b *toneBackend) chunk(frames int) []float64 {
	out := make([]float64, 0, frames*2)
	for range frames {
		v := 0.5 * math.Sin(b.phase)
		out = append(out, v, v)
		b.phase += 2 * math.Pi * 1000 / toneRate
	}
	return out
}

func (b *toneBackend) Interrupt() {}

func (b *toneBackend) Close() error {
	b.closes.Add(1)
	return nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Audio.Backend = "fifo"
	s.Audio.SampleRate = toneRate
	s.Audio.BitDepth = 16
	s.Audio.Channels = 2
	s.Audio.BufferSize = conf.DefaultBufferSize
	s.Capture.NegotiationTimeout = time.Second
	s.Capture.StopTimeout = time.Second
	s.Capture.PollInterval = time.Millisecond
	s.Render.FrameInterval = time.Millisecond
	s.Render.Output = "text"
	s.Spectrum.Bars = 8
	s.Spectrum.NoiseReduction = 0.77
	s.Spectrum.Autosens = true
	s.Spectrum.LowCutoff = 50
	s.Spectrum.HighCutoff = 8000
	s.Record.Path = filepath.Join(t.TempDir(), "capture.wav")
	return s
}

func TestRunDrawsFramesAndRecords(t *testing.T) {
	settings := testSettings(t)
	settings.Record.Enabled = true

	backend := &toneBackend{}
	var out bytes.Buffer
	err := Run(t.Context(), settings, logger.NewDiscardLogger(), Options{
		Backend:   backend,
		Output:    &out,
		MaxFrames: 10,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "\r")
	assert.EqualValues(t, 1, backend.closes.Load(), "backend closed once after the join")

	info, err := os.Stat(settings.Record.Path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44), "recording holds samples past the header")
}

func TestRunStopsOnCancel(t *testing.T) {
	settings := testSettings(t)
	settings.Render.Output = "none"

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	backend := &toneBackend{}
	err := Run(ctx, settings, logger.NewDiscardLogger(), Options{Backend: backend})
	require.NoError(t, err)
	assert.EqualValues(t, 1, backend.closes.Load())
}

func TestRunOpenFailureDrawsNothing(t *testing.T) {
	settings := testSettings(t)

	backend := &toneBackend{openErr: errors.NewStd("device busy")}
	var out bytes.Buffer
	err := Run(t.Context(), settings, logger.NewDiscardLogger(), Options{
		Backend: backend,
		Output:  &out,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, audiocore.ErrBackendOpen))
	assert.Empty(t, out.String())
	assert.EqualValues(t, 1, backend.closes.Load())
}

func TestRunRejectsUnknownOutput(t *testing.T) {
	settings := testSettings(t)
	settings.Render.Output = "svg"

	backend := &toneBackend{}
	err := Run(t.Context(), settings, logger.NewDiscardLogger(), Options{Backend: backend})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.EqualValues(t, 1, backend.closes.Load(), "capture stopped after a render setup failure")
}

func TestRunRecordsFrameMetrics(t *testing.T) {
	settings := testSettings(t)
	settings.Render.Output = "none"

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	err = Run(t.Context(), settings, logger.NewDiscardLogger(), Options{
		Backend:   &toneBackend{},
		Metrics:   m,
		MaxFrames: 5,
	})
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["wavebar_frames_total"])
	assert.True(t, names["wavebar_capture_starts_total"])
}

func TestRunServesTelemetry(t *testing.T) {
	settings := testSettings(t)
	settings.Render.Output = "none"
	settings.Telemetry.Enabled = true
	settings.Telemetry.Listen = "127.0.0.1:0"

	err := Run(t.Context(), settings, logger.NewDiscardLogger(), Options{
		Backend:   &toneBackend{},
		MaxFrames: 3,
	})
	require.NoError(t, err)
}

func TestRunTelemetryBadAddress(t *testing.T) {
	settings := testSettings(t)
	settings.Telemetry.Enabled = true
	settings.Telemetry.Listen = "256.0.0.1:bad"

	backend := &toneBackend{}
	err := Run(t.Context(), settings, logger.NewDiscardLogger(), Options{Backend: backend})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	assert.Zero(t, backend.closes.Load(), "capture never started")
}
