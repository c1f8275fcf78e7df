// Package export writes drained capture snapshots to disk.
package export

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

const componentExport = "export"

// wavBitDepth is the sample width of recordings.
const wavBitDepth = 16

// WAVRecorder is an audiocore.Tap that appends every drained snapshot to a
// 16-bit PCM WAV file. The file is created on the first snapshot, using the
// negotiated format at that point.
type WAVRecorder struct {
	path string
	log  logger.Logger

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	format  audiocore.Format
	ints    []int
	samples int64
	closed  bool
}

// NewWAVRecorder returns a recorder that will write to path.
func NewWAVRecorder(path string, log logger.Logger) *WAVRecorder {
	return &WAVRecorder{
		path: path,
		log:  logger.Ensure(log).Module("export"),
	}
}

// Consume implements audiocore.Tap.
func (r *WAVRecorder) Consume(samples []float64, f audiocore.Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.fail("write", errors.NewStd("recorder closed"))
	}
	if !f.Negotiated() || len(samples) == 0 {
		return nil
	}

	if r.enc == nil {
		if err := r.open(f); err != nil {
			return err
		}
	} else if f.SampleRate != r.format.SampleRate || f.Channels != r.format.Channels {
		return errors.Newf("capture format changed from %s to %s", r.format, f).
			Component(componentExport).
			Category(errors.CategoryValidation).
			Context("resource", "audio_format").
			FileContext(r.path).
			Build()
	}

	// Keep whole frames; a truncated snapshot loses its oldest samples.
	if extra := len(samples) % r.format.Channels; extra != 0 {
		samples = samples[extra:]
	}
	if cap(r.ints) < len(samples) {
		r.ints = make([]int, len(samples))
	}
	ints := r.ints[:len(samples)]
	audiocore.EncodeS16(ints, samples)

	buf := &audio.IntBuffer{
		Data:           ints,
		Format:         &audio.Format{SampleRate: r.format.SampleRate, NumChannels: r.format.Channels},
		SourceBitDepth: wavBitDepth,
	}
	if err := r.enc.Write(buf); err != nil {
		return r.fail("write", err)
	}
	r.samples += int64(len(ints))
	return nil
}

func (r *WAVRecorder) open(f audiocore.Format) error {
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return r.fail("mkdir", err)
		}
	}
	file, err := os.Create(r.path)
	if err != nil {
		return r.fail("create", err)
	}
	r.file = file
	r.format = f
	r.enc = wav.NewEncoder(file, f.SampleRate, wavBitDepth, f.Channels, 1)
	r.log.Info("recording capture", logger.String("path", r.path), logger.String("format", f.String()))
	return nil
}

// Samples returns the number of samples written so far.
func (r *WAVRecorder) Samples() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Close finalizes the WAV header and closes the file. A recorder that never
// received audio leaves no file behind.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.enc == nil {
		return nil
	}

	var errs []error
	if err := r.enc.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return r.fail("close", err)
	}
	r.log.Info("recording finished", logger.String("path", r.path), logger.Int64("samples", r.samples))
	return nil
}

func (r *WAVRecorder) fail(operation string, err error) error {
	return errors.New(err).
		Component(componentExport).
		Category(errors.CategoryFileIO).
		FileContext(r.path).
		Context("operation", operation).
		Build()
}
