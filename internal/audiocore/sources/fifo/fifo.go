// Package fifo captures raw little-endian PCM from a named pipe, as written
// by music players such as mpd.
package fifo

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

const componentFIFO = "sources.fifo"

// Defaults for the pipe reader.
const (
	DefaultReadTimeout = 10 * time.Millisecond
	DefaultChunkFrames = 1024
)

// Config describes the pipe and the PCM it carries. The pipe has no header,
// so the format is taken as configured.
type Config struct {
	Path           string
	Create         bool // create the pipe with mkfifo when missing
	SampleRate     int
	Channels       int
	BitDepth       int
	SilenceTimeout time.Duration // feed zeros after this long without data, 0 disables
	ReadTimeout    time.Duration // read deadline, bounds termination latency
	ChunkFrames    int           // frames per read
}

// Backend is the named-pipe capture backend.
type Backend struct {
	cfg Config
	log logger.Logger

	mu   sync.Mutex // guards file against Interrupt
	file *os.File

	wake     chan struct{}
	wakeOnce sync.Once

	frameBytes int
	readBuf    []byte
	frameBuf   []byte
	carry      *ringbuffer.RingBuffer
	scratch    []float64
	silence    []float64
}

// New creates an unopened backend.
func New(cfg Config, log logger.Logger) *Backend {
	if cfg.Channels <= 0 {
		cfg.Channels = audiocore.DefaultChannels
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.ChunkFrames <= 0 {
		cfg.ChunkFrames = DefaultChunkFrames
	}
	return &Backend{
		cfg:  cfg,
		log:  logger.Ensure(log).Module("capture").Module("fifo"),
		wake: make(chan struct{}),
	}
}

// Kind implements audiocore.Backend.
func (b *Backend) Kind() audiocore.BackendKind {
	return audiocore.BackendFIFO
}

// Open opens the pipe without waiting for a writer and records the
// configured format.
func (b *Backend) Open(ch *audiocore.Channel) error {
	format := audiocore.Format{
		SampleRate: b.cfg.SampleRate,
		Channels:   b.cfg.Channels,
		FormatCode: b.cfg.BitDepth,
	}
	if format.BytesPerSample() == 0 || format.SampleRate <= 0 {
		err := errors.Newf("invalid fifo format: %d Hz, %d-bit", b.cfg.SampleRate, b.cfg.BitDepth).
			Component(componentFIFO).
			Category(errors.CategoryValidation).
			Context("resource", "audio_format").
			Build()
		return audiocore.OpenError(err, audiocore.BackendFIFO, "validate_format")
	}

	if b.cfg.Create {
		if err := createFIFO(b.cfg.Path); err != nil {
			return audiocore.OpenError(err, audiocore.BackendFIFO, "create_fifo")
		}
	}

	f, err := openFIFO(b.cfg.Path)
	if err != nil {
		return audiocore.OpenError(errors.New(err).
			Component(componentFIFO).
			Category(errors.CategoryFileIO).
			FileContext(b.cfg.Path).
			Build(), audiocore.BackendFIFO, "open_fifo")
	}
	if err := checkPipe(f, b.cfg.Path); err != nil {
		_ = f.Close()
		return audiocore.OpenError(err, audiocore.BackendFIFO, "check_fifo")
	}

	b.mu.Lock()
	b.file = f
	b.mu.Unlock()

	b.frameBytes = format.BytesPerSample() * format.Channels
	chunkBytes := b.cfg.ChunkFrames * b.frameBytes
	b.readBuf = make([]byte, chunkBytes)
	b.frameBuf = make([]byte, chunkBytes+b.frameBytes)
	b.carry = ringbuffer.New(chunkBytes + b.frameBytes)
	b.scratch = make([]float64, len(b.frameBuf)/format.BytesPerSample())
	b.silence = make([]float64, b.cfg.ChunkFrames*format.Channels)

	ch.SetFormat(format)
	b.log.Info("reading from fifo",
		logger.String("path", b.cfg.Path),
		logger.String("format", format.String()))
	return nil
}

// Stream reads until termination is requested. Reads carry a deadline so
// the loop observes termination with or without a writer attached.
func (b *Backend) Stream(ch *audiocore.Channel) {
	lastData := time.Now()
	silent := false
	deadlineWarned := false

	for !ch.ShouldTerminate() {
		if err := b.file.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout)); err != nil && !deadlineWarned {
			b.log.Warn("fifo does not support read deadlines", logger.Error(err))
			deadlineWarned = true
		}

		n, err := b.file.Read(b.readBuf)
		if n > 0 {
			lastData = time.Now()
			if silent {
				b.log.Debug("fifo data resumed")
				silent = false
			}
			b.consume(ch, b.readBuf[:n])
			continue
		}

		switch {
		case err == nil, errors.Is(err, os.ErrDeadlineExceeded):
		case errors.Is(err, io.EOF):
			// No writer attached; a read would return immediately.
			b.sleep(b.cfg.ReadTimeout)
		case errors.Is(err, os.ErrClosed):
			return
		default:
			b.log.Warn("fifo read failed", logger.Error(err))
			b.sleep(b.cfg.ReadTimeout)
		}

		if b.cfg.SilenceTimeout > 0 && time.Since(lastData) > b.cfg.SilenceTimeout {
			if !silent {
				b.log.Debug("fifo silent, feeding zeros", logger.Duration("timeout", b.cfg.SilenceTimeout))
				silent = true
				b.carry.Reset()
			}
			ch.Write(b.silence)
		}
	}
}

// checkPipe fails unless f is a named pipe. Regular files and devices do
// not honour read deadlines.
func checkPipe(f *os.File, path string) error {
	info, err := f.Stat()
	if err != nil {
		return errors.New(err).
			Component(componentFIFO).
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return errors.Newf("not a named pipe (mode %s)", info.Mode()).
			Component(componentFIFO).
			Category(errors.CategoryValidation).
			FileContext(path).
			Build()
	}
	return nil
}

// consume appends bytes to the carry buffer and publishes every whole frame.
// A trailing partial frame stays in the carry buffer for the next read.
func (b *Backend) consume(ch *audiocore.Channel, data []byte) {
	for len(data) > 0 {
		w, _ := b.carry.Write(data[:min(len(data), b.carry.Free())])
		data = data[w:]

		whole := b.carry.Length() / b.frameBytes * b.frameBytes
		if whole == 0 {
			continue
		}
		r, err := b.carry.Read(b.frameBuf[:whole])
		if err != nil {
			b.carry.Reset()
			return
		}
		n, err := audiocore.DecodePCM(b.scratch, b.frameBuf[:r], b.cfg.BitDepth, false)
		if err != nil {
			return
		}
		ch.Write(b.scratch[:n])
	}
}

// sleep waits for d or until Interrupt.
func (b *Backend) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-b.wake:
	}
}

// Interrupt expires the pending read deadline and wakes any wait.
func (b *Backend) Interrupt() {
	b.wakeOnce.Do(func() { close(b.wake) })

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		_ = b.file.SetReadDeadline(time.Unix(1, 0))
	}
}

// Close closes the pipe. The pipe itself is left on disk.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	if err != nil {
		return errors.New(err).
			Component(componentFIFO).
			Category(errors.CategoryFileIO).
			FileContext(b.cfg.Path).
			Build()
	}
	return nil
}
