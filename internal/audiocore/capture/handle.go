package capture

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

// Handle is one capture goroutine bound to one backend and one channel.
type Handle struct {
	id      string
	cfg     Config
	backend audiocore.Backend
	ch      *audiocore.Channel
	log     logger.Logger
	metrics Recorder
	done    chan struct{}

	mu       sync.Mutex
	launched bool
	opened   bool
	openErr  error

	stopOnce sync.Once
	stopErr  error
}

// New prepares a handle with a fresh channel carrying sentinel metadata.
// Nothing runs until Start.
func New(cfg Config, backend audiocore.Backend, opts ...Option) *Handle {
	cfg = cfg.withDefaults()
	h := &Handle{
		id:      uuid.NewString(),
		cfg:     cfg,
		backend: backend,
		ch:      audiocore.NewChannel(cfg.Capacity),
		metrics: nopRecorder{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = logger.Ensure(h.log).Module("capture").With(
		logger.String("capture_id", h.id),
		logger.String("backend", backend.Kind().String()),
	)
	return h
}

// Start creates a handle and launches its capture goroutine.
func Start(cfg Config, backend audiocore.Backend, opts ...Option) (*Handle, error) {
	h := New(cfg, backend, opts...)
	if err := h.Start(); err != nil {
		return nil, err
	}
	return h, nil
}

// Start launches the capture goroutine. It fails if the handle was already
// started or stopped.
func (h *Handle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.launched || h.ch.ShouldTerminate() {
		return errors.Newf("capture handle %s already started or stopped", h.id).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryState).
			Context("backend", h.kind()).
			Build()
	}
	h.launched = true

	h.metrics.RecordStart(h.kind())
	h.metrics.AttachChannel(h.kind(), h.ch)
	h.metrics.SetState(h.kind(), int(StateNegotiating))
	h.log.Debug("starting capture goroutine", logger.Int("capacity", h.ch.Capacity()))

	go h.run()
	return nil
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// Channel returns the channel the backend writes into.
func (h *Handle) Channel() *audiocore.Channel {
	return h.ch
}

// Done is closed when the capture goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// State derives the lifecycle position from the goroutine and channel state.
func (h *Handle) State() State {
	select {
	case <-h.done:
		return StateJoined
	default:
	}

	h.mu.Lock()
	launched, opened := h.launched, h.opened
	h.mu.Unlock()

	switch {
	case h.ch.ShouldTerminate():
		return StateTerminateRequested
	case opened && h.ch.Negotiated():
		return StateStreaming
	case launched:
		return StateNegotiating
	default:
		return StateUninitialized
	}
}

func (h *Handle) kind() string {
	return h.backend.Kind().String()
}

func (h *Handle) run() {
	defer close(h.done)

	if h.ch.ShouldTerminate() {
		return
	}

	if err := h.backend.Open(h.ch); err != nil {
		if !errors.Is(err, audiocore.ErrBackendOpen) {
			err = audiocore.OpenError(err, h.backend.Kind(), "open")
		}
		// A backend may have recorded a format before failing.
		h.ch.SetFormat(audiocore.SentinelFormat())
		h.setOpenErr(err)
		h.metrics.RecordOpenFailure(h.kind())
		h.log.Error("backend open failed, waiting for termination", logger.Error(err))
		h.parkUntilTerminated()
		return
	}

	h.mu.Lock()
	h.opened = true
	h.mu.Unlock()

	f := h.ch.Format()
	h.metrics.SetState(h.kind(), int(StateStreaming))
	h.metrics.SetFormat(h.kind(), f)
	h.log.Info("capture negotiated", logger.String("format", f.String()))
	h.reportOverrides(f)

	h.backend.Stream(h.ch)
	h.log.Debug("capture stream returned")
}

// parkUntilTerminated keeps the goroutine alive after an open failure so Stop
// has the same exit path as for a streaming backend.
func (h *Handle) parkUntilTerminated() {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()
	for !h.ch.ShouldTerminate() {
		<-ticker.C
	}
}

// reportOverrides logs requested fields the backend replaced.
func (h *Handle) reportOverrides(got audiocore.Format) {
	want := h.cfg.Requested
	check := func(field string, requested, negotiated int) {
		if requested <= 0 || requested == negotiated {
			return
		}
		h.metrics.RecordFormatMismatch(h.kind(), field)
		h.log.Info("backend overrode requested format",
			logger.String("field", field),
			logger.Int("requested", requested),
			logger.Int("negotiated", negotiated))
	}
	check("sample_rate", want.SampleRate, got.SampleRate)
	check("channels", want.Channels, got.Channels)
	check("format", want.FormatCode, got.FormatCode)
}

func (h *Handle) setOpenErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openErr = err
}

// openResult reports whether Open has returned, and its error if it failed.
func (h *Handle) openResult() (done bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opened || h.openErr != nil, h.openErr
}

// negotiated returns the channel format once Open has succeeded and a real
// format is recorded. A format published by an Open that later fails is
// never reported.
func (h *Handle) negotiated() (audiocore.Format, bool) {
	opened, err := h.openResult()
	if !opened || err != nil {
		return audiocore.Format{}, false
	}
	f := h.ch.Format()
	return f, f.Negotiated()
}

func (h *Handle) openError() error {
	_, err := h.openResult()
	return err
}

// AwaitFormat waits until Open has succeeded with a real format. It
// returns the backend's open error as soon as one is reported, and a
// negotiation timeout once timeout elapses. A non-positive timeout uses the
// configured negotiation timeout.
func (h *Handle) AwaitFormat(timeout time.Duration) (audiocore.Format, error) {
	if timeout <= 0 {
		timeout = h.cfg.NegotiationTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := h.openError(); err != nil {
			return audiocore.SentinelFormat(), err
		}
		if f, ok := h.negotiated(); ok {
			return f, nil
		}

		select {
		case <-h.done:
			if err := h.openError(); err != nil {
				return audiocore.SentinelFormat(), err
			}
			if f, ok := h.negotiated(); ok {
				return f, nil
			}
			return audiocore.SentinelFormat(), audiocore.OpenError(
				errors.NewStd("capture goroutine exited before reporting a format"),
				h.backend.Kind(), "negotiate")
		case <-deadline.C:
			return audiocore.SentinelFormat(), errors.Newf("no audio format reported within %s", timeout).
				Component(audiocore.ComponentAudioCore).
				Category(errors.CategoryTimeout).
				Context("stage", audiocore.StageFormatNegotiation).
				Context("backend", h.kind()).
				Context("timeout", timeout.String()).
				Build()
		case <-ticker.C:
		}
	}
}

// Stop requests termination, interrupts any blocked read and waits up to
// timeout for the goroutine to exit before closing the backend. If the
// goroutine does not exit in time the backend is left open, since the
// goroutine may still be using it, and ErrTerminationTimeout is returned.
// Stop is idempotent; later calls return the first result.
func (h *Handle) Stop(timeout time.Duration) error {
	h.stopOnce.Do(func() {
		h.stopErr = h.stop(timeout)
	})
	return h.stopErr
}

func (h *Handle) stop(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = h.cfg.StopTimeout
	}

	h.mu.Lock()
	launched := h.launched
	h.ch.RequestTerminate()
	h.mu.Unlock()

	if !launched {
		close(h.done)
		h.metrics.SetState(h.kind(), int(StateJoined))
		return h.closeBackend()
	}

	h.metrics.SetState(h.kind(), int(StateTerminateRequested))
	began := time.Now()
	h.backend.Interrupt()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		h.metrics.RecordStop(h.kind(), time.Since(began).Seconds(), true)
		err := errors.Newf("capture goroutine did not exit within %s", timeout).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryTimeout).
			Priority(errors.PriorityCritical).
			Context("stage", audiocore.StageShutdown).
			Context("backend", h.kind()).
			Context("timeout", timeout.String()).
			Timing("join", time.Since(began)).
			Build()
		h.log.Error("capture goroutine leaked, backend left open", logger.Error(err))
		return err
	}

	elapsed := time.Since(began)
	h.metrics.RecordStop(h.kind(), elapsed.Seconds(), false)
	h.metrics.SetState(h.kind(), int(StateJoined))
	h.metrics.DetachChannel()
	h.log.Debug("capture goroutine joined", logger.Duration("elapsed", elapsed))

	return h.closeBackend()
}

func (h *Handle) closeBackend() error {
	if err := h.backend.Close(); err != nil {
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryResource).
			Context("stage", audiocore.StageShutdown).
			Context("backend", h.kind()).
			Context("operation", "close").
			Build()
	}
	return nil
}
