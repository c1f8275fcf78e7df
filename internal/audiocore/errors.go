package audiocore

import (
	"github.com/wavebar/wavebar/internal/errors"
)

// ComponentAudioCore identifies errors raised by the capture subsystem.
const ComponentAudioCore = "audiocore"

// Initialization stages reported in error context under the "stage" key.
const (
	StageSourceOpen        = "source-open"
	StageFormatNegotiation = "format-negotiation"
	StageShutdown          = "shutdown"
)

var (
	// ErrBackendOpen is returned when a backend cannot open or negotiate its source.
	ErrBackendOpen = errors.New(nil).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("stage", StageSourceOpen).
			Build()

	// ErrFormatNegotiation is returned when no format was reported before the deadline.
	ErrFormatNegotiation = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryTimeout).
				Context("stage", StageFormatNegotiation).
				Build()

	// ErrTerminationTimeout is returned when the capture goroutine did not exit
	// within the stop grace period.
	ErrTerminationTimeout = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryTimeout).
				Context("stage", StageShutdown).
				Build()

	// ErrUnknownBackend is returned for a backend name outside fifo, pulse and mixer.
	ErrUnknownBackend = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryValidation).
				Context("resource", "backend").
				Build()

	// ErrUnsupportedFormat is returned for PCM encodings the converter cannot decode.
	ErrUnsupportedFormat = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryValidation).
				Context("resource", "audio_format").
				Build()
)

// OpenError wraps a backend open failure so that errors.Is(err, ErrBackendOpen) holds.
func OpenError(err error, kind BackendKind, operation string) error {
	return errors.New(err).
		Component(ComponentAudioCore).
		Category(errors.CategoryAudioSource).
		Context("stage", StageSourceOpen).
		Context("backend", kind.String()).
		Context("operation", operation).
		Build()
}
