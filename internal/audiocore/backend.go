package audiocore

import (
	"fmt"
	"strings"

	"github.com/wavebar/wavebar/internal/errors"
)

// BackendKind enumerates the supported capture sources.
type BackendKind int

const (
	BackendFIFO  BackendKind = iota // named pipe carrying raw PCM
	BackendPulse                    // sound server stream via malgo
	BackendMixer                    // platform mixer via PortAudio
)

var backendNames = map[BackendKind]string{
	BackendFIFO:  "fifo",
	BackendPulse: "pulse",
	BackendMixer: "mixer",
}

func (k BackendKind) String() string {
	if name, ok := backendNames[k]; ok {
		return name
	}
	return fmt.Sprintf("backend(%d)", int(k))
}

// ParseBackendKind resolves a configured backend name.
func ParseBackendKind(name string) (BackendKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for kind, n := range backendNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, errors.Newf("unknown audio backend %q", name).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "backend").
		Context("backend", name).
		Build()
}

// Backend is one capture source bound to a Channel for its whole life.
//
// The lifecycle calls Open once on the capture goroutine, then Stream on the
// same goroutine if Open succeeded. Interrupt may be called from any
// goroutine while Stream runs. Close is called once after the goroutine has
// exited (or the join timed out).
type Backend interface {
	// Kind identifies the backend variant.
	Kind() BackendKind

	// Open acquires the source and records the negotiated format with
	// ch.SetFormat. On failure the channel metadata stays at its sentinel.
	Open(ch *Channel) error

	// Stream reads from the source and writes converted samples into ch
	// until ch.ShouldTerminate reports true.
	Stream(ch *Channel)

	// Interrupt unblocks a Stream parked in a source read.
	Interrupt()

	// Close releases backend-owned resources.
	Close() error
}
