//go:build unix

package fifo

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/wavebar/wavebar/internal/errors"
)

// createFIFO makes a named pipe at path unless something already exists there.
func createFIFO(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := unix.Mkfifo(path, 0o644); err != nil && !errors.Is(err, unix.EEXIST) {
		return errors.New(err).
			Component(componentFIFO).
			Category(errors.CategoryFileIO).
			FileContext(path).
			Context("operation", "mkfifo").
			Build()
	}
	return nil
}

// openFIFO opens path read-only without blocking for a writer. The
// descriptor stays non-blocking so the runtime poller honours deadlines.
func openFIFO(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}
