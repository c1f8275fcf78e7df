//go:build !unix

package fifo

import (
	"os"

	"github.com/wavebar/wavebar/internal/errors"
)

func createFIFO(path string) error {
	return errors.Newf("named pipes are not supported on this platform").
		Component(componentFIFO).
		Category(errors.CategoryValidation).
		FileContext(path).
		Build()
}

func openFIFO(path string) (*os.File, error) {
	return nil, createFIFO(path)
}
