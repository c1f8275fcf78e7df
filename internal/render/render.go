// Package render draws bar heights produced by the analyzer.
package render

import (
	"io"
	"strings"

	"github.com/wavebar/wavebar/internal/errors"
)

const componentRender = "render"

// Output names accepted by New.
const (
	OutputText = "text"
	OutputNone = "none"
)

// Renderer draws one frame of bars, each in [0, 1].
type Renderer interface {
	Draw(bars []float64) error
	Close() error
}

// New returns the renderer for a configured output name. The text renderer
// lays out bars bars according to layout.
func New(output string, w io.Writer, layout Layout, bars int) (Renderer, error) {
	switch strings.ToLower(output) {
	case OutputText:
		cols, rows, _ := terminalSize(w)
		return NewTextRenderer(w, layout.fit(bars, cols, rows).options()...), nil
	case OutputNone, "":
		return NopRenderer{}, nil
	default:
		return nil, errors.Newf("unknown render output %q", output).
			Component(componentRender).
			Category(errors.CategoryValidation).
			Context("output", output).
			Build()
	}
}

// NopRenderer discards frames.
type NopRenderer struct{}

func (NopRenderer) Draw([]float64) error { return nil }

func (NopRenderer) Close() error { return nil }
