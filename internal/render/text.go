package render

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/wavebar/wavebar/internal/errors"
)

// Eighth-block glyphs from empty to full.
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

const (
	ansiHideCursor = "\x1b[?25l"
	ansiShowCursor = "\x1b[?25h"
)

// TextOption configures a TextRenderer.
type TextOption func(*TextRenderer)

// WithHeight sets the number of terminal rows per bar.
func WithHeight(rows int) TextOption {
	return func(r *TextRenderer) {
		if rows > 0 {
			r.height = rows
		}
	}
}

// WithBarWidth sets the columns per bar and the gap between bars.
func WithBarWidth(width, gap int) TextOption {
	return func(r *TextRenderer) {
		if width > 0 {
			r.width = width
		}
		if gap >= 0 {
			r.gap = gap
		}
	}
}

// TextRenderer draws bars with Unicode block characters, redrawing in place.
type TextRenderer struct {
	w      *bufio.Writer
	height int
	width  int
	gap    int
	drawn  bool
	line   []rune
}

// NewTextRenderer returns a renderer that writes to w.
func NewTextRenderer(w io.Writer, opts ...TextOption) *TextRenderer {
	r := &TextRenderer{
		w:      bufio.NewWriter(w),
		height: 1,
		width:  1,
		gap:    1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Draw renders one frame and moves the cursor back so the next frame
// overwrites it.
func (r *TextRenderer) Draw(bars []float64) error {
	if !r.drawn {
		r.w.WriteString(ansiHideCursor)
		r.drawn = true
	}

	for row := r.height - 1; row >= 0; row-- {
		r.line = r.line[:0]
		for i, v := range bars {
			if i > 0 {
				for range r.gap {
					r.line = append(r.line, ' ')
				}
			}
			g := glyph(v, row, r.height)
			for range r.width {
				r.line = append(r.line, g)
			}
		}
		r.w.WriteString("\r")
		r.w.WriteString(string(r.line))
		if row > 0 {
			r.w.WriteString("\n")
		}
	}
	if r.height > 1 {
		fmt.Fprintf(r.w, "\x1b[%dA", r.height-1)
	}

	if err := r.w.Flush(); err != nil {
		return r.fail(err)
	}
	return nil
}

// glyph picks the block for one cell of a bar drawn over height rows.
func glyph(v float64, row, height int) rune {
	if math.IsNaN(v) || v <= 0 {
		return blocks[0]
	}
	eighths := int(math.Round(min(v, 1) * float64(height*8)))
	cell := eighths - row*8
	switch {
	case cell <= 0:
		return blocks[0]
	case cell >= 8:
		return blocks[8]
	default:
		return blocks[cell]
	}
}

// Close moves below the drawing and restores the cursor.
func (r *TextRenderer) Close() error {
	if !r.drawn {
		return nil
	}
	if r.height > 1 {
		fmt.Fprintf(r.w, "\x1b[%dB", r.height-1)
	}
	r.w.WriteString("\n" + ansiShowCursor)
	r.drawn = false
	if err := r.w.Flush(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *TextRenderer) fail(err error) error {
	return errors.New(err).
		Component(componentRender).
		Category(errors.CategoryFileIO).
		Context("operation", "draw").
		Build()
}
