package render

import (
	"io"
	"os"

	"golang.org/x/term"
)

// Layout sizes the text renderer. Zero Height or BarWidth is sized from the
// terminal when the output is one, and falls back to a single cell otherwise.
type Layout struct {
	Height   int
	BarWidth int
	Gap      int
}

// terminalSize reports the columns and rows of w when it is a terminal.
var terminalSize = func(w io.Writer) (cols, rows int, ok bool) {
	f, isFile := w.(*os.File)
	if !isFile {
		return 0, 0, false
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0, false
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		return 0, 0, false
	}
	return cols, rows, true
}

// fit fills zero fields so that bars bars span cols columns and the drawing
// takes all but the last of rows rows.
func (l Layout) fit(bars, cols, rows int) Layout {
	if l.Gap < 0 {
		l.Gap = 0
	}
	if l.BarWidth <= 0 {
		l.BarWidth = 1
		if bars > 0 && cols > 0 {
			l.BarWidth = max(1, (cols-l.Gap*(bars-1))/bars)
		}
	}
	if l.Height <= 0 {
		l.Height = max(1, rows-1)
	}
	return l
}

func (l Layout) options() []TextOption {
	return []TextOption{WithHeight(l.Height), WithBarWidth(l.BarWidth, l.Gap)}
}
