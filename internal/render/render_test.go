package render

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wberrors "github.com/wavebar/wavebar/internal/errors"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	r, err := New("text", &buf, Layout{}, 4)
	require.NoError(t, err)
	assert.IsType(t, &TextRenderer{}, r)

	r, err = New("NONE", &buf, Layout{}, 4)
	require.NoError(t, err)
	assert.Equal(t, NopRenderer{}, r)
	assert.NoError(t, r.Draw([]float64{1}))
	assert.NoError(t, r.Close())

	_, err = New("opengl", &buf, Layout{}, 4)
	require.Error(t, err)
	assert.True(t, wberrors.IsCategory(err, wberrors.CategoryValidation))
}

func TestNewAppliesLayout(t *testing.T) {
	var buf bytes.Buffer

	r, err := New("text", &buf, Layout{Height: 2, BarWidth: 2, Gap: 0}, 2)
	require.NoError(t, err)
	require.NoError(t, r.Draw([]float64{1, 0.25}))
	assert.Equal(t, ansiHideCursor+"\r██  \n\r██▄▄\x1b[1A", buf.String())
}

func TestNewSizesToTerminal(t *testing.T) {
	orig := terminalSize
	t.Cleanup(func() { terminalSize = orig })
	terminalSize = func(io.Writer) (int, int, bool) { return 11, 3, true }

	var buf bytes.Buffer
	r, err := New("text", &buf, Layout{Gap: 1}, 3)
	require.NoError(t, err)

	text, ok := r.(*TextRenderer)
	require.True(t, ok)
	assert.Equal(t, 3, text.width, "three bars with two gaps fill eleven columns")
	assert.Equal(t, 2, text.height, "last terminal row is left free")
	assert.Equal(t, 1, text.gap)
}

func TestLayoutFit(t *testing.T) {
	tests := []struct {
		name       string
		layout     Layout
		bars       int
		cols, rows int
		want       Layout
	}{
		{"no terminal", Layout{Gap: 1}, 8, 0, 0, Layout{Height: 1, BarWidth: 1, Gap: 1}},
		{"fills width", Layout{Height: 1, Gap: 1}, 16, 80, 24, Layout{Height: 1, BarWidth: 4, Gap: 1}},
		{"fills height", Layout{BarWidth: 2}, 4, 80, 24, Layout{Height: 23, BarWidth: 2}},
		{"too narrow", Layout{Height: 1, Gap: 1}, 64, 40, 24, Layout{Height: 1, BarWidth: 1, Gap: 1}},
		{"negative gap", Layout{Height: 1, BarWidth: 1, Gap: -1}, 4, 80, 24, Layout{Height: 1, BarWidth: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.layout.fit(tt.bars, tt.cols, tt.rows))
		})
	}
}

func TestTerminalSizeIgnoresNonTerminals(t *testing.T) {
	_, _, ok := terminalSize(&bytes.Buffer{})
	assert.False(t, ok)

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	_, _, ok = terminalSize(f)
	assert.False(t, ok, "regular files are not sized")
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		v      float64
		row    int
		height int
		want   rune
	}{
		{0, 0, 1, ' '},
		{-1, 0, 1, ' '},
		{1, 0, 1, '█'},
		{2, 0, 1, '█'},
		{0.5, 0, 1, '▄'},
		{0.125, 0, 1, '▁'},
		{0.75, 0, 2, '█'},
		{0.75, 1, 2, '▄'},
		{0.25, 1, 2, ' '},
	}
	for _, tt := range tests {
		assert.Equal(t, string(tt.want), string(glyph(tt.v, tt.row, tt.height)), "v=%v row=%d height=%d", tt.v, tt.row, tt.height)
	}
}

func TestTextRendererSingleRow(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	require.NoError(t, r.Draw([]float64{0, 0.5, 1}))
	assert.Equal(t, ansiHideCursor+"\r  ▄ █", buf.String())

	buf.Reset()
	require.NoError(t, r.Draw([]float64{1, 1, 1}))
	assert.Equal(t, "\r█ █ █", buf.String(), "cursor is hidden only once")

	buf.Reset()
	require.NoError(t, r.Close())
	assert.Equal(t, "\n"+ansiShowCursor, buf.String())
}

func TestTextRendererMultiRow(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf, WithHeight(2), WithBarWidth(2, 0))

	require.NoError(t, r.Draw([]float64{1, 0.25}))
	out := strings.TrimPrefix(buf.String(), ansiHideCursor)
	assert.Equal(t, "\r██  \n\r██▄▄\x1b[1A", out)

	buf.Reset()
	require.NoError(t, r.Close())
	assert.Equal(t, "\x1b[1B\n"+ansiShowCursor, buf.String())
}

func TestTextRendererCloseWithoutDraw(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)
	require.NoError(t, r.Close())
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestTextRendererWriteError(t *testing.T) {
	r := NewTextRenderer(failingWriter{})
	err := r.Draw([]float64{1})
	require.Error(t, err)
	assert.True(t, wberrors.IsCategory(err, wberrors.CategoryFileIO))
}
