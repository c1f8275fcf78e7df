package audiocore

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavebar/wavebar/internal/errors"
)

func TestDecodePCM(t *testing.T) {
	t.Parallel()

	f32 := func(v float32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
		return b
	}

	tests := []struct {
		name     string
		src      []byte
		bitDepth int
		isFloat  bool
		want     []float64
	}{
		{"u8 midpoint and extremes", []byte{128, 0, 255}, 8, false, []float64{0, -1, 127.0 / 128}},
		{"s16", []byte{0x00, 0x80, 0x00, 0x40, 0xff, 0x7f}, 16, false, []float64{-1, 0.5, 32767.0 / 32768}},
		{"s24 negative", []byte{0x00, 0x00, 0x80, 0x00, 0x00, 0x40}, 24, false, []float64{-1, 0.5}},
		{"s32", []byte{0x00, 0x00, 0x00, 0xc0}, 32, false, []float64{-0.5}},
		{"f32", f32(0.25), 32, true, []float64{0.25}},
		{"f32 clamps", f32(3), 32, true, []float64{1}},
		{"partial trailing sample ignored", []byte{0x00, 0x40, 0x01}, 16, false, []float64{0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dst := make([]float64, 8)
			n, err := DecodePCM(dst, tt.src, tt.bitDepth, tt.isFloat)
			require.NoError(t, err)
			require.Equal(t, len(tt.want), n)
			assert.InDeltaSlice(t, tt.want, dst[:n], 1e-9)
		})
	}
}

func TestDecodePCMBoundedByDestination(t *testing.T) {
	t.Parallel()

	dst := make([]float64, 1)
	n, err := DecodePCM(dst, []byte{0, 0, 0, 0}, 16, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDecodePCMRejectsUnsupported(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		bits    int
		isFloat bool
	}{{12, false}, {16, true}, {0, false}} {
		_, err := DecodePCM(make([]float64, 4), []byte{0, 0}, tc.bits, tc.isFloat)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	}
}

func TestEncodeS16(t *testing.T) {
	t.Parallel()

	dst := make([]int, 4)
	n := EncodeS16(dst, []float64{0, 1, -1, 2})
	require.Equal(t, 4, n)
	assert.Equal(t, []int{0, 32767, -32767, 32767}, dst)
}

func TestParseBackendKind(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"fifo", "pulse", "mixer"} {
		kind, err := ParseBackendKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, kind.String())
	}

	kind, err := ParseBackendKind(" Pulse ")
	require.NoError(t, err)
	assert.Equal(t, BackendPulse, kind)

	_, err = ParseBackendKind("jack")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpenErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := OpenError(errors.NewStd("device busy"), BackendMixer, "open_stream")

	assert.ErrorIs(t, err, ErrBackendOpen)
	assert.NotErrorIs(t, err, ErrFormatNegotiation)
	stage, ok := errors.ContextValue(err, "stage")
	require.True(t, ok)
	assert.Equal(t, StageSourceOpen, stage)
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	assert.False(t, SentinelFormat().Negotiated())
	assert.Equal(t, "unnegotiated", SentinelFormat().String())
	assert.Equal(t, 3, Format{FormatCode: 24}.BytesPerSample())
	assert.Equal(t, 0, Format{FormatCode: FormatUnset}.BytesPerSample())
	assert.Equal(t, "f32 44100Hz 1ch", Format{SampleRate: 44100, Channels: 1, FormatCode: 32, IsFloat: true}.String())
}

func TestDecodeFloat32(t *testing.T) {
	dst := make([]float64, 3)
	n := DecodeFloat32(dst, []float32{0.5, 1.5, -2, 0.25})
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{0.5, 1, -1}, dst)
}
