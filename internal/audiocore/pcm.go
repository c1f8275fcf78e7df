package audiocore

import (
	"encoding/binary"
	"math"

	"github.com/wavebar/wavebar/internal/errors"
)

// Full-scale divisors for signed PCM.
const (
	scale16 = 1 << 15
	scale24 = 1 << 23
	scale32 = 1 << 31
)

// DecodePCM converts little-endian PCM in src into float64 samples in
// [-1, 1] and stores them in dst. 8-bit input is unsigned, wider integer
// input is signed; 32-bit input is IEEE float when isFloat is set. Trailing
// bytes that do not form a whole sample are ignored. It returns the number
// of samples written, bounded by len(dst).
func DecodePCM(dst []float64, src []byte, bitDepth int, isFloat bool) (int, error) {
	width := bitDepth / 8
	switch {
	case isFloat && bitDepth != 32:
		return 0, unsupportedFormat(bitDepth, isFloat)
	case bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32:
		return 0, unsupportedFormat(bitDepth, isFloat)
	}

	n := min(len(src)/width, len(dst))
	for i := range n {
		b := src[i*width : i*width+width]
		switch bitDepth {
		case 8:
			dst[i] = (float64(b[0]) - 128) / 128
		case 16:
			dst[i] = float64(int16(binary.LittleEndian.Uint16(b))) / scale16
		case 24:
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xffffff
			}
			dst[i] = float64(v) / scale24
		case 32:
			bits := binary.LittleEndian.Uint32(b)
			if isFloat {
				dst[i] = clampUnit(float64(math.Float32frombits(bits)))
			} else {
				dst[i] = float64(int32(bits)) / scale32
			}
		}
	}
	return n, nil
}

// DecodeFloat32 widens float32 samples into dst, clamping to [-1, 1].
func DecodeFloat32(dst []float64, src []float32) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = clampUnit(float64(src[i]))
	}
	return n
}

// EncodeS16 converts float64 samples in [-1, 1] to signed 16-bit integers.
func EncodeS16(dst []int, src []float64) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = int(math.Round(clampUnit(src[i]) * (scale16 - 1)))
	}
	return n
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

func unsupportedFormat(bitDepth int, isFloat bool) error {
	return errors.Newf("unsupported PCM format: %d-bit float=%t", bitDepth, isFloat).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "audio_format").
		Context("bit_depth", bitDepth).
		Build()
}
