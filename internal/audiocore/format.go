package audiocore

import "fmt"

// FormatUnset is the sentinel format code of a channel no backend has opened yet.
const FormatUnset = -1

// DefaultChannels is the channel count a fresh Channel reports before negotiation.
const DefaultChannels = 2

// Format describes the samples currently flowing through a Channel.
type Format struct {
	SampleRate int  // Hz, 0 until negotiated
	Channels   int  // interleaved channel count
	FormatCode int  // bit depth for PCM sources, FormatUnset until negotiated
	IsFloat    bool // source delivers IEEE float samples
}

// SentinelFormat is the metadata a Channel starts with.
func SentinelFormat() Format {
	return Format{SampleRate: 0, Channels: DefaultChannels, FormatCode: FormatUnset}
}

// Negotiated reports whether a backend has filled in real metadata.
func (f Format) Negotiated() bool {
	return f.SampleRate > 0 && f.FormatCode != FormatUnset
}

// BytesPerSample returns the width of one encoded sample, or 0 when unknown.
func (f Format) BytesPerSample() int {
	switch f.FormatCode {
	case 8, 16, 24, 32:
		return f.FormatCode / 8
	default:
		return 0
	}
}

func (f Format) String() string {
	if !f.Negotiated() {
		return "unnegotiated"
	}
	kind := "s"
	if f.IsFloat {
		kind = "f"
	}
	return fmt.Sprintf("%s%d %dHz %dch", kind, f.FormatCode, f.SampleRate, f.Channels)
}
