package sources

import (
	"github.com/wavebar/wavebar/internal/conf"
)

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Audio.Backend = conf.DefaultBackend
	s.Audio.Source = conf.DefaultSource
	s.Audio.SampleRate = conf.DefaultSampleRate
	s.Audio.BitDepth = conf.DefaultBitDepth
	s.Audio.Channels = conf.DefaultChannels
	s.Audio.BufferSize = conf.DefaultBufferSize
	s.Audio.FIFO.Path = conf.DefaultFIFOPath
	s.Capture.PollInterval = conf.DefaultPollInterval
	return s
}
