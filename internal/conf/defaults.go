// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the capture packages.
const (
	DefaultBackend      = "pulse"
	DefaultSource       = "auto"
	DefaultSampleRate   = 44100
	DefaultBitDepth     = 16
	DefaultChannels     = 2
	DefaultBufferSize   = 16384
	DefaultFIFOPath     = "/tmp/mpd.fifo"
	DefaultFrameRate    = 10 * time.Millisecond
	DefaultStopTimeout  = 2 * time.Second
	DefaultNegotiation  = 3 * time.Second
	DefaultPollInterval = 10 * time.Millisecond
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("audio.backend", DefaultBackend)
	viper.SetDefault("audio.source", DefaultSource)
	viper.SetDefault("audio.samplerate", DefaultSampleRate)
	viper.SetDefault("audio.bitdepth", DefaultBitDepth)
	viper.SetDefault("audio.channels", DefaultChannels)
	viper.SetDefault("audio.buffersize", DefaultBufferSize)
	viper.SetDefault("audio.fifo.path", DefaultFIFOPath)
	viper.SetDefault("audio.fifo.create", false)
	viper.SetDefault("audio.fifo.silencetimeout", time.Second)

	viper.SetDefault("capture.negotiationtimeout", DefaultNegotiation)
	viper.SetDefault("capture.stoptimeout", DefaultStopTimeout)
	viper.SetDefault("capture.pollinterval", DefaultPollInterval)

	viper.SetDefault("render.frameinterval", DefaultFrameRate)
	viper.SetDefault("render.output", "text")
	viper.SetDefault("render.height", 1)
	viper.SetDefault("render.barwidth", 0)
	viper.SetDefault("render.gap", 1)

	viper.SetDefault("spectrum.bars", 8)
	viper.SetDefault("spectrum.noisereduction", 0.77)
	viper.SetDefault("spectrum.autosens", true)
	viper.SetDefault("spectrum.lowcutoff", 50)
	viper.SetDefault("spectrum.highcutoff", 8000)

	viper.SetDefault("record.enabled", false)
	viper.SetDefault("record.path", "wavebar-capture.wav")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "127.0.0.1:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/wavebar.log")
	viper.SetDefault("logging.file_output.level", "debug")
	viper.SetDefault("logging.file_output.max_size", 10)
	viper.SetDefault("logging.file_output.max_age", 7)
	viper.SetDefault("logging.file_output.max_rotated_files", 3)
	viper.SetDefault("logging.file_output.compress", false)
}
