// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// Supported backend and output names.
var (
	ValidBackends  = []string{"fifo", "pulse", "mixer"}
	ValidBitDepths = []int{8, 16, 24, 32}
	ValidOutputs   = []string{"text", "none"}
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every
// problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateAudioSettings(&settings.Audio)...)
	ve.Errors = append(ve.Errors, validateCaptureSettings(&settings.Capture)...)
	ve.Errors = append(ve.Errors, validateRenderSettings(&settings.Render)...)
	ve.Errors = append(ve.Errors, validateSpectrumSettings(&settings.Spectrum)...)

	if settings.Record.Enabled && strings.TrimSpace(settings.Record.Path) == "" {
		ve.Errors = append(ve.Errors, "record.path must be set when recording is enabled")
	}

	if settings.Telemetry.Enabled {
		if _, _, err := net.SplitHostPort(settings.Telemetry.Listen); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("telemetry.listen %q is not host:port: %v", settings.Telemetry.Listen, err))
		}
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn must be set when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAudioSettings(a *AudioSettings) []string {
	var errs []string

	a.Backend = strings.ToLower(strings.TrimSpace(a.Backend))
	if !slices.Contains(ValidBackends, a.Backend) {
		errs = append(errs, fmt.Sprintf("audio.backend %q must be one of %v", a.Backend, ValidBackends))
	}
	if !slices.Contains(ValidBitDepths, a.BitDepth) {
		errs = append(errs, fmt.Sprintf("audio.bitdepth %d must be one of %v", a.BitDepth, ValidBitDepths))
	}
	if a.SampleRate <= 0 {
		errs = append(errs, fmt.Sprintf("audio.samplerate must be positive, got %d", a.SampleRate))
	}
	if a.Channels < 1 || a.Channels > 8 {
		errs = append(errs, fmt.Sprintf("audio.channels must be between 1 and 8, got %d", a.Channels))
	}
	if a.BufferSize < 1 {
		errs = append(errs, fmt.Sprintf("audio.buffersize must be positive, got %d", a.BufferSize))
	}
	if a.Backend == "fifo" && strings.TrimSpace(a.FIFO.Path) == "" {
		errs = append(errs, "audio.fifo.path must be set for the fifo backend")
	}
	if a.FIFO.SilenceTimeout < 0 {
		errs = append(errs, "audio.fifo.silencetimeout must not be negative")
	}

	return errs
}

func validateCaptureSettings(c *CaptureSettings) []string {
	var errs []string
	if c.NegotiationTimeout <= 0 {
		errs = append(errs, "capture.negotiationtimeout must be positive")
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, "capture.stoptimeout must be positive")
	}
	if c.PollInterval <= 0 {
		errs = append(errs, "capture.pollinterval must be positive")
	}
	return errs
}

func validateRenderSettings(r *RenderSettings) []string {
	var errs []string
	if r.FrameInterval <= 0 {
		errs = append(errs, "render.frameinterval must be positive")
	}
	if !slices.Contains(ValidOutputs, r.Output) {
		errs = append(errs, fmt.Sprintf("render.output %q must be one of %v", r.Output, ValidOutputs))
	}
	if r.Height < 0 || r.BarWidth < 0 || r.Gap < 0 {
		errs = append(errs, "render.height, render.barwidth and render.gap must not be negative")
	}
	return errs
}

func validateSpectrumSettings(s *SpectrumSettings) []string {
	var errs []string
	if s.Bars < 1 || s.Bars > 256 {
		errs = append(errs, fmt.Sprintf("spectrum.bars must be between 1 and 256, got %d", s.Bars))
	}
	if s.NoiseReduction < 0 || s.NoiseReduction >= 1 {
		errs = append(errs, fmt.Sprintf("spectrum.noisereduction must be in [0, 1), got %v", s.NoiseReduction))
	}
	if s.LowCutoff < 1 {
		errs = append(errs, "spectrum.lowcutoff must be at least 1 Hz")
	}
	if s.HighCutoff <= s.LowCutoff {
		errs = append(errs, fmt.Sprintf("spectrum.highcutoff %d must be above lowcutoff %d", s.HighCutoff, s.LowCutoff))
	}
	return errs
}
