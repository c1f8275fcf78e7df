package overlay

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/overlay"
)

// Command creates the command that captures audio and draws the bars.
func Command(ctx *conf.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "overlay",
		Aliases: []string{"run"},
		Short:   "Capture audio and draw spectrum bars",
		Long:    "Capture audio from the configured backend and draw spectrum bars until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return overlay.Run(runCtx, ctx.Settings, ctx.Log(), overlay.Options{
				Output: cmd.OutOrStdout(),
			})
		},
	}

	if err := setupFlags(cmd, ctx.Settings); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the overlay command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	flags := cmd.Flags()
	flags.IntVar(&settings.Spectrum.Bars, "bars", viper.GetInt("spectrum.bars"), "Bars per channel")
	flags.StringVar(&settings.Render.Output, "output", viper.GetString("render.output"), "Bar output (text, none)")
	flags.DurationVar(&settings.Render.FrameInterval, "interval", viper.GetDuration("render.frameinterval"), "Time between frames")
	flags.IntVar(&settings.Render.Height, "height", viper.GetInt("render.height"), "Rows per bar, 0 fills the terminal")
	flags.IntVar(&settings.Render.BarWidth, "barwidth", viper.GetInt("render.barwidth"), "Columns per bar, 0 fills the terminal width")
	flags.BoolVar(&settings.Record.Enabled, "record", viper.GetBool("record.enabled"), "Record captured audio to a WAV file")
	flags.StringVar(&settings.Record.Path, "recordpath", viper.GetString("record.path"), "Path of the WAV recording")
	flags.BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	flags.StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	for key, name := range map[string]string{
		"spectrum.bars":        "bars",
		"render.output":        "output",
		"render.frameinterval": "interval",
		"render.height":        "height",
		"render.barwidth":      "barwidth",
		"record.enabled":       "record",
		"record.path":          "recordpath",
		"telemetry.enabled":    "telemetry",
		"telemetry.listen":     "listen",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
