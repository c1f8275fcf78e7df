package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wavebar/wavebar/cmd/config"
	"github.com/wavebar/wavebar/cmd/devices"
	"github.com/wavebar/wavebar/cmd/overlay"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/logger"
	"github.com/wavebar/wavebar/internal/telemetry"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *conf.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "wavebar",
		Short:        "Terminal audio spectrum visualizer",
		Version:      ctx.BuildInfo.String(),
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, ctx.Settings); err != nil {
		rootCmd.RunE = func(*cobra.Command, []string) error { return err }
		return rootCmd
	}

	configCmd := config.Command(ctx)

	rootCmd.AddCommand(
		overlay.Command(ctx),
		devices.Command(ctx),
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// config only prints settings and should work with a broken logging section
		if cmd == configCmd || cmd.Parent() == configCmd {
			return nil
		}
		return initialize(ctx)
	}

	return rootCmd
}

// initialize runs after flags are parsed: flag values are already in
// ctx.Settings, so validation sees the final configuration.
func initialize(ctx *conf.Context) error {
	if err := conf.ValidateSettings(ctx.Settings); err != nil {
		return err
	}

	logCfg := ctx.Settings.Logging
	if ctx.Settings.Debug {
		logCfg.DefaultLevel = string(logger.LogLevelDebug)
		if logCfg.Console != nil {
			console := *logCfg.Console
			console.Level = string(logger.LogLevelDebug)
			logCfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	ctx.Logger = central

	if ctx.Settings.Sentry.Enabled {
		if err := telemetry.InitSentry(ctx.Settings, ctx.BuildInfo.GetVersion(), ctx.Log()); err != nil {
			ctx.Log().Warn("error reporting disabled", logger.Error(err))
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVarP(&settings.Audio.Backend, "backend", "b", viper.GetString("audio.backend"), "Capture backend (fifo, pulse, mixer)")
	flags.StringVarP(&settings.Audio.Source, "source", "s", viper.GetString("audio.source"), "Source or device name, \"auto\" picks the default monitor")
	flags.IntVar(&settings.Audio.SampleRate, "samplerate", viper.GetInt("audio.samplerate"), "Requested sample rate in Hz")
	flags.IntVar(&settings.Audio.BitDepth, "bitdepth", viper.GetInt("audio.bitdepth"), "Requested bit depth (8, 16, 24, 32)")
	flags.IntVar(&settings.Audio.Channels, "channels", viper.GetInt("audio.channels"), "Requested channel count (1 or 2)")
	flags.StringVar(&settings.Audio.FIFO.Path, "fifo", viper.GetString("audio.fifo.path"), "Path of the PCM named pipe for the fifo backend")

	for key, name := range map[string]string{
		"debug":            "debug",
		"audio.backend":    "backend",
		"audio.source":     "source",
		"audio.samplerate": "samplerate",
		"audio.bitdepth":   "bitdepth",
		"audio.channels":   "channels",
		"audio.fifo.path":  "fifo",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
