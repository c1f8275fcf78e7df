package devices

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/audiocore/sources"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/logger"
)

// Command creates the command that lists capture devices.
func Command(ctx *conf.Context) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  "List capture devices of the configured backend, or of every device backend with --all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := []audiocore.BackendKind{audiocore.BackendPulse, audiocore.BackendMixer}
			if !all {
				kind, err := audiocore.ParseBackendKind(ctx.Settings.Audio.Backend)
				if err != nil {
					return err
				}
				kinds = []audiocore.BackendKind{kind}
			}
			return list(cmd.OutOrStdout(), ctx, kinds)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List devices of every backend")

	return cmd
}

func list(w io.Writer, ctx *conf.Context, kinds []audiocore.BackendKind) error {
	for _, kind := range kinds {
		if kind == audiocore.BackendFIFO {
			fmt.Fprintf(w, "fifo: reads raw PCM from %s\n", ctx.Settings.Audio.FIFO.Path)
			continue
		}

		devices, err := sources.ListDevices(kind)
		if err != nil {
			ctx.Log().Warn("device enumeration failed", logger.String("backend", kind.String()), logger.Error(err))
			fmt.Fprintf(w, "%s: unavailable (%v)\n", kind, err)
			continue
		}

		fmt.Fprintf(w, "%s:\n", kind)
		if len(devices) == 0 {
			fmt.Fprintln(w, "  no capture devices found")
		}
		for _, d := range devices {
			line := "  " + d.String()
			if d.Monitor {
				line += " [monitor]"
			}
			if d.Channels > 0 {
				line += fmt.Sprintf(" %dch", d.Channels)
			}
			if d.SampleRate > 0 {
				line += fmt.Sprintf(" %.0fHz", d.SampleRate)
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
