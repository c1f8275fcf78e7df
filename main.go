package main

import (
	"fmt"
	"os"

	"github.com/wavebar/wavebar/cmd"
	"github.com/wavebar/wavebar/internal/buildinfo"
	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/telemetry"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate string
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	ctx := &conf.Context{
		Settings:  settings,
		BuildInfo: &buildinfo.Context{
			Version:   version,
			BuildDate: buildDate,
		},
	}
	defer func() {
		telemetry.Flush()
		if err := ctx.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", err)
		}
	}()

	if err := cmd.RootCommand(ctx).Execute(); err != nil {
		return 1
	}
	return 0
}

// loadSettings reads the file named by WAVEBAR_CONFIG, or searches the
// default config paths.
func loadSettings() (*conf.Settings, error) {
	if path := os.Getenv(conf.EnvPrefix + "_CONFIG"); path != "" {
		return conf.LoadFile(path)
	}
	return conf.Load()
}
