// config.go: settings struct for wavebar and the functions to load and dump it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wavebar/wavebar/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is prepended to environment overrides, e.g. WAVEBAR_AUDIO_BACKEND.
const EnvPrefix = "WAVEBAR"

// FIFOSettings configures the named-pipe backend.
type FIFOSettings struct {
	Path           string        `yaml:"path"`           // path of the named pipe
	Create         bool          `yaml:"create"`         // create the pipe if it does not exist
	SilenceTimeout time.Duration `yaml:"silencetimeout"` // feed zeros after this long without data, 0 disables
}

// AudioSettings selects and configures the capture backend.
type AudioSettings struct {
	Backend    string       `yaml:"backend"`    // fifo, pulse or mixer
	Source     string       `yaml:"source"`     // source or device name, "auto" for the default monitor
	SampleRate int          `yaml:"samplerate"` // requested sample rate
	BitDepth   int          `yaml:"bitdepth"`   // requested bit depth for PCM sources
	Channels   int          `yaml:"channels"`   // requested channel count
	BufferSize int          `yaml:"buffersize"` // shared channel capacity in samples
	FIFO       FIFOSettings `yaml:"fifo"`
}

// CaptureSettings bounds the capture goroutine lifecycle.
type CaptureSettings struct {
	NegotiationTimeout time.Duration `yaml:"negotiationtimeout"` // how long to wait for the backend to report a format
	StopTimeout        time.Duration `yaml:"stoptimeout"`        // join grace period on shutdown
	PollInterval       time.Duration `yaml:"pollinterval"`       // termination poll period after an open failure
}

// RenderSettings configures the frame loop.
type RenderSettings struct {
	FrameInterval time.Duration `yaml:"frameinterval"`
	Output        string        `yaml:"output"`   // text or none
	Height        int           `yaml:"height"`   // rows per bar, 0 fills the terminal
	BarWidth      int           `yaml:"barwidth"` // columns per bar, 0 fills the terminal width
	Gap           int           `yaml:"gap"`      // columns between bars
}

// SpectrumSettings configures the bar analyzer.
type SpectrumSettings struct {
	Bars           int     `yaml:"bars"` // bars per channel
	NoiseReduction float64 `yaml:"noisereduction"`
	Autosens       bool    `yaml:"autosens"`
	LowCutoff      int     `yaml:"lowcutoff"`
	HighCutoff     int     `yaml:"highcutoff"`
}

// RecordSettings configures the optional WAV tap.
type RecordSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetrySettings configures the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// SentrySettings configures optional error reporting.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options for wavebar.
type Settings struct {
	Debug     bool                 `yaml:"debug"`
	Audio     AudioSettings        `yaml:"audio"`
	Capture   CaptureSettings      `yaml:"capture"`
	Render    RenderSettings       `yaml:"render"`
	Spectrum  SpectrumSettings     `yaml:"spectrum"`
	Record    RecordSettings       `yaml:"record"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	Sentry    SentrySettings       `yaml:"sentry"`
	Logging   logger.LoggingConfig `yaml:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	return load("")
}

// LoadFile is Load with an explicit config file path, as given by --config.
func LoadFile(path string) (*Settings, error) {
	return load(path)
}

func load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults and environment bindings, then reads the config
// file. A missing file on the default search path is created from the
// embedded template; a missing explicit file is an error.
func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded template into dir and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the embedded config.yaml template.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DumpYAML renders the effective settings as YAML.
func DumpYAML(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}
