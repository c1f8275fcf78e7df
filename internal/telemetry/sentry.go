// Package telemetry provides opt-in, privacy-filtered error reporting through Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
)

// FlushTimeout bounds how long Flush waits for queued events.
const FlushTimeout = 2 * time.Second

var (
	initMu      sync.Mutex
	initialized bool
)

// InitSentry initializes the Sentry SDK and routes enhanced errors to it.
// Nothing happens unless Sentry is explicitly enabled in settings.
func InitSentry(settings *conf.Settings, version string, log logger.Logger) error {
	return initSentry(settings, version, log, nil)
}

func initSentry(settings *conf.Settings, version string, log logger.Logger, transport sentry.Transport) error {
	log = logger.Ensure(log).Module("telemetry")

	if !settings.Sentry.Enabled {
		log.Debug("Sentry telemetry is disabled (opt-in required)")
		return nil
	}

	initMu.Lock()
	defer initMu.Unlock()

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("wavebar@%s", version),
		Transport:        transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("backend", settings.Audio.Backend)
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized = true

	log.Info("Sentry telemetry initialized", logger.String("release", version))
	return nil
}

// applyPrivacyFilters strips host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// Flush waits up to FlushTimeout for buffered events and detaches the
// reporter. It is safe to call when Sentry was never initialized.
func Flush() {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return
	}
	sentry.Flush(FlushTimeout)
	errors.SetTelemetryReporter(nil)
	initialized = false
}
