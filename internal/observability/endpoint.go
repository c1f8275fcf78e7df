package observability

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/wavebar/wavebar/internal/conf"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
	"github.com/wavebar/wavebar/internal/observability/metrics"
)

const componentObservability = "observability"

// Endpoint serves the Prometheus scrape endpoint.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewEndpoint creates an Endpoint for the configured listen address.
// It returns an error when telemetry is disabled in settings.
func NewEndpoint(settings *conf.Settings, m *Metrics, log logger.Logger) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, errors.Newf("telemetry not enabled in settings").
			Component(componentObservability).
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       m,
		log:           logger.Ensure(log).Module("telemetry"),
	}, nil
}

// Start binds the listen address and serves until quitChan is closed.
// Binding happens synchronously so address errors surface to the caller.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component(componentObservability).
			Category(errors.CategoryNetwork).
			Context("listen", e.listenAddress).
			Build()
	}

	e.mu.Lock()
	e.listener = ln
	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metrics.ShutdownTimeout,
	}
	server := e.server
	e.mu.Unlock()

	wg.Go(func() {
		e.log.Info("Telemetry endpoint starting", logger.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			e.log.Error("Telemetry HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		e.gracefulShutdown(quitChan)
	})
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.listenAddress
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	e.log.Info("Stopping telemetry server")
	ctx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
	defer cancel()

	e.mu.Lock()
	server := e.server
	e.mu.Unlock()
	if err := server.Shutdown(ctx); err != nil {
		e.log.Error("Telemetry server shutdown error", logger.Error(err))
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
