// Package metrics defines the Prometheus collectors exported by wavebar.
package metrics

import "time"

// ShutdownTimeout bounds the metrics server shutdown.
const ShutdownTimeout = 5 * time.Second

// Namespace prefixes every metric name.
const Namespace = "wavebar"

// Frame result labels.
const (
	FrameResultSamples = "samples"
	FrameResultEmpty   = "empty"
)
