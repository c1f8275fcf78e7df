// Package testutil provides shared test helpers for wavebar's concurrent code.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for goroutine joins.
	DefaultTestTimeout = time.Second

	// ShortTestTimeout bounds checks that something has not happened yet.
	ShortTestTimeout = 20 * time.Millisecond
)

// WaitForChannel waits for ch to be closed or signalled, failing after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// RequireNoSignal fails if ch is closed or signalled within d.
func RequireNoSignal(t *testing.T, ch <-chan struct{}, d time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
		require.Fail(t, msg)
	case <-time.After(d):
	}
}
