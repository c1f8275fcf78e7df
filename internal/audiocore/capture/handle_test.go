package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/errors"
	"github.com/wavebar/wavebar/internal/logger"
	"github.com/wavebar/wavebar/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend is a scriptable audiocore.Backend.
type fakeBackend struct {
	format  audiocore.Format
	openErr error
	skipFmt bool // Open succeeds without recording a format

	// stubborn makes Stream ignore both termination and Interrupt until release is closed.
	stubborn bool
	release  chan struct{}

	// blockOnRead makes Stream wait for Interrupt instead of polling.
	blockOnRead bool
	interrupted chan struct{}
	interruptMu sync.Once

	opens      atomic.Int32
	streams    atomic.Int32
	closes     atomic.Int32
	interrupts atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		format:      audiocore.Format{SampleRate: 48000, Channels: 2, FormatCode: 16},
		release:     make(chan struct{}),
		interrupted: make(chan struct{}),
	}
}

func (b *fakeBackend) Kind() audiocore.BackendKind { return audiocore.BackendFIFO }

func (b *fakeBackend) Open(ch *audiocore.Channel) error {
	b.opens.Add(1)
	if b.openErr != nil {
		return b.openErr
	}
	if !b.skipFmt {
		ch.SetFormat(b.format)
	}
	return nil
}

func (b *fakeBackend) Stream(ch *audiocore.Channel) {
	b.streams.Add(1)
	switch {
	case b.stubborn:
		<-b.release
		return
	case b.blockOnRead:
		<-b.interrupted
		return
	}
	chunk := []float64{0.1, -0.1, 0.2, -0.2}
	for !ch.ShouldTerminate() {
		ch.Write(chunk)
		time.Sleep(time.Millisecond)
	}
}

func (b *fakeBackend) Interrupt() {
	b.interrupts.Add(1)
	b.interruptMu.Do(func() { close(b.interrupted) })
}

func (b *fakeBackend) Close() error {
	b.closes.Add(1)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Capacity = 64
	cfg.PollInterval = time.Millisecond
	cfg.NegotiationTimeout = time.Second
	cfg.StopTimeout = time.Second
	return cfg
}

func TestHandleStreamingLifecycle(t *testing.T) {
	b := newFakeBackend()
	h := New(testConfig(), b, WithLogger(logger.NewDiscardLogger()))

	assert.Equal(t, StateUninitialized, h.State())
	assert.NotEmpty(t, h.ID())
	assert.Equal(t, 64, h.Channel().Capacity())
	assert.False(t, h.Channel().Negotiated(), "fresh channel carries sentinel metadata")

	require.NoError(t, h.Start())

	f, err := h.AwaitFormat(0)
	require.NoError(t, err)
	assert.Equal(t, 48000, f.SampleRate)
	assert.Equal(t, 16, f.FormatCode)

	require.Eventually(t, func() bool { return h.Channel().Unread() > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, StateStreaming, h.State())

	require.NoError(t, h.Stop(0))
	assert.Equal(t, StateJoined, h.State())
	assert.Equal(t, int32(1), b.opens.Load())
	assert.Equal(t, int32(1), b.streams.Load())
	assert.Equal(t, int32(1), b.closes.Load())
	assert.True(t, h.Channel().ShouldTerminate())
}

func TestHandleStopIsIdempotent(t *testing.T) {
	b := newFakeBackend()
	h, err := Start(testConfig(), b)
	require.NoError(t, err)

	require.NoError(t, h.Stop(time.Second))
	require.NoError(t, h.Stop(time.Second))
	assert.Equal(t, int32(1), b.closes.Load())
	assert.Equal(t, int32(1), b.interrupts.Load())
}

func TestHandleStartTwice(t *testing.T) {
	h, err := Start(testConfig(), newFakeBackend())
	require.NoError(t, err)
	defer func() { require.NoError(t, h.Stop(time.Second)) }()

	err = h.Start()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestHandleStopBeforeStart(t *testing.T) {
	b := newFakeBackend()
	h := New(testConfig(), b)

	require.NoError(t, h.Stop(time.Second))
	assert.Equal(t, StateJoined, h.State())
	assert.Equal(t, int32(0), b.opens.Load())
	assert.Equal(t, int32(1), b.closes.Load())

	assert.Error(t, h.Start())
}

func TestHandleOpenFailure(t *testing.T) {
	b := newFakeBackend()
	b.openErr = fmt.Errorf("no such source")
	h, err := Start(testConfig(), b)
	require.NoError(t, err)

	f, err := h.AwaitFormat(time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, audiocore.ErrBackendOpen))
	stage, ok := errors.ContextValue(err, "stage")
	require.True(t, ok)
	assert.Equal(t, audiocore.StageSourceOpen, stage)
	assert.Equal(t, audiocore.FormatUnset, f.FormatCode)
	assert.Equal(t, 0, f.SampleRate)

	// The goroutine parks on the terminate flag instead of exiting.
	testutil.RequireNoSignal(t, h.Done(), testutil.ShortTestTimeout, "capture goroutine exited after open failure")
	assert.Equal(t, StateNegotiating, h.State())

	begin := time.Now()
	require.NoError(t, h.Stop(time.Second))
	assert.Less(t, time.Since(begin), 500*time.Millisecond)
	assert.Equal(t, int32(0), b.streams.Load())
	assert.Equal(t, int32(1), b.closes.Load())
}

// lateFailBackend records a format during Open and then fails, the way a
// device can negotiate and still refuse to start.
type lateFailBackend struct {
	*fakeBackend
	startDelay time.Duration
}

func (b *lateFailBackend) Open(ch *audiocore.Channel) error {
	b.opens.Add(1)
	ch.SetFormat(b.format)
	time.Sleep(b.startDelay)
	return audiocore.OpenError(fmt.Errorf("device start failed"), audiocore.BackendPulse, "start_device")
}

func TestHandleOpenFailureAfterFormatRecorded(t *testing.T) {
	b := &lateFailBackend{fakeBackend: newFakeBackend(), startDelay: 20 * time.Millisecond}
	h, err := Start(testConfig(), b)
	require.NoError(t, err)

	f, err := h.AwaitFormat(time.Second)
	require.Error(t, err, "a format from a failed open is not reported")
	assert.True(t, errors.Is(err, audiocore.ErrBackendOpen))
	assert.False(t, f.Negotiated())
	assert.False(t, h.Channel().Negotiated(), "channel metadata is back at the sentinel")
	assert.Equal(t, StateNegotiating, h.State())

	require.NoError(t, h.Stop(time.Second))
	assert.Equal(t, int32(0), b.streams.Load())
	assert.Equal(t, int32(1), b.closes.Load())
}

func TestHandleOpenFailureKeepsBackendError(t *testing.T) {
	b := newFakeBackend()
	b.openErr = audiocore.OpenError(fmt.Errorf("device busy"), audiocore.BackendFIFO, "open_fifo")
	h, err := Start(testConfig(), b)
	require.NoError(t, err)
	defer func() { require.NoError(t, h.Stop(time.Second)) }()

	_, err = h.AwaitFormat(time.Second)
	require.Error(t, err)
	op, _ := errors.ContextValue(err, "operation")
	assert.Equal(t, "open_fifo", op)
}

func TestHandleNegotiationTimeout(t *testing.T) {
	b := newFakeBackend()
	b.skipFmt = true
	h, err := Start(testConfig(), b)
	require.NoError(t, err)

	_, err = h.AwaitFormat(30 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, audiocore.ErrFormatNegotiation))
	assert.False(t, errors.Is(err, audiocore.ErrBackendOpen))

	require.NoError(t, h.Stop(time.Second))
}

func TestHandleInterruptUnblocksRead(t *testing.T) {
	b := newFakeBackend()
	b.blockOnRead = true
	h, err := Start(testConfig(), b)
	require.NoError(t, err)

	_, err = h.AwaitFormat(time.Second)
	require.NoError(t, err)

	begin := time.Now()
	require.NoError(t, h.Stop(time.Second))
	assert.Less(t, time.Since(begin), 500*time.Millisecond)
}

func TestHandleTerminationTimeout(t *testing.T) {
	b := newFakeBackend()
	b.stubborn = true
	h, err := Start(testConfig(), b)
	require.NoError(t, err)

	_, err = h.AwaitFormat(time.Second)
	require.NoError(t, err)

	err = h.Stop(20 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, audiocore.ErrTerminationTimeout))
	assert.Equal(t, StateTerminateRequested, h.State())
	assert.Equal(t, int32(0), b.closes.Load(), "backend must stay open while the goroutine may use it")
	waited, ok := errors.ContextValue(err, "duration_ms")
	require.True(t, ok)
	assert.GreaterOrEqual(t, waited, int64(20))
	op, _ := errors.ContextValue(err, "operation")
	assert.Equal(t, "join", op)

	// Later calls report the same outcome.
	assert.Equal(t, err, h.Stop(time.Second))

	close(b.release)
	testutil.WaitForChannel(t, h.Done(), testutil.DefaultTestTimeout, "capture goroutine did not exit after release")
	assert.Equal(t, StateJoined, h.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "negotiating", StateNegotiating.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "terminate-requested", StateTerminateRequested.String())
	assert.Equal(t, "joined", StateJoined.String())
	assert.Equal(t, "unknown", State(42).String())
}
