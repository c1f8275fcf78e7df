package audiocore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewChannelSentinels(t *testing.T) {
	t.Parallel()

	ch := NewChannel(0)

	assert.Equal(t, DefaultCapacity, ch.Capacity())
	assert.Equal(t, 0, ch.Unread())
	assert.False(t, ch.ShouldTerminate())
	assert.False(t, ch.Negotiated())

	f := ch.Format()
	assert.Equal(t, 0, f.SampleRate)
	assert.Equal(t, FormatUnset, f.FormatCode)
	assert.Equal(t, DefaultChannels, f.Channels)
}

func TestWriteThenDrain(t *testing.T) {
	t.Parallel()

	ch := NewChannel(16384)
	ch.Write([]float64{0.1, 0.2, 0.3})

	dst := make([]float64, ch.Capacity())
	n := ch.Drain(dst)
	require.Equal(t, 3, n)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, dst[:n])

	// second drain with no write in between
	assert.Equal(t, 0, ch.Drain(dst))
}

func TestWriteClampsToCapacityKeepingMostRecent(t *testing.T) {
	t.Parallel()

	ch := NewChannel(4)
	ch.Write([]float64{1, 2, 3, 4, 5})

	assert.Equal(t, 4, ch.Unread())

	dst := make([]float64, 4)
	n := ch.Drain(dst)
	require.Equal(t, 4, n)
	assert.Equal(t, []float64{2, 3, 4, 5}, dst)
	assert.Equal(t, uint64(1), ch.Stats().Overruns)
}

func TestWriteDrainProperty(t *testing.T) {
	t.Parallel()

	const capacity = 8
	for n := 0; n <= 3*capacity; n++ {
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = float64(i)
		}

		ch := NewChannel(capacity)
		ch.Write(samples)

		dst := make([]float64, capacity)
		got := ch.Drain(dst)

		want := min(n, capacity)
		require.Equal(t, want, got, "n=%d", n)
		assert.Equal(t, samples[n-want:], dst[:got], "n=%d", n)
	}
}

func TestWriteOverwritesUndrained(t *testing.T) {
	t.Parallel()

	ch := NewChannel(8)
	ch.Write([]float64{1, 2, 3, 4, 5, 6})
	ch.Write([]float64{7, 8})

	dst := make([]float64, 8)
	n := ch.Drain(dst)
	require.Equal(t, 2, n)
	assert.Equal(t, []float64{7, 8}, dst[:n], "stale tail of the first write is never surfaced")
	assert.Equal(t, uint64(1), ch.Stats().Overwrites)
}

func TestEmptyWriteClearsUnread(t *testing.T) {
	t.Parallel()

	ch := NewChannel(4)
	ch.Write([]float64{1, 2})
	ch.Write(nil)

	assert.Equal(t, 0, ch.Unread())
	assert.Equal(t, 0, ch.Drain(make([]float64, 4)))
}

func TestDrainIntoShorterDestinationKeepsMostRecent(t *testing.T) {
	t.Parallel()

	ch := NewChannel(8)
	ch.Write([]float64{1, 2, 3, 4, 5})

	dst := make([]float64, 2)
	n := ch.Drain(dst)
	require.Equal(t, 2, n)
	assert.Equal(t, []float64{4, 5}, dst)
	assert.Equal(t, 0, ch.Unread())
}

func TestDrainWithNothingUnreadLeavesDestination(t *testing.T) {
	t.Parallel()

	ch := NewChannel(4)
	dst := []float64{9, 9}

	assert.Equal(t, 0, ch.Drain(dst))
	assert.Equal(t, []float64{9, 9}, dst)
	assert.Equal(t, uint64(1), ch.Stats().EmptyDrains)
}

func TestRequestTerminateIsIdempotent(t *testing.T) {
	t.Parallel()

	ch := NewChannel(4)
	ch.RequestTerminate()
	ch.RequestTerminate()

	assert.True(t, ch.ShouldTerminate())
}

func TestSetFormat(t *testing.T) {
	t.Parallel()

	ch := NewChannel(4)
	ch.SetFormat(Format{SampleRate: 48000, Channels: 2, FormatCode: 16})

	assert.True(t, ch.Negotiated())
	assert.Equal(t, "s16 48000Hz 2ch", ch.Format().String())
}

// TestConcurrentWriteDrain hammers one writer against one drainer. Every
// drained snapshot must be a contiguous run of a single write, which the
// writer encodes as (write id, index) pairs. Run with -race.
func TestConcurrentWriteDrain(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		capacity = 64
		writes   = 20000
	)
	ch := NewChannel(capacity)

	var wg sync.WaitGroup
	wg.Go(func() {
		buf := make([]float64, capacity+16)
		for w := 1; w <= writes; w++ {
			n := 1 + w%len(buf)
			for i := range n {
				buf[i] = float64(w)*1000 + float64(i)
			}
			ch.Write(buf[:n])
		}
		ch.RequestTerminate()
	})

	dst := make([]float64, capacity)
	drained := 0
	for {
		n := ch.Drain(dst)
		if n > 0 {
			drained++
			id := int(dst[0]) / 1000
			for i := 1; i < n; i++ {
				require.Equal(t, id, int(dst[i])/1000, "snapshot mixes two writes")
				require.Equal(t, dst[i-1]+1, dst[i], "snapshot is not contiguous")
			}
		}
		if ch.ShouldTerminate() && ch.Unread() == 0 {
			break
		}
	}
	wg.Wait()

	stats := ch.Stats()
	assert.Equal(t, uint64(writes), stats.Writes)
	assert.Equal(t, uint64(drained), stats.Drains)
	assert.LessOrEqual(t, stats.SamplesDrained, stats.SamplesWritten)
}
