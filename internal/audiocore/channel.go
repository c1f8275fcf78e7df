package audiocore

import (
	"sync"
)

// DefaultCapacity is the number of samples a Channel holds when no size is configured.
const DefaultCapacity = 16384

// ChannelStats are cumulative counters for one Channel.
type ChannelStats struct {
	Writes         uint64 // Write calls
	Overruns       uint64 // writes clamped to capacity
	Overwrites     uint64 // writes that replaced undrained samples
	SamplesWritten uint64 // samples made visible to the consumer
	Drains         uint64 // Drain calls that copied samples
	EmptyDrains    uint64 // Drain calls that found nothing unread
	SamplesDrained uint64
}

// Channel is the single-producer, single-consumer handoff between a capture
// backend and the frame loop. All fields are guarded by mu.
type Channel struct {
	mu        sync.Mutex
	buf       []float64
	unread    int
	format    Format
	terminate bool
	stats     ChannelStats
}

// NewChannel returns a channel with the given fixed capacity and sentinel
// format metadata. A non-positive capacity selects DefaultCapacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{
		buf:    make([]float64, capacity),
		format: SentinelFormat(),
	}
}

// Capacity returns the fixed buffer size in samples.
func (c *Channel) Capacity() int {
	return len(c.buf)
}

// Write publishes samples to the consumer. The most recent
// min(len(samples), Capacity()) samples are placed at the front of the buffer
// and become the unread window, replacing anything not yet drained.
// Write never waits for the consumer.
func (c *Channel) Write(samples []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Writes++
	if len(samples) > len(c.buf) {
		samples = samples[len(samples)-len(c.buf):]
		c.stats.Overruns++
	}
	if c.unread > 0 {
		c.stats.Overwrites++
	}

	c.unread = copy(c.buf, samples)
	c.stats.SamplesWritten += uint64(c.unread)
}

// Drain copies the unread window into dst and returns the number of samples
// copied. If dst is shorter than the window the most recent samples are kept.
// The unread count is reset whenever anything was copied. With nothing
// unread Drain returns 0 and leaves dst untouched.
func (c *Channel) Drain(dst []float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unread == 0 {
		c.stats.EmptyDrains++
		return 0
	}

	start := 0
	if c.unread > len(dst) {
		start = c.unread - len(dst)
	}
	n := copy(dst, c.buf[start:c.unread])
	c.unread = 0

	c.stats.Drains++
	c.stats.SamplesDrained += uint64(n)
	return n
}

// Unread returns the number of samples waiting for the consumer.
func (c *Channel) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// RequestTerminate asks the backend to leave its read loop. Idempotent.
func (c *Channel) RequestTerminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminate = true
}

// ShouldTerminate reports whether termination was requested.
func (c *Channel) ShouldTerminate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminate
}

// SetFormat records the format a backend negotiated.
func (c *Channel) SetFormat(f Format) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.format = f
}

// Format returns the current format metadata.
func (c *Channel) Format() Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Negotiated reports whether the format metadata has left its sentinel values.
func (c *Channel) Negotiated() bool {
	return c.Format().Negotiated()
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() ChannelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
